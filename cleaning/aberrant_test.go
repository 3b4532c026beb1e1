// Copyright 2026 Picobio, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package cleaning

import (
	"math"
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/picobio/tweezer/stats"
)

func eqTrace(t *testing.T, got, want []float32) {
	t.Helper()
	expect.EQ(t, len(got), len(want))
	for i := range want {
		gNaN := math.IsNaN(float64(got[i]))
		wNaN := math.IsNaN(float64(want[i]))
		if gNaN != wNaN || (!wNaN && got[i] != want[i]) {
			t.Fatalf("index %d: got %v, want %v (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestConstantValuesSuppressor(t *testing.T) {
	r := ConstantValuesSuppressor{MinDeltaValue: 0.5, MinDeltaRange: 3}
	x := []float32{1, 1, 1, 1, 2}
	r.Apply(x)
	eqTrace(t, x, []float32{1, nan32, nan32, 1, 2})
}

func TestConstantValuesSuppressorSkipsNaN(t *testing.T) {
	r := ConstantValuesSuppressor{MinDeltaValue: 0.5, MinDeltaRange: 3}
	x := []float32{1, nan32, 1, 1, 2}
	r.Apply(x)
	// The NaN gap does not reset the anchor: the run still counts.
	eqTrace(t, x, []float32{1, nan32, nan32, 1, 2})
}

func TestDerivateSuppressorClip(t *testing.T) {
	r := DerivateSuppressor{MaxAbsValue: 5, MaxDerivate: 1}
	x := []float32{0, 10, 0, -10, 0}
	r.Apply(x, true, 0)
	eqTrace(t, x, []float32{0, 5, 0, -5, 0})
}

func TestDerivateSuppressor(t *testing.T) {
	r := DerivateSuppressor{MaxAbsValue: 5, MaxDerivate: 1}
	x := []float32{0, 0.1, 4, 0.2, 0.3}
	r.Apply(x, false, 0)
	// The spike at index 2 is 3.85 above the average of its neighbours,
	// and it drags both neighbours past the derivative bound too: the
	// test uses the original values, not the cleaned ones.
	eqTrace(t, x, []float32{0, nan32, nan32, nan32, 0.3})

	y := []float32{0, 0.05, 0.1, 12, 0.1, 0.05, 0}
	r.Apply(y, false, 0)
	// 12 also breaks the absolute bound.
	eqTrace(t, y, []float32{0, 0.05, nan32, nan32, nan32, 0.05, 0})
}

func TestLocalNaNPopulation(t *testing.T) {
	r := LocalNaNPopulation{Window: 2, Ratio: 50}
	// Needs ratio*window/100+1 = 2 NaNs in each flanking window of 2.
	x := []float32{nan32, nan32, 5, nan32, nan32, 1, 1, 1, 1}
	r.Apply(x)
	assert.True(t, math.IsNaN(float64(x[2])))
	expect.EQ(t, x[5], float32(1))
}

func TestAberrantValuesRulePreservesLength(t *testing.T) {
	rule := NewAberrantValuesRule()
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 200).Draw(t, "n")
		x := make([]float32, n)
		orig := make([]float32, n)
		for i := range x {
			if rapid.Bool().Draw(t, "isnan") {
				x[i] = nan32
			} else {
				x[i] = float32(rapid.Float64Range(-10, 10).Draw(t, "v"))
			}
			orig[i] = x[i]
		}
		rule.Apply(x, false)
		if len(x) != n {
			t.Fatalf("length changed: %d != %d", len(x), n)
		}
		for i := range x {
			if stats.IsFinite(x[i]) && !stats.IsFinite(orig[i]) {
				t.Fatalf("index %d: NaN was resurrected", i)
			}
		}
	})
}

func TestClip(t *testing.T) {
	x := []float32{-2, 0.5, 3, nan32}
	Clip(0, 1, x)
	eqTrace(t, x, []float32{0, 0.5, 1, nan32})
}
