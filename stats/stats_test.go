// Copyright 2026 Picobio, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package stats

import (
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

var nan = float32(math.NaN())

func TestRunning(t *testing.T) {
	var r Running
	assert.True(t, math.IsNaN(r.Mean()))
	for _, v := range []float64{1, 2, 3, 4} {
		r.Add(v)
	}
	expect.EQ(t, r.Count(), 4)
	assert.InDelta(t, 2.5, r.Mean(), 1e-12)
	assert.InDelta(t, 1.25, r.Var(), 1e-12)
	assert.InDelta(t, 5.0/3.0, r.SampleVar(), 1e-12)
}

func TestWeightedMatchesUnweighted(t *testing.T) {
	var w Weighted
	var r Running
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 100; i++ {
		v := rng.NormFloat64()
		w.Add(v, 1)
		r.Add(v)
	}
	assert.InDelta(t, r.Mean(), w.Mean(), 1e-9)
	assert.InDelta(t, r.Var(), w.Var(), 1e-9)
}

func TestMedian(t *testing.T) {
	tests := []struct {
		in   []float32
		want float32
	}{
		{[]float32{5}, 5},
		{[]float32{1, 3}, 2},
		{[]float32{3, 1, 2}, 2},
		{[]float32{4, 1, 3, 2}, 2.5},
	}
	for _, test := range tests {
		expect.EQ(t, Median(test.in), test.want, "in: %v", test.in)
	}
	assert.True(t, math.IsNaN(float64(Median(nil))))
}

func TestPercentile(t *testing.T) {
	x := []float32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	expect.EQ(t, Percentile(x, 0), float32(0))
	expect.EQ(t, Percentile(x, 100), float32(9))
	expect.EQ(t, Percentile(x, 50), float32(5))
	expect.EQ(t, Percentile([]float32{42}, 33), float32(42))
	assert.True(t, math.IsNaN(float64(Percentile(nil, 50))))
}

func TestNanPercentile(t *testing.T) {
	x := []float32{nan, 1, nan, 3, 2, nan}
	expect.EQ(t, NanPercentile(x, 0), float32(1))
	expect.EQ(t, NanPercentile(x, 100), float32(3))
	// The percentile rank convention interpolates between the two upper
	// order statistics for a 3-element input.
	expect.EQ(t, NanMedian(x), float32(2.5))
	assert.True(t, math.IsNaN(float64(NanMedian([]float32{nan, nan}))))
}

func TestHFSigma(t *testing.T) {
	expect.EQ(t, HFSigma([]float32{0, 1, 0, 1, 0, 1, 0, 1}), float32(1))
	assert.True(t, math.IsNaN(float64(HFSigma([]float32{3}))))
}

func TestNanHFSigma(t *testing.T) {
	constant := make([]float32, 50)
	for i := range constant {
		constant[i] = 7.5
	}
	expect.EQ(t, NanHFSigma(constant, 1), float32(0))

	allNaN := make([]float32, 20)
	for i := range allNaN {
		allNaN[i] = nan
	}
	assert.True(t, math.IsNaN(float64(NanHFSigma(allNaN, 1))))

	// NaN gaps bridge to the neighbouring finite samples.
	gapped := []float32{0, nan, 1, nan, nan, 2, 3}
	expect.EQ(t, NanHFSigma(gapped, 1), float32(1))
}

func TestPSquareApproachesExactQuantile(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const n = 20000
	values := make([]float64, n)
	ps := NewPSquare(0.5)
	for i := range values {
		values[i] = rng.NormFloat64()
		ps.Add(values[i])
	}
	sort.Float64s(values)
	exact := 0.5 * (values[n/2-1] + values[n/2])
	assert.InDelta(t, exact, ps.Value(), 0.02)
}

func TestApproxMedianExactBelowRange(t *testing.T) {
	a := NewApproxMedian()
	for _, v := range []float64{5, 1, 3} {
		a.Add(v)
	}
	expect.EQ(t, a.Value(), 3.0)
}

func TestMedianDeviation(t *testing.T) {
	// Uniform on [0, 1): Q(2/3)-Q(1/3) = 1/3, so the deviation tends to 1/6.
	rng := rand.New(rand.NewSource(3))
	x := make([]float32, 30000)
	for i := range x {
		x[i] = rng.Float32()
	}
	assert.InDelta(t, 1.0/6.0, float64(MedianDeviation(x)), 0.01)
}

func TestRollingMean(t *testing.T) {
	r := NewRollingMean(3)
	r.Add(1)
	assert.InDelta(t, 1, r.Value(), 1e-12)
	r.Add(2)
	r.Add(3)
	assert.InDelta(t, 2, r.Value(), 1e-12)
	r.Add(10)
	assert.InDelta(t, 5, r.Value(), 1e-12)
}

func TestRollingExtrema(t *testing.T) {
	lo := NewRollingMin(3)
	hi := NewRollingMax(3)
	values := []float64{5, 3, 4, 1, 2, 6}
	wantMin := []float64{5, 3, 3, 1, 1, 1}
	wantMax := []float64{5, 5, 5, 4, 4, 6}
	for i, v := range values {
		lo.Add(v)
		hi.Add(v)
		assert.Equal(t, wantMin[i], lo.Value(), "min at %d", i)
		assert.Equal(t, wantMax[i], hi.Value(), "max at %d", i)
	}
	expect.EQ(t, lo.Arg(), 3)
	expect.EQ(t, hi.Arg(), 5)
}

func TestNanThresholdDuality(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 60).Draw(t, "n")
		width := rapid.IntRange(1, 10).Draw(t, "width")
		k := rapid.IntRange(0, 10).Draw(t, "k")
		x := make([]float32, n)
		for i := range x {
			if rapid.Bool().Draw(t, "isnan") {
				x[i] = nan
			} else {
				x[i] = float32(i)
			}
		}
		got := NanThreshold(width, k, x)
		for i := range x {
			finite := 0
			for j := i; j < i+width && j < n; j++ {
				if IsFinite(x[j]) {
					finite++
				}
			}
			if got[i] != (finite >= k) {
				t.Fatalf("index %d: got %v, finite=%d, k=%d", i, got[i], finite, k)
			}
		}
	})
}
