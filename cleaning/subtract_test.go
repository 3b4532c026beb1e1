// Copyright 2026 Picobio, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package cleaning

import (
	"math"
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
)

func TestMedianSignal(t *testing.T) {
	// Two beads offset by a constant; the offsets are removed against
	// their own median, so the reference keeps the common shape.
	a := []float32{1, 2, 3, 4, 1, 2, 3, 4}
	b := []float32{11, 12, 13, 14, 11, 12, 13, 14}
	out := MedianSignal([][]float32{a, b}, 0, 8)
	expect.EQ(t, len(out), 8)
	// offsets: median(a)=2.5->-5, median(b)=12.5->+5 after recentring.
	for i := range out {
		want := a[i] + 5
		assert.InDelta(t, float64(want), float64(out[i]), 1e-5, "index %d", i)
	}
}

func TestMeanSignalSkipsNaN(t *testing.T) {
	a := []float32{1, nan32, 1}
	b := []float32{3, 3, nan32}
	out := MeanSignal([][]float32{a, b}, 0, 0) // no offset window
	expect.EQ(t, len(out), 3)
	assert.InDelta(t, 2, float64(out[0]), 1e-6)
	assert.InDelta(t, 3, float64(out[1]), 1e-6)
	assert.InDelta(t, 1, float64(out[2]), 1e-6)
}

func TestStdDevSignal(t *testing.T) {
	a := []float32{0, 0, 0}
	b := []float32{2, 2, 2}
	out := StdDevSignal([][]float32{a, b}, 0, 0)
	for i := range out {
		assert.InDelta(t, 1, float64(out[i]), 1e-6, "index %d", i)
	}
}

func TestSubtractSignalRaggedLengths(t *testing.T) {
	a := []float32{1, 1, 1, 1}
	b := []float32{1, 1}
	out := MeanSignal([][]float32{a, b}, 0, 0)
	expect.EQ(t, len(out), 4)
	// Positions past the short bead use the remaining contributors.
	assert.InDelta(t, 1, float64(out[3]), 1e-6)
}

func TestSubtractSignalEmpty(t *testing.T) {
	expect.EQ(t, len(MedianSignal(nil, 0, 10)), 0)
	// A bead with no finite offset sample is left out entirely.
	allNaN := []float32{nan32, nan32}
	out := MedianSignal([][]float32{allNaN}, 0, 2)
	expect.EQ(t, len(out), 0)
}

func TestPhaseBaseline(t *testing.T) {
	trace := []float32{5, 5, 0, 0, 7, 7, 0, 0}
	first := []int{0, 4}
	second := []int{2, 6}
	out := PhaseBaseline(AggMedian, trace, first, second)
	expect.EQ(t, out[0], float32(5))
	expect.EQ(t, out[1], float32(5))
	assert.True(t, math.IsNaN(float64(out[2])))
	expect.EQ(t, out[4], float32(7))
	assert.True(t, math.IsNaN(float64(out[7])))
}

func TestDzCount(t *testing.T) {
	trace := []float32{0, 0.001, 0.002, 1, 1.001, 1.002, 1.003, 2}
	first := []int{0, 3}
	second := []int{3, 8}
	got := DzCount(0.01, trace, first, second)
	expect.EQ(t, got, []int{2, 3})
	expect.EQ(t, DzTotalCount(0.01, trace, first, second), 5)
}
