// Copyright 2026 Picobio, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package eventdetection

import (
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"

	"github.com/picobio/tweezer/interval"
)

// plateaus builds a trace of flat stretches at the given levels, n frames
// each, with a tiny deterministic wiggle so the precision is non-zero.
func plateaus(n int, levels ...float32) []float32 {
	out := make([]float32, 0, n*len(levels))
	for _, level := range levels {
		for i := 0; i < n; i++ {
			wiggle := float32(i%2)*2e-3 - 1e-3
			out = append(out, level+wiggle)
		}
	}
	return out
}

func TestRemoveNaNs(t *testing.T) {
	c := removeNaNs([]float32{nan32, 1, 2, nan32, nan32, 3})
	expect.EQ(t, c.good, []float32{1, 2, 3})
	expect.EQ(t, c.nans, []int{1, 1, 3, 3})
}

func TestDerivateSplitDetector(t *testing.T) {
	d := NewDerivateSplitDetector()
	data := plateaus(40, 0, 1)
	ints := d.Compute(0.002, data)
	expect.EQ(t, len(ints), 2, "intervals: %v", ints)
	assert.True(t, interval.Valid(ints), "intervals: %v", ints)
	// The jump frame around index 40 belongs to neither plateau.
	assert.True(t, ints[0].First < 5, "intervals: %v", ints)
	assert.True(t, ints[1].Last > 75, "intervals: %v", ints)
	assert.True(t, ints[0].Last <= 41 && ints[1].First >= 39, "intervals: %v", ints)
}

func TestChiSquareSplitDetector(t *testing.T) {
	d := NewChiSquareSplitDetector()
	data := plateaus(40, 0, 1)
	ints := d.Compute(0.002, data)
	assert.True(t, len(ints) >= 2, "intervals: %v", ints)
	assert.True(t, interval.Valid(ints), "intervals: %v", ints)
}

func TestMultiGradeSplitDetector(t *testing.T) {
	d := NewMultiGradeSplitDetector()
	data := plateaus(40, 0, 1, 0.2)
	ints := d.Compute(0.002, data)
	assert.True(t, len(ints) >= 3, "intervals: %v", ints)
	assert.True(t, interval.Valid(ints), "intervals: %v", ints)
}

func TestSplitDetectorNaNFraming(t *testing.T) {
	d := NewDerivateSplitDetector()
	data := append([]float32{nan32, nan32}, plateaus(40, 0, 1)...)
	ints := d.Compute(0.002, data)
	expect.EQ(t, len(ints), 2, "intervals: %v", ints)
	// Intervals are reported in uncompressed frame indices.
	assert.True(t, ints[0].First >= 2, "intervals: %v", ints)
}

func TestSplitDetectorDegenerate(t *testing.T) {
	d := NewDerivateSplitDetector()
	expect.EQ(t, len(d.Compute(0.01, nil)), 0)
	allNaN := []float32{nan32, nan32, nan32}
	expect.EQ(t, len(d.Compute(0.01, allNaN)), 0)
}

func TestPrecisionFallback(t *testing.T) {
	// precision <= 0 falls back to the trace's own high-frequency sigma;
	// the detector must behave as with the explicit value.
	d := NewDerivateSplitDetector()
	data := plateaus(40, 0, 1)
	auto := d.Compute(0, data)
	assert.True(t, len(auto) >= 2, "intervals: %v", auto)
}

func TestIntervalExtension(t *testing.T) {
	x := IntervalExtension{Window: 3, Ratio: 1}
	// The plateau extends two frames past the detected interval; the
	// extension should recover them.
	data := []float32{5, 5, 5, 5, 5, 9, 9, 9}
	ints := []interval.Span{{First: 1, Last: 3}}
	out := x.Compute(0.1, data, ints)
	expect.EQ(t, len(out), 1)
	expect.EQ(t, out[0].First, 0)
	assert.True(t, out[0].Last >= 5, "out: %v", out)
}
