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

// twoCycles builds a trace of two 8-frame cycles.
func twoCycles(a, b []float32) (bead []float32, first, last []int) {
	bead = append(append([]float32{}, a...), b...)
	return bead, []int{0, len(a)}, []int{len(a), len(a) + len(b)}
}

func TestHFSigmaRule(t *testing.T) {
	rule := HFSigmaRule{MinV: 0.5, MaxV: 2}
	bead, first, last := twoCycles(
		[]float32{0, 1, 0, 1, 0, 1, 0, 1}, // hfsigma 1: pass
		[]float32{0, 0, 0, 0, 0, 0, 0, 0}, // hfsigma 0: too constant
	)
	p := rule.Apply(bead, first, last)
	expect.EQ(t, p.Name, "hfsigma")
	expect.EQ(t, p.Values[0], float32(1))
	expect.EQ(t, p.Values[1], float32(0))
	expect.EQ(t, p.Bad(), []bool{false, true})
}

func TestHFSigmaRuleRescale(t *testing.T) {
	rule := NewHFSigmaRule().Rescale(2)
	expect.EQ(t, rule.MinV, float32(2e-4))
	expect.EQ(t, rule.MaxV, float32(2e-2))
	expect.EQ(t, NewHFSigmaRule().ZScaledAttributes(), []string{"minhfsigma", "maxhfsigma"})
}

func TestPopulationRule(t *testing.T) {
	rule := PopulationRule{MinV: 60}
	bead, first, last := twoCycles(
		[]float32{1, 1, 1, 1, nan32, nan32, 1, 1},         // 75%: pass
		[]float32{nan32, nan32, nan32, nan32, 1, 1, 1, 1}, // 50%: fail
	)
	p := rule.Apply(bead, first, last)
	expect.EQ(t, p.Values[0], float32(75))
	expect.EQ(t, p.Values[1], float32(50))
	expect.EQ(t, p.Bad(), []bool{false, true})
}

func TestExtentRule(t *testing.T) {
	rule := ExtentRule{MinV: 0.5, MaxV: 2, MinPercentile: 0, MaxPercentile: 100}
	bead, first, last := twoCycles(
		[]float32{0, 1, 0, 1, 0, 1, 0, 1},                 // extent 1: pass
		[]float32{0, 0.1, 0, 0.1, 0, 0.1, 0, 0.1},         // extent 0.1: fail
	)
	p := rule.Apply(bead, first, last)
	assert.InDelta(t, 1, float64(p.Values[0]), 1e-6)
	assert.InDelta(t, 0.1, float64(p.Values[1]), 1e-6)
	expect.EQ(t, p.Bad(), []bool{false, true})
}

func TestPhaseJumpRule(t *testing.T) {
	rule := PhaseJumpRule{PhaseJumpHeight: 1.4, MaxV: 1, Delta: 0.2}
	bead, first, last := twoCycles(
		[]float32{0, 0, 0, 0, 0, 0, 0, 0},
		[]float32{0, 1.4, 0, 1.4, 0, 0, 0, 0}, // four fringe-sized jumps
	)
	p := rule.Apply(bead, first, last)
	expect.EQ(t, p.Values[0], float32(0))
	expect.EQ(t, p.Values[1], float32(4))
	expect.EQ(t, p.Bad(), []bool{false, true})
}

func TestSaturationRule(t *testing.T) {
	rule := SaturationRule{MaxV: 50, MaxDistToZero: 0.2, SatWindow: 4}
	// Two cycles, each split into an initial phase (frames 0-3) and a
	// measure phase (frames 4-11).
	bead := []float32{
		// cycle 0: returns to baseline
		0, 0, 0, 0, 1, 1, 0.05, 0.05, 0.05, 0.05, 0.05, 0.05,
		// cycle 1: stuck open
		0, 0, 0, 0, 1, 1, 1, 1, 1, 1, 1, 1,
	}
	initFirst := []int{0, 12}
	initLast := []int{4, 16}
	measFirst := []int{4, 16}
	measLast := []int{12, 24}
	p, frac := rule.Apply(bead, initFirst, initLast, measFirst, measLast)
	assert.InDelta(t, 0.05, float64(p.Values[0]), 1e-6)
	assert.InDelta(t, 1, float64(p.Values[1]), 1e-6)
	expect.EQ(t, frac, float32(50))
}

func TestDataCleaningRescale(t *testing.T) {
	d := NewDataCleaning().Rescale(2)
	expect.EQ(t, d.HFSigma.MinV, float32(2e-4))
	expect.EQ(t, d.PingPong.MinDifference, float32(0.02))
	expect.EQ(t, d.Saturation.MaxDistToZero, float32(0.3))
	expect.EQ(t, d.Aberrant.Derivative.MaxAbsValue, float32(10))
	// Non-scaled parameters stay put.
	expect.EQ(t, d.Population.MinV, NewDataCleaning().Population.MinV)
}

func TestApplyAberrantVerdict(t *testing.T) {
	d := NewDataCleaning()
	good := make([]float32, 100)
	for i := range good {
		good[i] = float32(math.Sin(float64(i)))
	}
	expect.False(t, d.ApplyAberrant(good, false))

	mostlyNaN := make([]float32, 100)
	for i := range mostlyNaN {
		mostlyNaN[i] = nan32
	}
	mostlyNaN[0] = 1
	expect.True(t, d.ApplyAberrant(mostlyNaN, false))
}
