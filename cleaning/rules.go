// Copyright 2026 Picobio, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package cleaning

import (
	"math"

	"github.com/picobio/tweezer/stats"
)

var (
	negInf32 = float32(math.Inf(-1))
	posInf32 = float32(math.Inf(1))
)

// Partial is the result of one per-cycle rule: the computed value for each
// cycle, together with the accept bounds in effect.  A cycle fails when its
// value is NaN or falls outside [Min, Max].
type Partial struct {
	Name   string
	Min    []float32
	Max    []float32
	Values []float32
}

// Bad returns the per-cycle verdict vector: true marks a rejected cycle.
func (p Partial) Bad() []bool {
	out := make([]bool, len(p.Values))
	for i, v := range p.Values {
		out[i] = !stats.IsFinite(v) || v < p.Min[i] || v > p.Max[i]
	}
	return out
}

func newPartial(name string, ncycles int, minv, maxv float32) Partial {
	p := Partial{
		Name:   name,
		Min:    make([]float32, ncycles),
		Max:    make([]float32, ncycles),
		Values: make([]float32, ncycles),
	}
	for i := range p.Min {
		p.Min[i] = minv
		p.Max[i] = maxv
	}
	return p
}

func cycleOf(bead []float32, first, last int) []float32 {
	if first < 0 {
		first = 0
	}
	if last > len(bead) {
		last = len(bead)
	}
	if last < first {
		last = first
	}
	return bead[first:last]
}

// HFSigmaRule rejects cycles whose high-frequency noise falls outside
// [MinV, MaxV].  Too low a value betrays a tracker that reused stale
// positions; too high a value betrays brownian motion amplified by a
// rocking bead.
type HFSigmaRule struct {
	MinV float32
	MaxV float32
}

// NewHFSigmaRule returns the production defaults.
func NewHFSigmaRule() HFSigmaRule { return HFSigmaRule{MinV: 1e-4, MaxV: 1e-2} }

// ZScaledAttributes lists the parameters scaling linearly with the Z unit.
func (HFSigmaRule) ZScaledAttributes() []string { return []string{"minhfsigma", "maxhfsigma"} }

// Rescale returns a copy with the Z-scaled parameters multiplied by k.
func (r HFSigmaRule) Rescale(k float32) HFSigmaRule {
	r.MinV *= k
	r.MaxV *= k
	return r
}

// Apply scores each cycle of bead delimited by first/last.
func (r HFSigmaRule) Apply(bead []float32, first, last []int) Partial {
	p := newPartial("hfsigma", len(first), r.MinV, r.MaxV)
	for c := range first {
		p.Values[c] = stats.NanHFSigma(cycleOf(bead, first[c], last[c]), 1)
	}
	return p
}

// PopulationRule rejects cycles with too few finite samples, in percent of
// the cycle length.
type PopulationRule struct {
	MinV float32
}

// NewPopulationRule returns the production defaults.
func NewPopulationRule() PopulationRule { return PopulationRule{MinV: 80} }

// ZScaledAttributes lists the parameters scaling linearly with the Z unit.
func (PopulationRule) ZScaledAttributes() []string { return nil }

// Rescale returns the rule unchanged; no parameter carries the Z unit.
func (r PopulationRule) Rescale(float32) PopulationRule { return r }

// Apply scores each cycle of bead delimited by first/last.
func (r PopulationRule) Apply(bead []float32, first, last []int) Partial {
	p := newPartial("population", len(first), r.MinV, posInf32)
	for c := range first {
		cyc := cycleOf(bead, first[c], last[c])
		if len(cyc) == 0 {
			p.Values[c] = nan32
			continue
		}
		good := 0
		for _, v := range cyc {
			if stats.IsFinite(v) {
				good++
			}
		}
		p.Values[c] = 100 * float32(good) / float32(len(cyc))
	}
	return p
}

// ExtentRule rejects cycles whose dynamic range, measured between two
// robust percentiles, falls outside [MinV, MaxV].
type ExtentRule struct {
	MinV          float32
	MaxV          float32
	MinPercentile float64
	MaxPercentile float64
}

// NewExtentRule returns the production defaults.
func NewExtentRule() ExtentRule {
	return ExtentRule{MinV: 0.25, MaxV: 2, MinPercentile: 0, MaxPercentile: 100}
}

// ZScaledAttributes lists the parameters scaling linearly with the Z unit.
func (ExtentRule) ZScaledAttributes() []string { return []string{"minextent", "maxextent"} }

// Rescale returns a copy with the Z-scaled parameters multiplied by k.
func (r ExtentRule) Rescale(k float32) ExtentRule {
	r.MinV *= k
	r.MaxV *= k
	return r
}

// Apply scores each cycle of bead delimited by first/last.
func (r ExtentRule) Apply(bead []float32, first, last []int) Partial {
	p := newPartial("extent", len(first), r.MinV, r.MaxV)
	for c := range first {
		cyc := cycleOf(bead, first[c], last[c])
		p.Values[c] = stats.NanPercentile(cyc, r.MaxPercentile) -
			stats.NanPercentile(cyc, r.MinPercentile)
	}
	return p
}

// PingPongRule rejects cycles whose integrated excess |dz| exceeds MaxV.
// A tracker alternating between two nearby beads produces a large train of
// alternating jumps; genuine motion does not.  The percentile pair bounds
// the |dz| distribution so a single outlier spike cannot dominate the
// integral.
type PingPongRule struct {
	MaxV          float32
	MinDifference float32
	MinPercentile float64
	MaxPercentile float64
}

// NewPingPongRule returns the production defaults.
func NewPingPongRule() PingPongRule {
	return PingPongRule{MaxV: 3, MinDifference: 0.01, MinPercentile: 5, MaxPercentile: 95}
}

// ZScaledAttributes lists the parameters scaling linearly with the Z unit.
func (PingPongRule) ZScaledAttributes() []string { return []string{"mindifference"} }

// Rescale returns a copy with the Z-scaled parameters multiplied by k.
func (r PingPongRule) Rescale(k float32) PingPongRule {
	r.MinDifference *= k
	return r
}

// Apply scores each cycle of bead delimited by first/last.
func (r PingPongRule) Apply(bead []float32, first, last []int) Partial {
	p := newPartial("pingpong", len(first), negInf32, r.MaxV)
	for c := range first {
		cyc := cycleOf(bead, first[c], last[c])
		dz := make([]float32, 0, len(cyc))
		prev := nan32
		for _, v := range cyc {
			if !stats.IsFinite(v) {
				continue
			}
			if stats.IsFinite(prev) {
				d := v - prev
				if d < 0 {
					d = -d
				}
				dz = append(dz, d)
			}
			prev = v
		}
		if len(dz) == 0 {
			p.Values[c] = nan32
			continue
		}
		lo := stats.Percentile(dz, r.MinPercentile)
		hi := stats.Percentile(dz, r.MaxPercentile)
		sum := 0.0
		for _, d := range dz {
			if d > hi {
				d = hi
			} else if d < lo {
				d = lo
			}
			if d > r.MinDifference {
				sum += float64(d - r.MinDifference)
			}
		}
		p.Values[c] = float32(sum)
	}
	return p
}

// PhaseJumpRule rejects cycles showing too many frame-to-frame jumps of
// roughly PhaseJumpHeight.  On SDI instruments a fringe misassignment
// shifts Z by one fringe height, so such jumps count tracking errors, not
// motion.
type PhaseJumpRule struct {
	PhaseJumpHeight float32
	MaxV            float32
	Delta           float32
}

// NewPhaseJumpRule returns the production defaults.  The height corresponds
// to one SDI fringe, about 1.4 um in default units.
func NewPhaseJumpRule() PhaseJumpRule {
	return PhaseJumpRule{PhaseJumpHeight: 1.4, MaxV: 0, Delta: 0.1}
}

// ZScaledAttributes lists the parameters scaling linearly with the Z unit.
func (PhaseJumpRule) ZScaledAttributes() []string { return []string{"phasejumpheight", "delta"} }

// Rescale returns a copy with the Z-scaled parameters multiplied by k.
func (r PhaseJumpRule) Rescale(k float32) PhaseJumpRule {
	r.PhaseJumpHeight *= k
	r.Delta *= k
	return r
}

// Apply scores each cycle of bead delimited by first/last.
func (r PhaseJumpRule) Apply(bead []float32, first, last []int) Partial {
	p := newPartial("phasejump", len(first), negInf32, r.MaxV)
	lo := float64(r.PhaseJumpHeight - r.Delta)
	hi := float64(r.PhaseJumpHeight + r.Delta)
	for c := range first {
		cyc := cycleOf(bead, first[c], last[c])
		count := 0
		prev := nan32
		for _, v := range cyc {
			if !stats.IsFinite(v) {
				continue
			}
			if stats.IsFinite(prev) {
				d := math.Abs(float64(v) - float64(prev))
				if d >= lo && d <= hi {
					count++
				}
			}
			prev = v
		}
		p.Values[c] = float32(count)
	}
	return p
}

// SaturationRule flags beads whose hairpin no longer closes: cycle after
// cycle the measure phase fails to come back down to the initial-phase
// baseline.
type SaturationRule struct {
	MaxV          float32
	MaxDistToZero float32
	SatWindow     int
}

// NewSaturationRule returns the production defaults.
func NewSaturationRule() SaturationRule {
	return SaturationRule{MaxV: 90, MaxDistToZero: 0.15, SatWindow: 10}
}

// ZScaledAttributes lists the parameters scaling linearly with the Z unit.
func (SaturationRule) ZScaledAttributes() []string { return []string{"maxdisttozero"} }

// Rescale returns a copy with the Z-scaled parameters multiplied by k.
func (r SaturationRule) Rescale(k float32) SaturationRule {
	r.MaxDistToZero *= k
	return r
}

// Apply scores each cycle: Values[c] is the distance between the mean of
// the last SatWindow samples of the measure phase and the initial-phase
// median.  The second return is the bead-level saturation percentage; the
// bead fails when it exceeds MaxV.
func (r SaturationRule) Apply(bead []float32, initFirst, initLast, measFirst, measLast []int) (Partial, float32) {
	p := newPartial("saturation", len(initFirst), negInf32, r.MaxDistToZero)
	saturated, counted := 0, 0
	for c := range initFirst {
		zero := stats.NanMedian(cycleOf(bead, initFirst[c], initLast[c]))
		meas := cycleOf(bead, measFirst[c], measLast[c])
		if len(meas) > r.SatWindow {
			meas = meas[len(meas)-r.SatWindow:]
		}
		dist := stats.MeanOf(meas) - zero
		p.Values[c] = dist
		if !stats.IsFinite(dist) {
			continue
		}
		counted++
		if dist > r.MaxDistToZero {
			saturated++
		}
	}
	if counted == 0 {
		return p, nan32
	}
	return p, 100 * float32(saturated) / float32(counted)
}

// DataCleaning bundles the per-frame suppressors and every per-cycle rule
// with a shared Rescale.
type DataCleaning struct {
	Aberrant   AberrantValuesRule
	HFSigma    HFSigmaRule
	Population PopulationRule
	Extent     ExtentRule
	PingPong   PingPongRule
	PhaseJump  PhaseJumpRule
	Saturation SaturationRule
}

// NewDataCleaning returns the production defaults.
func NewDataCleaning() DataCleaning {
	return DataCleaning{
		Aberrant:   NewAberrantValuesRule(),
		HFSigma:    NewHFSigmaRule(),
		Population: NewPopulationRule(),
		Extent:     NewExtentRule(),
		PingPong:   NewPingPongRule(),
		PhaseJump:  NewPhaseJumpRule(),
		Saturation: NewSaturationRule(),
	}
}

// ZScaledAttributes lists every parameter scaling linearly with the Z unit.
func (DataCleaning) ZScaledAttributes() []string {
	return []string{
		"mindeltavalue", "maxabsvalue", "maxderivate", "cstmaxderivate",
		"phasejumpheight", "delta",
		"minhfsigma", "maxhfsigma",
		"minextent", "maxextent",
		"mindifference",
		"maxdisttozero",
	}
}

// Rescale returns a copy with every Z-scaled parameter multiplied by k.
func (d DataCleaning) Rescale(k float32) DataCleaning {
	d.Aberrant.Constants.MinDeltaValue *= k
	d.Aberrant.Derivative.MaxAbsValue *= k
	d.Aberrant.Derivative.MaxDerivate *= k
	d.Aberrant.Islands.MaxDerivate *= k
	d.HFSigma = d.HFSigma.Rescale(k)
	d.Extent = d.Extent.Rescale(k)
	d.PingPong = d.PingPong.Rescale(k)
	d.PhaseJump = d.PhaseJump.Rescale(k)
	d.Saturation = d.Saturation.Rescale(k)
	return d
}

// ApplyAberrant cleans data in place and reports whether the bead should be
// dropped outright: true when fewer than Population.MinV percent of the
// samples survive.
func (d DataCleaning) ApplyAberrant(data []float32, clip bool) bool {
	d.Aberrant.Apply(data, clip)
	if len(data) == 0 {
		return true
	}
	good := 0
	for _, v := range data {
		if stats.IsFinite(v) {
			good++
		}
	}
	return float32(good) < float32(len(data))*d.Population.MinV*1e-2
}
