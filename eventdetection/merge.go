// Copyright 2026 Picobio, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package eventdetection

import (
	"math"

	"github.com/picobio/tweezer/interval"
	"github.com/picobio/tweezer/stats"
	"github.com/picobio/tweezer/stats/samples"
)

// EventMerger shrinks an ordered interval list in place, fusing intervals
// the trace cannot tell apart.  The returned list is a sub-sequence
// partition of the input: every output interval unions a maximal run of
// inputs whose pairwise merge test succeeded.
type EventMerger interface {
	Run(data []float32, intervals []interval.Span) []interval.Span
}

// HeteroscedasticEventMerger fuses neighbouring intervals whose sample
// means a Welch test cannot distinguish at the given confidence.  Interval
// sigmas are floored by MinPrecision so a flat stretch does not produce a
// spuriously powerful test.
type HeteroscedasticEventMerger struct {
	Confidence   float32
	MinPrecision float32
}

// NewHeteroscedasticEventMerger returns the production defaults.
func NewHeteroscedasticEventMerger() HeteroscedasticEventMerger {
	return HeteroscedasticEventMerger{Confidence: 0.1, MinPrecision: 5e-4}
}

// mergeEntry chains interval stats with the gap separating an interval from
// its successor and the p-level against that successor.
type mergeEntry struct {
	stats samples.Input // the interval itself
	gap   samples.Input // between this interval and the next surviving one
	plev  float32       // against the next surviving interval; 1 for the last
	span  interval.Span
}

func (m HeteroscedasticEventMerger) initStats(data []float32, i1, i2 int) samples.Input {
	var acc stats.Running
	for i := i1; i < i2; i++ {
		if stats.IsFinite(data[i]) {
			acc.Add(float64(data[i]))
		}
	}
	out := samples.Input{Count: acc.Count(), Mean: float32(acc.Mean())}
	if out.Count <= 1 {
		out.Sigma = m.MinPrecision
		if out.Count == 0 {
			out.Mean = 0
		}
	} else {
		sigma := float32(math.Sqrt(acc.SampleVar()))
		if sigma < m.MinPrecision {
			sigma = m.MinPrecision
		}
		out.Sigma = sigma
	}
	return out
}

// pool combines three sample summaries, weighting means by count and
// variances by count-1.
func pool(first, second, third samples.Input) samples.Input {
	cnt := first.Count + second.Count + third.Count
	r1 := float64(first.Count) / float64(cnt)
	r2 := float64(second.Count) / float64(cnt)
	r3 := 1 - r1 - r2
	mean := r1*float64(first.Mean) + r2*float64(second.Mean) + r3*float64(third.Mean)

	v := func(x samples.Input) float64 {
		if x.Count == 0 {
			return 0
		}
		return float64(x.Count-1) / float64(cnt-1) *
			float64(x.Sigma) * float64(x.Sigma)
	}
	sigma := math.Sqrt(v(first) + v(second) + v(third))
	return samples.Input{Count: cnt, Mean: float32(mean), Sigma: float32(sigma)}
}

// Run fuses intervals in place and returns the shrunk list.
func (m HeteroscedasticEventMerger) Run(data []float32, intervals []interval.Span) []interval.Span {
	if len(intervals) <= 1 {
		return intervals
	}
	var test samples.Heteroscedastic
	thr := test.Threshold(m.Confidence)

	list := make([]mergeEntry, 0, len(intervals))
	first := m.initStats(data, intervals[0].First, intervals[0].Last)
	for i := 1; i < len(intervals); i++ {
		gap := m.initStats(data, intervals[i-1].Last, intervals[i].First)
		third := m.initStats(data, intervals[i].First, intervals[i].Last)
		list = append(list, mergeEntry{
			stats: first,
			gap:   gap,
			plev:  test.ToThresholdValue(first, third),
			span:  intervals[i-1],
		})
		first = third
	}
	list = append(list, mergeEntry{stats: first, plev: 1, span: intervals[len(intervals)-1]})

	// Repeatedly fuse the most similar adjacent pair until every remaining
	// p-level clears the threshold.
	for {
		best := -1
		for i := range list {
			if list[i].plev < thr && (best < 0 || list[i].plev <= list[best].plev) {
				best = i
			}
		}
		if best < 0 {
			break
		}
		next := best + 1
		merged := pool(list[best].stats, list[best].gap, list[next].stats)
		plev := float32(1)
		if next+1 < len(list) {
			plev = test.ToThresholdValue(merged, list[next+1].stats)
		}
		if best > 0 {
			list[best-1].plev = test.ToThresholdValue(list[best-1].stats, merged)
		}
		list[best] = mergeEntry{
			stats: merged,
			gap:   list[next].gap,
			plev:  plev,
			span:  interval.Span{First: list[best].span.First, Last: list[next].span.Last},
		}
		list = append(list[:next], list[next+1:]...)
	}

	if len(list) < len(intervals) {
		intervals = intervals[:0]
		for _, e := range list {
			intervals = append(intervals, e.span)
		}
	}
	return intervals
}

// popStats caches the value range of one surviving interval during a range
// merge sweep.
type popStats struct {
	span       interval.Span
	minv, maxv float32
}

func newPopStats(data []float32, s interval.Span) popStats {
	minv, maxv := nan32, nan32
	for i := s.First; i < s.Last; i++ {
		v := data[i]
		if !stats.IsFinite(minv) {
			if stats.IsFinite(v) {
				minv, maxv = v, v
			}
		} else if stats.IsFinite(v) {
			if v < minv {
				minv = v
			}
			if v > maxv {
				maxv = v
			}
		}
	}
	return popStats{span: s, minv: minv, maxv: maxv}
}

func isIn(a, b, c float32) bool { return a <= b && b <= c }

// runRangeMerge sweeps the interval list, fusing left/right pairs accepted
// by testpop, restarting after every fusion until a full sweep makes no
// change.
func runRangeMerge(data []float32, intervals []interval.Span,
	testpop func(left, right popStats) bool) []interval.Span {
	if len(intervals) <= 1 {
		return intervals
	}
	keep := make([]bool, len(intervals))
	for i := range keep {
		keep[i] = true
	}
	for found := true; found; {
		found = false
		ileft := 0
		left := newPopStats(data, intervals[0])
		for iright := 1; iright < len(intervals); iright++ {
			if !keep[iright] {
				continue
			}
			right := newPopStats(data, intervals[iright])
			if testpop(left, right) {
				keep[iright] = false
				intervals[ileft] = interval.Span{
					First: intervals[ileft].First,
					Last:  intervals[iright].Last,
				}
				found = true
				break
			}
			ileft = iright
			left = right
		}
	}
	j := 0
	for i := range intervals {
		if keep[i] {
			intervals[j] = intervals[i]
			j++
		}
	}
	return intervals[:j]
}

// PopulationMerger fuses intervals whose Z ranges overlap when, within the
// narrower interval, at least Percentile percent of the finite samples lie
// inside the other interval's range.
type PopulationMerger struct {
	Percentile float32
}

// NewPopulationMerger returns the production defaults.
func NewPopulationMerger() PopulationMerger { return PopulationMerger{Percentile: 66} }

// Run fuses intervals in place and returns the shrunk list.
func (m PopulationMerger) Run(data []float32, intervals []interval.Span) []interval.Span {
	check := func(one, other popStats) bool {
		ngood, nboth := 0, 0
		for i := other.span.First; i < other.span.Last; i++ {
			v := data[i]
			if !stats.IsFinite(v) {
				continue
			}
			ngood++
			if isIn(one.minv, v, one.maxv) {
				nboth++
			}
		}
		nmin := int(float32(ngood)*m.Percentile*1e-2 + 0.5)
		if nmin == ngood && nmin > 1 {
			nmin = ngood - 2
		}
		return nmin <= nboth
	}
	return runRangeMerge(data, intervals, func(left, right popStats) bool {
		good := isIn(left.minv, right.minv, left.maxv) ||
			isIn(left.minv, right.maxv, left.maxv) ||
			isIn(right.minv, left.minv, right.maxv) ||
			isIn(right.minv, left.maxv, right.maxv)
		if !good {
			return false
		}
		if left.maxv-left.minv < right.maxv-right.minv {
			return check(right, left)
		}
		return check(left, right)
	})
}

// ZRangeMerger fuses intervals when one is a single Z point enclosed in the
// other, or when the overlap of the two Z ranges exceeds Percentile percent
// of either range.
type ZRangeMerger struct {
	Percentile float32
}

// NewZRangeMerger returns the production defaults.
func NewZRangeMerger() ZRangeMerger { return ZRangeMerger{Percentile: 80} }

// Run fuses intervals in place and returns the shrunk list.
func (m ZRangeMerger) Run(data []float32, intervals []interval.Span) []interval.Span {
	return runRangeMerge(data, intervals, func(left, right popStats) bool {
		if (left.maxv == left.minv && isIn(right.minv, left.minv, right.maxv)) ||
			(right.maxv == right.minv && isIn(left.minv, right.minv, left.maxv)) {
			return true
		}
		lo := left.minv
		if right.minv > lo {
			lo = right.minv
		}
		hi := left.maxv
		if right.maxv < hi {
			hi = right.maxv
		}
		rng := (hi - lo) / (m.Percentile * 1e-2)
		return rng > left.maxv-left.minv || rng > right.maxv-right.minv
	})
}

// MultiMerger composes the statistical, population and Z-range mergers in
// that order.
type MultiMerger struct {
	Stats HeteroscedasticEventMerger
	Pop   PopulationMerger
	Range ZRangeMerger
}

// NewMultiMerger returns the production defaults.
func NewMultiMerger() MultiMerger {
	return MultiMerger{
		Stats: NewHeteroscedasticEventMerger(),
		Pop:   NewPopulationMerger(),
		Range: NewZRangeMerger(),
	}
}

// Run fuses intervals in place and returns the shrunk list.
func (m MultiMerger) Run(data []float32, intervals []interval.Span) []interval.Span {
	intervals = m.Stats.Run(data, intervals)
	intervals = m.Pop.Run(data, intervals)
	return m.Range.Run(data, intervals)
}

// EventSelector keeps only intervals long enough to carry EdgeLength noisy
// frames on each side plus MinLength usable ones, then shrinks each by
// EdgeLength per side.  NaN padding inside the interval does not count
// toward the usable length.
type EventSelector struct {
	EdgeLength int
	MinLength  int
}

// NewEventSelector returns the production defaults.
func NewEventSelector() EventSelector { return EventSelector{EdgeLength: 0, MinLength: 5} }

// Run filters and shrinks intervals in place, returning the kept list.
func (s EventSelector) Run(data []float32, intervals []interval.Span) []interval.Span {
	minl := 2*s.EdgeLength + s.MinLength
	if minl == 0 {
		return intervals
	}
	j := 0
	for _, iv := range intervals {
		i1, i2 := iv.First, iv.Last
		for i1+minl <= i2 && !stats.IsFinite(data[i1]) {
			i1++
		}
		for i1+minl <= i2 && !stats.IsFinite(data[i2-1]) {
			i2--
		}
		if i2 < minl+i1 {
			continue
		}
		intervals[j] = interval.Span{First: iv.First + s.EdgeLength, Last: iv.Last - s.EdgeLength}
		j++
	}
	return intervals[:j]
}
