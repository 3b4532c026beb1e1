// Copyright 2026 Picobio, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package eventdetection

import (
	"math"

	"github.com/picobio/tweezer/stats"
)

var nan32 = float32(math.NaN())

// ExtremumMode selects which extremum ExtremumAlignment centres on.
type ExtremumMode int

// The supported extrema.
const (
	AlignOnMin ExtremumMode = iota
	AlignOnMedian
	AlignOnMax
)

// ExtremumAlignment computes one bias per cycle so that translating the
// cycle by its bias centres it on the chosen extremum.  With BinSize >= 2
// the extremum is taken over medians of contiguous bins, which keeps a
// single outlier frame from dragging the whole cycle.
type ExtremumAlignment struct {
	BinSize int
	Mode    ExtremumMode
}

// NewExtremumAlignment returns the production defaults.
func NewExtremumAlignment() ExtremumAlignment {
	return ExtremumAlignment{BinSize: 15, Mode: AlignOnMin}
}

// Compute returns the negated per-cycle extremum: the bias to feed to
// Translate.
func (a ExtremumAlignment) Compute(data []float32, first, last []int) []float32 {
	out := make([]float32, len(first))
	for c := range first {
		f, l := clipCycle(len(data), first[c], last[c])
		cyc := data[f:l]
		var v float32
		switch {
		case a.Mode == AlignOnMedian:
			v = stats.NanMedian(cyc)
		case a.BinSize >= 2:
			v = a.binExtremum(cyc)
		case a.Mode == AlignOnMin:
			v = nanExtremum(cyc, true)
		default:
			v = nanExtremum(cyc, false)
		}
		out[c] = -v
	}
	return out
}

func (a ExtremumAlignment) binExtremum(cyc []float32) float32 {
	best := nan32
	for i := 0; i < len(cyc); i += a.BinSize {
		e := i + a.BinSize
		if e > len(cyc) {
			e = len(cyc)
		}
		med := stats.NanMedian(cyc[i:e])
		if !stats.IsFinite(med) {
			continue
		}
		if !stats.IsFinite(best) ||
			(a.Mode == AlignOnMin && med < best) ||
			(a.Mode == AlignOnMax && med > best) {
			best = med
		}
	}
	return best
}

func nanExtremum(cyc []float32, min bool) float32 {
	best := nan32
	for _, v := range cyc {
		if !stats.IsFinite(v) {
			continue
		}
		if !stats.IsFinite(best) || (min && v < best) || (!min && v > best) {
			best = v
		}
	}
	return best
}

// EdgeMode selects which end of the cycle PhaseEdgeAlignment samples.
type EdgeMode int

// The supported edges.
const (
	AlignOnLeftEdge EdgeMode = iota
	AlignOnRightEdge
)

// PhaseEdgeAlignment computes one bias per cycle from a percentile of the
// first or last Window frames.  The window is clipped to the cycle, never
// lengthened beyond it.
type PhaseEdgeAlignment struct {
	Window     int
	Mode       EdgeMode
	Percentile float64
}

// NewPhaseEdgeAlignment returns the production defaults.
func NewPhaseEdgeAlignment() PhaseEdgeAlignment {
	return PhaseEdgeAlignment{Window: 15, Mode: AlignOnLeftEdge, Percentile: 75}
}

// Compute returns the negated per-cycle edge percentile: the bias to feed
// to Translate.
func (a PhaseEdgeAlignment) Compute(data []float32, first, last []int) []float32 {
	out := make([]float32, len(first))
	for c := range first {
		f, l := clipCycle(len(data), first[c], last[c])
		var slice []float32
		if a.Mode == AlignOnLeftEdge {
			e := f + a.Window
			if e > l {
				e = l
			}
			slice = data[f:e]
		} else {
			s := l - a.Window
			if s < f {
				s = f
			}
			slice = data[s:l]
		}
		out[c] = -stats.NanPercentile(slice, a.Percentile)
	}
	return out
}

// Translate adds each cycle's bias to the cycle's frames in place.  The
// c-th cycle covers [first[c], first[c+1]) and the last one runs to the end
// of target.  A non-finite bias leaves the cycle untouched, or blanks it
// entirely when del is set.
func Translate(biases []float32, del bool, target []float32, first []int) {
	if len(biases) == 0 || len(target) == 0 {
		return
	}
	apply := func(bias float32, r1, r2 int) {
		if r1 < 0 {
			r1 = 0
		}
		if r2 > len(target) {
			r2 = len(target)
		}
		if stats.IsFinite(bias) {
			for j := r1; j < r2; j++ {
				target[j] += bias
			}
		} else if del {
			for j := r1; j < r2; j++ {
				target[j] = nan32
			}
		}
	}
	for c := 0; c+1 < len(first) && c < len(biases); c++ {
		apply(biases[c], first[c], first[c+1])
	}
	last := len(first) - 1
	if last >= 0 && last < len(biases) {
		apply(biases[last], first[last], len(target))
	}
}

// MedianThreshold blanks the bias of every cycle whose translated median
// lies more than minv below the overall median of translated cycle medians.
// data must not yet be translated; biases is returned mutated.
func MedianThreshold(data []float32, first, last []int, minv float32, biases []float32) []float32 {
	values := make([]float32, len(first))
	for c := range first {
		f, l := clipCycle(len(data), first[c], last[c])
		values[c] = stats.NanMedian(data[f:l]) + biases[c]
	}
	med := stats.NanMedian(values) - minv
	if !stats.IsFinite(med) {
		return biases
	}
	for c, v := range values {
		if v < med {
			biases[c] = nan32
		}
	}
	return biases
}

func clipCycle(sz, first, last int) (int, int) {
	if first < 0 {
		first = 0
	}
	if last > sz {
		last = sz
	}
	if last < first {
		last = first
	}
	return first, last
}
