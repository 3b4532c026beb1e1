// Copyright 2026 Picobio, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package cleaning

import (
	"github.com/picobio/tweezer/stats"
)

// Aggregator selects how a set of aligned samples is reduced to one value.
type Aggregator int

// The supported reductions over the finite subset of contributing samples.
const (
	AggMedian Aggregator = iota
	AggMean
	AggStdDev
)

func (a Aggregator) reduce(x []float32) float32 {
	switch a {
	case AggMean:
		return stats.MeanOf(x)
	case AggStdDev:
		return stats.StdOf(x)
	default:
		return stats.Median(x)
	}
}

// SubtractSignal reduces a set of bead traces sharing a time index into one
// reference trace.  Each bead is first recentred by the median of its
// samples in [i1, i2) (skipped when i1 >= i2); the per-bead offsets are then
// recentred by their own median so no absolute offset survives.  Position i
// of the output aggregates the finite, offset samples of every bead long
// enough to contribute.  The output length is that of the longest bead;
// beads with no finite sample in the offset window are left out entirely.
func SubtractSignal(agg Aggregator, signals [][]float32, i1, i2 int) []float32 {
	maxLen := 0
	for _, s := range signals {
		if len(s) > maxLen {
			maxLen = len(s)
		}
	}

	good := make([][]float32, 0, len(signals))
	offsets := make([]float32, 0, len(signals))
	if i1 < i2 {
		scratch := make([]float32, 0, i2-i1)
		for _, s := range signals {
			scratch = scratch[:0]
			first, last := i1, i2
			if first > len(s) {
				first = len(s)
			}
			if last > len(s) {
				last = len(s)
			}
			for _, v := range s[first:last] {
				if stats.IsFinite(v) {
					scratch = append(scratch, v)
				}
			}
			if len(scratch) > 0 {
				offsets = append(offsets, stats.Median(scratch))
				good = append(good, s)
			}
		}
	} else {
		offsets = make([]float32, len(signals))
		good = append(good, signals...)
	}
	if len(good) == 0 {
		return nil
	}

	med := stats.Median(offsets)
	for i := range offsets {
		offsets[i] -= med
	}

	out := make([]float32, maxLen)
	for i := range out {
		out[i] = nan32
	}
	scratch := make([]float32, 0, len(good))
	for i := 0; i < maxLen; i++ {
		scratch = scratch[:0]
		for j, s := range good {
			if i >= len(s) {
				continue
			}
			if v := s[i]; stats.IsFinite(v) {
				scratch = append(scratch, v-offsets[j])
			}
		}
		if len(scratch) > 0 {
			out[i] = agg.reduce(scratch)
		}
	}
	return out
}

// MedianSignal is SubtractSignal with the median aggregator.
func MedianSignal(signals [][]float32, i1, i2 int) []float32 {
	return SubtractSignal(AggMedian, signals, i1, i2)
}

// MeanSignal is SubtractSignal with the mean aggregator.
func MeanSignal(signals [][]float32, i1, i2 int) []float32 {
	return SubtractSignal(AggMean, signals, i1, i2)
}

// StdDevSignal is SubtractSignal with the standard-deviation aggregator.
func StdDevSignal(signals [][]float32, i1, i2 int) []float32 {
	return SubtractSignal(AggStdDev, signals, i1, i2)
}

// PhaseBaseline returns a per-frame baseline trace: within each cycle the
// segment [first[c], second[c]) is reduced with agg, and that value fills
// the segment in the output.  Frames outside every segment stay NaN.
func PhaseBaseline(agg Aggregator, trace []float32, first, second []int) []float32 {
	out := make([]float32, len(trace))
	for i := range out {
		out[i] = nan32
	}
	scratch := make([]float32, 0, 64)
	for c := range first {
		f, s := first[c], second[c]
		if f < 0 {
			f = 0
		}
		if s > len(trace) {
			s = len(trace)
		}
		if s <= f {
			continue
		}
		scratch = scratch[:0]
		for _, v := range trace[f:s] {
			if stats.IsFinite(v) {
				scratch = append(scratch, v)
			}
		}
		if len(scratch) == 0 {
			continue
		}
		val := agg.reduce(scratch)
		for i := f; i < s; i++ {
			out[i] = val
		}
	}
	return out
}

// DzCount returns, for each cycle, how many intra-cycle steps move by less
// than threshold in absolute value.  A high count indicates a stuck
// tracker.
func DzCount(threshold float32, trace []float32, first, second []int) []int {
	out := make([]int, len(first))
	for c := range first {
		f, s := first[c], second[c]
		if f < 0 {
			f = 0
		}
		if s > len(trace) {
			s = len(trace)
		}
		count := 0
		for i := f + 1; i < s; i++ {
			if !stats.IsFinite(trace[i]) || !stats.IsFinite(trace[i-1]) {
				continue
			}
			d := trace[i] - trace[i-1]
			if d < 0 {
				d = -d
			}
			if d < threshold {
				count++
			}
		}
		out[c] = count
	}
	return out
}

// DzTotalCount is the sum of DzCount over all cycles.
func DzTotalCount(threshold float32, trace []float32, first, second []int) int {
	total := 0
	for _, n := range DzCount(threshold, trace, first, second) {
		total += n
	}
	return total
}
