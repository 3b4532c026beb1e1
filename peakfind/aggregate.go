// Copyright 2026 Picobio, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package peakfind

// ProjectionAggregator folds per-cycle histograms, each shifted by its own
// bias, into one reference histogram: a contributor-normalized sum smoothed
// twice with gaussian kernels, first on the contributor counts, then on the
// normalized rates.
type ProjectionAggregator struct {
	CycleMinValue       float32
	CycleMinCount       float32
	ZSmoothingRatio     float32
	CountSmoothingRatio float32
	SmoothingLen        int
}

// NewProjectionAggregator returns the production defaults.
func NewProjectionAggregator() ProjectionAggregator {
	return ProjectionAggregator{
		CycleMinCount:       2,
		ZSmoothingRatio:     1,
		CountSmoothingRatio: 1,
		SmoothingLen:        10,
	}
}

// Compute aggregates the cycle histograms with zero biases.
func (a ProjectionAggregator) Compute(d Digitizer, hists [][]float32) []float32 {
	return a.ComputeShifted(d, make([]int, len(hists)), hists)
}

// ComputeShifted aggregates the cycle histograms, reading cycle c's bin j
// from hists[c][j+delta[c]].
func (a ProjectionAggregator) ComputeShifted(d Digitizer, delta []int, hists [][]float32) []float32 {
	if len(hists) == 0 {
		return nil
	}
	sz := d.NBins
	out := make([]float32, sz)
	cnt := make([]float32, sz)
	for c, cur := range hists {
		dx := delta[c]
		j, je := 0, sz
		if dx < 0 {
			j = -dx
		} else {
			je = sz - dx
		}
		for ; j < je; j++ {
			if v := cur[j+dx]; v > a.CycleMinValue {
				out[j] += v
				cnt[j]++
			}
		}
	}

	smooth(a.SmoothingLen, d.roundBins(a.CountSmoothingRatio), cnt)
	for j := range out {
		if cnt[j] > a.CycleMinCount {
			out[j] /= cnt[j]
		} else {
			out[j] = 0
		}
	}
	smooth(a.SmoothingLen, d.roundBins(a.ZSmoothingRatio), out)
	return out
}
