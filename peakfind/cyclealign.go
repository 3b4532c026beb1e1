// Copyright 2026 Picobio, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package peakfind

import "sort"

// CycleAlignment finds the per-cycle shift, within ±HalfWindow times the
// precision, maximising the correlation of each cycle histogram with the
// aggregate of all of them, then recentres the shifts on their median and
// re-aggregates.  Repeats controls how many correlation rounds run.
type CycleAlignment struct {
	HalfWindow float32
	Repeats    int
}

// NewCycleAlignment returns the production defaults.
func NewCycleAlignment() CycleAlignment { return CycleAlignment{HalfWindow: 5, Repeats: 1} }

// Compute returns the per-cycle biases in microns and the aggregated
// histogram under those biases.
func (a CycleAlignment) Compute(d Digitizer, agg ProjectionAggregator, hists [][]float32) ([]float32, []float32) {
	deltas := make([]int, len(hists))
	all := agg.ComputeShifted(d, deltas, hists)
	hw := d.roundBins(a.HalfWindow)
	sz := d.NBins

	for rep := 0; rep < a.Repeats; rep++ {
		for i, cur := range hists {
			bestdx, bestv := 0, float32(0)
			for dx := -hw; dx <= hw; dx++ {
				sum := float32(0)
				j, je := 0, sz
				if dx < 0 {
					j = -dx
				} else {
					je = sz - dx
				}
				for ; j < je; j++ {
					sum += all[j] * cur[j+dx]
				}
				if sum > bestv {
					bestdx = dx
					bestv = sum
				}
			}
			deltas[i] = bestdx
		}

		if med := intMedian(deltas); med != 0 {
			for i := range deltas {
				deltas[i] -= med
			}
		}
		all = agg.ComputeShifted(d, deltas, hists)
	}

	bw := d.BinWidth(false)
	biases := make([]float32, len(deltas))
	for i, dx := range deltas {
		biases[i] = float32(dx) * bw
	}
	return biases, all
}

func intMedian(x []int) int {
	if len(x) == 0 {
		return 0
	}
	tmp := append([]int(nil), x...)
	sort.Ints(tmp)
	nth := len(tmp) / 2
	if len(tmp)%2 == 1 {
		return tmp[nth]
	}
	return (tmp[nth] + tmp[nth-1]) / 2
}
