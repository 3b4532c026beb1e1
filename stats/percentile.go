// Copyright 2026 Picobio, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package stats

import (
	"math"
	"sort"
)

// Percentile returns the pct-th percentile (pct in [0, 100]) of x with the
// rank convention used by the tracking software: rank = len(x)*pct/100,
// truncated; a fractional rank interpolates linearly with the next order
// statistic.  Percentile 0 returns the minimum, 100 the maximum, and a
// single-element slice returns that element.  Empty input returns NaN.
func Percentile(x []float32, pct float64) float32 {
	sz := len(x)
	if sz == 0 {
		return float32(math.NaN())
	}
	if sz == 1 {
		return x[0]
	}
	sorted := append([]float32(nil), x...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	rank := float64(sz) * 0.01 * pct
	nth := int(rank)
	if nth <= 0 {
		return sorted[0]
	}
	if nth >= sz {
		return sorted[sz-1]
	}
	if math.Abs(rank-float64(nth)) < 1e-4 {
		return sorted[nth]
	}
	if nth+1 >= sz {
		return sorted[sz-1]
	}
	rho := rank - float64(nth)
	return float32((1-rho)*float64(sorted[nth]) + rho*float64(sorted[nth+1]))
}

// NanPercentile is Percentile restricted to the finite entries of x.
func NanPercentile(x []float32, pct float64) float32 {
	finite := make([]float32, 0, len(x))
	for _, v := range x {
		if isFinite32(v) {
			finite = append(finite, v)
		}
	}
	return Percentile(finite, pct)
}

// Median returns the exact median of x: the middle order statistic for odd
// lengths, the average of the two middle ones for even lengths.  Empty input
// returns NaN.
func Median(x []float32) float32 {
	sz := len(x)
	switch sz {
	case 0:
		return float32(math.NaN())
	case 1:
		return x[0]
	case 2:
		return 0.5 * (x[0] + x[1])
	}
	sorted := append([]float32(nil), x...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	nth := sz / 2
	if sz%2 == 1 {
		return sorted[nth]
	}
	return 0.5 * (sorted[nth] + sorted[nth-1])
}

// NanMedian returns the 50th NanPercentile of x.  Note the rank convention:
// for an even count this is the upper middle order statistic, not the
// average of the two middle ones.
func NanMedian(x []float32) float32 { return NanPercentile(x, 50) }
