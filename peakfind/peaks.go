// Copyright 2026 Picobio, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package peakfind

import "math"

// HistogramPeakFinder scans an aggregated histogram for local maxima above
// Threshold, with a neighbourhood radius of PeakWidth times the precision.
// After a peak the scan skips one full neighbourhood, so returned peaks are
// strictly increasing and at least a neighbourhood apart.
type HistogramPeakFinder struct {
	PeakWidth float32
	Threshold float32
}

// NewHistogramPeakFinder returns the production defaults.
func NewHistogramPeakFinder() HistogramPeakFinder {
	return HistogramPeakFinder{PeakWidth: 0.8, Threshold: 0.05}
}

// Compute returns the peak positions in microns.
func (f HistogramPeakFinder) Compute(precision, minv, binw float32, hist []float32) []float32 {
	var out []float32
	ipk := int(math.Round(float64(f.PeakWidth) * float64(precision) / float64(binw)))
	if ipk < 0 {
		ipk = 0
	}
	sz := len(hist)
	for i, ie := ipk, sz-ipk-1; i < ie; {
		lo := i - ipk
		hi := i + ipk + 1
		if hi > ie {
			hi = ie
		}
		cur := lo
		for j := lo + 1; j < hi; j++ {
			if hist[j] > hist[cur] {
				cur = j
			}
		}
		switch {
		case cur == i:
			i = cur + ipk + 1
			if hist[cur] > f.Threshold {
				out = append(out, float32(cur)*binw+minv)
			}
		case cur < i:
			if next := cur + ipk; next > i+1 {
				i = next
			} else {
				i = i + 1
			}
		default:
			i = cur
		}
	}
	return out
}
