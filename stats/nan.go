// Copyright 2026 Picobio, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package stats

import "math"

// HFSigma returns the median of |x[i+1]-x[i]|, a high-frequency noise proxy.
// Fewer than two samples return NaN.
func HFSigma(x []float32) float32 {
	if len(x) < 2 {
		return float32(math.NaN())
	}
	med := NewApproxMedian()
	for i := 1; i < len(x); i++ {
		med.Add(math.Abs(float64(x[i]) - float64(x[i-1])))
	}
	return float32(med.Value())
}

// NanHFSigma is HFSigma over the finite entries of x, bridging NaN gaps.
// stride > 1 averages the medians obtained by sub-sampling every stride-th
// sample, skipping non-finite ones, at each of the stride offsets.  Input with fewer than two
// finite values returns NaN.
func NanHFSigma(x []float32, stride int) float32 {
	if len(x) == 0 {
		return float32(math.NaN())
	}
	if stride < 1 {
		stride = 1
	}

	i := 0
	for i < len(x) && !isFinite32(x[i]) {
		i++
	}
	if i >= len(x)-1 {
		return float32(math.NaN())
	}
	first := x[i]
	i++
	for i < len(x) && !isFinite32(x[i]) {
		i++
	}
	if i == len(x) {
		return float32(math.NaN())
	}

	val := 0.0
	for k, i0 := 0, i; k < stride; k++ {
		med := NewApproxMedian()
		j := i0 + k
		if j >= len(x) {
			j = len(x) - 1
		}
		med.Add(math.Abs(float64(first) - float64(x[j])))
		last := x[j]
		for j++; j < len(x); j += stride {
			if isFinite32(x[j]) {
				cur := x[j]
				med.Add(math.Abs(float64(cur) - float64(last)))
				last = cur
			}
		}
		val += med.Value()
	}
	return float32(val / float64(stride))
}

// NanWindowCount returns, for each index i, the number of non-finite samples
// in the window [i, i+width); indices past the end of x count as non-finite.
// The scan is O(len(x)).
func NanWindowCount(width int, x []float32) []int {
	sz := len(x)
	out := make([]int, sz)
	if sz == 0 {
		return out
	}

	last := width
	for i := 0; i < sz && i < width; i++ {
		if isFinite32(x[i]) {
			last--
		}
	}
	out[0] = last
	end := 0
	if width <= sz {
		end = sz - width + 1
	}
	for i := 1; i < end; i++ {
		if !isFinite32(x[i+width-1]) {
			if isFinite32(x[i-1]) {
				last++
			}
		} else if !isFinite32(x[i-1]) {
			last--
		}
		out[i] = last
	}
	tail := end
	if tail < 1 {
		tail = 1
	}
	for i := tail; i < sz; i++ {
		if isFinite32(x[i-1]) {
			last++
		}
		out[i] = last
	}
	return out
}

// NanThreshold returns, for each index i, whether the window [i, i+width)
// holds at least threshold finite samples.  Windows truncated by the end of
// the trace only count the samples they actually contain.  The scan is
// O(len(x)).
func NanThreshold(width, threshold int, x []float32) []bool {
	nans := NanWindowCount(width, x)
	out := make([]bool, len(x))
	for i, n := range nans {
		out[i] = width-n >= threshold
	}
	return out
}
