// Copyright 2026 Picobio, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package peakfind

import (
	"math"
	"sync"
)

// The T-smoothing gaussian is tabulated once with sigma = 20 internal
// units; index 120 holds an exact zero so the clamp also terminates the
// tail.
const (
	gaussRatio = 20
	gaussLen   = 120
)

var (
	gaussOnce  sync.Once
	gaussTable [gaussLen + 1]float32
)

func gaussInit() {
	for i := 0; i < gaussLen; i++ {
		gaussTable[i] = float32(math.Exp(-float64(i*i) / (gaussRatio * gaussRatio * 2)))
	}
	gaussTable[gaussLen] = 0
}

func gaussian(val float32) float32 {
	i := int(math.Round(math.Abs(float64(val)) * gaussRatio))
	if i > gaussLen {
		i = gaussLen
	}
	return gaussTable[i]
}

// smooth convolves data in place with a one-sided-normalized gaussian
// kernel of the given radius (in bins) and half-length, clamping at the
// edges.  A non-positive radius leaves data untouched.
func smooth(length int, radius int, data []float32) {
	if radius <= 0 || len(data) == 0 {
		return
	}
	expv := make([]float64, length+1)
	norm := 0.0
	for i := 0; i < length; i++ {
		expv[i] = math.Exp(-float64(i*i) / float64(2*radius*radius))
		norm += expv[i]
	}
	for i := 0; i < length; i++ {
		expv[i] /= norm
	}

	cpy := make([]float64, len(data))
	for i, v := range data {
		cpy[i] = float64(v)
	}
	sz := len(data)
	for i := 0; i < sz; i++ {
		acc := cpy[i] * expv[0]
		for j := 1; j <= length; j++ {
			lo := i - j
			if lo < 0 {
				lo = 0
			}
			hi := i + j
			if hi > sz-1 {
				hi = sz - 1
			}
			acc += (cpy[lo] + cpy[hi]) * expv[j]
		}
		data[i] = float32(acc)
	}
}
