// Copyright 2026 Picobio, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package peakfind

import "math"

// DzPattern selects the derivative filter admitting frames into a cycle
// histogram.
type DzPattern int

// The supported derivative filters.
const (
	// DzSymmetric1 admits a frame when its value sits within threshold of
	// the average of the on-lattice frames before and after it, whether
	// those were admitted or not.
	DzSymmetric1 DzPattern = iota
)

// WeightPattern selects how admitted counts become weights.
type WeightPattern int

// The supported weight patterns.
const (
	// WeightInv normalizes by the local count so a long hybridisation does
	// not tower over a short one.
	WeightInv WeightPattern = iota
	// WeightOnes gives every sufficiently populated bin weight one.
	WeightOnes
)

// CycleProjection projects one digitized cycle to a histogram with
// normalized peak heights.
type CycleProjection struct {
	DzRatio   float32
	DzPattern DzPattern

	CountRatio     float32
	CountThreshold int
	WeightPattern  WeightPattern

	TSmoothingRatio float32
	TSmoothingLen   int
}

// NewCycleProjection returns the production defaults.
func NewCycleProjection() CycleProjection {
	return CycleProjection{
		DzRatio:         1,
		CountRatio:      1,
		CountThreshold:  2,
		TSmoothingRatio: 1,
		TSmoothingLen:   10,
	}
}

// dzHistogram builds the coarse-bin counts histogram of frames admitted by
// the symmetric derivative filter; a non-positive DzRatio admits every
// on-lattice frame.
func (p CycleProjection) dzHistogram(data DigitizedData) []int {
	hist := make([]int, data.NBins)
	i := 0
	for i < len(data.Digits) && data.Digits[i] < 0 {
		i++
	}
	if i == len(data.Digits) {
		return hist
	}

	if p.DzRatio <= 0 {
		for ; i < len(data.Digits); i++ {
			if data.Digits[i] >= 0 {
				hist[data.Digits[i]>>data.Oversampling]++
			}
		}
		return hist
	}

	thr := float64(data.roundBins(p.DzRatio) * (1 << data.Oversampling))
	prev := float64(data.Digits[i])
	cur := prev
	for i++; i < len(data.Digits); i++ {
		if data.Digits[i] < 0 {
			continue
		}
		v := float64(data.Digits[i])
		if math.Abs(cur-prev*0.5-v*0.5) < thr {
			hist[int(cur)>>data.Oversampling]++
		}
		prev = cur
		cur = v
	}
	// Last admitted frame: no right neighbour, pair it with itself.
	if math.Abs(cur-prev*0.5-cur*0.5) < thr {
		hist[int(cur)>>data.Oversampling]++
	}
	return hist
}

// toWeights maps a moving sum over the counts histogram through fcn,
// zeroing bins below the count threshold.  Edge bins see a threshold
// pro-rated by the window they actually cover.
func (p CycleProjection) toWeights(data DigitizedData, hist []int) []float32 {
	nbins := data.NBins
	size := int(float64(data.Precision) * float64(p.CountRatio) * float64(data.Delta))
	weights := make([]float32, nbins)
	fcn := func(n int) float32 {
		if p.WeightPattern == WeightOnes {
			return 1
		}
		return 1 / float32(n)
	}

	switch {
	case size <= 0: // no moving sum
		for i := 0; i < nbins; i++ {
			if hist[i] >= p.CountThreshold {
				weights[i] = fcn(hist[i])
			}
		}
	case 2*size+1 >= nbins: // the window covers every bin
		rng := float64(p.CountThreshold*len(hist)) / float64(2*size+1)
		sum := 0
		for _, h := range hist {
			sum += h
		}
		val := float32(0)
		if float64(sum) >= rng {
			val = 1
		}
		for i := range weights {
			weights[i] = val
		}
	default: // moving sum
		sum := 0
		for i := 0; i < size-1; i++ {
			sum += hist[i]
		}
		rng := float64(p.CountThreshold) / float64(2*size+1)
		i := 0
		ie := nbins - size - 1
		for ; i < ie && i < size; i++ {
			sum += hist[i+size]
			if float64(sum) >= float64(i+size)*rng {
				weights[i] = fcn(sum)
			}
		}
		for ; i < ie; i++ {
			sum += hist[i+size]
			if sum >= p.CountThreshold {
				weights[i] = fcn(sum)
			}
			sum -= hist[i-size]
		}
		for ; i < nbins; i++ {
			if float64(sum) >= float64(nbins-i+size)*rng {
				weights[i] = fcn(sum)
			}
			sum -= hist[i-size]
		}
	}
	return weights
}

// tSmoothing averages each admitted frame's weight over its temporal
// neighbours, weighted by a gaussian of their Z distance on the lattice.
func (p CycleProjection) tSmoothing(data DigitizedData, weights []float32) []float32 {
	gaussOnce.Do(gaussInit)
	out := make([]float32, len(weights))
	hsz := p.TSmoothingLen / 2
	ebin := float32(data.roundBins(p.TSmoothingRatio)) / float32(int(1)<<data.Oversampling)
	ie := len(data.Digits)
	for i := 0; i < ie; i++ {
		if data.Digits[i] < 0 {
			continue
		}
		sum, cnt := float32(0), float32(0)
		for j := -hsz; j <= hsz; j++ {
			ind := i + j
			if ind < 0 {
				ind = 0
			} else if ind > ie-1 {
				ind = ie - 1
			}
			if data.Digits[ind] < 0 {
				continue
			}
			wgt := gaussian(float32(data.Digits[ind]-data.Digits[i]) * ebin)
			sum += wgt * weights[data.Digits[ind]>>data.Oversampling]
			cnt += wgt
		}
		if cnt > 0 {
			out[data.Digits[i]>>data.Oversampling] += sum / cnt
		}
	}
	return out
}

// Compute projects one digitized cycle.
func (p CycleProjection) Compute(data DigitizedData) []float32 {
	if data.NBins == 0 || len(data.Digits) == 0 {
		out := make([]float32, data.NBins)
		for i := range out {
			out[i] = 1
		}
		return out
	}
	hist := p.dzHistogram(data)
	weights := p.toWeights(data, hist)
	if p.TSmoothingRatio > 0 {
		return p.tSmoothing(data, weights)
	}
	return weights
}

// ComputeAll projects every cycle through the digitizer.
func (p CycleProjection) ComputeAll(d Digitizer, cycles [][]float32) [][]float32 {
	out := make([][]float32, len(cycles))
	for i, c := range cycles {
		out[i] = p.Compute(d.Compute(c))
	}
	return out
}
