// Copyright 2026 Picobio, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package peakfind

import (
	"math"

	"github.com/picobio/tweezer/stats"
)

// Digitizer maps Z values in microns onto an oversampled bin lattice over
// [MinEdge, MaxEdge).  Valid oversampled indices i satisfy
// 0 <= i>>Oversampling < NBins; everything else, NaN included, maps to -1.
type Digitizer struct {
	Oversampling uint
	Precision    float32
	MinEdge      float32
	MaxEdge      float32
	NBins        int
}

// BinWidth returns the coarse bin width, or the oversampled one when ovr is
// set.
func (d Digitizer) BinWidth(ovr bool) float32 {
	bw := (d.MaxEdge - d.MinEdge) / float32(d.NBins+1)
	if ovr {
		return bw / float32(int(1)<<d.Oversampling)
	}
	return bw
}

// DigitizedData is one cycle mapped onto the lattice.
type DigitizedData struct {
	Oversampling uint
	Precision    float32
	Delta        float32 // 1 / coarse bin width
	NBins        int
	Digits       []int // -1 or values in [0, NBins<<Oversampling)
}

// Compute digitizes one cycle slice.
func (d Digitizer) Compute(data []float32) DigitizedData {
	out := make([]int, len(data))
	delta := 1 / float64(d.BinWidth(true))
	for i, v := range data {
		out[i] = -1
		if !stats.IsFinite(v) {
			continue
		}
		tmp := int(math.Round((float64(v) - float64(d.MinEdge)) * delta))
		if tmp >= 0 && (tmp>>d.Oversampling) < d.NBins {
			out[i] = tmp
		}
	}
	return DigitizedData{
		Oversampling: d.Oversampling,
		Precision:    d.Precision,
		Delta:        1 / d.BinWidth(false),
		NBins:        d.NBins,
		Digits:       out,
	}
}

// CyclesDigitization sizes a Digitizer from the distribution of per-cycle
// extrema: the lattice spans the MinV-th percentile of cycle minima to the
// MaxV-th percentile of cycle maxima, overshot by Overshoot times the
// precision on each side, with bins Precision times the precision wide.
type CyclesDigitization struct {
	Oversampling uint
	Precision    float32
	MinV         float64
	MaxV         float64
	Overshoot    float32
}

// NewCyclesDigitization returns the production defaults.
func NewCyclesDigitization() CyclesDigitization {
	return CyclesDigitization{
		Oversampling: 5,
		Precision:    1.0 / 3.0,
		MinV:         1,
		MaxV:         99,
		Overshoot:    5,
	}
}

// Compute sizes the lattice for the given cycles at precision prec (µm).
func (c CyclesDigitization) Compute(prec float32, cycles [][]float32) Digitizer {
	cycmin := make([]float32, len(cycles))
	cycmax := make([]float32, len(cycles))
	for i := range cycles {
		cycmin[i] = math.MaxFloat32
		cycmax[i] = -math.MaxFloat32
		for _, v := range cycles[i] {
			if !stats.IsFinite(v) {
				continue
			}
			if cycmin[i] > v {
				cycmin[i] = v
			}
			if cycmax[i] < v {
				cycmax[i] = v
			}
		}
	}
	ledge := stats.Percentile(cycmin, c.MinV)
	redge := stats.Percentile(cycmax, c.MaxV)
	ovr := prec * c.Overshoot
	nbins := int(math.Round(float64(redge-ledge+2*ovr)/float64(c.Precision*prec))) + 1
	delta := (redge - ledge + 2*ovr) / float32(nbins)
	return Digitizer{
		Oversampling: c.Oversampling,
		Precision:    prec,
		MinEdge:      ledge - ovr,
		MaxEdge:      ledge - ovr + delta*float32(nbins),
		NBins:        nbins,
	}
}

// roundBins converts a ratio of the precision into a whole number of coarse
// bins.
func (d Digitizer) roundBins(ratio float32) int {
	return int(math.Round(float64(d.Precision) * float64(ratio) / float64(d.BinWidth(false))))
}

func (d DigitizedData) roundBins(ratio float32) int {
	return int(math.Round(float64(d.Precision) * float64(ratio) * float64(d.Delta)))
}
