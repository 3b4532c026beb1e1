// Copyright 2026 Picobio, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package peakfind

// BeadProjectionData is the outcome of the projection pipeline for one
// bead.
type BeadProjectionData struct {
	Histogram []float32 // aggregated reference histogram, length NBins
	Bias      []float32 // per-cycle shift in microns
	MinValue  float32   // lattice lower edge in microns
	BinWidth  float32   // coarse bin width in microns
	Peaks     []float32 // detected peak positions, strictly increasing
}

// BeadProjection chains digitization, cycle projection, aggregation with
// inter-cycle alignment, and peak detection.
type BeadProjection struct {
	Digitize  CyclesDigitization
	Project   CycleProjection
	Aggregate ProjectionAggregator
	Align     CycleAlignment
	Find      HistogramPeakFinder
}

// NewBeadProjection returns the production defaults.
func NewBeadProjection() BeadProjection {
	return BeadProjection{
		Digitize:  NewCyclesDigitization(),
		Project:   NewCycleProjection(),
		Aggregate: NewProjectionAggregator(),
		Align:     NewCycleAlignment(),
		Find:      NewHistogramPeakFinder(),
	}
}

// Compute runs the pipeline over the measure-phase slices of every cycle at
// precision prec (µm).
func (b BeadProjection) Compute(prec float32, cycles [][]float32) BeadProjectionData {
	digit := b.Digitize.Compute(prec, cycles)
	hists := b.Project.ComputeAll(digit, cycles)
	bias, all := b.Align.Compute(digit, b.Aggregate, hists)
	bw := digit.BinWidth(false)
	peaks := b.Find.Compute(prec, digit.MinEdge, bw, all)
	return BeadProjectionData{
		Histogram: all,
		Bias:      bias,
		MinValue:  digit.MinEdge,
		BinWidth:  bw,
		Peaks:     peaks,
	}
}
