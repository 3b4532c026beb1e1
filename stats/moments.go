// Copyright 2026 Picobio, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package stats

import "math"

// Running accumulates count, mean and second moment online (Welford update).
type Running struct {
	count int
	mean  float64
	m2    float64
}

// Add feeds one sample.
func (r *Running) Add(v float64) {
	r.count++
	delta := v - r.mean
	r.mean += delta / float64(r.count)
	r.m2 += delta * (v - r.mean)
}

// Count returns the number of samples seen.
func (r *Running) Count() int { return r.count }

// Mean returns the running mean, NaN when empty.
func (r *Running) Mean() float64 {
	if r.count == 0 {
		return math.NaN()
	}
	return r.mean
}

// Var returns the population variance, NaN when empty.
func (r *Running) Var() float64 {
	if r.count == 0 {
		return math.NaN()
	}
	return r.m2 / float64(r.count)
}

// SampleVar returns the unbiased variance, NaN with fewer than two samples.
func (r *Running) SampleVar() float64 {
	if r.count < 2 {
		return math.NaN()
	}
	return r.m2 / float64(r.count-1)
}

// Std returns the population standard deviation.
func (r *Running) Std() float64 { return math.Sqrt(r.Var()) }

// Weighted accumulates a weighted mean and second moment (West update).
// Negative weights are legal and remove mass, which is what the rolling
// accumulators rely on.
type Weighted struct {
	sumw float64
	mean float64
	m2   float64
}

// Add feeds one sample with the given weight.
func (w *Weighted) Add(v, weight float64) {
	if weight == 0 {
		return
	}
	sumw := w.sumw + weight
	delta := v - w.mean
	rho := weight / sumw
	w.mean += delta * rho
	w.m2 += weight * delta * (v - w.mean)
	w.sumw = sumw
}

// SumWeights returns the accumulated weight.
func (w *Weighted) SumWeights() float64 { return w.sumw }

// Mean returns the weighted mean, NaN when no mass remains.
func (w *Weighted) Mean() float64 {
	if w.sumw == 0 {
		return math.NaN()
	}
	return w.mean
}

// Var returns the weighted population variance, NaN when no mass remains.
func (w *Weighted) Var() float64 {
	if w.sumw == 0 {
		return math.NaN()
	}
	return w.m2 / w.sumw
}

// MeanOf returns the mean of the finite entries of x, NaN when there are
// none.
func MeanOf(x []float32) float32 {
	var r Running
	for _, v := range x {
		if isFinite32(v) {
			r.Add(float64(v))
		}
	}
	return float32(r.Mean())
}

// StdOf returns the population standard deviation of the finite entries of
// x, NaN when there are none.
func StdOf(x []float32) float32 {
	var r Running
	for _, v := range x {
		if isFinite32(v) {
			r.Add(float64(v))
		}
	}
	return float32(r.Std())
}

func isFinite32(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// IsFinite reports whether v is neither NaN nor an infinity.  Loop bodies
// branch on this before doing arithmetic; quiet NaN propagation is never
// used for control flow.
func IsFinite(v float32) bool { return isFinite32(v) }
