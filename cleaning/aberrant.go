// Copyright 2026 Picobio, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package cleaning

import (
	"math"

	"github.com/picobio/tweezer/stats"
)

var nan32 = float32(math.NaN())

// ConstantValuesSuppressor blanks stretches of samples which stay within
// MinDeltaValue of an anchor sample for at least MinDeltaRange frames.  Such
// stretches betray a tracker that kept reporting a stale position.  The
// anchors themselves survive; only the intermediate samples are blanked.
// NaN samples are skipped without resetting the anchor.
type ConstantValuesSuppressor struct {
	MinDeltaValue float32
	MinDeltaRange int
}

// NewConstantValuesSuppressor returns the production defaults.
func NewConstantValuesSuppressor() ConstantValuesSuppressor {
	return ConstantValuesSuppressor{MinDeltaValue: 1e-6, MinDeltaRange: 3}
}

// Apply blanks constant stretches of data in place.
func (r ConstantValuesSuppressor) Apply(data []float32) {
	sz := len(data)
	j := 0
	// Both anchors survive: the sample opening the constant run and the
	// last one before the range test fails.
	check := func(i int) {
		if j+r.MinDeltaRange <= i {
			for k := j + 1; k < i-1; k++ {
				data[k] = nan32
			}
		}
	}
	i := 1
	for ; i < sz; i++ {
		if !stats.IsFinite(data[i]) ||
			math.Abs(float64(data[i])-float64(data[j])) < float64(r.MinDeltaValue) {
			continue
		}
		check(i)
		j = i
	}
	check(i)
}

// DerivateSuppressor blanks samples too far from the trace median
// (MaxAbsValue) or too far from the average of their finite neighbours
// (MaxDerivate).  In clip mode, out-of-range samples are clamped to
// zero±MaxAbsValue instead of blanked and the derivative test is skipped.
type DerivateSuppressor struct {
	MaxAbsValue float32
	MaxDerivate float32
}

// NewDerivateSuppressor returns the production defaults.
func NewDerivateSuppressor() DerivateSuppressor {
	return DerivateSuppressor{MaxAbsValue: 5, MaxDerivate: 0.6}
}

// Apply blanks or clips aberrant samples of data in place.  zero is the
// reference position, normally the trace median.
func (r DerivateSuppressor) Apply(data []float32, clip bool, zero float32) {
	sz := len(data)
	if clip {
		high := zero + r.MaxAbsValue
		low := zero - r.MaxAbsValue
		for i := 0; i < sz; i++ {
			if !stats.IsFinite(data[i]) {
				continue
			}
			if data[i] > high {
				data[i] = high
			} else if data[i] < low {
				data[i] = low
			}
		}
		return
	}

	i1 := 0
	for i1 < sz && !stats.IsFinite(data[i1]) {
		i1++
	}
	if i1 >= sz {
		return
	}

	maxAbs := float64(r.MaxAbsValue)
	maxDer := float64(r.MaxDerivate)
	z := float64(zero)
	d0 := float64(data[i1])
	d1 := d0
	for i2 := i1 + 1; i2 < sz; i2++ {
		if !stats.IsFinite(data[i2]) {
			continue
		}
		d2 := float64(data[i2])
		if math.Abs(d1-z) > maxAbs || math.Abs(d1-0.5*(d0+d2)) > maxDer {
			data[i1] = nan32
		}
		d0 = d1
		d1 = d2
		i1 = i2
	}
	// The last finite sample has no right neighbour; only the absolute
	// bound applies.
	if math.Abs(d1-z) > maxAbs {
		data[i1] = nan32
	}
}

// LocalNaNPopulation blanks samples whose flanking windows are already
// mostly missing: more than Ratio percent of Window frames on each side.
// Isolated survivors inside a dead zone carry no information.
type LocalNaNPopulation struct {
	Window int
	Ratio  int
}

// NewLocalNaNPopulation returns the production defaults.
func NewLocalNaNPopulation() LocalNaNPopulation {
	return LocalNaNPopulation{Window: 5, Ratio: 20}
}

// Apply blanks surrounded samples of data in place.
func (r LocalNaNPopulation) Apply(data []float32) {
	sz := len(data)
	if r.Window*2+1 >= sz {
		return
	}
	minNaNs := r.Ratio*r.Window/100 + 1
	nans := stats.NanWindowCount(r.Window, data)
	for i, e := r.Window, sz-r.Window-1; i < e; i++ {
		if nans[i-r.Window] >= minNaNs && nans[i+1] >= minNaNs {
			data[i] = nan32
		}
	}
}

// NaNDerivateIslands blanks short runs of at most IslandWidth finite
// samples bordered on both sides by at least RiverWidth consecutive NaN
// samples, when at least Ratio percent of the island's discrete second
// differences exceed MaxDerivate, or when the island has no second
// difference at all.
type NaNDerivateIslands struct {
	RiverWidth  int
	IslandWidth int
	Ratio       int
	MaxDerivate float32
}

// NewNaNDerivateIslands returns the production defaults.
func NewNaNDerivateIslands() NaNDerivateIslands {
	return NaNDerivateIslands{RiverWidth: 2, IslandWidth: 10, Ratio: 80, MaxDerivate: 0.02}
}

// Apply blanks noisy islands of data in place.
func (r NaNDerivateIslands) Apply(data []float32) {
	sz := len(data)
	if r.RiverWidth > sz {
		return
	}
	// river[i]: the window [i, i+RiverWidth) is entirely NaN.
	nans := stats.NanWindowCount(r.RiverWidth, data)
	river := make([]bool, sz)
	for i, n := range nans {
		river[i] = n >= r.RiverWidth
	}

	maxDer := float64(r.MaxDerivate)
	nm1 := 0
	first := true
	for i := 0; i < r.RiverWidth+1 && r.RiverWidth-i >= 0; i++ {
		if stats.IsFinite(data[r.RiverWidth-i]) {
			nm1 = r.RiverWidth - 1
			first = false
			break
		}
	}

	for i, e := r.RiverWidth+1, sz-r.RiverWidth; i < e; i++ {
		if !stats.IsFinite(data[i]) {
			continue
		}
		if river[i-r.RiverWidth] {
			jmax := i + r.IslandWidth + 1
			if jmax > sz-1 {
				jmax = sz - 1
			}
			for j := jmax; j > i; j-- {
				if !(river[j] && stats.IsFinite(data[j-1])) {
					continue
				}

				count := 0
				n := i
				if first {
					nm1 = i
					for nm1 < j-1 && !stats.IsFinite(data[nm1]) {
						nm1++
					}
					n = nm1 + 1
				}
				for n < j-1 && !stats.IsFinite(data[n]) {
					n++
				}

				good := 0
				for np1 := n + 1; n < j-1 && np1 < sz; np1++ {
					if !stats.IsFinite(data[np1]) {
						continue
					}
					good++
					der := (float64(data[nm1])+float64(data[np1]))*0.5 - float64(data[n])
					if math.Abs(der) > maxDer {
						count++
					}
					nm1 = n
					n = np1
				}

				if good > 0 && count*100 < r.Ratio*good {
					continue
				}
				for k := i; k < j; k++ {
					data[k] = nan32
				}
				break
			}
		}
		nm1 = i
	}
}

// AberrantValuesRule composes the four per-frame suppressors in their
// production order: derivative (seeded with the trace median), constants,
// local NaN population, NaN derivate islands.
type AberrantValuesRule struct {
	Constants  ConstantValuesSuppressor
	Derivative DerivateSuppressor
	LocalNaNs  LocalNaNPopulation
	Islands    NaNDerivateIslands
}

// NewAberrantValuesRule returns the production defaults.
func NewAberrantValuesRule() AberrantValuesRule {
	return AberrantValuesRule{
		Constants:  NewConstantValuesSuppressor(),
		Derivative: NewDerivateSuppressor(),
		LocalNaNs:  NewLocalNaNPopulation(),
		Islands:    NewNaNDerivateIslands(),
	}
}

// Apply cleans data in place.
func (r AberrantValuesRule) Apply(data []float32, clip bool) {
	med := stats.NewApproxMedian()
	for _, v := range data {
		if stats.IsFinite(v) {
			med.Add(float64(v))
		}
	}
	r.Derivative.Apply(data, clip, float32(med.Value()))
	r.Constants.Apply(data)
	r.LocalNaNs.Apply(data)
	r.Islands.Apply(data)
}

// Clip clamps finite samples of data into [minv, maxv] in place.
func Clip(minv, maxv float32, data []float32) {
	for i, v := range data {
		if !stats.IsFinite(v) {
			continue
		}
		if v < minv {
			data[i] = minv
		} else if v > maxv {
			data[i] = maxv
		}
	}
}
