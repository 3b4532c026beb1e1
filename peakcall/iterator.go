// Copyright 2026 Picobio, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package peakcall

import "math"

// Iterator enumerates candidate (stretch, bias) seeds from pairs of
// reference peaks matched against pairs of experiment peaks: the stretch
// maps the experiment pair onto the reference pair and the bias anchors the
// first peak.  Seeds outside the configured windows are skipped.
type Iterator struct {
	MinStretch float32
	MaxStretch float32
	MinBias    float32
	MaxBias    float32
	Ref        []float32
	Exp        []float32

	i1r, i2r int
	i1e, i2e int
}

// NewIterator returns an iterator with the production stretch and bias
// windows over the given peak sets.
func NewIterator(ref, exp []float32) *Iterator {
	return &Iterator{
		MinStretch: 800, MaxStretch: 1300,
		MinBias: -0.01, MaxBias: 0.01,
		Ref: ref, Exp: exp,
		i2r: 1, i2e: 1,
	}
}

// Seed is one candidate transform with the peak pair indices producing it.
type Seed struct {
	Stretch float32
	Bias    float32
	IRef    [2]int
	IExp    [2]int
}

// next advances through the index lattice, calling accept on each candidate
// until one passes or the lattice is exhausted.  accept may clip the
// parameters in place.
func (it *Iterator) next(accept func(stretch, bias *float32) bool) (Seed, bool) {
	var out Seed
	good := false
	for !good && it.i2r < len(it.Ref) {
		stretch := (it.Ref[it.i2r] - it.Ref[it.i1r]) / (it.Exp[it.i2e] - it.Exp[it.i1e])
		div := stretch
		if div == 0 {
			div = 1e-7
		}
		bias := it.Exp[it.i1e] - it.Ref[it.i1r]/div
		good = accept(&stretch, &bias)
		out = Seed{
			Stretch: stretch,
			Bias:    bias,
			IRef:    [2]int{it.i1r, it.i2r},
			IExp:    [2]int{it.i1e, it.i2e},
		}

		switch {
		case it.i2e == len(it.Exp)-1 && it.i1e == len(it.Exp)-2:
			it.i1e = 0
			it.i2e = 1
			if it.i2r == len(it.Ref)-1 {
				it.i1r++
				it.i2r = it.i1r + 1
			} else {
				it.i2r++
			}
		case it.i2e == len(it.Exp)-1:
			it.i1e++
			it.i2e = it.i1e + 1
		default:
			it.i2e++
		}
	}
	return out, good
}

// Next returns the next in-window seed, or ok == false when exhausted.
func (it *Iterator) Next() (Seed, bool) {
	if len(it.Ref) < 2 || len(it.Exp) < 2 {
		return Seed{}, false
	}
	return it.next(func(stretch, bias *float32) bool {
		return *stretch > it.MinStretch && *stretch < it.MaxStretch &&
			*bias > it.MinBias && *bias < it.MaxBias
	})
}

// BoundedIterator clips every seed into the stretch and bias windows and
// additionally requires both transformed experiment peaks to land within
// Window of their reference targets.
type BoundedIterator struct {
	Iterator
	Window float32
}

// NewBoundedIterator returns a bounded iterator over the given peak sets.
func NewBoundedIterator(ref, exp []float32, window float32) *BoundedIterator {
	it := NewIterator(ref, exp)
	return &BoundedIterator{Iterator: *it, Window: window}
}

// Next returns the next admissible clipped seed, or ok == false when
// exhausted.
func (it *BoundedIterator) Next() (Seed, bool) {
	if len(it.Ref) < 2 || len(it.Exp) < 2 {
		return Seed{}, false
	}
	return it.next(func(stretch, bias *float32) bool {
		if *stretch < it.MinStretch {
			*stretch = it.MinStretch
		} else if *stretch > it.MaxStretch {
			*stretch = it.MaxStretch
		}
		if *bias < it.MinBias {
			*bias = it.MinBias
		} else if *bias > it.MaxBias {
			*bias = it.MaxBias
		}
		d2 := math.Abs(float64((it.Exp[it.i2e]-*bias)**stretch - it.Ref[it.i2r]))
		d1 := math.Abs(float64((it.Exp[it.i1e]-*bias)**stretch - it.Ref[it.i1r]))
		return d2 < float64(it.Window) && d1 < float64(it.Window)
	})
}
