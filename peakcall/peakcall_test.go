// Copyright 2026 Picobio, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package peakcall

import (
	"math"
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
)

func TestComputeExample(t *testing.T) {
	got := Compute(0.1, []float32{1.0, 2.0, 3.0}, []float32{1.05, 2.04, 3.5})
	expect.EQ(t, got, [][2]int{{0, 0}, {1, 1}})
}

func TestComputeEmpty(t *testing.T) {
	expect.EQ(t, len(Compute(0.1, nil, []float32{1})), 0)
	expect.EQ(t, len(Compute(0.1, []float32{1}, nil)), 0)
}

func TestComputeCrossing(t *testing.T) {
	// Two experiment peaks inside the window of two reference peaks: the
	// closest pairs win, in order.
	got := Compute(1, []float32{1.0, 2.0}, []float32{1.1, 1.9})
	expect.EQ(t, got, [][2]int{{0, 0}, {1, 1}})
}

func TestNFound(t *testing.T) {
	expect.EQ(t, NFound(0.1, []float32{1, 2, 3}, []float32{1.05, 2.04, 3.5}), 2)
	expect.EQ(t, NFound(1, []float32{1, 2, 3}, []float32{1.05, 2.04, 3.5}), 3)
}

func TestDistance(t *testing.T) {
	ref := []float32{1, 2, 3}
	exp := []float32{1, 2, 3}
	obj, ds, db, cnt := Distance(0.1, 1, 0, ref, exp)
	expect.EQ(t, cnt, 3)
	assert.InDelta(t, 0, obj, 1e-9) // 3+3-2*3 + 0
	assert.InDelta(t, 0, ds, 1e-9)
	assert.InDelta(t, 0, db, 1e-9)

	obj, _, _, cnt = Distance(0.1, 1, 10, ref, exp)
	expect.EQ(t, cnt, 0)
	assert.InDelta(t, 7, obj, 1e-9) // |ref|+|exp|+1
}

func TestDistanceGradientMatchesFiniteDifference(t *testing.T) {
	ref := []float32{1, 2, 3, 4.5}
	exp := []float32{0.99, 2.02, 2.98, 4.6}
	const sigma, h = 0.2, 1e-4
	at := func(s, b float32) float64 {
		obj, _, _, _ := Distance(sigma, s, b, ref, exp)
		return obj
	}
	_, ds, db, cnt := Distance(sigma, 1, 0.005, ref, exp)
	assert.True(t, cnt > 0)
	fdS := (at(1+h, 0.005) - at(1-h, 0.005)) / (2 * h)
	fdB := (at(1, 0.005+h) - at(1, 0.005-h)) / (2 * h)
	assert.InDelta(t, fdS, ds, 1e-2)
	assert.InDelta(t, fdB, db, 1e-2)
}

func TestOptimizeRecoversTransform(t *testing.T) {
	ref := []float32{0.1, 0.35, 0.62, 0.8, 1.1}
	exp := make([]float32, len(ref))
	for i, v := range ref {
		exp[i] = (v - 0.02) / 1.05 // stretch 1.05, bias 0.02
	}
	p := NewParameters()
	p.Sigma = 0.05
	p.Lower = [2]float64{0.8, -0.1}
	p.Current = [2]float64{1, 0}
	p.Upper = [2]float64{1.2, 0.1}
	p.MaxEval = 200

	res, err := Optimize(p, ref, exp)
	expect.NoError(t, err)
	assert.True(t, res.Stretch >= p.Lower[0] && res.Stretch <= p.Upper[0])
	assert.True(t, res.Bias >= p.Lower[1] && res.Bias <= p.Upper[1])
	assert.InDelta(t, 1.05, res.Stretch, 0.02)
	assert.InDelta(t, 0.02, res.Bias, 0.02)
}

func TestOptimizeEmptyInput(t *testing.T) {
	p := NewParameters()
	res, err := Optimize(p, nil, nil)
	expect.NoError(t, err)
	expect.EQ(t, res.Cost, math.MaxFloat64)
	expect.EQ(t, res.Stretch, p.Current[0])
	expect.EQ(t, res.Bias, p.Current[1])
}

func TestOptimizeBadBounds(t *testing.T) {
	p := NewParameters()
	p.Lower[0] = 2 // above Current[0]
	_, err := Optimize(p, []float32{1}, []float32{1})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "lower[0]")
}

func TestCostSymmetry(t *testing.T) {
	cfg := CostConfig{Sigma: 0.1, Symmetric: true}
	a := []float32{0.1, 0.4, 0.9}
	b := []float32{0.12, 0.38, 0.95}
	stretch, bias := 1.04, 0.015
	c1, _, _ := CostCompute(cfg, stretch, bias, a, b)
	c2, _, _ := CostCompute(cfg, 1/stretch, -bias/stretch, b, a)
	assert.InDelta(t, c1, c2, 1e-6)
}

func TestCostGradientMatchesFiniteDifference(t *testing.T) {
	cfg := CostConfig{Sigma: 0.1, Symmetric: true}
	a := []float32{0.1, 0.4, 0.9}
	b := []float32{0.12, 0.38, 0.95}
	const h = 1e-5
	at := func(s, bi float64) float64 {
		c, _, _ := CostCompute(cfg, s, bi, a, b)
		return c
	}
	_, ds, db := CostCompute(cfg, 1.02, 0.01, a, b)
	fdS := (at(1.02+h, 0.01) - at(1.02-h, 0.01)) / (2 * h)
	fdB := (at(1.02, 0.01+h) - at(1.02, 0.01-h)) / (2 * h)
	assert.InDelta(t, fdS, ds, 1e-3)
	assert.InDelta(t, fdB, db, 1e-3)
}

func TestCostOptimizeStaysInBounds(t *testing.T) {
	cfg := CostConfig{Sigma: 0.05, Symmetric: true}
	ref := []float32{0.1, 0.35, 0.62, 0.8}
	exp := []float32{0.105, 0.36, 0.61, 0.82}
	p := NewParameters()
	p.Sigma = 0.05
	res, err := CostOptimize(cfg, p, ref, exp)
	expect.NoError(t, err)
	assert.True(t, res.Stretch >= p.Lower[0] && res.Stretch <= p.Upper[0])
	assert.True(t, res.Bias >= p.Lower[1] && res.Bias <= p.Upper[1])
	assert.True(t, res.Cost < 1)
}

func TestIterator(t *testing.T) {
	ref := []float32{1000, 2000, 3000}
	exp := []float32{1.0, 2.0, 3.0}
	it := NewIterator(ref, exp)
	n := 0
	for {
		seed, ok := it.Next()
		if !ok {
			break
		}
		n++
		assert.True(t, seed.Stretch > it.MinStretch && seed.Stretch < it.MaxStretch)
		assert.True(t, seed.Bias > it.MinBias && seed.Bias < it.MaxBias)
		if n > 100 {
			t.Fatal("iterator did not terminate")
		}
	}
	assert.True(t, n > 0)
}

func TestBoundedIteratorClips(t *testing.T) {
	ref := []float32{1000, 2000, 3000}
	exp := []float32{1.0, 2.0, 3.0}
	it := NewBoundedIterator(ref, exp, 500)
	for {
		seed, ok := it.Next()
		if !ok {
			break
		}
		assert.True(t, seed.Stretch >= it.MinStretch && seed.Stretch <= it.MaxStretch)
		assert.True(t, seed.Bias >= it.MinBias && seed.Bias <= it.MaxBias)
	}
}
