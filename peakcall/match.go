// Copyright 2026 Picobio, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package peakcall

import "math"

// mInfo is one not-yet-matched peak: its colour (reference or experiment),
// its index in its own list, and its position.
type mInfo struct {
	isRef bool
	ind   int
	pos   float32
}

// matched runs the sweep-line pairing.  Peaks from both lists are merged in
// position order into a two-colour pending list; whenever the colour
// alternation breaks or the pending head falls out of the sigma window of
// the newest peak, the pending list is resolved by repeatedly emitting the
// adjacent opposite-colour pair with the smallest gap and splitting around
// it.  add receives each match as (reference, experiment); discard sees
// every unmatched peak and may abort the sweep by returning true.
func matched(ref, exp []float32, sigma float32,
	add func(r, e mInfo), discard func(mInfo) bool) {

	endOfList := func(lst []mInfo, minc mInfo) bool {
		if len(lst) == 0 {
			return false
		}
		back := lst[len(lst)-1]
		return minc.isRef == back.isRef || back.pos < minc.pos-sigma
	}

	findBest := func(cur []mInfo) int {
		val := float32(math.MaxFloat32)
		best := -1
		for i := 1; i < len(cur); i++ {
			if gap := cur[i].pos - cur[i-1].pos; gap < val {
				best = i
				val = gap
			}
		}
		return best
	}

	// resolve consumes a pending list, reporting true when a discard
	// callback asked to abort.
	resolve := func(cur []mInfo) bool {
		left := cur
		var stack [][]mInfo
		for len(left) > 1 || len(stack) > 0 {
			if len(left) <= 1 {
				if len(left) == 1 && discard(left[0]) {
					return true
				}
				left = stack[len(stack)-1]
				stack = stack[:len(stack)-1]
			}
			best := findBest(left)
			if left[best].isRef {
				add(left[best], left[best-1])
			} else {
				add(left[best-1], left[best])
			}
			if right := left[best+1:]; len(right) > 1 {
				stack = append(stack, append([]mInfo(nil), right...))
			}
			left = left[:best-1]
		}
		return false
	}

	pX := func(i int) mInfo { return mInfo{true, i, ref[i]} }
	pY := func(i int) mInfo { return mInfo{false, i, exp[i]} }

	iX, iY := 0, 0
	minc := mInfo{isRef: true}
	var pending []mInfo

	if len(ref) > 0 && len(exp) > 0 {
		maxc := pY(0)
		for iX < len(ref) && iY < len(exp) {
			if minc.isRef {
				minc = pX(iX)
			} else {
				minc = pY(iY)
			}
			if minc.pos > maxc.pos {
				minc, maxc = maxc, minc
			}
			if endOfList(pending, minc) {
				if resolve(pending) {
					return
				}
				pending = pending[:0:0]
			}
			pending = append(pending, minc)
			if minc.isRef {
				iX++
			} else {
				iY++
			}
		}

		if iX == len(ref) {
			minc = pY(iY)
			iY++
		} else {
			minc = pX(iX)
			iX++
		}
		if !endOfList(pending, minc) {
			pending = append(pending, minc)
		}
	}

	for iX < len(ref) {
		if discard(pX(iX)) {
			return
		}
		iX++
	}
	for iY < len(exp) {
		if discard(pY(iY)) {
			return
		}
		iY++
	}
	resolve(pending)
}

// Compute pairs experiment peaks to reference peaks under the sigma window,
// returning (reference index, experiment index) pairs in reference order.
func Compute(sigma float32, ref, exp []float32) [][2]int {
	paired := make([]int, len(ref))
	for i := range paired {
		paired[i] = -1
	}
	cnt := 0
	matched(ref, exp, sigma,
		func(r, e mInfo) {
			paired[r.ind] = e.ind
			cnt++
		},
		func(mInfo) bool { return false })

	out := make([][2]int, 0, cnt)
	for i, j := range paired {
		if j >= 0 {
			out = append(out, [2]int{i, j})
		}
	}
	return out
}

// NFound returns how many pairs Compute would emit.
func NFound(sigma float32, ref, exp []float32) int {
	cnt := 0
	matched(ref, exp, sigma,
		func(mInfo, mInfo) { cnt++ },
		func(mInfo) bool { return false })
	return cnt
}

// Distance transforms exp by stretch and bias, matches it against ref, and
// returns the matching objective with its analytic gradients:
// |ref|+|exp|-2*matched + sum((r-e')^2)/sigma^2.  The final return is the
// number of matched pairs; zero pairs yield |ref|+|exp|+1 and zero
// gradients.
func Distance(sigma, stretch, bias float32, ref, exp []float32) (obj, dStretch, dBias float64, count int) {
	conv := make([]float32, len(exp))
	for i, v := range exp {
		conv[i] = v*stretch + bias
	}

	var res, grads, gradb float64
	matched(ref, conv, sigma,
		func(r, e mInfo) {
			t := float64(r.pos) - float64(e.pos)
			res += t * t
			grads -= float64(exp[e.ind]) * t
			gradb -= t
			count++
		},
		func(mInfo) bool { return false })

	if count == 0 {
		return float64(len(ref)+len(exp)) + 1, 0, 0, 0
	}
	norm := 1 / (float64(sigma) * float64(sigma))
	obj = float64(len(ref)+len(exp)-2*count) + res*norm
	return obj, 2 * grads * norm, 2 * gradb * norm, count
}

// Optimize fits (stretch, bias) by bounded L-BFGS over the Distance
// objective.  Empty peak sets return the starting point with a maximal
// cost.
func Optimize(p Parameters, ref, exp []float32) (Result, error) {
	if len(ref) == 0 || len(exp) == 0 {
		return Result{Cost: math.MaxFloat64, Stretch: p.Current[0], Bias: p.Current[1]}, nil
	}
	return minimize(p, func(x []float64) (float64, [2]float64) {
		obj, ds, db, _ := Distance(float32(p.Sigma), float32(x[0]), float32(x[1]), ref, exp)
		return obj, [2]float64{ds, db}
	})
}
