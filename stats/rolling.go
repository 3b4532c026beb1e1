// Copyright 2026 Picobio, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package stats

import "math"

// RollingMean maintains the mean over the last window samples.
type RollingMean struct {
	buf  []float64
	next int
	full bool
	sum  float64
}

// NewRollingMean returns a rolling mean over the given window size.
func NewRollingMean(window int) *RollingMean {
	return &RollingMean{buf: make([]float64, window)}
}

// Add feeds one sample.
func (r *RollingMean) Add(v float64) {
	if r.full {
		r.sum -= r.buf[r.next]
	}
	r.buf[r.next] = v
	r.sum += v
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
}

// Count returns the number of samples currently in the window.
func (r *RollingMean) Count() int {
	if r.full {
		return len(r.buf)
	}
	return r.next
}

// Value returns the windowed mean, NaN when empty.
func (r *RollingMean) Value() float64 {
	n := r.Count()
	if n == 0 {
		return math.NaN()
	}
	return r.sum / float64(n)
}

// rollingExtremum is the shared monotone-deque implementation behind
// RollingMin and RollingMax.  Each entry keeps the position at which the
// sample was added, so Arg is available in O(1).
type rollingExtremum struct {
	window int
	pos    int
	items  []extremumItem // monotone by value
	better func(a, b float64) bool
}

type extremumItem struct {
	value float64
	pos   int
}

func (r *rollingExtremum) add(v float64) {
	for len(r.items) > 0 && !r.better(r.items[len(r.items)-1].value, v) {
		r.items = r.items[:len(r.items)-1]
	}
	r.items = append(r.items, extremumItem{v, r.pos})
	r.pos++
	if r.items[0].pos <= r.pos-1-r.window {
		r.items = r.items[1:]
	}
}

func (r *rollingExtremum) value() float64 {
	if len(r.items) == 0 {
		return math.NaN()
	}
	return r.items[0].value
}

func (r *rollingExtremum) arg() int {
	if len(r.items) == 0 {
		return -1
	}
	return r.items[0].pos
}

// RollingMin tracks the minimum of the last window samples along with the
// absolute position at which it was added.
type RollingMin struct{ rollingExtremum }

// NewRollingMin returns a rolling minimum over the given window size.
func NewRollingMin(window int) *RollingMin {
	r := &RollingMin{}
	r.window = window
	r.better = func(a, b float64) bool { return a < b }
	return r
}

// Add feeds one sample.
func (r *RollingMin) Add(v float64) { r.add(v) }

// Value returns the windowed minimum, NaN when empty.
func (r *RollingMin) Value() float64 { return r.value() }

// Arg returns the position (0-based add index) of the current minimum, -1
// when empty.
func (r *RollingMin) Arg() int { return r.arg() }

// RollingMax tracks the maximum of the last window samples along with the
// absolute position at which it was added.
type RollingMax struct{ rollingExtremum }

// NewRollingMax returns a rolling maximum over the given window size.
func NewRollingMax(window int) *RollingMax {
	r := &RollingMax{}
	r.window = window
	r.better = func(a, b float64) bool { return a > b }
	return r
}

// Add feeds one sample.
func (r *RollingMax) Add(v float64) { r.add(v) }

// Value returns the windowed maximum, NaN when empty.
func (r *RollingMax) Value() float64 { return r.value() }

// Arg returns the position (0-based add index) of the current maximum, -1
// when empty.
func (r *RollingMax) Arg() int { return r.arg() }
