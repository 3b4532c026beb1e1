// Copyright 2026 Picobio, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package peakfind

import (
	"github.com/picobio/tweezer/interval"
)

// EventExtractor locates, for each cycle and peak, the shortest frame span
// containing the cycle's visits to the peak: head and tail stretches are
// trimmed until MinCount successive in-window frames are met whose
// first-to-last extent covers at least MinCount*Density frames.
type EventExtractor struct {
	MinCount int
	Density  float32
	Distance float32
}

// NewEventExtractor returns the production defaults.
func NewEventExtractor() EventExtractor {
	return EventExtractor{MinCount: 2, Density: 1, Distance: 2}
}

// trim returns the span of data surviving the head/tail density trim for
// the window [minv, maxv], or the empty span (0, 0).
func (x EventExtractor) trim(minv, maxv float32, data []float32) interval.Span {
	sz := len(data)
	var inds []int
	test := func(i int) (int, bool) {
		if data[i] >= minv && data[i] <= maxv {
			inds = append(inds, i)
			if len(inds) == x.MinCount {
				span := i - inds[0]
				if span < 0 {
					span = -span
				}
				if float32(span+1) >= float32(x.MinCount)*x.Density {
					front := inds[0]
					inds = inds[:0]
					return front, false
				}
				inds = inds[1:]
			}
		}
		return i, true
	}

	first := 0
	for first < sz {
		ni, cont := test(first)
		if !cont {
			first = ni
			break
		}
		first = ni + 1
	}

	second := sz - 1
	for second >= first {
		ni, cont := test(second)
		if !cont {
			second = ni
			break
		}
		second = ni - 1
	}

	if first > second {
		return interval.Span{}
	}
	return interval.Span{First: first, Last: second + 1}
}

// Compute returns, for every cycle, one span per peak; a span of (0, 0)
// marks a peak the cycle never visited.  bias holds the per-cycle
// projection biases in microns.
func (x EventExtractor) Compute(precision float32, peaks, bias []float32, cycles [][]float32) [][]interval.Span {
	out := make([][]interval.Span, len(cycles))
	dist := precision * x.Distance
	for c, cyc := range cycles {
		out[c] = make([]interval.Span, 0, len(peaks))
		for _, p := range peaks {
			out[c] = append(out[c], x.trim(p-dist+bias[c], p+dist+bias[c], cyc))
		}
	}
	return out
}
