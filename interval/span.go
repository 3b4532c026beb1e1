// Copyright 2026 Picobio, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package interval

import "sort"

// Span is a half-open [First, Last) frame interval within a bead trace.
type Span struct {
	First int
	Last  int
}

// Len returns the number of frames in the span.
func (s Span) Len() int { return s.Last - s.First }

// Empty reports whether the span contains no frames.
func (s Span) Empty() bool { return s.Last <= s.First }

// Contains reports whether frame i lies in the span.
func (s Span) Contains(i int) bool { return s.First <= i && i < s.Last }

// Overlaps reports whether s and t share at least one frame.
func (s Span) Overlaps(t Span) bool { return s.First < t.Last && t.First < s.Last }

// Union returns the smallest span covering both s and t.  The result is only
// meaningful when the two spans overlap or touch.
func (s Span) Union(t Span) Span {
	out := s
	if t.First < out.First {
		out.First = t.First
	}
	if t.Last > out.Last {
		out.Last = t.Last
	}
	return out
}

// Clip restricts the span to [first, last), possibly producing an empty span.
func (s Span) Clip(first, last int) Span {
	if s.First < first {
		s.First = first
	}
	if s.Last > last {
		s.Last = last
	}
	if s.Last < s.First {
		s.Last = s.First
	}
	return s
}

// Valid reports whether spans form an ordered event list: strictly increasing
// by First, each non-empty, and pairwise non-overlapping.
func Valid(spans []Span) bool {
	for i, s := range spans {
		if s.Empty() {
			return false
		}
		if i > 0 && s.First < spans[i-1].Last {
			return false
		}
	}
	return true
}

// Search returns the index of the first span whose First is >= x, or
// len(spans) if there is none.
func Search(spans []Span, x int) int {
	return sort.Search(len(spans), func(i int) bool { return spans[i].First >= x })
}

// TotalLen returns the summed length of all spans.
func TotalLen(spans []Span) int {
	n := 0
	for _, s := range spans {
		n += s.Len()
	}
	return n
}
