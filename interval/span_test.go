// Copyright 2026 Picobio, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package interval_test

import (
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/picobio/tweezer/interval"
)

func TestSpan(t *testing.T) {
	s := interval.Span{First: 3, Last: 7}
	expect.EQ(t, s.Len(), 4)
	expect.False(t, s.Empty())
	expect.True(t, s.Contains(3))
	expect.False(t, s.Contains(7))
	expect.True(t, s.Overlaps(interval.Span{First: 6, Last: 9}))
	expect.False(t, s.Overlaps(interval.Span{First: 7, Last: 9}))
	expect.EQ(t, s.Union(interval.Span{First: 6, Last: 9}), interval.Span{First: 3, Last: 9})
	expect.EQ(t, s.Clip(4, 5), interval.Span{First: 4, Last: 5})
	expect.True(t, s.Clip(8, 9).Empty())
}

func TestValid(t *testing.T) {
	tests := []struct {
		spans []interval.Span
		want  bool
	}{
		{nil, true},
		{[]interval.Span{{0, 4}}, true},
		{[]interval.Span{{0, 4}, {4, 5}}, true},
		{[]interval.Span{{0, 4}, {3, 5}}, false},
		{[]interval.Span{{2, 2}}, false},
		{[]interval.Span{{4, 5}, {0, 1}}, false},
	}
	for _, test := range tests {
		expect.EQ(t, interval.Valid(test.spans), test.want, "spans: %v", test.spans)
	}
}

func TestSearch(t *testing.T) {
	spans := []interval.Span{{0, 2}, {5, 8}, {10, 12}}
	expect.EQ(t, interval.Search(spans, 0), 0)
	expect.EQ(t, interval.Search(spans, 3), 1)
	expect.EQ(t, interval.Search(spans, 10), 2)
	expect.EQ(t, interval.Search(spans, 11), 3)
	expect.EQ(t, interval.TotalLen(spans), 7)
}
