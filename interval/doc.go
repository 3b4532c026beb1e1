// Copyright 2026 Picobio, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package interval implements the half-open frame intervals shared by the
// cleaning, event-detection and peak-finding packages.  An event list is an
// ordered sequence of non-overlapping Spans within one cycle; the helpers
// here maintain and check that invariant.
package interval
