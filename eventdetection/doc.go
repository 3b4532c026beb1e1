// Copyright 2026 Picobio, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package eventdetection locates binding events in a cleaned bead trace:
// per-cycle bias alignment, split detectors grading each frame against a
// precision-scaled threshold, statistical and range-based interval mergers,
// and the final event selector.
//
// All detectors share one framing: NaN samples are compressed away, a grade
// is computed over the finite subsequence, frames grading below 1.0 belong
// to an event, and maximal runs are translated back to uncompressed frame
// indices.
package eventdetection
