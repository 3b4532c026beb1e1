// Copyright 2026 Picobio, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package cleaning removes aberrant samples from bead traces and scores
// per-cycle quality.
//
// The per-frame suppressors mutate a single Z trace in place, replacing
// rejected samples with NaN; the trace length never changes and a sample
// once set to NaN is never restored.  The per-cycle rules consume cycle
// bounds and emit a Partial (per-cycle value plus accept bounds) from which
// the cycle verdict follows.
//
// The package also computes cross-bead reference signals (bead subtraction)
// and per-phase baselines.
package cleaning
