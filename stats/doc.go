// Copyright 2026 Picobio, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package stats provides the streaming statistics used throughout the
// signal-processing pipeline: running moments, exact and approximate
// (P-squared) quantiles, fixed-window rolling accumulators, and the NaN-aware
// variants required by bead traces, where NaN marks a missing observation.
//
// All trace-level functions take []float32, matching the on-disk sample
// type; accumulation happens in float64.
package stats
