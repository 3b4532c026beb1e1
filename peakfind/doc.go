// Copyright 2026 Picobio, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package peakfind builds a bead's reference Z histogram ("bead
// projection") and detects hybridisation peaks in it.
//
// The pipeline digitizes each cycle's measure phase onto an oversampled bin
// lattice, projects every cycle to a normalized histogram, aligns the cycle
// histograms against their aggregate, detects peaks on the aggregated
// histogram, and finally extracts per-cycle event windows around each peak.
package peakfind
