// Copyright 2026 Picobio, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package peakcall aligns an experimental peak set against a reference one:
// sweep-line pairing under a sigma window, a squared-distance objective
// with analytic gradients over a (stretch, bias) transform, a smooth
// gaussian-kernel alternative, and a bounded L-BFGS driver shared by both.
package peakcall
