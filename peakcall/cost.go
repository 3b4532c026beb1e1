// Copyright 2026 Picobio, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package peakcall

import "math"

// CostConfig configures the smooth gaussian-kernel cost.  Symmetric mode
// adds the cost of the swapped, inverse-transformed comparison, making the
// objective invariant under exchanging the two peak sets.
type CostConfig struct {
	Symmetric bool
	Sigma     float64
}

// kernelCost evaluates the normalized gaussian cross-correlation cost of
// pos1 against stretch*pos2+bias and its analytic gradients with respect to
// stretch and bias.
func kernelCost(pos1, pos2 []float32, stretch, bias, sig float64) (cost, dStretch, dBias float64) {
	var sum, norm1, grnorm float64
	var grsum [2]float64
	for i2 := range pos2 {
		for i1 := range pos1 {
			d := (float64(pos1[i1]) - stretch*float64(pos2[i2]) - bias) / sig
			e := math.Exp(-0.5 * d * d)
			c := e * d / sig
			sum += e
			grsum[0] += c * float64(pos2[i2])
			grsum[1] += c
		}
		for i1 := range pos2 {
			d := (float64(pos2[i1]) - float64(pos2[i2])) * stretch / sig
			e := math.Exp(-0.5 * d * d)
			norm1 += e
			grnorm += e * d / sig * (float64(pos2[i2]) - float64(pos2[i1]))
		}
	}
	var norm2 float64
	for i1 := range pos1 {
		for i2 := range pos1 {
			d := (float64(pos1[i1]) - float64(pos1[i2])) / sig
			norm2 += math.Exp(-0.5 * d * d)
		}
	}

	c := math.Sqrt(norm1 * norm2)
	if c == 0 {
		// Degenerate kernels: treat the overlap as zero rather than
		// dividing by zero.
		return 1, 0, 0
	}
	return 1 - sum/c,
		(0.5*grnorm*sum/norm1 - grsum[0]) / c,
		-grsum[1] / c
}

// CostCompute evaluates the cost and its gradients at (stretch, bias).
func CostCompute(cfg CostConfig, stretch, bias float64, ref, exp []float32) (cost, dStretch, dBias float64) {
	c1, g1s, g1b := kernelCost(ref, exp, stretch, bias, cfg.Sigma)
	if !cfg.Symmetric {
		return c1, g1s, g1b
	}
	c2, g2s, g2b := kernelCost(exp, ref, 1/stretch, -bias/stretch, cfg.Sigma)
	return c1 + c2,
		g1s - (g2s-g2b*bias)/(stretch*stretch),
		g1b - g2b/stretch
}

// CostOptimize fits (stretch, bias) by bounded L-BFGS over the kernel
// cost.  Empty peak sets return the starting point with a maximal cost.
func CostOptimize(cfg CostConfig, p Parameters, ref, exp []float32) (Result, error) {
	if len(ref) == 0 || len(exp) == 0 {
		return Result{Cost: math.MaxFloat64, Stretch: p.Current[0], Bias: p.Current[1]}, nil
	}
	return minimize(p, func(x []float64) (float64, [2]float64) {
		c, ds, db := CostCompute(cfg, x[0], x[1], ref, exp)
		return c, [2]float64{ds, db}
	})
}
