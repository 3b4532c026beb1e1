// Copyright 2026 Picobio, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package peakcall

import (
	"fmt"
	"math"

	"github.com/grailbio/base/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

// Parameters configures the two-variable (stretch, bias) minimisation.
type Parameters struct {
	Sigma   float64
	Lower   [2]float64
	Current [2]float64
	Upper   [2]float64

	XRel    float64 // relative parameter tolerance
	FRel    float64 // relative function tolerance
	XAbs    float64 // absolute parameter tolerance
	StopVal float64 // stop once the objective falls this low
	MaxEval int     // maximum objective evaluations
}

// NewParameters returns the production defaults around a unit transform.
func NewParameters() Parameters {
	return Parameters{
		Sigma:   1,
		Lower:   [2]float64{0.8, -0.1},
		Current: [2]float64{1, 0},
		Upper:   [2]float64{1.2, 0.1},
		XRel:    1e-4,
		FRel:    1e-4,
		XAbs:    1e-8,
		StopVal: 1e-8,
		MaxEval: 100,
	}
}

// Result is the outcome of an optimisation.
type Result struct {
	Cost    float64
	Stretch float64
	Bias    float64
}

func (p Parameters) validate() error {
	for i := 0; i < 2; i++ {
		if p.Lower[i] > p.Current[i] {
			return errors.E(fmt.Sprintf(
				"peakcall: lower[%d] > current[%d]: %v > %v", i, i, p.Lower[i], p.Current[i]))
		}
		if p.Upper[i] < p.Current[i] {
			return errors.E(fmt.Sprintf(
				"peakcall: current[%d] > upper[%d]: %v > %v", i, i, p.Current[i], p.Upper[i]))
		}
	}
	return nil
}

func (p Parameters) clamp(x []float64) {
	for i := 0; i < 2; i++ {
		if x[i] < p.Lower[i] {
			x[i] = p.Lower[i]
		} else if x[i] > p.Upper[i] {
			x[i] = p.Upper[i]
		}
	}
}

// minimize drives a bounded L-BFGS descent of fg, which returns the
// objective and its gradient.  Bounds are enforced by projection: the
// objective always sees a feasible point, gradient components pushing an
// active bound further out are zeroed, and the final iterate is clamped.
// XRel/FRel/XAbs map onto the function-convergence test; StopVal and
// MaxEval bound the evaluation loop.
func minimize(p Parameters, fg func(x []float64) (float64, [2]float64)) (Result, error) {
	if err := p.validate(); err != nil {
		return Result{}, err
	}

	bestF := math.MaxFloat64
	bestX := [2]float64{p.Current[0], p.Current[1]}
	stopped := false
	eval := func(x []float64) (float64, [2]float64) {
		xx := []float64{x[0], x[1]}
		p.clamp(xx)
		f, g := fg(xx)
		if f < bestF {
			bestF = f
			bestX = [2]float64{xx[0], xx[1]}
		}
		if stopped || f <= p.StopVal {
			// Past the stop value the objective is reported flat, which
			// trips the function-convergence test on the next iteration.
			stopped = true
			return f, [2]float64{}
		}
		for i := 0; i < 2; i++ {
			if (xx[i] == p.Lower[i] && g[i] > 0) ||
				(xx[i] == p.Upper[i] && g[i] < 0) {
				g[i] = 0
			}
		}
		return f, g
	}

	rel := p.FRel
	if p.XRel > rel {
		rel = p.XRel
	}
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			f, _ := eval(x)
			return f
		},
		Grad: func(grad, x []float64) {
			_, g := eval(x)
			copy(grad, g[:])
		},
	}
	settings := &optimize.Settings{
		FuncEvaluations: p.MaxEval,
		Converger: &optimize.FunctionConverge{
			Absolute:   p.XAbs,
			Relative:   rel,
			Iterations: 5,
		},
	}

	x0 := []float64{p.Current[0], p.Current[1]}
	// A stalled line search or an exhausted budget still leaves the best
	// feasible iterate in bestX; only a panic-free nil result would be
	// fatal, and Minimize never produces one for a well-formed problem.
	res, _ := optimize.Minimize(problem, x0, settings, &optimize.LBFGS{})
	if res != nil {
		x := append([]float64(nil), res.X...)
		p.clamp(x)
		f := res.F
		if !floats.Equal(x, res.X) {
			f, _ = fg(x)
		}
		if f < bestF {
			bestF = f
			bestX = [2]float64{x[0], x[1]}
		}
	}
	return Result{Cost: bestF, Stretch: bestX[0], Bias: bestX[1]}, nil
}
