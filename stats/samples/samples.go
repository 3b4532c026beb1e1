// Copyright 2026 Picobio, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package samples implements two-sample comparison tests for normally
// distributed observations: known-sigma, homoscedastic (pooled variance) and
// heteroscedastic (Welch) variants.  Each variant exposes the raw statistic,
// a "distance from equality" p-level in [0.5, 1], and isequal/islower/
// isgreater predicates at a significance level alpha.
package samples

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Input summarizes one sample.  Sigma may be zero when the deviation is
// known externally (known-sigma test).
type Input struct {
	Count int
	Mean  float32
	Sigma float32
}

func countNorm(c1, c2 int) float64 {
	return math.Sqrt(float64(c1) * float64(c2) / float64(c1+c2))
}

// level evaluates the Student-t CDF of |t| at df degrees of freedom,
// returning 1 when df is non-finite or not positive (the test cannot
// reject).
func level(df, t float64) float64 {
	if !(df > 0) || math.IsInf(df, 0) {
		return 1
	}
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return dist.CDF(math.Abs(t))
}

func isEqual(alpha float32, df, t float64) bool {
	lev := level(df, t)
	a := float64(alpha)
	return lev > a*0.5 && lev < 1-a*0.5
}

func isLower(alpha float32, df, t float64) bool {
	if !(df > 0) || math.IsInf(df, 0) {
		return false
	}
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return dist.CDF(t) < float64(alpha)
}

// KnownSigma is the bilateral two-sample test with externally known sigma.
type KnownSigma struct{}

// Value returns (mu1-mu2)*sqrt(n1*n2/(n1+n2)); with bequal set, the absolute
// value.
func (KnownSigma) Value(bequal bool, left, right Input) float32 {
	val := float64(left.Mean-right.Mean) * countNorm(left.Count, right.Count)
	if bequal && val < 0 {
		val = -val
	}
	return float32(val)
}

// Threshold returns the equality threshold at level alpha for the given
// sigma: the (1-alpha/2)-quantile of N(0, sigma) when bequal, the
// alpha-quantile otherwise.
func (KnownSigma) Threshold(bequal bool, alpha, sigma float64) float32 {
	dist := distuv.Normal{Mu: 0, Sigma: sigma}
	if bequal {
		return float32(dist.Quantile(1 - alpha*0.5))
	}
	return float32(dist.Quantile(alpha))
}

// ThresholdCounts is Threshold scaled by the two sample counts.
func (k KnownSigma) ThresholdCounts(bequal bool, alpha, sigma float64, c1, c2 int) float32 {
	return k.Threshold(bequal, alpha, sigma) / float32(countNorm(c1, c2))
}

// IsEqual reports whether the two samples are compatible at level alpha.
func (k KnownSigma) IsEqual(alpha, sigma float64, left, right Input) bool {
	return k.Value(true, left, right) < k.Threshold(true, alpha, sigma)
}

// Homoscedastic is the pooled-variance two-sample t-test.
type Homoscedastic struct{}

// Value returns the degrees of freedom and the t statistic.
func (Homoscedastic) Value(left, right Input) (df, t float64) {
	oneS := func(x Input) float64 {
		return float64(x.Sigma) * float64(x.Sigma) * float64(x.Count-1)
	}
	df = float64(left.Count + right.Count - 2)
	sigma := math.Sqrt((oneS(left) + oneS(right)) / df)
	t = float64(left.Mean-right.Mean) / sigma * countNorm(left.Count, right.Count)
	return df, t
}

// Threshold maps a confidence level to the p-level past which two samples
// are considered distinct.
func (Homoscedastic) Threshold(confidence float32) float32 {
	return 1 - confidence*0.5
}

// ToThresholdValue returns the distance-from-equality p-level in [0.5, 1].
// Samples with fewer than two observations return 1 (cannot test).
func (h Homoscedastic) ToThresholdValue(left, right Input) float32 {
	if left.Count < 2 || right.Count < 2 {
		return 1
	}
	val := level(h.Value(left, right))
	if val < 0.5 {
		return float32(1 - val)
	}
	return float32(val)
}

// IsEqual reports compatibility at level alpha.
func (h Homoscedastic) IsEqual(alpha float32, left, right Input) bool {
	df, t := h.Value(left, right)
	return isEqual(alpha, df, t)
}

// IsLower reports whether left is significantly below right at level alpha.
func (h Homoscedastic) IsLower(alpha float32, left, right Input) bool {
	df, t := h.Value(left, right)
	return isLower(alpha, df, t)
}

// IsGreater is the complement of IsLower.
func (h Homoscedastic) IsGreater(alpha float32, left, right Input) bool {
	return !h.IsLower(alpha, left, right)
}

// Heteroscedastic is the Welch two-sample t-test.
type Heteroscedastic struct{}

// Value returns the Welch-Satterthwaite degrees of freedom and the t
// statistic.
func (Heteroscedastic) Value(left, right Input) (df, t float64) {
	sigOverN := func(x Input) float64 {
		return float64(x.Sigma) * float64(x.Sigma) / float64(x.Count)
	}
	div := func(a float64, b Input) float64 { return a * a / float64(b.Count-1) }

	sonL := sigOverN(left)
	sonR := sigOverN(right)
	sum := sonL + sonR
	df = sum * sum / (div(sonL, left) + div(sonR, right))
	t = float64(left.Mean-right.Mean) / math.Sqrt(sum)
	return df, t
}

// Threshold maps a confidence level to the p-level past which two samples
// are considered distinct.
func (Heteroscedastic) Threshold(confidence float32) float32 {
	return 1 - confidence*0.5
}

// ToThresholdValue returns the distance-from-equality p-level in [0.5, 1].
// Single-observation samples return 1 (cannot test).
func (h Heteroscedastic) ToThresholdValue(left, right Input) float32 {
	if left.Count <= 1 || right.Count <= 1 {
		return 1
	}
	val := level(h.Value(left, right))
	if val < 0.5 {
		return float32(1 - val)
	}
	return float32(val)
}

// IsEqual reports compatibility at level alpha.
func (h Heteroscedastic) IsEqual(alpha float32, left, right Input) bool {
	df, t := h.Value(left, right)
	return isEqual(alpha, df, t)
}

// IsLower reports whether left is significantly below right at level alpha.
func (h Heteroscedastic) IsLower(alpha float32, left, right Input) bool {
	df, t := h.Value(left, right)
	return isLower(alpha, df, t)
}

// IsGreater is the complement of IsLower.
func (h Heteroscedastic) IsGreater(alpha float32, left, right Input) bool {
	return !h.IsLower(alpha, left, right)
}
