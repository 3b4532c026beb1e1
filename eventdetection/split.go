// Copyright 2026 Picobio, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package eventdetection

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/picobio/tweezer/interval"
	"github.com/picobio/tweezer/stats"
)

// scanRuns walks [i1, sz) partitioned into maximal runs of good and bad
// indices, invoking the callbacks with half-open run bounds.
func scanRuns(i1, sz int, isgood func(int) bool, good, bad func(first, last int)) {
	for i1 < sz && !isgood(i1) {
		i1++
	}
	if i1 > 0 {
		bad(0, i1)
	}
	for i1 < sz {
		i2 := i1 + 1
		for i2 < sz && isgood(i2) {
			i2++
		}
		good(i1, i2)
		i1 = i2
		for i1 < sz && !isgood(i1) {
			i1++
		}
		bad(i2, i1)
	}
}

// compressed holds a trace with its NaN samples removed, plus the number of
// skipped NaNs before each kept index so intervals can be translated back.
type compressed struct {
	good []float32
	nans []int // len(good)+1; nans[i] = NaNs before compressed index i
}

func removeNaNs(data []float32) compressed {
	var c compressed
	c.good = make([]float32, 0, len(data))
	c.nans = make([]int, 0, len(data)+1)
	cnt := 0
	scanRuns(0, len(data),
		func(i int) bool { return stats.IsFinite(data[i]) },
		func(i1, i2 int) {
			for i := i1; i < i2; i++ {
				c.good = append(c.good, data[i])
				c.nans = append(c.nans, cnt)
			}
		},
		func(i1, i2 int) { cnt += i2 - i1 })
	c.nans = append(c.nans, cnt)
	return c
}

// toIntervals extracts maximal runs grading below 1.0 and translates them
// back to uncompressed frame indices.
func (c compressed) toIntervals(grade []float32) []interval.Span {
	var out []interval.Span
	scanRuns(0, len(grade),
		func(i int) bool { return grade[i] < 1 },
		func(i1, i2 int) {
			out = append(out, interval.Span{
				First: i1 + c.nans[i1],
				Last:  i2 + c.nans[i2],
			})
		},
		func(int, int) {})
	return out
}

// IntervalExtension grows each detected interval by up to Window frames on
// each side, admitting only samples within the interval's value range
// stretched, where narrower, to its mean ± Ratio*precision, and erodes
// edges whose samples fall outside that range.  Shallow crossings between extended neighbours are split at
// the midpoint; an extension swallowing the next interval's origin merges
// the two.
type IntervalExtension struct {
	Window int
	Ratio  float64
}

// NewIntervalExtension returns the production defaults.
func NewIntervalExtension() IntervalExtension { return IntervalExtension{Window: 3, Ratio: 1} }

// Compute reshapes intervals against data at the given precision.
func (x IntervalExtension) Compute(precision float32, data []float32, intervals []interval.Span) []interval.Span {
	if x.Window == 0 || len(intervals) == 0 {
		return intervals
	}
	sz := len(data)
	eps := float64(precision) * x.Ratio

	newi := make([]interval.Span, len(intervals))
	copy(newi, intervals)
	for k := range newi {
		i := &newi[k]
		var acc stats.Running
		rmin, rmax := math.Inf(1), math.Inf(-1)
		for j := i.First; j < i.Last; j++ {
			if stats.IsFinite(data[j]) {
				v := float64(data[j])
				acc.Add(v)
				if v < rmin {
					rmin = v
				}
				if v > rmax {
					rmax = v
				}
			}
		}
		mean := acc.Mean()
		if mean-eps < rmin {
			rmin = mean - eps
		}
		if mean+eps > rmax {
			rmax = mean + eps
		}
		test := func(j int) bool {
			return stats.IsFinite(data[j]) &&
				rmin <= float64(data[j]) && float64(data[j]) <= rmax
		}

		// Erode then extend the left edge.
		for j, e := i.First, min(i.Last, i.First+x.Window); j < e; j++ {
			if test(j) {
				i.First = j
				break
			}
		}
		for j := max(0, i.First-x.Window); j < i.First; j++ {
			if test(j) {
				i.First = j
				break
			}
		}
		// Erode then extend the right edge.
		for j, e := i.Last-1, max(i.First, i.Last-x.Window); j >= e; j-- {
			if test(j) {
				i.Last = j + 1
				break
			}
		}
		for j, e := min(i.Last+x.Window, sz)-1, i.Last; j >= e; j-- {
			if test(j) {
				i.Last = j + 1
				break
			}
		}
	}

	out := make([]interval.Span, 0, len(newi))
	for k := 0; k < len(newi); k++ {
		cur := newi[k]
		if k+1 < len(newi) {
			next := &newi[k+1]
			if cur.Last > intervals[k+1].First {
				// The extension ran past the next interval's origin:
				// merge the two.
				next.First = cur.First
				if cur.Last > next.Last {
					next.Last = cur.Last
				}
				continue
			}
			if next.First < cur.Last {
				mid := (cur.Last + next.First) / 2
				cur.Last = mid
				next.First = mid
			}
		}
		if len(out) > 0 && cur.First < out[len(out)-1].Last {
			cur.First = out[len(out)-1].Last
		}
		if !cur.Empty() {
			out = append(out, cur)
		}
	}
	return out
}

// boxcarSum returns the length len(data)+wlen-1 truncated-boxcar average
// used by the derivative grade: interior entries average a full window,
// edge entries renormalize the partial window they cover.
func boxcarSum(wlen int, data []float32) []float64 {
	sz := len(data)
	tmp := make([]float64, sz+wlen-1)
	for i := 0; i < wlen; i++ {
		for k := 0; k < sz; k++ {
			tmp[i+k] += float64(data[k])
		}
	}
	w := float64(wlen)
	for i := range tmp {
		tmp[i] /= w
	}
	for i := 0; i < wlen-1; i++ {
		tmp[i] *= w / float64(i+1)
		tmp[sz+wlen-2-i] *= w / float64(i+1)
	}
	return tmp
}

// SplitDetector turns a trace and a precision into candidate event
// intervals.
type SplitDetector interface {
	Compute(precision float32, data []float32) []interval.Span
}

// DerivateSplitDetector grades each frame by the absolute boxcar moving
// difference: high values mark the jumps between hybridisation plateaus.
// The event threshold is the Percentile of the grade plus Distance times
// the precision.
type DerivateSplitDetector struct {
	Extend      IntervalExtension
	GradeWindow int
	Percentile  float64
	Distance    float64
}

// NewDerivateSplitDetector returns the production defaults.
func NewDerivateSplitDetector() DerivateSplitDetector {
	return DerivateSplitDetector{
		Extend:      NewIntervalExtension(),
		GradeWindow: 3,
		Percentile:  75,
		Distance:    2,
	}
}

func (d DerivateSplitDetector) threshold(precision float32, grade []float32) float64 {
	perc := stats.Percentile(grade, d.Percentile)
	return float64(perc) + d.Distance*float64(precision)
}

// grade replaces data with the normalized absolute moving difference.
func (d DerivateSplitDetector) grade(precision float32, data []float32) {
	wlen := d.GradeWindow
	sz := len(data)
	if sz == 0 {
		return
	}
	if wlen > sz {
		wlen = sz
	}
	tmp := boxcarSum(wlen, data)
	tsz := len(tmp)
	w := float64(wlen)

	g := make([]float64, sz)
	for i := wlen; i < sz; i++ {
		g[i] = tmp[i-1]
	}
	g[0] = tmp[0]
	if wlen > 1 {
		if sz > 1 {
			g[1] = tmp[0]
		}
		for i := 2; i < wlen; i++ {
			g[i] = (tmp[0]*float64(wlen-i) + tmp[i-1]*float64(i)) / w
		}
	}
	for i := 0; i < sz-wlen; i++ {
		g[i] -= tmp[i+wlen-1]
	}
	for i := 0; i < wlen && i < sz; i++ {
		g[sz-1-i] -= (tmp[tsz-1]*float64(wlen-i-1) + tmp[tsz-1-i]*float64(i+1)) / w
	}

	for i := range g {
		data[i] = float32(math.Abs(g[i]))
	}
	thr := d.threshold(precision, data)
	for i := range data {
		data[i] = float32(float64(data[i]) / thr)
	}
}

// Compute returns the detected event intervals for data.  precision <= 0
// falls back to the high-frequency sigma of the trace.
func (d DerivateSplitDetector) Compute(precision float32, data []float32) []interval.Span {
	return computeSplit(d.grade, d.Extend, precision, data)
}

// ChiSquareSplitDetector grades each frame by the windowed RMS deviation
// from the moving mean, against a chi-square quantile of the window's
// degrees of freedom.  Endpoints are padded by repetition so every frame
// receives a full window.
type ChiSquareSplitDetector struct {
	Extend      IntervalExtension
	GradeWindow int
	Confidence  float64
}

// NewChiSquareSplitDetector returns the production defaults.
func NewChiSquareSplitDetector() ChiSquareSplitDetector {
	return ChiSquareSplitDetector{
		Extend:      NewIntervalExtension(),
		GradeWindow: 5,
		Confidence:  0.1,
	}
}

func (d ChiSquareSplitDetector) threshold(precision float32) float64 {
	dist := distuv.ChiSquared{K: float64(d.GradeWindow - 1)}
	x := dist.Quantile(1 - d.Confidence)
	return float64(precision) * x / float64(d.GradeWindow)
}

func (d ChiSquareSplitDetector) grade(precision float32, data []float32) {
	chi2Grade(d.GradeWindow, d.threshold(precision), data)
}

// chi2Grade replaces data with the windowed RMS grade normalized by rho.
func chi2Grade(wlen int, rho float64, data []float32) {
	sz := len(data)
	if sz == 0 || wlen < 1 {
		return
	}
	hlen := wlen / 2
	cpy := make([]float64, sz+2*hlen)
	for i := 0; i < hlen; i++ {
		cpy[i] = float64(data[0])
		cpy[sz+hlen+i] = float64(data[sz-1])
	}
	for i, v := range data {
		cpy[hlen+i] = float64(v)
	}

	mean := make([]float64, sz)
	for j := 0; j < sz; j++ {
		s := 0.0
		for i := 0; i < wlen; i++ {
			s += cpy[j+i]
		}
		mean[j] = -s / float64(wlen)
	}
	norm := 1 / (rho * math.Sqrt(float64(wlen)))
	for j := 0; j < sz; j++ {
		s := 0.0
		for i := 0; i < wlen; i++ {
			d := mean[j] + cpy[j+i]
			s += d * d
		}
		data[j] = float32(math.Sqrt(s) * norm)
	}
}

// Compute returns the detected event intervals for data.  precision <= 0
// falls back to the high-frequency sigma of the trace.
func (d ChiSquareSplitDetector) Compute(precision float32, data []float32) []interval.Span {
	return computeSplit(d.grade, d.Extend, precision, data)
}

// MultiGradeSplitDetector grades with the derivative detector over the
// whole trace, then re-grades wide enough event candidates with the
// chi-square detector, overwriting the derivative grade in their interior.
// The derivative grade finds the jumps; the chi-square grade cleans up
// drifting plateaus the derivative cannot see.
type MultiGradeSplitDetector struct {
	Extend         IntervalExtension
	Derivate       DerivateSplitDetector
	ChiSquare      ChiSquareSplitDetector
	MinPatchWindow int
}

// NewMultiGradeSplitDetector returns the production defaults.
func NewMultiGradeSplitDetector() MultiGradeSplitDetector {
	return MultiGradeSplitDetector{
		Extend:         NewIntervalExtension(),
		Derivate:       NewDerivateSplitDetector(),
		ChiSquare:      NewChiSquareSplitDetector(),
		MinPatchWindow: 5,
	}
}

func (d MultiGradeSplitDetector) grade(precision float32, grade []float32) {
	data := append([]float32(nil), grade...)
	d.Derivate.grade(precision, grade)

	sz := len(grade)
	hmin := d.MinPatchWindow / 2
	wmin := hmin*2 + 1
	wlen := d.ChiSquare.GradeWindow
	hlen := wlen / 2
	rho := d.ChiSquare.threshold(precision)

	patch := func(found bool, first, last int) {
		if !found {
			return
		}
		if last > sz {
			last = sz
		}
		tmp := append([]float32(nil), data[first:last]...)
		chi2Grade(wlen, rho, tmp)
		scanRuns(first+hlen, last-hlen,
			func(i int) bool { return grade[i] >= 1 },
			func(i1, i2 int) {
				if i2-i1 >= wmin {
					for k := i1 + hmin; k < i2-hmin; k++ {
						grade[k] = tmp[k-first]
					}
				}
			},
			func(int, int) {})
	}

	found := false
	first, last := 0, 0
	scanRuns(0, sz,
		func(i int) bool { return grade[i] >= 1 },
		func(i1, i2 int) {
			cur := i2-i1 >= wmin
			if !(found && cur && last+hlen > i1) {
				patch(found, first, last)
				found = cur
				if i1 < hlen {
					first = 0
				} else {
					first = i1 - hlen
				}
			}
			last = i2 + hlen
		},
		func(int, int) {})
	patch(found, first, last)
}

// Compute returns the detected event intervals for data.  precision <= 0
// falls back to the high-frequency sigma of the trace.
func (d MultiGradeSplitDetector) Compute(precision float32, data []float32) []interval.Span {
	return computeSplit(d.grade, d.Extend, precision, data)
}

func computeSplit(grade func(float32, []float32), extend IntervalExtension,
	precision float32, data []float32) []interval.Span {
	c := removeNaNs(data)
	if len(c.good) == 0 {
		return nil
	}
	if precision <= 0 {
		precision = stats.HFSigma(c.good)
	}
	g := append([]float32(nil), c.good...)
	grade(precision, g)
	ints := c.toIntervals(g)
	if len(ints) == 0 {
		return ints
	}
	return extend.Compute(precision, data, ints)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
