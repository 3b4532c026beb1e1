// Copyright 2026 Picobio, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package trk

import (
	"math"
	"strconv"
	"strings"
)

func isFinite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// repairNaNs replaces non-finite entries of the magnet channels by the
// average of their immediate neighbours, or zero at the ends and inside
// runs of bad values.  Tracker hiccups leave such holes and every consumer
// assumes the magnet channels are dense.
func (rec *Record) repairNaNs() {
	for _, ch := range [][]float32{rec.RotMag, rec.RotMagCmd, rec.Zmag, rec.ZmagCmd} {
		nf := len(ch)
		prevBad := false
		for j := 0; j < nf; j++ {
			if isFinite(ch[j]) {
				prevBad = false
				continue
			}
			bad := prevBad
			prevBad = true
			if j == 0 || j == nf-1 {
				ch[j] = 0
				continue
			}
			if !bad && isFinite(ch[j-1]) && isFinite(ch[j+1]) {
				ch[j] = (ch[j-1] + ch[j+1]) / 2
			} else {
				ch[j] = 0
			}
		}
	}
}

// T returns the frame time axis: image numbers re-based to the first
// frame.
func (rec *Record) T() []int32 {
	out := make([]int32, rec.NRecs())
	if len(out) == 0 {
		return out
	}
	t0 := rec.Imi[0]
	for i, v := range rec.Imi {
		out[i] = v - t0
	}
	return out
}

// Status returns a copy of the per-frame status flags.
func (rec *Record) Status() []int32 {
	return append([]int32(nil), rec.StatusFlag...)
}

// ZmagValues returns a copy of the magnet height channel.
func (rec *Record) ZmagValues() []float32 {
	return append([]float32(nil), rec.Zmag...)
}

// ZmagCmdValues returns a copy of the commanded magnet height channel.
func (rec *Record) ZmagCmdValues() []float32 {
	return append([]float32(nil), rec.ZmagCmd...)
}

// RotValues returns a copy of the magnet rotation channel.
func (rec *Record) RotValues() []float32 {
	return append([]float32(nil), rec.RotMag...)
}

// BeadZ returns bead i's Z trace in microns, immersion-corrected.
func (rec *Record) BeadZ(i int) []float32 {
	b := rec.Beads[i]
	out := make([]float32, len(b.Z))
	for j, v := range b.Z {
		out[j] = v * rec.zCor
	}
	return out
}

// BeadX returns bead i's X trace in microns.
func (rec *Record) BeadX(i int) []float32 {
	b := rec.Beads[i]
	out := make([]float32, len(b.X))
	for j, v := range b.X {
		out[j] = v*rec.Header.Dx + rec.Header.Ax
	}
	return out
}

// BeadY returns bead i's Y trace in microns.
func (rec *Record) BeadY(i int) []float32 {
	b := rec.Beads[i]
	out := make([]float32, len(b.Y))
	for j, v := range b.Y {
		out[j] = v*rec.Header.Dy + rec.Header.Ay
	}
	return out
}

// BeadZErr returns a copy of bead i's Z error estimates, nil when the
// track does not carry them.
func (rec *Record) BeadZErr(i int) []float32 {
	return append([]float32(nil), rec.Beads[i].ZEr...)
}

// point and phase decode the packed action status: the point (cycle) index
// occupies bits 8..23, the phase bits 0..7.
func point(action int32) int { return int((action >> 8) & 0xFFFF) }
func phase(action int32) int { return int(action & 0xFF) }

// CycleRange returns the smallest and largest point index seen.
func (rec *Record) CycleRange() (minPoint, maxPoint int) {
	first := true
	for _, a := range rec.ActionStatus {
		p := point(a)
		if first {
			minPoint, maxPoint = p, p
			first = false
			continue
		}
		if p < minPoint {
			minPoint = p
		}
		if p > maxPoint {
			maxPoint = p
		}
	}
	return minPoint, maxPoint
}

// NCycles returns the number of recorded cycles.
func (rec *Record) NCycles() int {
	if rec.NRecs() == 0 {
		return 0
	}
	minP, maxP := rec.CycleRange()
	return maxP - minP + 1
}

// NPhases returns the largest phase index seen on a positive point, which
// is how the tracker encodes the phase count.
func (rec *Record) NPhases() int {
	pmax := 0
	for _, a := range rec.ActionStatus {
		if point(a) > 0 && phase(a) > pmax {
			pmax = phase(a)
		}
	}
	return pmax
}

// nextPointPhase finds the frame run matching (nPoint, nPhase) starting at
// start, wrapping to a full scan when nothing matches past start.  It
// returns the first frame of the run and the frame just past it.
//
// Caution: looking up phase 0 shifts the lookup to the previous point.
// The original tracker encoded the return phase of cycle c as phase 0 of
// point c+1, and every downstream consumer relies on the shift.
func (rec *Record) nextPointPhase(nPoint, nPhase, start int) (first, last int, found bool) {
	if nPhase == 0 {
		nPoint--
	}
	nf := rec.NRecs()
	scan := func(from int) (int, int, bool) {
		im0 := 0
		prev := false
		for j := from; j < nf; j++ {
			a := rec.ActionStatus[j]
			if point(a) == nPoint && phase(a) == nPhase {
				if !prev {
					im0 = j
					prev = true
				}
			} else if prev {
				return im0, j, true
			}
		}
		if prev {
			return im0, nf, true
		}
		return 0, 0, false
	}
	if start < nf {
		if f, l, ok := scan(start); ok {
			return f, l, true
		}
	}
	return scan(0)
}

// Cycles returns the phase table: one row per cycle, one column per phase,
// entry (c, p) holding the first frame of phase p in cycle c.  Column 0 is
// looked up as phase 0 of the previous point (see nextPointPhase).
func (rec *Record) Cycles() [][]int {
	if rec.NRecs() == 0 {
		return nil
	}
	minP, maxP := rec.CycleRange()
	nPhases := rec.NPhases()
	if nPhases == 0 {
		return nil
	}
	out := make([][]int, 0, maxP-minP+1)
	start, end := 0, 0
	for i := minP; i <= maxP; i++ {
		row := make([]int, nPhases)
		for k := 0; k < nPhases; k++ {
			if first, last, ok := rec.nextPointPhase(i, k, start); ok {
				start, end = first, last
			}
			row[k] = start
			start = end
		}
		out = append(out, row)
	}
	return out
}

// VcapPoint is one plateau average of the magnet height against its
// command.
type VcapPoint struct {
	T       float32 // mid-plateau time, re-based frame units
	Zmag    float32
	ZmagCmd float32
}

// Vcap aggregates the magnet height channels over every averaging plateau:
// spans where the action status has the averaging bit set and no part is
// moving.  A span flushes when the averaging bit drops.
func (rec *Record) Vcap() []VcapPoint {
	var out []VcapPoint
	if rec.NRecs() == 0 {
		return out
	}
	t0 := float32(rec.Imi[0])
	var zavg, vavg float64
	cnt := 0
	first := int32(0)
	for k := 0; k < rec.NRecs(); k++ {
		if rec.ActionStatus[k]&DataAveraging != 0 {
			if rec.StatusFlag[k]&PartsMoving == 0 {
				if cnt == 0 {
					first = rec.Imi[k]
				}
				zavg += float64(rec.Zmag[k])
				vavg += float64(rec.ZmagCmd[k])
				cnt++
			}
		} else if cnt > 0 {
			out = append(out, VcapPoint{
				T:       0.5*float32(rec.Imi[k]+first) - t0,
				Zmag:    float32(zavg / float64(cnt)),
				ZmagCmd: float32(vavg / float64(cnt)),
			})
			cnt = 0
			zavg, vavg = 0, 0
		}
	}
	return out
}

// Temperature is one telemetry reading of a temperature channel.
type Temperature struct {
	T     int32 // re-based frame time of the reading
	Value float32
}

// Temperatures scans the NUL-delimited telemetry stream for T0/T1/T2
// records and returns the three channels.
func (rec *Record) Temperatures() [3][]Temperature {
	var out [3][]Temperature
	if rec.NRecs() == 0 {
		return out
	}
	t0 := rec.Imi[0]
	var msg []byte
	for k := 0; k < rec.NRecs(); k++ {
		c := rec.Message[k]
		if c != 0 {
			if len(msg) < 32 {
				msg = append(msg, c)
			}
			continue
		}
		if len(msg) > 3 && msg[0] == 'T' {
			ind := -1
			switch msg[1] {
			case '0':
				ind = 0
			case '1':
				ind = 1
			case '2':
				ind = 2
			}
			if ind >= 0 {
				if v, err := strconv.ParseFloat(strings.TrimSpace(string(msg[3:])), 32); err == nil {
					out[ind] = append(out[ind], Temperature{
						T:     rec.Imi[k] - t0,
						Value: float32(v),
					})
				}
			}
		}
		msg = msg[:0]
	}
	return out
}

// BeadPos is a bead's mean position in microns.
type BeadPos struct {
	X, Y, Z float32
}

// Pos returns each bead's mean position over the recording.
func (rec *Record) Pos() map[int]BeadPos {
	out := make(map[int]BeadPos, len(rec.Beads))
	avg := func(x []float32) float64 {
		var sum float64
		cnt := 0
		for _, v := range x {
			if isFinite(v) {
				sum += float64(v)
				cnt++
			}
		}
		if cnt == 0 {
			return math.NaN()
		}
		return sum / float64(cnt)
	}
	for i, b := range rec.Beads {
		out[i] = BeadPos{
			X: float32(avg(b.X))*rec.Header.Dx + rec.Header.Ax,
			Y: float32(avg(b.Y))*rec.Header.Dy + rec.Header.Ay,
			Z: float32(avg(b.Z)) * rec.zCor,
		}
	}
	return out
}

// PhaseBounds returns, for every cycle, the first frame of one phase and
// the frame just past it: the two slices feed the per-cycle rules directly.
func (rec *Record) PhaseBounds(cycles [][]int, phaseIdx int) (first, last []int) {
	first = make([]int, 0, len(cycles))
	last = make([]int, 0, len(cycles))
	for c, row := range cycles {
		if phaseIdx >= len(row) {
			continue
		}
		f := row[phaseIdx]
		var l int
		switch {
		case phaseIdx+1 < len(row):
			l = row[phaseIdx+1]
		case c+1 < len(cycles) && len(cycles[c+1]) > 0:
			l = cycles[c+1][0]
		default:
			l = rec.NRecs()
		}
		first = append(first, f)
		last = append(last, l)
	}
	return first, last
}
