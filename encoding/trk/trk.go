// Copyright 2026 Picobio, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package trk

// The magic occupies the upper two bytes of the first int32.
const (
	magicMask  = 0xFFFF0000
	magicValue = 0x55550000
)

// Per-bead tracking type flags, packed into bits 24..31 of the per-bead
// profile word.
const (
	XYTrackingDifferential = 0x01
	XYBeadProfileRecorded  = 0x04
	XYBeadDiffProfRecorded = 0x08
	XYZErrorRecorded       = 0x10
	RecordBeadImage        = 0x20
)

// Video image data types stored in the header.
const (
	IsCharImage = 256
	IsUintImage = 131072
)

// Status and action flags of the per-frame channels.
const (
	// PartsMoving is set in the status flags while motors are in motion.
	PartsMoving = 0x000000F0
	// DataAveraging is set in the action status while the instrument
	// averages a plateau.
	DataAveraging = 0x40000000
)

// Auxiliary parameter slots.
const (
	fparamEvaDecay  = 62
	fparamEvaOffset = 61
	iparamEvaMode   = 62
	iparamSDIMode   = 61
)

// Header is the fixed-size leading region of a track file.
type Header struct {
	Magic      int32
	HeaderSize int32
	RecordSize int32 // bytes per frame record
	ConfigPos  int32 // offset of the embedded configuration text
	NBeads     int32

	PageSize   int32
	NRecord    int32
	DataType   int32
	NRec       int32
	Time       uint32 // creation time
	StartTicks int64  // recording start, performance-counter ticks
	Name       string

	IParam [64]int32
	FParam [64]float32

	// Affine transforms from tracker units to microns: x*Dx + Ax.
	Ax, Dx float32
	Ay, Dy float32

	ImNx, ImNy  int32
	ImDataType  int32
	SDIMode     int32
	EvaMode     int32
	EvaDecay    float32
	EvaOffset   float32
}

// BeadMeta is the per-bead layout and calibration metadata read from the
// header.
type BeadMeta struct {
	ProfileRadius int  // radial profile length
	OrthoSize     int  // orthoradial profile length
	AngleTracked  bool // a tracking angle is recorded per frame
	XYType        int  // tracking-type flag combination
	CrossArm      int  // X/Y cross profile length, from the calibration image

	CalibStart int32 // calibration image byte offset
	CalibSize  int32 // calibration image byte size
}

// Bead holds the decoded per-frame channels of one bead.  Z is raw tracker
// units; the Record accessors apply the immersion and affine corrections.
type Bead struct {
	Meta BeadMeta

	X, Y, Z []float32
	Theta   []float32 // nil unless Meta.AngleTracked
	NL      []byte
	ProfIdx []int32

	XEr, YEr, ZEr []float32 // nil unless XYZErrorRecorded

	// Profiles are retained only when ReadOptions.KeepProfiles is set.
	RadProf   [][]float32
	OrthoProf [][]float32

	lost bool
}

// Lost reports whether the tracker lost this bead for the whole recording:
// no frame carries a finite position.
func (b *Bead) Lost() bool { return b.lost }

// Record is a fully decoded track: the global channels in one contiguous
// slice per field, the per-bead channels, and the embedded configuration.
type Record struct {
	Header Header
	Config Config

	Imi          []int32
	Imit         []int32
	Imt          []int64
	Imdt         []uint32
	Zmag         []float32
	RotMag       []float32
	ObjPos       []float32
	StatusFlag   []int32
	ZmagCmd      []float32
	RotMagCmd    []float32
	ObjPosCmd    []float32
	ActionStatus []int32
	Message      []byte

	Beads []*Bead

	zCor float32
}

// NRecs returns the number of decoded frames.
func (r *Record) NRecs() int { return len(r.Imi) }

// NBeads returns the number of decoded beads.
func (r *Record) NBeads() int { return len(r.Beads) }

// ZCor returns the immersion correction applied to bead Z positions.
func (r *Record) ZCor() float32 { return r.zCor }

// Dimensions returns the x/y affine transform (dx, ax, dy, ay).
func (r *Record) Dimensions() (dx, ax, dy, ay float32) {
	return r.Header.Dx, r.Header.Ax, r.Header.Dy, r.Header.Ay
}

// SDI reports whether the track was recorded in SDI mode.
func (r *Record) SDI() bool { return r.Header.SDIMode != 0 }
