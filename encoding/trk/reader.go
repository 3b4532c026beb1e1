// Copyright 2026 Picobio, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package trk

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/klauspost/compress/gzip"
)

// ReadOptions restricts a load.  The zero value loads every bead and every
// frame and drops the per-frame profiles.
type ReadOptions struct {
	// FirstBead/NBeads restrict the bead range; NBeads <= 0 means all.
	FirstBead int
	NBeads    int
	// FirstFrame/LastFrame restrict the frame range; LastFrame <= 0 means
	// to the end.
	FirstFrame int
	LastFrame  int
	// KeepProfiles retains the radial and orthoradial profiles, which
	// multiply the memory footprint.
	KeepProfiles bool
}

// Open reads the track file at path.  Gzip-compressed tracks are detected
// by their magic and decompressed transparently.
func Open(ctx context.Context, path string, opts ReadOptions) (*Record, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "trk.Open", path)
	}
	defer in.Close(ctx) // nolint: errcheck
	raw, err := io.ReadAll(in.Reader(ctx))
	if err != nil {
		return nil, errors.E(err, "trk.Open: read", path)
	}
	if len(raw) >= 2 && raw[0] == 0x1f && raw[1] == 0x8b {
		gz, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, errors.E(err, "trk.Open: gzip", path)
		}
		if raw, err = io.ReadAll(gz); err != nil {
			return nil, errors.E(err, "trk.Open: gunzip", path)
		}
	}
	rec, err := Decode(raw, opts)
	if err != nil {
		return nil, errors.E(err, path)
	}
	if cor := corOverrides(ctx, path); cor != nil {
		rec.Config.override(cor)
		rec.applyConfig()
	}
	return rec, nil
}

// OpenFile is Open with a background context.
func OpenFile(path string, opts ReadOptions) (*Record, error) {
	return Open(vcontext.Background(), path, opts)
}

// decoder walks a raw track image.
type decoder struct {
	raw []byte
	pos int
}

var errTruncated = errors.E("trk: truncated file")

func (d *decoder) remaining() int { return len(d.raw) - d.pos }

func (d *decoder) skip(n int) error {
	if d.remaining() < n {
		return errTruncated
	}
	d.pos += n
	return nil
}

func (d *decoder) bytes(n int) ([]byte, error) {
	if d.remaining() < n {
		return nil, errTruncated
	}
	out := d.raw[d.pos : d.pos+n]
	d.pos += n
	return out, nil
}

func (d *decoder) i32() (int32, error) {
	b, err := d.bytes(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

func (d *decoder) u32() (uint32, error) {
	b, err := d.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (d *decoder) i64() (int64, error) {
	b, err := d.bytes(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

func (d *decoder) f32() (float32, error) {
	b, err := d.bytes(4)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
}

// Decode parses a raw track image held in memory.
func Decode(raw []byte, opts ReadOptions) (*Record, error) {
	d := &decoder{raw: raw}
	rec := &Record{}
	if err := rec.decodeHeader(d, opts); err != nil {
		return nil, err
	}
	if err := rec.decodeFrames(d, opts); err != nil {
		return nil, err
	}
	rec.decodeConfig(raw)
	rec.applyConfig()
	rec.repairNaNs()
	for _, b := range rec.Beads {
		b.lost = true
		for _, z := range b.Z {
			f := float64(z)
			if !math.IsNaN(f) && !math.IsInf(f, 0) {
				b.lost = false
				break
			}
		}
	}
	return rec, nil
}

func (rec *Record) decodeHeader(d *decoder, opts ReadOptions) error {
	h := &rec.Header
	var err error
	if h.Magic, err = d.i32(); err != nil {
		return err
	}
	if uint32(h.Magic)&magicMask != magicValue {
		return errors.E(fmt.Sprintf("trk: bad magic 0x%08x", uint32(h.Magic)))
	}
	if h.HeaderSize, err = d.i32(); err != nil {
		return err
	}
	if h.RecordSize, err = d.i32(); err != nil {
		return err
	}
	if h.ConfigPos, err = d.i32(); err != nil {
		return err
	}
	if h.NBeads, err = d.i32(); err != nil {
		return err
	}
	if h.NBeads < 0 || h.RecordSize <= 0 || int(h.HeaderSize) > len(d.raw) {
		return errors.E("trk: corrupt header")
	}

	firstBead := opts.FirstBead
	if firstBead < 0 {
		firstBead = 0
	}
	nBeads := int(h.NBeads) - firstBead
	if opts.NBeads > 0 && opts.NBeads < nBeads {
		nBeads = opts.NBeads
	}
	if nBeads < 0 {
		nBeads = 0
	}

	rec.Beads = make([]*Bead, 0, nBeads)
	for i := 0; i < int(h.NBeads); i++ {
		iprof, err := d.i32()
		if err != nil {
			return err
		}
		calStart, err := d.i32()
		if err != nil {
			return err
		}
		calSize, err := d.i32()
		if err != nil {
			return err
		}
		meta := BeadMeta{
			ProfileRadius: int(iprof & 0xFF),
			OrthoSize:     int((iprof >> 8) & 0xFF),
			AngleTracked:  (iprof>>16)&0xFF != 0,
			XYType:        int((iprof >> 24) & 0xFF),
			CalibStart:    calStart,
			CalibSize:     calSize,
		}
		if meta.XYType&(XYBeadProfileRecorded|XYBeadDiffProfRecorded) != 0 {
			meta.CrossArm = crossArmLength(d.raw, calStart)
		}
		if i >= firstBead && i < firstBead+nBeads {
			rec.Beads = append(rec.Beads, &Bead{Meta: meta})
		}
	}

	if h.PageSize, err = d.i32(); err != nil {
		return err
	}
	if h.NRecord, err = d.i32(); err != nil {
		return err
	}
	if h.DataType, err = d.i32(); err != nil {
		return err
	}
	if h.NRec, err = d.i32(); err != nil {
		return err
	}
	if h.Time, err = d.u32(); err != nil {
		return err
	}
	if h.StartTicks, err = d.i64(); err != nil {
		return err
	}
	name, err := d.bytes(512)
	if err != nil {
		return err
	}
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	h.Name = string(name)
	for i := range h.IParam {
		if h.IParam[i], err = d.i32(); err != nil {
			return err
		}
	}
	for i := range h.FParam {
		if h.FParam[i], err = d.f32(); err != nil {
			return err
		}
	}
	if h.Ax, err = d.f32(); err != nil {
		return err
	}
	if h.Dx, err = d.f32(); err != nil {
		return err
	}
	if h.Ay, err = d.f32(); err != nil {
		return err
	}
	if h.Dy, err = d.f32(); err != nil {
		return err
	}
	if h.ImNx, err = d.i32(); err != nil {
		return err
	}
	if h.ImNy, err = d.i32(); err != nil {
		return err
	}
	if h.ImDataType, err = d.i32(); err != nil {
		return err
	}
	h.EvaDecay = h.FParam[fparamEvaDecay]
	h.EvaOffset = h.FParam[fparamEvaOffset]
	h.EvaMode = h.IParam[iparamEvaMode]
	h.SDIMode = h.IParam[iparamSDIMode]
	return nil
}

// crossArmLength digs the cross profile length out of the calibration-image
// text header ("-nxb <n>" in the source description of equally spaced
// profiles).  Some tracks carry the header shifted by 1 KiB.
func crossArmLength(raw []byte, calStart int32) int {
	for _, off := range []int32{calStart, calStart + 1024} {
		if off < 0 || int(off)+1024 > len(raw) {
			continue
		}
		buf := raw[off : off+1024]
		if !bytes.HasPrefix(buf, []byte("% image data")) {
			continue
		}
		src := bytes.Index(buf, []byte(`-src "equally spaced`))
		if src < 0 {
			return 0
		}
		rest := string(buf[src:])
		i := strings.Index(rest, "nxb ")
		if i < 0 {
			return 0
		}
		fields := strings.Fields(rest[i+4:])
		if len(fields) == 0 {
			return 0
		}
		n, err := strconv.Atoi(strings.Trim(fields[0], `"`))
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

// beadFieldsSize returns the per-frame byte size of one bead block,
// excluding any embedded movie tile.
func beadFieldsSize(m BeadMeta) int {
	size := 3 * 4 // x, y, z
	if m.AngleTracked {
		size += 4
	}
	size += 1 + 4 // lock counter, profile index
	size += m.ProfileRadius * 4
	size += m.OrthoSize * 4
	if m.XYType&XYZErrorRecorded != 0 {
		size += 3 * 4
	}
	if m.XYType&XYBeadProfileRecorded != 0 {
		size += 2 * m.CrossArm * 4
	}
	if m.XYType&XYBeadDiffProfRecorded != 0 {
		size += 2 * m.CrossArm * 4
	}
	return size
}

func (rec *Record) decodeFrames(d *decoder, opts ReadOptions) error {
	h := rec.Header
	d.pos = int(h.HeaderSize)

	nFrames := d.remaining() / int(h.RecordSize)
	if int(h.ConfigPos) > int(h.HeaderSize) {
		// The configuration block sits behind the frame stream; do not
		// decode it as frames.
		nFrames = (int(h.ConfigPos) - int(h.HeaderSize)) / int(h.RecordSize)
	}
	first := opts.FirstFrame
	if first < 0 {
		first = 0
	}
	last := nFrames
	if opts.LastFrame > 0 && opts.LastFrame < last {
		last = opts.LastFrame
	}
	n := last - first
	if n <= 0 {
		n = 0
	}

	rec.Imi = make([]int32, 0, n)
	rec.Imit = make([]int32, 0, n)
	rec.Imt = make([]int64, 0, n)
	rec.Imdt = make([]uint32, 0, n)
	rec.Zmag = make([]float32, 0, n)
	rec.RotMag = make([]float32, 0, n)
	rec.ObjPos = make([]float32, 0, n)
	rec.StatusFlag = make([]int32, 0, n)
	rec.ZmagCmd = make([]float32, 0, n)
	rec.RotMagCmd = make([]float32, 0, n)
	rec.ObjPosCmd = make([]float32, 0, n)
	rec.ActionStatus = make([]int32, 0, n)
	rec.Message = make([]byte, 0, n)

	// firstBead is the index of the first decoded bead in the file order.
	firstBead := opts.FirstBead
	if firstBead < 0 {
		firstBead = 0
	}

	// allMeta lists every bead in file order so skipped beads can be
	// jumped over without decoding.
	allMeta, err := rec.allBeadMeta(d.raw)
	if err != nil {
		return err
	}

	done := 0
	for frame := 0; frame < last; frame++ {
		skip := frame < first
		if err := rec.decodeOneFrame(d, allMeta, firstBead, skip, opts.KeepProfiles); err != nil {
			// A torn final record is dropped, matching the original
			// reader, which only committed fully decoded frames.
			if err == errTruncated {
				rec.truncateTo(done)
				break
			}
			return err
		}
		if !skip {
			done++
		}
	}
	return nil
}

// allBeadMeta re-reads the per-bead metadata of every bead, decoded or
// not, so the frame decoder knows the byte layout of skipped beads.
func (rec *Record) allBeadMeta(raw []byte) ([]BeadMeta, error) {
	d := &decoder{raw: raw, pos: 5 * 4}
	out := make([]BeadMeta, rec.Header.NBeads)
	for i := range out {
		iprof, err := d.i32()
		if err != nil {
			return nil, err
		}
		calStart, err := d.i32()
		if err != nil {
			return nil, err
		}
		if _, err = d.i32(); err != nil {
			return nil, err
		}
		out[i] = BeadMeta{
			ProfileRadius: int(iprof & 0xFF),
			OrthoSize:     int((iprof >> 8) & 0xFF),
			AngleTracked:  (iprof>>16)&0xFF != 0,
			XYType:        int((iprof >> 24) & 0xFF),
		}
		if out[i].XYType&(XYBeadProfileRecorded|XYBeadDiffProfRecorded) != 0 {
			out[i].CrossArm = crossArmLength(raw, calStart)
		}
	}
	return out, nil
}

func (rec *Record) decodeOneFrame(d *decoder, allMeta []BeadMeta, firstBead int, skip, keepProfiles bool) error {
	imi, err := d.i32()
	if err != nil {
		return err
	}
	imit, err := d.i32()
	if err != nil {
		return err
	}
	imt, err := d.i64()
	if err != nil {
		return err
	}
	imdt, err := d.u32()
	if err != nil {
		return err
	}
	zmag, err := d.f32()
	if err != nil {
		return err
	}
	rot, err := d.f32()
	if err != nil {
		return err
	}
	obj, err := d.f32()
	if err != nil {
		return err
	}
	status, err := d.i32()
	if err != nil {
		return err
	}
	zmagCmd, err := d.f32()
	if err != nil {
		return err
	}
	rotCmd, err := d.f32()
	if err != nil {
		return err
	}
	objCmd, err := d.f32()
	if err != nil {
		return err
	}
	action, err := d.i32()
	if err != nil {
		return err
	}
	msg, err := d.bytes(1)
	if err != nil {
		return err
	}
	message := msg[0]

	if !skip {
		rec.Imi = append(rec.Imi, imi)
		rec.Imit = append(rec.Imit, imit)
		rec.Imt = append(rec.Imt, imt)
		rec.Imdt = append(rec.Imdt, imdt)
		rec.Zmag = append(rec.Zmag, zmag)
		rec.RotMag = append(rec.RotMag, rot)
		rec.ObjPos = append(rec.ObjPos, obj)
		rec.StatusFlag = append(rec.StatusFlag, status)
		rec.ZmagCmd = append(rec.ZmagCmd, zmagCmd)
		rec.RotMagCmd = append(rec.RotMagCmd, rotCmd)
		rec.ObjPosCmd = append(rec.ObjPosCmd, objCmd)
		rec.ActionStatus = append(rec.ActionStatus, action)
		rec.Message = append(rec.Message, message)
	}

	for i, meta := range allMeta {
		kept := i >= firstBead && i < firstBead+len(rec.Beads)
		if skip || !kept {
			if err := d.skip(beadFieldsSize(meta)); err != nil {
				return err
			}
			continue
		}
		if err := rec.Beads[i-firstBead].decodeFrame(d, keepProfiles); err != nil {
			return err
		}
	}

	// Embedded movie tiles trail the bead blocks; their geometry is packed
	// into two ints per bead.
	for _, meta := range allMeta {
		if meta.XYType&RecordBeadImage == 0 {
			continue
		}
		p1, err := d.i32()
		if err != nil {
			return err
		}
		p2, err := d.i32()
		if err != nil {
			return err
		}
		w := int((p1 >> 16) & 0x0FFF)
		hgt := int((p2 >> 16) & 0x0FFF)
		pix := w * hgt
		if rec.Header.ImDataType == IsUintImage {
			pix *= 2
		}
		if err := d.skip(pix); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bead) decodeFrame(d *decoder, keepProfiles bool) error {
	x, err := d.f32()
	if err != nil {
		return err
	}
	y, err := d.f32()
	if err != nil {
		return err
	}
	z, err := d.f32()
	if err != nil {
		return err
	}
	theta := float32(0)
	if b.Meta.AngleTracked {
		if theta, err = d.f32(); err != nil {
			return err
		}
	}
	nl, err := d.bytes(1)
	if err != nil {
		return err
	}
	profIdx, err := d.i32()
	if err != nil {
		return err
	}

	var radProf, orthoProf []float32
	if n := b.Meta.ProfileRadius; n > 0 {
		if keepProfiles {
			radProf = make([]float32, n)
			for i := range radProf {
				if radProf[i], err = d.f32(); err != nil {
					return err
				}
			}
		} else if err = d.skip(n * 4); err != nil {
			return err
		}
	}
	if n := b.Meta.OrthoSize; n > 0 {
		if keepProfiles {
			orthoProf = make([]float32, n)
			for i := range orthoProf {
				if orthoProf[i], err = d.f32(); err != nil {
					return err
				}
			}
		} else if err = d.skip(n * 4); err != nil {
			return err
		}
	}

	var xer, yer, zer float32
	hasErr := b.Meta.XYType&XYZErrorRecorded != 0
	if hasErr {
		if xer, err = d.f32(); err != nil {
			return err
		}
		if yer, err = d.f32(); err != nil {
			return err
		}
		if zer, err = d.f32(); err != nil {
			return err
		}
	}
	if b.Meta.XYType&XYBeadProfileRecorded != 0 {
		if err = d.skip(2 * b.Meta.CrossArm * 4); err != nil {
			return err
		}
	}
	if b.Meta.XYType&XYBeadDiffProfRecorded != 0 {
		if err = d.skip(2 * b.Meta.CrossArm * 4); err != nil {
			return err
		}
	}

	b.X = append(b.X, x)
	b.Y = append(b.Y, y)
	b.Z = append(b.Z, z)
	if b.Meta.AngleTracked {
		b.Theta = append(b.Theta, theta)
	}
	b.NL = append(b.NL, nl[0])
	b.ProfIdx = append(b.ProfIdx, profIdx)
	if hasErr {
		b.XEr = append(b.XEr, xer)
		b.YEr = append(b.YEr, yer)
		b.ZEr = append(b.ZEr, zer)
	}
	if keepProfiles {
		if b.Meta.ProfileRadius > 0 {
			b.RadProf = append(b.RadProf, radProf)
		}
		if b.Meta.OrthoSize > 0 {
			b.OrthoProf = append(b.OrthoProf, orthoProf)
		}
	}
	return nil
}

// truncateTo drops any channel entries past n, so a torn final frame never
// leaves the columns ragged.
func (rec *Record) truncateTo(n int) {
	clip := func(l int) int {
		if l < n {
			return l
		}
		return n
	}
	rec.Imi = rec.Imi[:clip(len(rec.Imi))]
	rec.Imit = rec.Imit[:clip(len(rec.Imit))]
	rec.Imt = rec.Imt[:clip(len(rec.Imt))]
	rec.Imdt = rec.Imdt[:clip(len(rec.Imdt))]
	rec.Zmag = rec.Zmag[:clip(len(rec.Zmag))]
	rec.RotMag = rec.RotMag[:clip(len(rec.RotMag))]
	rec.ObjPos = rec.ObjPos[:clip(len(rec.ObjPos))]
	rec.StatusFlag = rec.StatusFlag[:clip(len(rec.StatusFlag))]
	rec.ZmagCmd = rec.ZmagCmd[:clip(len(rec.ZmagCmd))]
	rec.RotMagCmd = rec.RotMagCmd[:clip(len(rec.RotMagCmd))]
	rec.ObjPosCmd = rec.ObjPosCmd[:clip(len(rec.ObjPosCmd))]
	rec.ActionStatus = rec.ActionStatus[:clip(len(rec.ActionStatus))]
	rec.Message = rec.Message[:clip(len(rec.Message))]
	for _, b := range rec.Beads {
		m := clip(len(b.Z))
		b.X, b.Y, b.Z = b.X[:m], b.Y[:m], b.Z[:m]
		if b.Theta != nil {
			b.Theta = b.Theta[:clip(len(b.Theta))]
		}
		b.NL = b.NL[:clip(len(b.NL))]
		b.ProfIdx = b.ProfIdx[:clip(len(b.ProfIdx))]
		if b.XEr != nil {
			b.XEr = b.XEr[:clip(len(b.XEr))]
			b.YEr = b.YEr[:clip(len(b.YEr))]
			b.ZEr = b.ZEr[:clip(len(b.ZEr))]
		}
	}
}

// CalibImage returns the raw calibration-image bytes of one decoded bead.
func (rec *Record) CalibImage(raw []byte, bead int) ([]byte, error) {
	if bead < 0 || bead >= len(rec.Beads) {
		return nil, errors.E(fmt.Sprintf("trk: no bead %d", bead))
	}
	m := rec.Beads[bead].Meta
	if m.CalibStart < 0 || m.CalibSize <= 0 ||
		int(m.CalibStart)+int(m.CalibSize) > len(raw) {
		log.Debug.Printf("trk: bead %d has no calibration image", bead)
		return nil, nil
	}
	return raw[m.CalibStart : m.CalibStart+int32(m.CalibSize)], nil
}
