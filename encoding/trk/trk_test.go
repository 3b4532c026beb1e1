// Copyright 2026 Picobio, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package trk

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trackBuilder assembles a minimal single-bead track image.
type trackBuilder struct {
	frames []frameSpec
	config string
}

type frameSpec struct {
	imi    int32
	zmag   float32
	z      float32
	action int32
	status int32
	msg    byte
}

const (
	testHeaderSize = 20 + 12 + 16 + 4 + 8 + 512 + 256 + 256 + 16 + 12
	testRecordSize = 53 + 17
)

func (b *trackBuilder) bytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := func(v interface{}) {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, v))
	}

	configPos := int32(testHeaderSize + len(b.frames)*testRecordSize)
	w(int32(0x55550000))    // magic
	w(int32(testHeaderSize))
	w(int32(testRecordSize))
	w(configPos)
	w(int32(1)) // one bead
	w(int32(0)) // iprof: no profiles, no angle, no flags
	w(int32(0)) // calibration start
	w(int32(0)) // calibration size
	w(int32(4096))              // page size
	w(int32(len(b.frames)))     // n_record
	w(int32(0))                 // data type
	w(int32(len(b.frames)))     // n_rec
	w(uint32(1234567890))       // creation time
	w(int64(42))                // record start ticks
	name := make([]byte, 512)
	copy(name, "test_track")
	w(name)
	w([64]int32{})   // iparam
	w([64]float32{}) // fparam
	w(float32(0))    // ax
	w(float32(1))    // dx
	w(float32(0))    // ay
	w(float32(1))    // dy
	w(int32(0))      // im_nx
	w(int32(0))      // im_ny
	w(int32(0))      // im_data_type
	require.Equal(t, testHeaderSize, buf.Len())

	for i, f := range b.frames {
		w(f.imi)             // imi
		w(int32(i))          // imit
		w(int64(i) * 1000)   // imt
		w(uint32(10))        // imdt
		w(f.zmag)            // zmag
		w(float32(0))        // rot_mag
		w(float32(0))        // obj_pos
		w(f.status)          // status_flag
		w(f.zmag)            // zmag_cmd
		w(float32(0))        // rot_mag_cmd
		w(float32(0))        // obj_pos_cmd
		w(f.action)          // action_status
		w(f.msg)             // message
		w(float32(1.5))      // bead x
		w(float32(2.5))      // bead y
		w(f.z)               // bead z
		w(byte(0))           // n_l
		w(int32(0))          // profile index
	}
	buf.WriteString(b.config)
	return buf.Bytes()
}

var testConfig = "[OBJECTIVE]\r\nimmersion_type = 1\r\n" +
	"[CAMERA]\r\ncamera_model = \"TestCam\"\r\ncamera_frequency_in_Hz = 60\r\n" +
	"[MICROSCOPE]\r\nmicroscope_user_name = \"rig1\"\r\n"

func TestDecodeBasic(t *testing.T) {
	b := trackBuilder{
		frames: []frameSpec{
			{imi: 10, zmag: 0.5, z: 0.8},
			{imi: 11, zmag: 0.6, z: 0.9},
		},
		config: testConfig,
	}
	rec, err := Decode(b.bytes(t), ReadOptions{})
	require.NoError(t, err)

	expect.EQ(t, rec.NRecs(), 2)
	expect.EQ(t, rec.NBeads(), 1)
	expect.EQ(t, rec.T(), []int32{0, 1})
	expect.EQ(t, rec.ZmagValues(), []float32{0.5, 0.6})
	expect.EQ(t, rec.Header.Name, "test_track")

	// immersion_type 1 turns the Z correction off.
	expect.EQ(t, rec.ZCor(), float32(1))
	expect.EQ(t, rec.BeadZ(0), []float32{0.8, 0.9})
	expect.EQ(t, rec.BeadX(0), []float32{1.5, 1.5})
	expect.EQ(t, rec.CameraFrequency(), float32(60))
	expect.EQ(t, rec.Config.Camera.Model, "TestCam")
	expect.EQ(t, rec.InstrumentName(), "rig1")
	expect.False(t, rec.Beads[0].Lost())
}

func TestDecodeBadMagic(t *testing.T) {
	b := trackBuilder{frames: []frameSpec{{imi: 1}}, config: testConfig}
	raw := b.bytes(t)
	raw[3] = 0x11
	_, err := Decode(raw, ReadOptions{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "magic")
}

func TestDecodeTornFinalRecord(t *testing.T) {
	b := trackBuilder{
		frames: []frameSpec{
			{imi: 10, zmag: 0.5, z: 0.8},
			{imi: 11, zmag: 0.6, z: 0.9},
		},
	}
	raw := b.bytes(t) // no config: frames run to EOF
	rec, err := Decode(raw[:len(raw)-5], ReadOptions{})
	require.NoError(t, err)
	expect.EQ(t, rec.NRecs(), 1)
	expect.EQ(t, len(rec.Beads[0].Z), 1)
}

func TestDecodeFrameRange(t *testing.T) {
	b := trackBuilder{
		frames: []frameSpec{
			{imi: 10, z: 1}, {imi: 11, z: 2}, {imi: 12, z: 3}, {imi: 13, z: 4},
		},
		config: testConfig,
	}
	rec, err := Decode(b.bytes(t), ReadOptions{FirstFrame: 1, LastFrame: 3})
	require.NoError(t, err)
	expect.EQ(t, rec.NRecs(), 2)
	expect.EQ(t, rec.Imi, []int32{11, 12})
	expect.EQ(t, rec.Beads[0].Z, []float32{2, 3})
}

func TestRepairNaNs(t *testing.T) {
	nan := float32(math.NaN())
	b := trackBuilder{
		frames: []frameSpec{
			{imi: 1, zmag: nan}, {imi: 2, zmag: 0.5}, {imi: 3, zmag: nan},
			{imi: 4, zmag: 0.7}, {imi: 5, zmag: nan},
		},
		config: testConfig,
	}
	rec, err := Decode(b.bytes(t), ReadOptions{})
	require.NoError(t, err)
	// Endpoints drop to zero, interior holes interpolate.
	expect.EQ(t, rec.Zmag, []float32{0, 0.5, 0.6, 0.7, 0})
}

func TestCyclesAndPhases(t *testing.T) {
	pt := func(point, phase int32) int32 { return point<<8 | phase }
	b := trackBuilder{
		frames: []frameSpec{
			{imi: 0, action: pt(1, 1)},
			{imi: 1, action: pt(1, 1)},
			{imi: 2, action: pt(1, 2)},
			{imi: 3, action: pt(2, 1)},
			{imi: 4, action: pt(2, 1)},
			{imi: 5, action: pt(2, 2)},
		},
		config: testConfig,
	}
	rec, err := Decode(b.bytes(t), ReadOptions{})
	require.NoError(t, err)
	minP, maxP := rec.CycleRange()
	expect.EQ(t, minP, 1)
	expect.EQ(t, maxP, 2)
	expect.EQ(t, rec.NCycles(), 2)
	expect.EQ(t, rec.NPhases(), 2)

	cycles := rec.Cycles()
	expect.EQ(t, len(cycles), 2)
	// Phase 1 of cycle 1 starts at frame 0; phase 1 of cycle 2 at frame 3.
	expect.EQ(t, cycles[0][1], 0)
	expect.EQ(t, cycles[1][1], 3)

	first, last := rec.PhaseBounds(cycles, 1)
	expect.EQ(t, first, []int{0, 3})
	expect.EQ(t, len(last), 2)
}

func TestVcap(t *testing.T) {
	b := trackBuilder{config: testConfig}
	for i := int32(0); i < 8; i++ {
		f := frameSpec{imi: i, zmag: 1}
		if i >= 2 && i <= 4 {
			f.action = DataAveraging
			f.zmag = 2
		}
		b.frames = append(b.frames, f)
	}
	rec, err := Decode(b.bytes(t), ReadOptions{})
	require.NoError(t, err)
	vcap := rec.Vcap()
	expect.EQ(t, len(vcap), 1)
	assert.InDelta(t, 2, float64(vcap[0].Zmag), 1e-6)
	// Mid-plateau: 0.5*(imi[5]+imi[2]) - imi[0].
	assert.InDelta(t, 3.5, float64(vcap[0].T), 1e-6)
}

func TestTemperatures(t *testing.T) {
	msg := []byte("T0 25.5\x00")
	b := trackBuilder{config: testConfig}
	for i := 0; i < len(msg); i++ {
		b.frames = append(b.frames, frameSpec{imi: int32(i), msg: msg[i]})
	}
	rec, err := Decode(b.bytes(t), ReadOptions{})
	require.NoError(t, err)
	temps := rec.Temperatures()
	expect.EQ(t, len(temps[0]), 1)
	assert.InDelta(t, 25.5, float64(temps[0][0].Value), 1e-6)
	expect.EQ(t, temps[0][0].T, int32(7))
}

func TestOpenFileAndCorOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.trk")
	b := trackBuilder{
		frames: []frameSpec{{imi: 1, z: 1}},
		config: testConfig,
	}
	require.NoError(t, os.WriteFile(path, b.bytes(t), 0o600))
	cor := "[MICROSCOPE]\nim_pixel_x_in_microns = 2.5\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.cor"), []byte(cor), 0o600))

	rec, err := OpenFile(path, ReadOptions{})
	require.NoError(t, err)
	dx, _, dy, _ := rec.Dimensions()
	expect.EQ(t, dx, float32(2.5))
	expect.EQ(t, dy, float32(1))
}

func TestParseINI(t *testing.T) {
	sections := parseINI(bytes.NewReader([]byte(
		"[A]\nkey = 1\nother=  two \n; comment\n[B]\nkey = 3\nnoise line\n")))
	expect.EQ(t, sections["A"]["key"], "1")
	expect.EQ(t, sections["A"]["other"], "two")
	expect.EQ(t, sections["B"]["key"], "3")
}
