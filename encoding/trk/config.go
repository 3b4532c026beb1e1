// Copyright 2026 Picobio, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package trk

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/pkg/errors"
)

// Config is the embedded instrument configuration: INI sections of
// key = value pairs, plus the typed parameters the reader itself consumes.
type Config struct {
	Sections map[string]map[string]string

	Camera    CameraParams
	Objective ObjectiveParams
}

// CameraParams are the camera keys consumed by the reader.
type CameraParams struct {
	Model       string
	FrequencyHz float32
	PixelXum    float32
	PixelYum    float32
	NbPxlX      int
	NbPxlY      int
}

// ObjectiveParams are the objective keys consumed by the reader: they
// determine the immersion correction applied to Z.
type ObjectiveParams struct {
	ImmersionType  int
	ImmersionIndex float32
	BufferIndex    float32
}

// The section names of the embedded block.
const (
	SectionMicroscope = "MICROSCOPE"
	SectionCamera     = "CAMERA"
	SectionObjective  = "OBJECTIVE"
	SectionMagnet     = "MAGNET"
	SectionBead       = "BEAD"
	SectionMolecule   = "MOLECULE"
)

// parseINI reads "key = value" lines grouped under "[SECTION]" headers.
// Unparseable lines are skipped; the telemetry stream routinely pollutes
// the tail of the block.
func parseINI(r io.Reader) map[string]map[string]string {
	out := map[string]map[string]string{}
	section := ""
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "[") {
			if end := strings.IndexByte(line, ']'); end > 1 {
				section = line[1:end]
				if _, ok := out[section]; !ok {
					out[section] = map[string]string{}
				}
			}
			continue
		}
		if section == "" {
			continue
		}
		eq := strings.IndexByte(line, '=')
		if eq <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		val := strings.TrimSpace(line[eq+1:])
		if key != "" {
			out[section][key] = val
		}
	}
	return out
}

// Get returns a key of a section, with ok reporting its presence.
func (c *Config) Get(section, key string) (string, bool) {
	sec, ok := c.Sections[section]
	if !ok {
		return "", false
	}
	v, ok := sec[key]
	return v, ok
}

func (c *Config) getFloat(section, key string) (float32, error) {
	v, ok := c.Get(section, key)
	if !ok {
		return 0, errors.Errorf("trk: missing [%s] %s", section, key)
	}
	f, err := strconv.ParseFloat(strings.Trim(v, `"`), 32)
	if err != nil {
		return 0, errors.Wrapf(err, "trk: [%s] %s", section, key)
	}
	return float32(f), nil
}

func (c *Config) getInt(section, key string) (int, error) {
	v, ok := c.Get(section, key)
	if !ok {
		return 0, errors.Errorf("trk: missing [%s] %s", section, key)
	}
	n, err := strconv.Atoi(strings.Trim(v, `"`))
	if err != nil {
		return 0, errors.Wrapf(err, "trk: [%s] %s", section, key)
	}
	return n, nil
}

// typed refreshes the typed parameter mirrors from the section maps.
func (c *Config) typed() {
	if v, ok := c.Get(SectionCamera, "camera_model"); ok {
		c.Camera.Model = strings.Trim(v, `"`)
	}
	if f, err := c.getFloat(SectionCamera, "camera_frequency_in_Hz"); err == nil {
		c.Camera.FrequencyHz = f
	}
	if f, err := c.getFloat(SectionCamera, "x_pixel_2_microns"); err == nil {
		c.Camera.PixelXum = f
	}
	if f, err := c.getFloat(SectionCamera, "y_pixel_2_microns"); err == nil {
		c.Camera.PixelYum = f
	}
	if n, err := c.getInt(SectionCamera, "nb_pxl_x"); err == nil {
		c.Camera.NbPxlX = n
	}
	if n, err := c.getInt(SectionCamera, "nb_pxl_y"); err == nil {
		c.Camera.NbPxlY = n
	}
	if n, err := c.getInt(SectionObjective, "immersion_type"); err == nil {
		c.Objective.ImmersionType = n
	} else {
		c.Objective.ImmersionType = -1
	}
	if f, err := c.getFloat(SectionObjective, "immersion_index"); err == nil {
		c.Objective.ImmersionIndex = f
	}
	if f, err := c.getFloat(SectionObjective, "buffer_index"); err == nil {
		c.Objective.BufferIndex = f
	}
}

// override merges another parsed INI tree on top of this one.
func (c *Config) override(other map[string]map[string]string) {
	if c.Sections == nil {
		c.Sections = map[string]map[string]string{}
	}
	for section, keys := range other {
		if _, ok := c.Sections[section]; !ok {
			c.Sections[section] = map[string]string{}
		}
		for k, v := range keys {
			c.Sections[section][k] = v
		}
	}
	c.typed()
}

// decodeConfig parses the embedded configuration text block.
func (rec *Record) decodeConfig(raw []byte) {
	pos := int(rec.Header.ConfigPos)
	if pos <= 0 || pos >= len(raw) {
		rec.Config.Sections = map[string]map[string]string{}
		rec.Config.typed()
		return
	}
	end := len(raw)
	if int(rec.Header.HeaderSize) > pos {
		end = int(rec.Header.HeaderSize)
	}
	block := raw[pos:end]
	if i := strings.Index(string(block), "\x00"); i >= 0 {
		block = block[:i]
	}
	rec.Config.Sections = parseINI(strings.NewReader(string(block)))
	rec.Config.typed()
}

// applyConfig derives the reader-level corrections from the configuration:
// the immersion Z correction and, when the config carries pixel factors,
// the x/y affine scales.
func (rec *Record) applyConfig() {
	switch rec.Config.Objective.ImmersionType {
	case 0:
		rec.zCor = 1.5
	case 1:
		rec.zCor = 1
	case 2:
		if rec.Config.Objective.ImmersionIndex > 0 && rec.Config.Objective.BufferIndex > 0 {
			rec.zCor = rec.Config.Objective.BufferIndex / rec.Config.Objective.ImmersionIndex
		} else {
			rec.zCor = 0.878
		}
	default:
		rec.zCor = 0.878
	}

	if f, err := rec.Config.getFloat(SectionMicroscope, "im_pixel_x_in_microns"); err == nil && f != 0 {
		rec.Header.Dx = f
	}
	if f, err := rec.Config.getFloat(SectionMicroscope, "im_pixel_y_in_microns"); err == nil && f != 0 {
		rec.Header.Dy = f
	}
}

// corOverrides loads the companion .cor file of a track, if any.
func corOverrides(ctx context.Context, path string) map[string]map[string]string {
	cor := path
	if i := strings.LastIndexByte(cor, '.'); i >= 0 {
		cor = cor[:i]
	}
	cor += ".cor"
	in, err := file.Open(ctx, cor)
	if err != nil {
		return nil
	}
	defer in.Close(ctx) // nolint: errcheck
	log.Debug.Printf("trk: applying overrides from %s", cor)
	return parseINI(in.Reader(ctx))
}

// CameraFrequency returns the camera frequency in Hz, zero when unknown.
func (rec *Record) CameraFrequency() float32 { return rec.Config.Camera.FrequencyHz }

// InstrumentName returns the microscope user name from the configuration,
// falling back to the PicoTwist model, then the manufacturer name.
func (rec *Record) InstrumentName() string {
	for _, key := range []string{"microscope_user_name", "PicoTwist_model", "microscope_manufacturer_name"} {
		if v, ok := rec.Config.Get(SectionMicroscope, key); ok {
			return strings.Trim(v, `"`)
		}
	}
	return ""
}
