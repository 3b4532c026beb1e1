// Copyright 2026 Picobio, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

/*
Package trk reads the legacy .trk track files produced by the tracking
software of magnetic-tweezers instruments.

A .trk file is a little-endian binary container with three regions:

 1. A fixed header: a magic int32 whose upper 16 bits are 0x5555, the
    header size, the per-frame record size, the offset of the embedded
    configuration text, the bead count, then one {packed profile flags,
    calibration-image start, calibration-image size} triplet per bead,
    followed by page size, record counts, creation time, the recording
    start tick, the track name, 64 int and 64 float auxiliary parameters,
    the x/y affine transforms to microns, and the video image geometry.

 2. A stream of fixed-layout per-frame records.  Each record carries the
    global channels (image number, timer image number, wall-clock tick,
    delta-t, magnet height and rotation, objective position, status flags,
    the commanded versions of the three positions, the packed
    action status, and one byte of the textual telemetry stream) followed
    by one block per bead whose exact layout is selected by the bead's
    packed profile flags: x/y/z, an optional tracking angle, the lock
    counter and profile index, optional radial and orthoradial profiles,
    optional x/y/z error estimates and optional X/Y cross profiles.  The
    optional embedded movie tiles of the beads follow the last bead block.

 3. An INI-style configuration text block ([MICROSCOPE], [CAMERA],
    [OBJECTIVE], [MAGNET], [BEAD], [MOLECULE] sections of key = value
    lines) describing the instrument.

The original software stored decoded channels in pages of 4096 records;
the paging was an allocator strategy, not part of the format, and this
package decodes into one contiguous slice per channel instead.

A companion .cor text file next to the track, when present, overrides
selected configuration keys, notably the pixel-to-micron factors.

Reading is a two-pass parse: the header and per-bead metadata first, then a
streamed frame decoder specialised once per bead flag combination.  Partial
loads can restrict the bead range and the frame range.
*/
package trk
