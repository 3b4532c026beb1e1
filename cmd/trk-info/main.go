// Copyright 2026 Picobio, Inc.  All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

/*
trk-info prints a summary of a legacy .trk track file: frame and bead
counts, the cycle/phase layout, per-bead quality verdicts, and optionally
the temperature telemetry.
*/

import (
	"flag"
	"fmt"
	"os"

	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"

	"github.com/picobio/tweezer/cleaning"
	"github.com/picobio/tweezer/encoding/trk"
)

var (
	firstBead    = flag.Int("first-bead", 0, "First bead to load")
	nBeads       = flag.Int("beads", 0, "Number of beads to load; 0 = all")
	firstFrame   = flag.Int("first-frame", 0, "First frame to load")
	lastFrame    = flag.Int("last-frame", 0, "Last frame to load (exclusive); 0 = all")
	temperatures = flag.Bool("temperatures", false, "Print the temperature telemetry channels")
	quality      = flag.Bool("quality", false, "Score each bead with the default cleaning rules")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] trackpath\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	shutdown := grail.Init()
	defer shutdown()
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() != 1 {
		usage()
		os.Exit(2)
	}

	ctx := vcontext.Background()
	rec, err := trk.Open(ctx, flag.Arg(0), trk.ReadOptions{
		FirstBead:  *firstBead,
		NBeads:     *nBeads,
		FirstFrame: *firstFrame,
		LastFrame:  *lastFrame,
	})
	if err != nil {
		log.Fatalf("trk-info: %v", err)
	}

	fmt.Printf("track\t%s\n", rec.Header.Name)
	fmt.Printf("frames\t%d\n", rec.NRecs())
	fmt.Printf("beads\t%d\n", rec.NBeads())
	fmt.Printf("cycles\t%d\n", rec.NCycles())
	fmt.Printf("phases\t%d\n", rec.NPhases())
	fmt.Printf("sdi\t%v\n", rec.SDI())
	fmt.Printf("camera\t%s @ %.2f Hz\n", rec.Config.Camera.Model, rec.CameraFrequency())
	if name := rec.InstrumentName(); name != "" {
		fmt.Printf("instrument\t%s\n", name)
	}

	if *temperatures {
		for ch, values := range rec.Temperatures() {
			for _, t := range values {
				fmt.Printf("T%d\t%d\t%.3f\n", ch, t.T, t.Value)
			}
		}
	}

	if *quality {
		scoreBeads(rec)
	}
}

// scoreBeads runs the default cleaning rules over the measure phase of
// every loaded bead.
func scoreBeads(rec *trk.Record) {
	cycles := rec.Cycles()
	if len(cycles) == 0 {
		log.Error.Printf("trk-info: no cycles; cannot score beads")
		return
	}
	// By convention the measure phase sits two phases before the cycle
	// end, matching the standard pull-measure-relax ramp.
	measure := rec.NPhases() - 2
	if measure < 0 {
		measure = 0
	}
	first, last := rec.PhaseBounds(cycles, measure)
	rules := cleaning.NewDataCleaning()
	for i := 0; i < rec.NBeads(); i++ {
		z := rec.BeadZ(i)
		dropped := rules.ApplyAberrant(z, false)
		bad := 0
		for _, partial := range []cleaning.Partial{
			rules.HFSigma.Apply(z, first, last),
			rules.Population.Apply(z, first, last),
			rules.Extent.Apply(z, first, last),
		} {
			for _, b := range partial.Bad() {
				if b {
					bad++
				}
			}
		}
		fmt.Printf("bead\t%d\tlost=%v\tdropped=%v\tbadcycles=%d\n",
			i, rec.Beads[i].Lost(), dropped, bad)
	}
}
