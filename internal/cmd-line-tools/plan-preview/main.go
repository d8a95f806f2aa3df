// Licensed to SlideScope under one or more contributor
// license agreements. See the NOTICE file distributed with
// this work for additional information regarding copyright
// ownership. SlideScope licenses this file to you under
// the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied.  See the License for the
// specific language governing permissions and limitations
// under the License.

// Renders a tile plan over the stage travel as a PNG, for checking a region
// before committing a rig to it
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/slidescope/core/core/microscope"
	"github.com/slidescope/core/core/render"
	"github.com/slidescope/core/core/tiling"
	"github.com/slidescope/core/core/transform"
)

var profilePath string
var objective string
var overlapPct float64
var serpentine bool
var minX, minY, maxX, maxY float64
var widthPX int
var outPath string

func main() {
	flag.StringVar(&profilePath, "profile", "", "Path to a microscope profile YAML file")
	flag.StringVar(&objective, "objective", "", "Objective name, empty for the profile default")
	flag.Float64Var(&overlapPct, "overlap", -1, "Tile overlap percent, negative for the profile default")
	flag.BoolVar(&serpentine, "serpentine", false, "Serpentine walk order")
	flag.Float64Var(&minX, "minX", 0, "Region min x in stage um")
	flag.Float64Var(&minY, "minY", 0, "Region min y in stage um")
	flag.Float64Var(&maxX, "maxX", 0, "Region max x in stage um")
	flag.Float64Var(&maxY, "maxY", 0, "Region max y in stage um")
	flag.IntVar(&widthPX, "width", 800, "Output image width in pixels")
	flag.StringVar(&outPath, "out", "plan.png", "Output PNG path")

	flag.Parse()

	if len(profilePath) <= 0 {
		log.Fatalf("Parameter: profile was empty")
	}

	profile, err := microscope.Load(profilePath)
	if err != nil {
		log.Fatalf("Failed to load profile: %v", err)
	}

	if len(objective) <= 0 {
		objective = profile.DefaultObjective
	}
	if overlapPct < 0 {
		overlapPct = profile.Tiling.OverlapPercent
	}

	fovX, fovY, err := profile.FOVUM(objective)
	if err != nil {
		log.Fatalf("%v", err)
	}

	req := tiling.TilingRequest{
		MicroscopeId:   profile.Id,
		SlideId:        "preview",
		RegionUM:       transform.Rect{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY},
		Objective:      objective,
		OverlapPercent: overlapPct,
		Serpentine:     serpentine,
	}

	plan, err := tiling.PlanGrid(req, fovX, fovY, 0)
	if err != nil {
		log.Fatalf("Planning failed: %v", err)
	}

	img, err := render.PlanPreview(plan, profile.StageBounds(), widthPX)
	if err != nil {
		log.Fatalf("Render failed: %v", err)
	}

	data, err := render.GetImageBytes(img, "png")
	if err != nil {
		log.Fatalf("Encode failed: %v", err)
	}

	if err := os.WriteFile(outPath, data, 0644); err != nil {
		log.Fatalf("Failed to write %v: %v", outPath, err)
	}

	coverage := plan.CoverageUM()
	fmt.Printf("%vx%v tiles (%v total), step %.1fx%.1fum, coverage (%.0f, %.0f)-(%.0f, %.0f)um\n",
		plan.Cols, plan.Rows, len(plan.Tiles), plan.StepXUM, plan.StepYUM,
		coverage.MinX, coverage.MinY, coverage.MaxX, coverage.MaxY)
	fmt.Printf("Wrote %v\n", outPath)
}
