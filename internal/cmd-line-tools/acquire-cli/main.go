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

// Drives an acquisition through the daemon's API: starts a run, watches it to
// completion, then lists what got archived
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/slidescope/core/api/acquisition"
	"github.com/slidescope/core/core/client"
	"github.com/slidescope/core/core/tiling"
	"github.com/slidescope/core/core/transform"
)

var configPath string
var microscopeId string
var slideId string
var objective string
var overlapPct float64
var serpentine bool
var minX, minY, maxX, maxY float64
var watchTimeoutMin int

func main() {
	flag.StringVar(&configPath, "config", "", "Path to client config JSON, empty to use SLIDESCOPE_CLIENT_CONFIG")
	flag.StringVar(&microscopeId, "microscope", "", "Microscope profile id")
	flag.StringVar(&slideId, "slide", "", "Slide id being imaged")
	flag.StringVar(&objective, "objective", "", "Objective name, empty for the profile default")
	flag.Float64Var(&overlapPct, "overlap", 0, "Tile overlap percent, 0 for the profile default")
	flag.BoolVar(&serpentine, "serpentine", false, "Serpentine walk order")
	flag.Float64Var(&minX, "minX", 0, "Region min x in stage um")
	flag.Float64Var(&minY, "minY", 0, "Region min y in stage um")
	flag.Float64Var(&maxX, "maxX", 0, "Region max x in stage um")
	flag.Float64Var(&maxY, "maxY", 0, "Region max y in stage um")
	flag.IntVar(&watchTimeoutMin, "timeout", 120, "Minutes to wait for the run to finish")

	flag.Parse()

	checkNotEmpty := []string{microscopeId, slideId}
	checkNotEmptyName := []string{"microscope", "slide"}
	for c, s := range checkNotEmpty {
		if len(s) <= 0 {
			log.Fatalf("Parameter: %v was empty", checkNotEmptyName[c])
		}
	}

	apiClient, err := client.Connect(configPath)
	if err != nil {
		log.Fatalf("%v", err)
	}

	status, err := apiClient.GetMicroscopeStatus(microscopeId)
	if err != nil {
		log.Fatalf("Failed to get microscope status: %v", err)
	}
	if !status.Connected {
		log.Fatalf("Microscope %v is not reachable: %v", microscopeId, status.Error)
	}
	fmt.Printf("Microscope %v connected, scope server %v, stage at (%.1f, %.1f)um\n",
		microscopeId, status.ServerVersion, status.XUM, status.YUM)

	req := tiling.TilingRequest{
		MicroscopeId:   microscopeId,
		SlideId:        slideId,
		RegionUM:       transform.Rect{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY},
		Objective:      objective,
		OverlapPercent: overlapPct,
		Serpentine:     serpentine,
	}

	summary, err := apiClient.StartAcquisition(req)
	if err != nil {
		log.Fatalf("Failed to start acquisition: %v", err)
	}
	fmt.Printf("Acquisition %v started: %vx%v grid, %v tiles\n", summary.Id, summary.Cols, summary.Rows, summary.TilesTotal)

	final, err := apiClient.WaitForAcquisition(
		summary.Id,
		2*time.Second,
		time.Duration(watchTimeoutMin)*time.Minute,
		func(s acquisition.AcquisitionSummary) {
			fmt.Printf("  %v: %v/%v tiles\n", s.State, s.TilesDone, s.TilesTotal)
		})
	if err != nil {
		log.Fatalf("%v", err)
	}

	fmt.Printf("Acquisition %v finished: %v (%v sec)\n", final.Id, final.State, final.ElapsedSec)
	if final.State != acquisition.StateDone {
		log.Fatalf("Run did not complete: %v", final.Message)
	}

	files, err := apiClient.GetAcquisitionFiles(final.Id)
	if err != nil {
		log.Fatalf("Failed to list archived files: %v", err)
	}

	fmt.Printf("Archived %v files under %v:\n", len(files), final.OutputPrefix)
	for _, file := range files {
		fmt.Printf("  %v\n", file.Path)
	}
}
