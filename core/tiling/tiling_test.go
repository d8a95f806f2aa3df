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

package tiling

import (
	"bytes"
	"fmt"
	"math"
	"testing"

	"github.com/slidescope/core/core/transform"
)

func makeReq(w float64, h float64, overlap float64, serp bool) TilingRequest {
	return TilingRequest{
		MicroscopeId:   "rig-a",
		SlideId:        "slide-1",
		RegionUM:       transform.Rect{MinX: 1000, MinY: 2000, MaxX: 1000 + w, MaxY: 2000 + h},
		Objective:      "20x",
		OverlapPercent: overlap,
		Serpentine:     serp,
	}
}

func Example_planGridSmallRegion() {
	// Region smaller than one 500x400um FOV: 1x1 plan centred on the region
	plan, err := PlanGrid(makeReq(200, 100, 10, false), 500, 400, 0)
	fmt.Println(err)
	fmt.Println(plan.Cols, plan.Rows, len(plan.Tiles))
	fmt.Println(plan.Tiles[0].CenterUM)

	// Output:
	// <nil>
	// 1 1 1
	// {1100 2050}
}

func Example_planGridRejects() {
	_, err := PlanGrid(makeReq(0, 100, 10, false), 500, 400, 0)
	fmt.Println(err)

	_, err = PlanGrid(makeReq(200, 100, 95, false), 500, 400, 0)
	fmt.Println(err)

	_, err = PlanGrid(makeReq(10000, 10000, 0, false), 500, 400, 100)
	fmt.Println(err)

	// Output:
	// tiling region is empty: {MinX:1000 MinY:2000 MaxX:1000 MaxY:2100}
	// overlap percent must be in [0, 90), got 95
	// plan of 500 tiles (20x25) exceeds the limit of 100
}

func TestPlanGridCoverage(t *testing.T) {
	cases := []struct {
		w, h, overlap float64
		wantCols      int
		wantRows      int
	}{
		{2000, 1200, 0, 4, 3},
		{2000, 1200, 10, 5, 4},
		{500, 400, 0, 1, 1},
		{501, 400, 0, 2, 1},
		{4999, 360, 20, 13, 2},
	}

	for _, c := range cases {
		req := makeReq(c.w, c.h, c.overlap, false)
		plan, err := PlanGrid(req, 500, 400, 0)
		if err != nil {
			t.Fatalf("PlanGrid(%vx%v, %v%%) failed: %v", c.w, c.h, c.overlap, err)
		}

		if plan.Cols != c.wantCols || plan.Rows != c.wantRows {
			t.Errorf("PlanGrid(%vx%v, %v%%): got %vx%v, want %vx%v", c.w, c.h, c.overlap, plan.Cols, plan.Rows, c.wantCols, c.wantRows)
		}

		// Coverage must contain the whole requested region
		cov := plan.CoverageUM()
		if cov.MinX > req.RegionUM.MinX+1e-9 || cov.MinY > req.RegionUM.MinY+1e-9 ||
			cov.MaxX < req.RegionUM.MaxX-1e-9 || cov.MaxY < req.RegionUM.MaxY-1e-9 {
			t.Errorf("Coverage %+v does not contain region %+v", cov, req.RegionUM)
		}

		// Grid is centred: excess hangs equally off both sides
		leftExcess := req.RegionUM.MinX - cov.MinX
		rightExcess := cov.MaxX - req.RegionUM.MaxX
		if math.Abs(leftExcess-rightExcess) > 1e-9 {
			t.Errorf("Grid not centred on region: left excess %v, right excess %v", leftExcess, rightExcess)
		}
	}
}

func TestPlanGridStepSpacing(t *testing.T) {
	plan, err := PlanGrid(makeReq(2000, 1200, 25, false), 500, 400, 0)
	if err != nil {
		t.Fatalf("PlanGrid failed: %v", err)
	}

	// Adjacent tile centres must differ by exactly the step on the walked axis
	byColRow := map[[2]int]Tile{}
	for _, tile := range plan.Tiles {
		byColRow[[2]int{tile.Col, tile.Row}] = tile
	}

	for _, tile := range plan.Tiles {
		if right, ok := byColRow[[2]int{tile.Col + 1, tile.Row}]; ok {
			if math.Abs(right.CenterUM.X-tile.CenterUM.X-plan.StepXUM) > 1e-9 {
				t.Errorf("Tile (%v,%v) to (%v,%v) x spacing %v, want %v", tile.Col, tile.Row, right.Col, right.Row, right.CenterUM.X-tile.CenterUM.X, plan.StepXUM)
			}
		}
		if below, ok := byColRow[[2]int{tile.Col, tile.Row + 1}]; ok {
			if math.Abs(below.CenterUM.Y-tile.CenterUM.Y-plan.StepYUM) > 1e-9 {
				t.Errorf("Tile (%v,%v) to (%v,%v) y spacing %v, want %v", tile.Col, tile.Row, below.Col, below.Row, below.CenterUM.Y-tile.CenterUM.Y, plan.StepYUM)
			}
		}
	}
}

func TestSerpentineIsPermutation(t *testing.T) {
	rowMajor, err := PlanGrid(makeReq(2000, 1200, 10, false), 500, 400, 0)
	if err != nil {
		t.Fatalf("PlanGrid failed: %v", err)
	}
	serp, err := PlanGrid(makeReq(2000, 1200, 10, true), 500, 400, 0)
	if err != nil {
		t.Fatalf("PlanGrid serpentine failed: %v", err)
	}

	if len(rowMajor.Tiles) != len(serp.Tiles) {
		t.Fatalf("Tile counts differ: %v vs %v", len(rowMajor.Tiles), len(serp.Tiles))
	}

	// Same tile set, possibly different walk order
	rmSet := map[int]Tile{}
	for _, tile := range rowMajor.Tiles {
		rmSet[tile.Index] = tile
	}
	for _, tile := range serp.Tiles {
		other, ok := rmSet[tile.Index]
		if !ok {
			t.Fatalf("Serpentine tile index %v missing from row-major plan", tile.Index)
		}
		if other.CenterUM != tile.CenterUM || other.Col != tile.Col || other.Row != tile.Row {
			t.Errorf("Tile %v differs between orderings: %+v vs %+v", tile.Index, tile, other)
		}
	}

	// Odd rows walk right to left
	for _, tile := range serp.Tiles {
		if tile.Row == 1 && tile.Col == serp.Cols-1 {
			wantOrder := serp.Cols // first tile of row 1 in the walk
			if tile.Order != wantOrder {
				t.Errorf("Serpentine row 1 rightmost tile order %v, want %v", tile.Order, wantOrder)
			}
		}
	}
}

func Example_writeTileConfiguration() {
	plan, _ := PlanGrid(makeReq(2000, 700, 0, false), 1000, 700, 0)

	var buf bytes.Buffer
	err := WriteTileConfiguration(&buf, plan, 0.5)
	fmt.Println(err)
	fmt.Print(buf.String())

	// Output:
	// <nil>
	// dim = 2
	// tile_0_0.tif; ; (0.0, 0.0)
	// tile_1_0.tif; ; (2000.0, 0.0)
}

func TestWriteTileConfigurationBadPixelSize(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTileConfiguration(&buf, TilePlan{Cols: 1, Rows: 1}, 0); err == nil {
		t.Errorf("Expected error for zero pixel size")
	}
}
