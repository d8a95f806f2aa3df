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

// Plans the tile grid covering a stage-space region at a given objective.
// Tiles overlap by a configured percentage so the stitcher has features to
// match on, and can be ordered serpentine to cut stage travel time.
package tiling

import (
	"fmt"
	"math"

	"github.com/slidescope/core/core/transform"
)

// What a caller asks for - where to image and how
type TilingRequest struct {
	MicroscopeId   string         `json:"microscopeId" bson:"microscopeId"`
	SlideId        string         `json:"slideId" bson:"slideId"`
	RegionUM       transform.Rect `json:"regionUM" bson:"regionUM"`
	Objective      string         `json:"objective" bson:"objective"`
	OverlapPercent float64        `json:"overlapPercent" bson:"overlapPercent"`
	Serpentine     bool           `json:"serpentine" bson:"serpentine"`
	FocusZUM       *float64       `json:"focusZUM,omitempty" bson:"focusZUM,omitempty"`
}

type Tile struct {
	Index    int             `json:"index" bson:"index"`
	Col      int             `json:"col" bson:"col"`
	Row      int             `json:"row" bson:"row"`
	CenterUM transform.Point `json:"centerUM" bson:"centerUM"`
	// Position in the acquisition walk, differs from Index when serpentine
	Order int `json:"order" bson:"order"`
}

type TilePlan struct {
	Cols     int             `json:"cols" bson:"cols"`
	Rows     int             `json:"rows" bson:"rows"`
	StepXUM  float64         `json:"stepXUM" bson:"stepXUM"`
	StepYUM  float64         `json:"stepYUM" bson:"stepYUM"`
	OriginUM transform.Point `json:"originUM" bson:"originUM"` // centre of tile (0,0)
	FOVXUM   float64         `json:"fovXUM" bson:"fovXUM"`
	FOVYUM   float64         `json:"fovYUM" bson:"fovYUM"`
	Tiles    []Tile          `json:"tiles" bson:"tiles"`
}

func (r TilingRequest) Validate() error {
	if r.RegionUM.IsEmpty() {
		return fmt.Errorf("tiling region is empty: %+v", r.RegionUM)
	}
	if r.OverlapPercent < 0 || r.OverlapPercent >= 90 {
		return fmt.Errorf("overlap percent must be in [0, 90), got %v", r.OverlapPercent)
	}
	return nil
}

// PlanGrid - works out the grid covering the requested region. The step is the
// field of view shrunk by the overlap, cols/rows are however many steps it
// takes to cover the region (minimum 1 each way), and the grid is centred on
// the region so any excess coverage hangs off both sides equally.
// maxTiles <= 0 means no limit
func PlanGrid(req TilingRequest, fovXUM float64, fovYUM float64, maxTiles int) (TilePlan, error) {
	if err := req.Validate(); err != nil {
		return TilePlan{}, err
	}
	if fovXUM <= 0 || fovYUM <= 0 {
		return TilePlan{}, fmt.Errorf("field of view must be positive, got %vx%v", fovXUM, fovYUM)
	}

	stepX := fovXUM * (1 - req.OverlapPercent/100)
	stepY := fovYUM * (1 - req.OverlapPercent/100)

	// ceil(extent/step) tiles each way. Because the FOV is at least a step
	// wide this always covers the region, and a region smaller than one FOV
	// still gets a 1x1 plan centred on it
	cols := int(math.Ceil(req.RegionUM.Width() / stepX))
	if cols < 1 {
		cols = 1
	}
	rows := int(math.Ceil(req.RegionUM.Height() / stepY))
	if rows < 1 {
		rows = 1
	}

	if maxTiles > 0 && cols*rows > maxTiles {
		return TilePlan{}, fmt.Errorf("plan of %v tiles (%vx%v) exceeds the limit of %v", cols*rows, cols, rows, maxTiles)
	}

	// Centre the grid on the region
	center := req.RegionUM.Center()
	gridExtentX := float64(cols-1)*stepX + fovXUM
	gridExtentY := float64(rows-1)*stepY + fovYUM
	origin := transform.Point{
		X: center.X - gridExtentX/2 + fovXUM/2,
		Y: center.Y - gridExtentY/2 + fovYUM/2,
	}

	plan := TilePlan{
		Cols:     cols,
		Rows:     rows,
		StepXUM:  stepX,
		StepYUM:  stepY,
		OriginUM: origin,
		FOVXUM:   fovXUM,
		FOVYUM:   fovYUM,
		Tiles:    make([]Tile, 0, cols*rows),
	}

	// Row-major, serpentine walks odd rows right-to-left
	order := 0
	for row := 0; row < rows; row++ {
		for c := 0; c < cols; c++ {
			col := c
			if req.Serpentine && row%2 == 1 {
				col = cols - 1 - c
			}

			plan.Tiles = append(plan.Tiles, Tile{
				Index: row*cols + col,
				Col:   col,
				Row:   row,
				CenterUM: transform.Point{
					X: origin.X + float64(col)*stepX,
					Y: origin.Y + float64(row)*stepY,
				},
				Order: order,
			})
			order++
		}
	}

	return plan, nil
}

// CoverageUM - the stage rect the whole plan images
func (p TilePlan) CoverageUM() transform.Rect {
	return transform.Rect{
		MinX: p.OriginUM.X - p.FOVXUM/2,
		MinY: p.OriginUM.Y - p.FOVYUM/2,
		MaxX: p.OriginUM.X + float64(p.Cols-1)*p.StepXUM + p.FOVXUM/2,
		MaxY: p.OriginUM.Y + float64(p.Rows-1)*p.StepYUM + p.FOVYUM/2,
	}
}
