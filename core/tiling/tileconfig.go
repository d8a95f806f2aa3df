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
	"fmt"
	"io"
)

const TileConfigurationFileName = "TileConfiguration.txt"

// TileFileName - what the scope server names each tile image
func TileFileName(col int, row int) string {
	return fmt.Sprintf("tile_%v_%v.tif", col, row)
}

// WriteTileConfiguration - writes the stitcher's TileConfiguration.txt.
// Positions are in PIXELS of the acquired images, origin at the grid's
// top-left tile, so the stitcher never needs to know about stage space.
// Lines are written in row-major order regardless of acquisition order
func WriteTileConfiguration(w io.Writer, plan TilePlan, pixelSizeUM float64) error {
	if pixelSizeUM <= 0 {
		return fmt.Errorf("pixel size must be positive, got %v", pixelSizeUM)
	}

	if _, err := fmt.Fprintf(w, "dim = %v\n", 2); err != nil {
		return err
	}

	stepXPX := plan.StepXUM / pixelSizeUM
	stepYPX := plan.StepYUM / pixelSizeUM

	for row := 0; row < plan.Rows; row++ {
		for col := 0; col < plan.Cols; col++ {
			x := float64(col) * stepXPX
			y := float64(row) * stepYPX
			if _, err := fmt.Fprintf(w, "%v; ; (%.1f, %.1f)\n", TileFileName(col, row), x, y); err != nil {
				return err
			}
		}
	}

	return nil
}
