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

// Diagnostic image rendering - tile plan previews for operators and annotated
// macro images saved alongside sample setups.
package render

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/slidescope/core/core/tiling"
	"github.com/slidescope/core/core/transform"
)

func GetImageBytes(img image.Image, imgFormat string) ([]byte, error) {
	var err error
	var b bytes.Buffer
	writer := bufio.NewWriter(&b)

	if imgFormat == "png" {
		err = png.Encode(writer, img)
	} else if imgFormat == "jpeg" {
		err = jpeg.Encode(writer, img, &jpeg.Options{Quality: 90})
	} else {
		err = fmt.Errorf("unexpected image format: %v when encoding render output", imgFormat)
	}

	if err != nil {
		return nil, err
	}

	err = writer.Flush()
	if err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// ScaleImage - fit to a max width, preserving aspect ratio
func ScaleImage(img image.Image, newWidth int) image.Image {
	bounds := img.Bounds()
	h := int(float32(bounds.Dy()) / float32(bounds.Dx()) * float32(newWidth))
	return imaging.Resize(img, newWidth, h, imaging.Linear)
}

// AnnotateGreenBox - copy of the macro image with the detected box outlined in
// magenta so an operator can eyeball a bad detection
func AnnotateGreenBox(img image.Image, box transform.Rect) image.Image {
	dc := gg.NewContextForImage(img)

	dc.SetRGB(1, 0, 1)
	dc.SetLineWidth(2)
	dc.DrawRectangle(box.MinX, box.MinY, box.Width(), box.Height())
	dc.Stroke()

	return dc.Image()
}

// PlanPreview - the tile grid over stage travel, with the walk order drawn as
// a line through tile centres. Stage micrometers scaled to fit widthPX across
func PlanPreview(plan tiling.TilePlan, stageBounds transform.Rect, widthPX int) (image.Image, error) {
	if stageBounds.IsEmpty() {
		return nil, fmt.Errorf("stage bounds are empty: %+v", stageBounds)
	}
	if widthPX <= 0 {
		return nil, fmt.Errorf("preview width must be positive, got %v", widthPX)
	}

	scale := float64(widthPX) / stageBounds.Width()
	heightPX := int(stageBounds.Height() * scale)
	if heightPX < 1 {
		heightPX = 1
	}

	toPX := func(p transform.Point) (float64, float64) {
		return (p.X - stageBounds.MinX) * scale, (p.Y - stageBounds.MinY) * scale
	}

	dc := gg.NewContext(widthPX, heightPX)

	dc.SetRGB(1, 1, 1)
	dc.Clear()

	// Stage travel outline
	dc.SetRGB(0.3, 0.3, 0.3)
	dc.SetLineWidth(1)
	dc.DrawRectangle(0, 0, float64(widthPX), float64(heightPX))
	dc.Stroke()

	// Each tile's field of view
	dc.SetRGBA(0.2, 0.5, 0.9, 0.3)
	for _, tile := range plan.Tiles {
		x, y := toPX(transform.Point{X: tile.CenterUM.X - plan.FOVXUM/2, Y: tile.CenterUM.Y - plan.FOVYUM/2})
		dc.DrawRectangle(x, y, plan.FOVXUM*scale, plan.FOVYUM*scale)
		dc.Fill()
	}

	// Walk order through the centres
	ordered := make([]tiling.Tile, len(plan.Tiles))
	for _, tile := range plan.Tiles {
		ordered[tile.Order] = tile
	}

	dc.SetRGB(0.8, 0.2, 0.2)
	dc.SetLineWidth(1)
	for i, tile := range ordered {
		x, y := toPX(tile.CenterUM)
		if i == 0 {
			dc.MoveTo(x, y)
		} else {
			dc.LineTo(x, y)
		}
	}
	dc.Stroke()

	return dc.Image(), nil
}
