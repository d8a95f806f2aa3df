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

package render

import (
	"bytes"
	"image"
	"image/png"
	"testing"

	"github.com/slidescope/core/core/tiling"
	"github.com/slidescope/core/core/transform"
)

func makePlan(t *testing.T) tiling.TilePlan {
	t.Helper()

	req := tiling.TilingRequest{
		MicroscopeId:   "rig1",
		SlideId:        "slide-1",
		RegionUM:       transform.Rect{MinX: 1000, MinY: 1000, MaxX: 1250, MaxY: 1150},
		Objective:      "10x",
		OverlapPercent: 10,
		Serpentine:     true,
	}

	plan, err := tiling.PlanGrid(req, 100, 100, 0)
	if err != nil {
		t.Fatalf("PlanGrid failed: %v", err)
	}
	return plan
}

func TestPlanPreview(t *testing.T) {
	plan := makePlan(t)

	// 10000x5000um stage at 500px across -> 500x250px preview
	img, err := PlanPreview(plan, transform.Rect{MinX: 0, MinY: 0, MaxX: 10000, MaxY: 5000}, 500)
	if err != nil {
		t.Fatalf("PlanPreview failed: %v", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() != 500 || bounds.Dy() != 250 {
		t.Errorf("Preview is %vx%v, want 500x250", bounds.Dx(), bounds.Dy())
	}

	data, err := GetImageBytes(img, "png")
	if err != nil {
		t.Fatalf("GetImageBytes failed: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(data)); err != nil {
		t.Errorf("Preview did not encode as valid PNG: %v", err)
	}
}

func TestPlanPreviewErrors(t *testing.T) {
	plan := makePlan(t)

	if _, err := PlanPreview(plan, transform.Rect{}, 500); err == nil {
		t.Errorf("Empty stage bounds accepted")
	}
	if _, err := PlanPreview(plan, transform.Rect{MaxX: 100, MaxY: 100}, 0); err == nil {
		t.Errorf("Zero width accepted")
	}
}

func TestAnnotateGreenBox(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 200, 100))
	box := transform.Rect{MinX: 40, MinY: 20, MaxX: 160, MaxY: 80}

	out := AnnotateGreenBox(src, box)

	if out.Bounds() != src.Bounds() {
		t.Errorf("Annotated image bounds %v, want %v", out.Bounds(), src.Bounds())
	}

	// The outline has to actually be drawn - sample the box edge midpoint
	r, _, b, _ := out.At(100, 20).RGBA()
	if r == 0 || b == 0 {
		t.Errorf("Box edge not drawn at (100, 20), got %v", out.At(100, 20))
	}
}

func TestScaleImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 400, 200))

	out := ScaleImage(src, 100)
	if out.Bounds().Dx() != 100 || out.Bounds().Dy() != 50 {
		t.Errorf("Scaled to %vx%v, want 100x50", out.Bounds().Dx(), out.Bounds().Dy())
	}

	if _, err := GetImageBytes(out, "bmp"); err == nil {
		t.Errorf("Unknown output format accepted")
	}
}
