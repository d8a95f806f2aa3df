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

package macro

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/slidescope/core/core/transform"
	"github.com/slidescope/core/core/utils"
)

type GreenBoxOptions struct {
	// A pixel counts as "green" when G >= MinGreen and G exceeds both R and B
	// by at least DominanceMargin (8-bit values)
	MinGreen        uint8
	DominanceMargin uint8

	// Hits must cover at least this fraction of the image area, anything less
	// is glare or speckle, not a drawn box
	MinAreaFraction float64

	// Images wider/taller than this get downscaled before scanning. The
	// returned rect is always in full-resolution coordinates. 0 disables
	MaxDetectDimPX int
}

func DefaultGreenBoxOptions() GreenBoxOptions {
	return GreenBoxOptions{
		MinGreen:        100,
		DominanceMargin: 40,
		MinAreaFraction: 0.0002,
		MaxDetectDimPX:  2000,
	}
}

// No plausible green box in the image. Typed so the API can answer 404
// rather than 500
type NoGreenBoxError struct {
	Reason string
}

func (e *NoGreenBoxError) Error() string {
	return "no green box found: " + e.Reason
}

func IsNoGreenBox(err error) bool {
	_, ok := err.(*NoGreenBoxError)
	return ok
}

// DetectGreenBox - finds the bounding rect of saturated-green pixels in a
// macro image. Detection runs on a downscaled copy for big images, then the
// rect is scaled back up, so results are always full-resolution macro pixels.
// Deterministic for a given image + options
func DetectGreenBox(img image.Image, opt GreenBoxOptions) (transform.Rect, error) {
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return transform.Rect{}, fmt.Errorf("macro image is empty")
	}

	scale := 1.0
	scanImg := img
	if opt.MaxDetectDimPX > 0 && (bounds.Dx() > opt.MaxDetectDimPX || bounds.Dy() > opt.MaxDetectDimPX) {
		// Lanczos keeps the box edges crisp enough to threshold
		if bounds.Dx() >= bounds.Dy() {
			scale = float64(bounds.Dx()) / float64(opt.MaxDetectDimPX)
			scanImg = imaging.Resize(img, opt.MaxDetectDimPX, 0, imaging.Lanczos)
		} else {
			scale = float64(bounds.Dy()) / float64(opt.MaxDetectDimPX)
			scanImg = imaging.Resize(img, 0, opt.MaxDetectDimPX, imaging.Lanczos)
		}
	}

	rect, hits, err := scanForGreen(scanImg, opt)
	if err != nil {
		return transform.Rect{}, err
	}

	scanBounds := scanImg.Bounds()
	minHits := opt.MinAreaFraction * float64(scanBounds.Dx()*scanBounds.Dy())
	if float64(hits) < minHits {
		return transform.Rect{}, &NoGreenBoxError{
			Reason: fmt.Sprintf("%v green pixels, need at least %.0f", hits, minHits),
		}
	}

	// Back to full-resolution coordinates. Scaling the last scan pixel back
	// up can land just past the image edge, so clamp to the real dimensions
	wPX := float64(bounds.Dx())
	hPX := float64(bounds.Dy())
	return transform.Rect{
		MinX: utils.ClampF64(rect.MinX*scale, 0, wPX),
		MinY: utils.ClampF64(rect.MinY*scale, 0, hPX),
		MaxX: utils.ClampF64(rect.MaxX*scale, 0, wPX),
		MaxY: utils.ClampF64(rect.MaxY*scale, 0, hPX),
	}, nil
}

func scanForGreen(img image.Image, opt GreenBoxOptions) (transform.Rect, int, error) {
	bounds := img.Bounds()

	minX, minY := bounds.Max.X, bounds.Max.Y
	maxX, maxY := bounds.Min.X-1, bounds.Min.Y-1
	hits := 0

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			r8 := uint8(r >> 8)
			g8 := uint8(g >> 8)
			b8 := uint8(b >> 8)

			if g8 < opt.MinGreen {
				continue
			}
			if int(g8)-int(r8) < int(opt.DominanceMargin) || int(g8)-int(b8) < int(opt.DominanceMargin) {
				continue
			}

			hits++
			if x < minX {
				minX = x
			}
			if y < minY {
				minY = y
			}
			if x > maxX {
				maxX = x
			}
			if y > maxY {
				maxY = y
			}
		}
	}

	if hits == 0 {
		return transform.Rect{}, 0, &NoGreenBoxError{Reason: "no green pixels above threshold"}
	}

	// Hits on the image border are fine, slides can overfill the frame
	return transform.Rect{
		MinX: float64(minX - bounds.Min.X),
		MinY: float64(minY - bounds.Min.Y),
		MaxX: float64(maxX - bounds.Min.X + 1),
		MaxY: float64(maxY - bounds.Min.Y + 1),
	}, hits, nil
}
