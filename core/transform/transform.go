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

// 2D affine transforms for mapping between the coordinate spaces we deal with:
// macro camera pixels, whole-slide image pixels and stage micrometers. All the
// sample setup / tiling maths is built on these.
package transform

import (
	"fmt"
	"math"
)

// Determinants below this are treated as degenerate - a transform that
// collapses the plane can't be inverted or trusted
const degenerateDetThreshold = 1e-12

type Point struct {
	X float64 `json:"x" bson:"x"`
	Y float64 `json:"y" bson:"y"`
}

// Axis-aligned rectangle. Min is the top-left in image spaces (y down),
// bottom-left in stage space (y up) - the maths doesn't care, only callers do
type Rect struct {
	MinX float64 `json:"minX" bson:"minX"`
	MinY float64 `json:"minY" bson:"minY"`
	MaxX float64 `json:"maxX" bson:"maxX"`
	MaxY float64 `json:"maxY" bson:"maxY"`
}

func (r Rect) Width() float64 {
	return r.MaxX - r.MinX
}

func (r Rect) Height() float64 {
	return r.MaxY - r.MinY
}

func (r Rect) IsEmpty() bool {
	return r.Width() <= 0 || r.Height() <= 0
}

func (r Rect) Contains(p Point) bool {
	return p.X >= r.MinX && p.X <= r.MaxX && p.Y >= r.MinY && p.Y <= r.MaxY
}

func (r Rect) Corners() []Point {
	return []Point{
		{r.MinX, r.MinY},
		{r.MaxX, r.MinY},
		{r.MaxX, r.MaxY},
		{r.MinX, r.MaxY},
	}
}

func (r Rect) Center() Point {
	return Point{(r.MinX + r.MaxX) / 2, (r.MinY + r.MaxY) / 2}
}

// AffineTransform - 2x3 matrix applying:
//
//	x' = XX*x + XY*y + TX
//	y' = YX*x + YY*y + TY
type AffineTransform struct {
	XX float64 `json:"xx" bson:"xx"`
	XY float64 `json:"xy" bson:"xy"`
	TX float64 `json:"tx" bson:"tx"`
	YX float64 `json:"yx" bson:"yx"`
	YY float64 `json:"yy" bson:"yy"`
	TY float64 `json:"ty" bson:"ty"`
}

// A source point and where it is expected to land, used both for fitting
// transforms and validating them against ground truth
type PointPair struct {
	Source Point `json:"source" bson:"source"`
	Dest   Point `json:"dest" bson:"dest"`
}

func MakeIdentity() AffineTransform {
	return AffineTransform{XX: 1, YY: 1}
}

func MakeTranslate(dx float64, dy float64) AffineTransform {
	return AffineTransform{XX: 1, YY: 1, TX: dx, TY: dy}
}

func MakeScale(sx float64, sy float64) AffineTransform {
	return AffineTransform{XX: sx, YY: sy}
}

// MakeScaleAround - scale about a pivot point, so the pivot maps to itself
func MakeScaleAround(sx float64, sy float64, pivot Point) AffineTransform {
	return AffineTransform{
		XX: sx,
		YY: sy,
		TX: pivot.X - sx*pivot.X,
		TY: pivot.Y - sy*pivot.Y,
	}
}

func (t AffineTransform) Apply(p Point) Point {
	return Point{
		X: t.XX*p.X + t.XY*p.Y + t.TX,
		Y: t.YX*p.X + t.YY*p.Y + t.TY,
	}
}

// ApplyToRect - maps all 4 corners and returns their bounding box. For
// transforms with rotation/shear this is the bounds of the warped rect,
// for scale+translate it's exact
func (t AffineTransform) ApplyToRect(r Rect) Rect {
	corners := r.Corners()
	result := Rect{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	for _, c := range corners {
		p := t.Apply(c)
		result.MinX = math.Min(result.MinX, p.X)
		result.MinY = math.Min(result.MinY, p.Y)
		result.MaxX = math.Max(result.MaxX, p.X)
		result.MaxY = math.Max(result.MaxY, p.Y)
	}
	return result
}

func (t AffineTransform) Determinant() float64 {
	return t.XX*t.YY - t.XY*t.YX
}

func (t AffineTransform) IsDegenerate() bool {
	return math.Abs(t.Determinant()) < degenerateDetThreshold
}

// Invert - returns the inverse transform, or an error for degenerate ones
func (t AffineTransform) Invert() (AffineTransform, error) {
	det := t.Determinant()
	if math.Abs(det) < degenerateDetThreshold {
		return AffineTransform{}, fmt.Errorf("transform is degenerate, determinant=%v", det)
	}

	inv := AffineTransform{
		XX: t.YY / det,
		XY: -t.XY / det,
		YX: -t.YX / det,
		YY: t.XX / det,
	}
	inv.TX = -(inv.XX*t.TX + inv.XY*t.TY)
	inv.TY = -(inv.YX*t.TX + inv.YY*t.TY)
	return inv, nil
}

// Compose - a.Compose(b) returns the transform that applies b first, then a.
// So a.Compose(b).Apply(p) == a.Apply(b.Apply(p))
func (t AffineTransform) Compose(b AffineTransform) AffineTransform {
	return AffineTransform{
		XX: t.XX*b.XX + t.XY*b.YX,
		XY: t.XX*b.XY + t.XY*b.YY,
		TX: t.XX*b.TX + t.XY*b.TY + t.TX,
		YX: t.YX*b.XX + t.YY*b.YX,
		YY: t.YX*b.XY + t.YY*b.YY,
		TY: t.YX*b.TX + t.YY*b.TY + t.TY,
	}
}

// MakeFromRectMapping - the scale+translate transform sending one axis-aligned
// rectangle onto another. This is how the detected green box in a macro image
// gets mapped onto the full pixel rect of the whole-slide image
func MakeFromRectMapping(src Rect, dst Rect) (AffineTransform, error) {
	if src.IsEmpty() {
		return AffineTransform{}, fmt.Errorf("source rect is empty: %+v", src)
	}

	sx := dst.Width() / src.Width()
	sy := dst.Height() / src.Height()

	return AffineTransform{
		XX: sx,
		YY: sy,
		TX: dst.MinX - sx*src.MinX,
		TY: dst.MinY - sy*src.MinY,
	}, nil
}
