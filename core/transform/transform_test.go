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

package transform

import (
	"fmt"
	"math"
	"testing"
)

func Example_apply() {
	t := MakeTranslate(10, -5)
	fmt.Println(t.Apply(Point{3, 4}))

	s := MakeScale(2, 3)
	fmt.Println(s.Apply(Point{3, 4}))

	sa := MakeScaleAround(2, 2, Point{100, 100})
	fmt.Println(sa.Apply(Point{100, 100}))
	fmt.Println(sa.Apply(Point{101, 100}))

	// Output:
	// {13 -1}
	// {6 12}
	// {100 100}
	// {102 100}
}

func Example_makeFromRectMapping() {
	// Green box at macro px (120,80)-(620,480), WSI is 40000x32000 px
	t, err := MakeFromRectMapping(
		Rect{MinX: 120, MinY: 80, MaxX: 620, MaxY: 480},
		Rect{MinX: 0, MinY: 0, MaxX: 40000, MaxY: 32000},
	)
	fmt.Println(err)
	fmt.Println(t.Apply(Point{120, 80}))
	fmt.Println(t.Apply(Point{620, 480}))
	fmt.Println(t.Apply(Point{370, 280}))

	// Empty source rect must fail
	_, err = MakeFromRectMapping(Rect{MinX: 5, MinY: 5, MaxX: 5, MaxY: 10}, Rect{MaxX: 1, MaxY: 1})
	fmt.Println(err)

	// Output:
	// <nil>
	// {0 0}
	// {40000 32000}
	// {20000 16000}
	// source rect is empty: {MinX:5 MinY:5 MaxX:5 MaxY:10}
}

func TestInvertRoundTrip(t *testing.T) {
	transforms := []AffineTransform{
		MakeIdentity(),
		MakeTranslate(1234.5, -987.25),
		MakeScale(0.25, 4),
		{XX: 1.2, XY: 0.3, TX: 55, YX: -0.1, YY: 0.9, TY: -20},
	}
	points := []Point{{0, 0}, {100, 200}, {-3.5, 7.25}}

	for _, xform := range transforms {
		inv, err := xform.Invert()
		if err != nil {
			t.Fatalf("Invert failed for %+v: %v", xform, err)
		}

		for _, p := range points {
			got := inv.Apply(xform.Apply(p))
			if math.Abs(got.X-p.X) > 1e-9 || math.Abs(got.Y-p.Y) > 1e-9 {
				t.Errorf("Round trip of %v through %+v got %v", p, xform, got)
			}
		}
	}
}

func TestInvertDegenerate(t *testing.T) {
	degen := MakeScale(1, 0)
	if _, err := degen.Invert(); err == nil {
		t.Errorf("Expected error inverting degenerate transform")
	}
	if !degen.IsDegenerate() {
		t.Errorf("Expected IsDegenerate for zero-scale transform")
	}
}

func TestComposeMatchesApply(t *testing.T) {
	a := AffineTransform{XX: 2, XY: 0.5, TX: 3, YX: -0.25, YY: 1.5, TY: -7}
	b := MakeScaleAround(3, 0.5, Point{10, 20})
	points := []Point{{0, 0}, {1, 1}, {-50, 42.5}}

	ab := a.Compose(b)
	for _, p := range points {
		want := a.Apply(b.Apply(p))
		got := ab.Apply(p)
		if math.Abs(got.X-want.X) > 1e-9 || math.Abs(got.Y-want.Y) > 1e-9 {
			t.Errorf("Compose mismatch at %v: got %v, want %v", p, got, want)
		}
	}
}

func TestFitAffineRecovers(t *testing.T) {
	// A known transform, fit should recover it from exact samples
	want := AffineTransform{XX: 1.5, XY: -0.2, TX: 300, YX: 0.1, YY: 2.0, TY: -150}

	sources := []Point{{0, 0}, {100, 0}, {0, 100}, {250, 175}}
	pairs := []PointPair{}
	for _, s := range sources {
		pairs = append(pairs, PointPair{Source: s, Dest: want.Apply(s)})
	}

	got, err := FitAffine(pairs)
	if err != nil {
		t.Fatalf("FitAffine failed: %v", err)
	}

	checks := map[string][2]float64{
		"XX": {got.XX, want.XX}, "XY": {got.XY, want.XY}, "TX": {got.TX, want.TX},
		"YX": {got.YX, want.YX}, "YY": {got.YY, want.YY}, "TY": {got.TY, want.TY},
	}
	for name, vals := range checks {
		if math.Abs(vals[0]-vals[1]) > 1e-6 {
			t.Errorf("FitAffine %v: got %v, want %v", name, vals[0], vals[1])
		}
	}
}

func TestFitAffineRejects(t *testing.T) {
	// Too few pairs
	_, err := FitAffine([]PointPair{
		{Source: Point{0, 0}, Dest: Point{1, 1}},
		{Source: Point{1, 0}, Dest: Point{2, 1}},
	})
	if err == nil {
		t.Errorf("Expected error for < 3 pairs")
	}

	// Collinear sources, underdetermined
	_, err = FitAffine([]PointPair{
		{Source: Point{0, 0}, Dest: Point{0, 0}},
		{Source: Point{1, 1}, Dest: Point{2, 2}},
		{Source: Point{2, 2}, Dest: Point{4, 4}},
		{Source: Point{3, 3}, Dest: Point{6, 6}},
	})
	if err == nil {
		t.Errorf("Expected error for collinear pairs")
	}
}

func Example_validate() {
	xform := MakeScale(10, 10)

	pairs := []PointPair{
		{Source: Point{10, 10}, Dest: Point{100, 100}},
		{Source: Point{20, 20}, Dest: Point{200, 203}}, // 3um off
	}

	report, err := Validate(xform, pairs, 5)
	fmt.Printf("%v pairs=%v worst=%.1f idx=%v ok=%v\n", err, report.PairsChecked, report.WorstErrorUM, report.WorstPairIdx, report.WithinBounds)

	_, err = Validate(xform, pairs, 1)
	fmt.Println(err)

	report, err = Validate(xform, nil, 5)
	fmt.Printf("%v vacuous=%v\n", err, report.VacuouslyPass)

	// Output:
	// <nil> pairs=2 worst=3.0 idx=1 ok=true
	// ground truth pair 1 error 3.00um exceeds tolerance 1.00um (source 20,20)
	// <nil> vacuous=true
}

func Example_validateStageBounds() {
	bounds := Rect{MinX: 0, MinY: 0, MaxX: 75000, MaxY: 25000}
	xform := MakeScale(10, 10)

	fmt.Println(ValidateStageBounds(xform, Rect{MinX: 100, MinY: 100, MaxX: 5000, MaxY: 2000}, bounds))
	fmt.Println(ValidateStageBounds(xform, Rect{MinX: 100, MinY: 100, MaxX: 8000, MaxY: 2000}, bounds))

	// Output:
	// <nil>
	// region corner 1 maps to stage (80000.0, 1000.0)um, outside travel x[0.0, 75000.0] y[0.0, 25000.0]
}

func TestPresetValidate(t *testing.T) {
	good := TransformPreset{Id: "pre123", Name: "40x oil", MicroscopeId: "rig-a", Transform: MakeScale(0.25, 0.25)}
	if err := good.Validate(); err != nil {
		t.Errorf("Expected valid preset, got: %v", err)
	}

	bad := []TransformPreset{
		{Id: "p1", MicroscopeId: "rig-a", Transform: MakeIdentity()},             // no name
		{Id: "p2", Name: "x", Transform: MakeIdentity()},                         // no scope
		{Id: "p3", Name: "x", MicroscopeId: "rig-a"},                             // zero transform is degenerate
		{Id: "p4", Name: "x", MicroscopeId: "rig-a", Transform: MakeScale(1, 0)}, // collapses Y
	}
	for _, p := range bad {
		if err := p.Validate(); err == nil {
			t.Errorf("Expected preset %v to fail validation", p.Id)
		}
	}
}
