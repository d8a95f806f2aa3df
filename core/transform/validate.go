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
)

// What came out of checking a transform against ground-truth point pairs
type ValidationReport struct {
	PairsChecked  int     `json:"pairsChecked" bson:"pairsChecked"`
	ToleranceUM   float64 `json:"toleranceUM" bson:"toleranceUM"`
	WorstErrorUM  float64 `json:"worstErrorUM" bson:"worstErrorUM"`
	WorstPairIdx  int     `json:"worstPairIdx" bson:"worstPairIdx"`
	WithinBounds  bool    `json:"withinBounds" bson:"withinBounds"`
	VacuouslyPass bool    `json:"vacuouslyPass" bson:"vacuouslyPass"`
}

// Validate - checks every ground-truth pair lands within tolUM of its expected
// destination. Zero pairs passes but the report says so, callers can decide
// if they trust an unvalidated transform
func Validate(t AffineTransform, pairs []PointPair, tolUM float64) (ValidationReport, error) {
	report := ValidationReport{
		PairsChecked: len(pairs),
		ToleranceUM:  tolUM,
		WorstPairIdx: -1,
		WithinBounds: true,
	}

	if len(pairs) == 0 {
		report.VacuouslyPass = true
		return report, nil
	}

	for i, pair := range pairs {
		got := t.Apply(pair.Source)
		errUM := math.Hypot(got.X-pair.Dest.X, got.Y-pair.Dest.Y)
		if errUM > report.WorstErrorUM {
			report.WorstErrorUM = errUM
			report.WorstPairIdx = i
		}
	}

	if report.WorstErrorUM > tolUM {
		report.WithinBounds = false
		worst := pairs[report.WorstPairIdx]
		return report, fmt.Errorf(
			"ground truth pair %v error %.2fum exceeds tolerance %.2fum (source %v,%v)",
			report.WorstPairIdx, report.WorstErrorUM, tolUM, worst.Source.X, worst.Source.Y)
	}

	return report, nil
}

// ValidateStageBounds - all four corners of the mapped region must stay inside
// the stage travel limits. Reports the first corner found outside
func ValidateStageBounds(t AffineTransform, region Rect, stageBounds Rect) error {
	for i, corner := range region.Corners() {
		mapped := t.Apply(corner)
		if !stageBounds.Contains(mapped) {
			return fmt.Errorf(
				"region corner %v maps to stage (%.1f, %.1f)um, outside travel x[%.1f, %.1f] y[%.1f, %.1f]",
				i, mapped.X, mapped.Y, stageBounds.MinX, stageBounds.MaxX, stageBounds.MinY, stageBounds.MaxY)
		}
	}
	return nil
}
