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

	"gonum.org/v1/gonum/mat"
)

// FitAffine - least-squares fit of a full affine transform from ground-truth
// point pairs. Needs at least 3 pairs, and they must not be collinear -
// collinear points leave the fit underdetermined so we error rather than guess
func FitAffine(pairs []PointPair) (AffineTransform, error) {
	if len(pairs) < 3 {
		return AffineTransform{}, fmt.Errorf("affine fit needs at least 3 point pairs, got %v", len(pairs))
	}

	// Each pair contributes 2 equations:
	//   [x y 1 0 0 0] . [XX XY TX YX YY TY] = destX
	//   [0 0 0 x y 1] . [XX XY TX YX YY TY] = destY
	a := mat.NewDense(len(pairs)*2, 6, nil)
	b := mat.NewVecDense(len(pairs)*2, nil)

	for i, pair := range pairs {
		a.SetRow(i*2, []float64{pair.Source.X, pair.Source.Y, 1, 0, 0, 0})
		a.SetRow(i*2+1, []float64{0, 0, 0, pair.Source.X, pair.Source.Y, 1})
		b.SetVec(i*2, pair.Dest.X)
		b.SetVec(i*2+1, pair.Dest.Y)
	}

	var x mat.VecDense
	err := x.SolveVec(a, b)
	if err != nil {
		// Singular or badly conditioned system, usually collinear points
		return AffineTransform{}, fmt.Errorf("affine fit failed, point pairs may be collinear: %v", err)
	}

	result := AffineTransform{
		XX: x.AtVec(0),
		XY: x.AtVec(1),
		TX: x.AtVec(2),
		YX: x.AtVec(3),
		YY: x.AtVec(4),
		TY: x.AtVec(5),
	}

	if result.IsDegenerate() {
		return AffineTransform{}, fmt.Errorf("affine fit produced a degenerate transform, determinant=%v", result.Determinant())
	}

	return result, nil
}
