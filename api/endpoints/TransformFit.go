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

package endpoints

import (
	"encoding/json"

	"github.com/slidescope/core/api/handlers"
	"github.com/slidescope/core/api/permission"
	apiRouter "github.com/slidescope/core/api/router"
	"github.com/slidescope/core/core/errorwithstatus"
	"github.com/slidescope/core/core/transform"
)

////////////////////////////////////////////////////////////////////////////////////////////////////////////
// Fitting a WSI->stage transform from clicked calibration points

type transformFitRequest struct {
	Pairs []transform.PointPair `json:"pairs"`

	// Residual tolerance for the report, in stage micrometers. Zero means
	// "just fit, don't judge"
	ToleranceUM float64 `json:"toleranceUM"`
}

type transformFitResponse struct {
	Transform transform.AffineTransform   `json:"transform"`
	Report    *transform.ValidationReport `json:"report,omitempty"`
}

func registerTransformFitHandler(router *apiRouter.ApiObjectRouter) {
	router.AddJSONHandler(handlers.MakeEndpointPath("transform-fit"), apiRouter.MakeMethodPermission("POST", permission.PermReadScope), transformFitPost)
}

// Least-squares fit over the supplied point pairs. This is a pure calculation,
// nothing is saved - the operator reviews the residuals and then saves the
// result as a preset if it's good enough
func transformFitPost(params handlers.ApiHandlerParams) (interface{}, error) {
	var req transformFitRequest
	if err := json.NewDecoder(params.Request.Body).Decode(&req); err != nil {
		return nil, errorwithstatus.MakeBadRequestError(err)
	}

	fit, err := transform.FitAffine(req.Pairs)
	if err != nil {
		return nil, errorwithstatus.MakeBadRequestError(err)
	}

	result := transformFitResponse{Transform: fit}

	if req.ToleranceUM > 0 {
		report, err := transform.Validate(fit, req.Pairs, req.ToleranceUM)
		if err != nil {
			return nil, errorwithstatus.MakeBadRequestError(err)
		}
		result.Report = &report
	}

	return result, nil
}
