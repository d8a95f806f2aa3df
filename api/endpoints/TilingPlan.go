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
	"github.com/slidescope/core/core/tiling"
	"github.com/slidescope/core/core/transform"
)

////////////////////////////////////////////////////////////////////////////////////////////////////////////
// Tile plan preview - same planning as a real acquisition, no motion

// Pointer fields so we can tell "omitted" from "zero" and fill in the
// profile's tiling defaults
type tilingPlanRequest struct {
	tiling.TilingRequest
	OverlapPercent *float64 `json:"overlapPercent"`
	Serpentine     *bool    `json:"serpentine"`
}

type tilingPlanResponse struct {
	Plan       tiling.TilePlan `json:"plan"`
	CoverageUM transform.Rect  `json:"coverageUM"`
	TileCount  int             `json:"tileCount"`
	InBounds   bool            `json:"inBounds"`
}

func registerTilingPlanHandler(router *apiRouter.ApiObjectRouter) {
	router.AddJSONHandler(handlers.MakeEndpointPath("tiling-plan"), apiRouter.MakeMethodPermission("POST", permission.PermReadScope), tilingPlanPost)
}

func tilingPlanPost(params handlers.ApiHandlerParams) (interface{}, error) {
	var body tilingPlanRequest
	if err := json.NewDecoder(params.Request.Body).Decode(&body); err != nil {
		return nil, errorwithstatus.MakeBadRequestError(err)
	}

	req := body.TilingRequest

	profile, ok := params.Svcs.Profiles.Get(req.MicroscopeId)
	if !ok {
		return nil, errorwithstatus.MakeNotFoundError(req.MicroscopeId)
	}

	if len(req.Objective) <= 0 {
		req.Objective = profile.DefaultObjective
	}
	if body.OverlapPercent != nil {
		req.OverlapPercent = *body.OverlapPercent
	} else {
		req.OverlapPercent = profile.Tiling.OverlapPercent
	}
	if body.Serpentine != nil {
		req.Serpentine = *body.Serpentine
	} else {
		req.Serpentine = profile.Tiling.Serpentine
	}

	fovX, fovY, err := profile.FOVUM(req.Objective)
	if err != nil {
		return nil, errorwithstatus.MakeBadRequestError(err)
	}

	plan, err := tiling.PlanGrid(req, fovX, fovY, int(params.Svcs.Config.MaxTilesPerPlan))
	if err != nil {
		return nil, errorwithstatus.MakeBadRequestError(err)
	}

	// A preview reports out-of-travel coverage instead of rejecting it, the
	// operator can see how far out they are and shrink the region
	coverage := plan.CoverageUM()
	inBounds := transform.ValidateStageBounds(transform.MakeIdentity(), coverage, profile.StageBounds()) == nil

	return tilingPlanResponse{
		Plan:       plan,
		CoverageUM: coverage,
		TileCount:  len(plan.Tiles),
		InBounds:   inBounds,
	}, nil
}
