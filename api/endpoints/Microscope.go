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
	"fmt"
	"io"
	"net/http"

	"github.com/slidescope/core/api/acquisition"
	"github.com/slidescope/core/api/handlers"
	"github.com/slidescope/core/api/permission"
	apiRouter "github.com/slidescope/core/api/router"
	"github.com/slidescope/core/core/errorwithstatus"
	"github.com/slidescope/core/core/microscope"
	"github.com/slidescope/core/core/transform"
)

////////////////////////////////////////////////////////////////////////////////////////////////////////////
// Microscope profiles + direct rig control

const microscopeIdentifier = "microscopeId"

const maxProfileUploadBytes = 1024 * 1024

type microscopeListResponse struct {
	Microscopes []microscope.MicroscopeConfig `json:"microscopes"`
}

type microscopeStatusResponse struct {
	MicroscopeId        string  `json:"microscopeId"`
	Connected           bool    `json:"connected"`
	ServerVersion       string  `json:"serverVersion,omitempty"`
	XUM                 float64 `json:"xUM"`
	YUM                 float64 `json:"yUM"`
	ZUM                 float64 `json:"zUM"`
	ActiveAcquisitionId string  `json:"activeAcquisitionId,omitempty"`
	Error               string  `json:"error,omitempty"`
}

type microscopeMoveRequest struct {
	XUM float64  `json:"xUM"`
	YUM float64  `json:"yUM"`
	ZUM *float64 `json:"zUM,omitempty"`
}

type microscopeSnapRequest struct {
	Path string `json:"path"`
}

type microscopeSnapResponse struct {
	Path string `json:"path"`
}

func registerMicroscopeHandler(router *apiRouter.ApiObjectRouter) {
	const pathPrefix = "microscope"

	listPath := handlers.MakeEndpointPath(pathPrefix)
	itemPath := handlers.MakeEndpointPath(pathPrefix, microscopeIdentifier)

	router.AddJSONHandler(listPath, apiRouter.MakeMethodPermission("GET", permission.PermReadScope), microscopeList)
	router.AddGenericHandler(listPath, apiRouter.MakeMethodPermission("POST", permission.PermEditScope), microscopeImport)

	router.AddJSONHandler(itemPath, apiRouter.MakeMethodPermission("GET", permission.PermReadScope), microscopeGet)
	router.AddJSONHandler(itemPath+"/status", apiRouter.MakeMethodPermission("GET", permission.PermReadScope), microscopeStatus)
	router.AddGenericHandler(itemPath+"/export", apiRouter.MakeMethodPermission("GET", permission.PermReadScope), microscopeExport)

	router.AddJSONHandler(itemPath+"/move", apiRouter.MakeMethodPermission("POST", permission.PermEditScope), microscopeMove)
	router.AddJSONHandler(itemPath+"/snap", apiRouter.MakeMethodPermission("POST", permission.PermEditScope), microscopeSnap)
}

func microscopeList(params handlers.ApiHandlerParams) (interface{}, error) {
	return microscopeListResponse{Microscopes: params.Svcs.Profiles.List()}, nil
}

func microscopeGet(params handlers.ApiHandlerParams) (interface{}, error) {
	id := params.PathParams[microscopeIdentifier]

	cfg, ok := params.Svcs.Profiles.Get(id)
	if !ok {
		return nil, errorwithstatus.MakeNotFoundError(id)
	}
	return cfg, nil
}

// Dials the rig if we don't already have a link, so this doubles as a
// connectivity check. Failures come back in the response body rather than as
// an HTTP error - an unreachable rig is a valid status to report
func microscopeStatus(params handlers.ApiHandlerParams) (interface{}, error) {
	id := params.PathParams[microscopeIdentifier]

	if _, ok := params.Svcs.Profiles.Get(id); !ok {
		return nil, errorwithstatus.MakeNotFoundError(id)
	}

	result := microscopeStatusResponse{MicroscopeId: id}
	if params.Svcs.Acq != nil {
		if acqId, busy := params.Svcs.Acq.ActiveForMicroscope(id); busy {
			result.ActiveAcquisitionId = acqId
		}
	}

	client, err := params.Svcs.Scopes.Get(id)
	if err != nil {
		result.Error = err.Error()
		return result, nil
	}

	ver, err := client.Ping()
	if err != nil {
		result.Error = err.Error()
		return result, nil
	}

	result.Connected = true
	result.ServerVersion = ver

	pos, err := client.Position()
	if err != nil {
		result.Error = err.Error()
		return result, nil
	}
	result.XUM = pos.X
	result.YUM = pos.Y

	z, err := client.PositionZ()
	if err != nil {
		result.Error = err.Error()
		return result, nil
	}
	result.ZUM = z

	return result, nil
}

func microscopeExport(params handlers.ApiHandlerGenericParams) error {
	id := params.PathParams[microscopeIdentifier]

	data, err := params.Svcs.Profiles.Export(id)
	if err != nil {
		return errorwithstatus.MakeNotFoundError(id)
	}

	params.Writer.Header().Set("Content-Type", "application/x-yaml")
	params.Writer.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%v.yml\"", id))
	params.Writer.Write(data)
	return nil
}

// Takes a profile YAML body and registers it for this daemon run. It is NOT
// written back to the profile directory - rig profiles on disk are deployed
// config, this is for trying a profile out before committing it
func microscopeImport(params handlers.ApiHandlerGenericParams) error {
	body, err := io.ReadAll(io.LimitReader(params.Request.Body, maxProfileUploadBytes))
	if err != nil {
		return errorwithstatus.MakeBadRequestError(err)
	}

	cfg, err := microscope.Decode(body)
	if err != nil {
		return errorwithstatus.MakeBadRequestError(err)
	}

	if err := params.Svcs.Profiles.Add(cfg); err != nil {
		return errorwithstatus.MakeConflictError(err)
	}

	params.Svcs.Log.Infof("Imported microscope profile %v (%v)", cfg.Id, cfg.DisplayName)

	handlers.ToJSON(params.Writer, cfg)
	return nil
}

func microscopeMove(params handlers.ApiHandlerParams) (interface{}, error) {
	id := params.PathParams[microscopeIdentifier]

	cfg, ok := params.Svcs.Profiles.Get(id)
	if !ok {
		return nil, errorwithstatus.MakeNotFoundError(id)
	}

	var req microscopeMoveRequest
	if err := json.NewDecoder(params.Request.Body).Decode(&req); err != nil {
		return nil, errorwithstatus.MakeBadRequestError(err)
	}

	target := transform.Point{X: req.XUM, Y: req.YUM}
	if !cfg.StageBounds().Contains(target) {
		return nil, errorwithstatus.MakeBadRequestError(
			fmt.Errorf("target (%v, %v) is outside the stage travel of %v", req.XUM, req.YUM, id))
	}

	if err := checkRigIdle(params.Svcs.Acq, id); err != nil {
		return nil, err
	}

	client, err := params.Svcs.Scopes.Get(id)
	if err != nil {
		return nil, errorwithstatus.MakeStatusError(http.StatusServiceUnavailable, err)
	}

	if err := client.MoveTo(req.XUM, req.YUM); err != nil {
		return nil, errorwithstatus.MakeStatusError(http.StatusBadGateway, err)
	}
	if req.ZUM != nil {
		if err := client.MoveZ(*req.ZUM); err != nil {
			return nil, errorwithstatus.MakeStatusError(http.StatusBadGateway, err)
		}
	}

	return microscopeStatusFromClient(id, client)
}

func microscopeSnap(params handlers.ApiHandlerParams) (interface{}, error) {
	id := params.PathParams[microscopeIdentifier]

	if _, ok := params.Svcs.Profiles.Get(id); !ok {
		return nil, errorwithstatus.MakeNotFoundError(id)
	}

	var req microscopeSnapRequest
	if err := json.NewDecoder(params.Request.Body).Decode(&req); err != nil && err != io.EOF {
		return nil, errorwithstatus.MakeBadRequestError(err)
	}

	// The scope server's SNAP command requires a save path
	if len(req.Path) <= 0 {
		return nil, errorwithstatus.MakeBadRequestError(fmt.Errorf("snap requires a save path"))
	}

	if err := checkRigIdle(params.Svcs.Acq, id); err != nil {
		return nil, err
	}

	client, err := params.Svcs.Scopes.Get(id)
	if err != nil {
		return nil, errorwithstatus.MakeStatusError(http.StatusServiceUnavailable, err)
	}

	saved, err := client.Snap(req.Path)
	if err != nil {
		return nil, errorwithstatus.MakeStatusError(http.StatusBadGateway, err)
	}

	return microscopeSnapResponse{Path: saved}, nil
}

// Manual stage/camera commands aren't allowed while an acquisition holds
// the rig
func checkRigIdle(acq *acquisition.Manager, microscopeId string) error {
	if acq == nil {
		return nil
	}
	if acqId, busy := acq.ActiveForMicroscope(microscopeId); busy {
		return errorwithstatus.MakeConflictError(
			fmt.Errorf("microscope %v is running acquisition %v", microscopeId, acqId))
	}
	return nil
}

func microscopeStatusFromClient(id string, client scopePositioner) (interface{}, error) {
	result := microscopeStatusResponse{MicroscopeId: id, Connected: true}

	pos, err := client.Position()
	if err != nil {
		return nil, errorwithstatus.MakeStatusError(http.StatusBadGateway, err)
	}
	result.XUM = pos.X
	result.YUM = pos.Y

	z, err := client.PositionZ()
	if err != nil {
		return nil, errorwithstatus.MakeStatusError(http.StatusBadGateway, err)
	}
	result.ZUM = z

	return result, nil
}

type scopePositioner interface {
	Position() (transform.Point, error)
	PositionZ() (float64, error)
}
