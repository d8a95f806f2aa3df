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
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/slidescope/core/api/acquisition"
	"github.com/slidescope/core/api/handlers"
	"github.com/slidescope/core/api/permission"
	apiRouter "github.com/slidescope/core/api/router"
	"github.com/slidescope/core/core/errorwithstatus"
	"github.com/slidescope/core/core/tiling"
)

////////////////////////////////////////////////////////////////////////////////////////////////////////////
// Acquisition runs - start, watch, cancel, fetch results

const acquisitionIdentifier = "acquisitionId"

type acquisitionListResponse struct {
	Acquisitions []acquisition.AcquisitionSummary `json:"acquisitions"`
}

type acquisitionFile struct {
	Path    string `json:"path"`
	LinkURL string `json:"link"`
}

type acquisitionFilesResponse struct {
	AcquisitionId string            `json:"acquisitionId"`
	Files         []acquisitionFile `json:"files"`
}

func registerAcquisitionHandler(router *apiRouter.ApiObjectRouter) {
	const pathPrefix = "acquisition"

	listPath := handlers.MakeEndpointPath(pathPrefix)
	itemPath := handlers.MakeEndpointPath(pathPrefix, acquisitionIdentifier)

	router.AddJSONHandler(listPath, apiRouter.MakeMethodPermission("GET", permission.PermReadScope), acquisitionList)
	router.AddJSONHandler(itemPath, apiRouter.MakeMethodPermission("GET", permission.PermReadScope), acquisitionGet)
	router.AddJSONHandler(itemPath+"/files", apiRouter.MakeMethodPermission("GET", permission.PermReadScope), acquisitionFiles)

	router.AddJSONHandler(listPath, apiRouter.MakeMethodPermission("POST", permission.PermAcquire), acquisitionPost)
	router.AddJSONHandler(itemPath, apiRouter.MakeMethodPermission("DELETE", permission.PermAcquire), acquisitionDelete)

	// {fileName:.+} so tiles/tile_0_0.tif resolves too
	router.AddStreamHandler(
		handlers.MakeEndpointPath(pathPrefix, acquisitionIdentifier, handlers.UrlStreamDownloadIndicator, "fileName:.+"),
		apiRouter.MakeMethodPermission("GET", permission.PermReadScope), acquisitionFileDownload)
}

func acquisitionPost(params handlers.ApiHandlerParams) (interface{}, error) {
	var req tiling.TilingRequest
	if err := json.NewDecoder(params.Request.Body).Decode(&req); err != nil {
		return nil, errorwithstatus.MakeBadRequestError(err)
	}

	if len(req.SlideId) <= 0 {
		return nil, errorwithstatus.MakeBadRequestError(fmt.Errorf("slideId cannot be empty"))
	}

	// Defaulting beyond the objective happens here so the persisted request
	// shows what actually ran
	if profile, ok := params.Svcs.Profiles.Get(req.MicroscopeId); ok {
		if req.OverlapPercent <= 0 {
			req.OverlapPercent = profile.Tiling.OverlapPercent
		}
	}

	return params.Svcs.Acq.Start(req, params.UserInfo.Name)
}

func acquisitionList(params handlers.ApiHandlerParams) (interface{}, error) {
	filter := acquisition.ListFilter{
		MicroscopeId: params.PathParams["microscope"],
		SlideId:      params.PathParams["slide"],
	}

	if stateStr, ok := params.PathParams["state"]; ok && len(stateStr) > 0 {
		for _, s := range strings.Split(stateStr, ",") {
			filter.States = append(filter.States, acquisition.State(s))
		}
	}

	items, err := params.Svcs.Acq.List(filter)
	if err != nil {
		return nil, err
	}

	return acquisitionListResponse{Acquisitions: items}, nil
}

func acquisitionGet(params handlers.ApiHandlerParams) (interface{}, error) {
	return params.Svcs.Acq.Get(params.PathParams[acquisitionIdentifier])
}

func acquisitionDelete(params handlers.ApiHandlerParams) (interface{}, error) {
	id := params.PathParams[acquisitionIdentifier]

	if err := params.Svcs.Acq.Cancel(id); err != nil {
		return nil, err
	}

	params.Svcs.Log.Infof("Acquisition %v cancel requested by %v", id, params.UserInfo.Name)
	return map[string]string{"id": id}, nil
}

// Lists what a finished (or partial) run archived - tiles, the tile
// configuration, the summary, the stitched image if there is one. Links are
// signed so rig scripts can download without AWS credentials
func acquisitionFiles(params handlers.ApiHandlerParams) (interface{}, error) {
	id := params.PathParams[acquisitionIdentifier]

	summary, err := params.Svcs.Acq.Get(id)
	if err != nil {
		return nil, err
	}

	if len(summary.OutputPrefix) <= 0 {
		// Not uploaded anything yet
		return acquisitionFilesResponse{AcquisitionId: id, Files: []acquisitionFile{}}, nil
	}

	bucket := params.Svcs.Config.AcquisitionBucket
	paths, err := params.Svcs.FS.ListObjects(bucket, summary.OutputPrefix)
	if err != nil {
		return nil, err
	}

	expiry := time.Duration(params.Svcs.Config.SignedURLExpirySec) * time.Second

	files := make([]acquisitionFile, 0, len(paths))
	for _, p := range paths {
		file := acquisitionFile{Path: p}

		link, err := params.Svcs.Signer.GetSignedURL(params.Svcs.S3, bucket, p, expiry)
		if err != nil {
			params.Svcs.Log.Errorf("Failed to sign URL for %v: %v", p, err)
		} else {
			file.LinkURL = link
		}

		files = append(files, file)
	}

	return acquisitionFilesResponse{AcquisitionId: id, Files: files}, nil
}

// Streams one output file for a run. Signed URLs (see /files) are the normal
// route, this is for setups where clients can't reach the bucket directly
func acquisitionFileDownload(params handlers.ApiHandlerStreamParams) (*s3.GetObjectOutput, string, error) {
	id := params.PathParams[acquisitionIdentifier]
	fileName := params.PathParams["fileName"]

	// fileName can contain slashes (tiles/...), so make sure a ".." in it
	// can't climb out of the run's prefix
	prefix := acquisition.OutputPrefixForId(id)
	key := path.Join(prefix, fileName)
	if !strings.HasPrefix(key, prefix+"/") {
		return nil, "", errorwithstatus.MakeBadRequestError(fmt.Errorf("invalid file name: %v", fileName))
	}

	obj := &s3.GetObjectInput{
		Bucket: aws.String(params.Svcs.Config.AcquisitionBucket),
		Key:    aws.String(key),
	}

	result, err := params.Svcs.S3.GetObject(obj)
	return result, path.Base(fileName), err
}
