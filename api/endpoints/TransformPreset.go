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
	"context"
	"encoding/json"
	"fmt"

	"github.com/slidescope/core/api/dbCollections"
	"github.com/slidescope/core/api/handlers"
	"github.com/slidescope/core/api/permission"
	apiRouter "github.com/slidescope/core/api/router"
	"github.com/slidescope/core/core/errorwithstatus"
	"github.com/slidescope/core/core/transform"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

////////////////////////////////////////////////////////////////////////////////////////////////////////////
// Saved WSI->stage transform presets

const presetIdentifier = "presetId"

type transformPresetListResponse struct {
	Presets []transform.TransformPreset `json:"presets"`
}

func registerTransformPresetHandler(router *apiRouter.ApiObjectRouter) {
	const pathPrefix = "transform-preset"

	listPath := handlers.MakeEndpointPath(pathPrefix)
	itemPath := handlers.MakeEndpointPath(pathPrefix, presetIdentifier)

	router.AddJSONHandler(listPath, apiRouter.MakeMethodPermission("GET", permission.PermReadScope), transformPresetList)
	router.AddJSONHandler(itemPath, apiRouter.MakeMethodPermission("GET", permission.PermReadScope), transformPresetGet)

	router.AddJSONHandler(listPath, apiRouter.MakeMethodPermission("POST", permission.PermWritePresets), transformPresetPost)
	router.AddJSONHandler(itemPath, apiRouter.MakeMethodPermission("PUT", permission.PermWritePresets), transformPresetPut)
	router.AddJSONHandler(itemPath, apiRouter.MakeMethodPermission("DELETE", permission.PermWritePresets), transformPresetDelete)
}

func presetCollection(params handlers.ApiHandlerParams) *mongo.Collection {
	return params.Svcs.MongoDB.Collection(dbCollections.TransformPresetsName)
}

func transformPresetList(params handlers.ApiHandlerParams) (interface{}, error) {
	filter := bson.M{}
	if microscopeId, ok := params.PathParams["microscope"]; ok && len(microscopeId) > 0 {
		filter["microscopeId"] = microscopeId
	}

	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := presetCollection(params).Find(context.TODO(), filter, opts)
	if err != nil {
		return nil, err
	}

	presets := []transform.TransformPreset{}
	if err := cursor.All(context.TODO(), &presets); err != nil {
		return nil, err
	}

	return transformPresetListResponse{Presets: presets}, nil
}

func transformPresetGet(params handlers.ApiHandlerParams) (interface{}, error) {
	id := params.PathParams[presetIdentifier]

	var preset transform.TransformPreset
	err := presetCollection(params).FindOne(context.TODO(), bson.M{"_id": id}).Decode(&preset)
	if err == mongo.ErrNoDocuments {
		return nil, errorwithstatus.MakeNotFoundError(id)
	}
	if err != nil {
		return nil, err
	}

	return preset, nil
}

func transformPresetPost(params handlers.ApiHandlerParams) (interface{}, error) {
	var preset transform.TransformPreset
	if err := json.NewDecoder(params.Request.Body).Decode(&preset); err != nil {
		return nil, errorwithstatus.MakeBadRequestError(err)
	}

	if err := preset.Validate(); err != nil {
		return nil, errorwithstatus.MakeBadRequestError(err)
	}

	// Presets only make sense against a rig we know about
	if _, ok := params.Svcs.Profiles.Get(preset.MicroscopeId); !ok {
		return nil, errorwithstatus.MakeBadRequestError(
			fmt.Errorf("microscope profile %v not found", preset.MicroscopeId))
	}

	now := params.Svcs.TimeStamper.GetTimeNowSec()
	preset.Id = "preset-" + params.Svcs.IDGen.GenObjectID()
	preset.Creator = params.UserInfo.Name
	preset.CreatedUnixSec = now
	preset.ModifiedUnixSec = now

	if _, err := presetCollection(params).InsertOne(context.TODO(), preset); err != nil {
		return nil, err
	}

	params.Svcs.Log.Infof("Transform preset %v (%v) created by %v", preset.Id, preset.Name, preset.Creator)
	return preset, nil
}

func transformPresetPut(params handlers.ApiHandlerParams) (interface{}, error) {
	id := params.PathParams[presetIdentifier]

	var existing transform.TransformPreset
	err := presetCollection(params).FindOne(context.TODO(), bson.M{"_id": id}).Decode(&existing)
	if err == mongo.ErrNoDocuments {
		return nil, errorwithstatus.MakeNotFoundError(id)
	}
	if err != nil {
		return nil, err
	}

	var preset transform.TransformPreset
	if err := json.NewDecoder(params.Request.Body).Decode(&preset); err != nil {
		return nil, errorwithstatus.MakeBadRequestError(err)
	}

	// Identity and provenance fields aren't caller-editable
	preset.Id = existing.Id
	preset.Creator = existing.Creator
	preset.CreatedUnixSec = existing.CreatedUnixSec
	preset.ModifiedUnixSec = params.Svcs.TimeStamper.GetTimeNowSec()

	if err := preset.Validate(); err != nil {
		return nil, errorwithstatus.MakeBadRequestError(err)
	}

	if _, ok := params.Svcs.Profiles.Get(preset.MicroscopeId); !ok {
		return nil, errorwithstatus.MakeBadRequestError(
			fmt.Errorf("microscope profile %v not found", preset.MicroscopeId))
	}

	if _, err := presetCollection(params).ReplaceOne(context.TODO(), bson.M{"_id": id}, preset); err != nil {
		return nil, err
	}

	return preset, nil
}

func transformPresetDelete(params handlers.ApiHandlerParams) (interface{}, error) {
	id := params.PathParams[presetIdentifier]

	result, err := presetCollection(params).DeleteOne(context.TODO(), bson.M{"_id": id})
	if err != nil {
		return nil, err
	}
	if result.DeletedCount <= 0 {
		return nil, errorwithstatus.MakeNotFoundError(id)
	}

	params.Svcs.Log.Infof("Transform preset %v deleted by %v", id, params.UserInfo.Name)
	return map[string]string{"id": id}, nil
}
