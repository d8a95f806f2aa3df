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
	"fmt"
	"io"
	"path"
	"strconv"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/slidescope/core/api/dbCollections"
	"github.com/slidescope/core/api/handlers"
	"github.com/slidescope/core/api/permission"
	apiRouter "github.com/slidescope/core/api/router"
	"github.com/slidescope/core/core/errorwithstatus"
	"github.com/slidescope/core/core/macro"
	"github.com/slidescope/core/core/render"
	"github.com/slidescope/core/core/transform"
	"github.com/slidescope/core/core/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

////////////////////////////////////////////////////////////////////////////////////////////////////////////
// Sample setup - registering a loaded slide's macro image against the stage

const slideIdentifier = "slideId"

const maxMacroUploadBytes = 64 * 1024 * 1024

// File names the setup archives under sample-setups/<slideId>/ in the
// acquisition bucket. The download endpoint only serves these two
const macroImageFileName = "macro-image"
const macroOverlayFileName = "macro-overlay.png"

// SampleSetupResult - everything worked out when a slide was registered.
// MacroToStage is the transform acquisitions actually use: macro pixel in,
// stage micrometer out
type SampleSetupResult struct {
	Id           string `json:"id" bson:"_id"`
	SlideId      string `json:"slideId" bson:"slideId"`
	MicroscopeId string `json:"microscopeId" bson:"microscopeId"`
	PresetId     string `json:"presetId" bson:"presetId"`

	MacroWidthPX  int            `json:"macroWidthPX" bson:"macroWidthPX"`
	MacroHeightPX int            `json:"macroHeightPX" bson:"macroHeightPX"`
	WSIWidthPX    int            `json:"wsiWidthPX" bson:"wsiWidthPX"`
	WSIHeightPX   int            `json:"wsiHeightPX" bson:"wsiHeightPX"`
	GreenBoxPX    transform.Rect `json:"greenBoxPX" bson:"greenBoxPX"`

	MacroToWSI   transform.AffineTransform `json:"macroToWSI" bson:"macroToWSI"`
	WSIToStage   transform.AffineTransform `json:"wsiToStage" bson:"wsiToStage"`
	MacroToStage transform.AffineTransform `json:"macroToStage" bson:"macroToStage"`

	Validation *transform.ValidationReport `json:"validation,omitempty" bson:"validation,omitempty"`

	// Where the uploaded macro image got archived in the acquisition bucket,
	// plus a rendered copy with the detected box outlined
	MacroImagePath   string `json:"macroImagePath" bson:"macroImagePath"`
	OverlayImagePath string `json:"overlayImagePath,omitempty" bson:"overlayImagePath,omitempty"`

	Creator        string `json:"creator" bson:"creator"`
	CreatedUnixSec int64  `json:"createdUnixSec" bson:"createdUnixSec"`
}

func registerSampleSetupHandler(router *apiRouter.ApiObjectRouter) {
	itemPath := handlers.MakeEndpointPath("sample-setup", slideIdentifier)

	router.AddJSONHandler(itemPath, apiRouter.MakeMethodPermission("POST", permission.PermAcquire), sampleSetupPost)
	router.AddJSONHandler(itemPath, apiRouter.MakeMethodPermission("GET", permission.PermReadScope), sampleSetupGet)
	router.AddCacheControlledStreamHandler(
		handlers.MakeEndpointPath("sample-setup", slideIdentifier, handlers.UrlStreamDownloadIndicator, "fileName"),
		apiRouter.MakeMethodPermission("GET", permission.PermReadScope), sampleSetupImageDownload)
}

func sampleSetupCollection(params handlers.ApiHandlerParams) *mongo.Collection {
	return params.Svcs.MongoDB.Collection(dbCollections.SampleSetupsName)
}

// The whole slide registration workflow in one request. Body is the macro
// camera image (PNG/JPEG/TIFF), query params say which rig, which saved
// transform preset, and the WSI pixel dimensions the green box corresponds to
func sampleSetupPost(params handlers.ApiHandlerParams) (interface{}, error) {
	slideId := params.PathParams[slideIdentifier]

	microscopeId := params.PathParams["microscope"]
	presetId := params.PathParams["preset"]
	if len(microscopeId) <= 0 || len(presetId) <= 0 {
		return nil, errorwithstatus.MakeBadRequestError(
			fmt.Errorf("microscope and preset query parameters are required"))
	}

	wsiWidth, errW := strconv.Atoi(params.PathParams["wsiWidth"])
	wsiHeight, errH := strconv.Atoi(params.PathParams["wsiHeight"])
	if errW != nil || errH != nil || wsiWidth <= 0 || wsiHeight <= 0 {
		return nil, errorwithstatus.MakeBadRequestError(
			fmt.Errorf("wsiWidth and wsiHeight query parameters must be positive integers"))
	}

	tolUM := float64(0)
	if tolStr, ok := params.PathParams["toleranceUM"]; ok && len(tolStr) > 0 {
		var err error
		tolUM, err = strconv.ParseFloat(tolStr, 64)
		if err != nil || tolUM < 0 {
			return nil, errorwithstatus.MakeBadRequestError(fmt.Errorf("bad toleranceUM: %v", tolStr))
		}
	}

	profile, ok := params.Svcs.Profiles.Get(microscopeId)
	if !ok {
		return nil, errorwithstatus.MakeNotFoundError(microscopeId)
	}

	var preset transform.TransformPreset
	err := params.Svcs.MongoDB.Collection(dbCollections.TransformPresetsName).
		FindOne(context.TODO(), bson.M{"_id": presetId}).Decode(&preset)
	if err == mongo.ErrNoDocuments {
		return nil, errorwithstatus.MakeNotFoundError(presetId)
	}
	if err != nil {
		return nil, err
	}

	if preset.MicroscopeId != microscopeId {
		return nil, errorwithstatus.MakeBadRequestError(
			fmt.Errorf("preset %v is for microscope %v, not %v", presetId, preset.MicroscopeId, microscopeId))
	}

	imgData, err := io.ReadAll(io.LimitReader(params.Request.Body, maxMacroUploadBytes))
	if err != nil {
		return nil, errorwithstatus.MakeBadRequestError(err)
	}

	img, err := macro.DecodeMacro(imgData)
	if err != nil {
		return nil, errorwithstatus.MakeBadRequestError(err)
	}

	greenBox, err := macro.DetectGreenBox(img, macro.DefaultGreenBoxOptions())
	if err != nil {
		if macro.IsNoGreenBox(err) {
			return nil, errorwithstatus.MakeNotFoundError("green box in macro image for slide " + slideId)
		}
		return nil, errorwithstatus.MakeBadRequestError(err)
	}

	// The green box outlines where the WSI scanner imaged, so the box rect
	// maps onto the full WSI pixel rect
	wsiRect := transform.Rect{MinX: 0, MinY: 0, MaxX: float64(wsiWidth), MaxY: float64(wsiHeight)}
	macroToWSI, err := transform.MakeFromRectMapping(greenBox, wsiRect)
	if err != nil {
		return nil, errorwithstatus.MakeBadRequestError(err)
	}

	macroToStage := preset.Transform.Compose(macroToWSI)

	// Every corner of the area we might image has to land inside stage travel
	if err := transform.ValidateStageBounds(macroToStage, greenBox, profile.StageBounds()); err != nil {
		return nil, errorwithstatus.MakeBadRequestError(err)
	}

	result := SampleSetupResult{
		Id:             "setup-" + params.Svcs.IDGen.GenObjectID(),
		SlideId:        slideId,
		MicroscopeId:   microscopeId,
		PresetId:       presetId,
		MacroWidthPX:   img.Bounds().Dx(),
		MacroHeightPX:  img.Bounds().Dy(),
		WSIWidthPX:     wsiWidth,
		WSIHeightPX:    wsiHeight,
		GreenBoxPX:     greenBox,
		MacroToWSI:     macroToWSI,
		WSIToStage:     preset.Transform,
		MacroToStage:   macroToStage,
		Creator:        params.UserInfo.Name,
		CreatedUnixSec: params.Svcs.TimeStamper.GetTimeNowSec(),
	}

	if tolUM > 0 {
		report, err := transform.Validate(preset.Transform, preset.GroundTruth, tolUM)
		if err != nil {
			return nil, errorwithstatus.MakeBadRequestError(err)
		}
		if !report.WithinBounds {
			return nil, errorwithstatus.MakeBadRequestError(
				fmt.Errorf("preset %v failed validation: worst error %.2fum exceeds tolerance %.2fum",
					presetId, report.WorstErrorUM, tolUM))
		}
		result.Validation = &report
	}

	// Archive the macro image next to where the acquisition output will go.
	// Keyed by slide, not setup: re-registering a slide replaces the archived
	// image, the same way the GET only ever hands out the latest setup
	result.MacroImagePath = path.Join("sample-setups", slideId, macroImageFileName)
	if err := params.Svcs.FS.WriteObject(params.Svcs.Config.AcquisitionBucket, result.MacroImagePath, imgData); err != nil {
		return nil, err
	}

	// An annotated copy too so bad detections are easy to spot. Not worth
	// failing the setup over if it can't be written
	overlay := render.AnnotateGreenBox(img, greenBox)
	if overlayData, err := render.GetImageBytes(overlay, "png"); err == nil {
		overlayPath := path.Join("sample-setups", slideId, macroOverlayFileName)
		if err := params.Svcs.FS.WriteObject(params.Svcs.Config.AcquisitionBucket, overlayPath, overlayData); err == nil {
			result.OverlayImagePath = overlayPath
		} else {
			params.Svcs.Log.Errorf("Failed to save macro overlay for %v: %v", result.Id, err)
		}
	}

	if _, err := sampleSetupCollection(params).InsertOne(context.TODO(), result); err != nil {
		return nil, err
	}

	params.Svcs.Log.Infof("Sample setup %v saved: slide %v on %v, green box %.0fx%.0fpx",
		result.Id, slideId, microscopeId, greenBox.Width(), greenBox.Height())

	return result, nil
}

// Returns the most recent registration of a slide. Slides get re-registered
// whenever they're re-loaded on the stage, older setups stay queryable in
// mongo but this endpoint only hands out the one that's current
func sampleSetupGet(params handlers.ApiHandlerParams) (interface{}, error) {
	slideId := params.PathParams[slideIdentifier]

	opts := options.FindOne().SetSort(bson.D{{Key: "createdUnixSec", Value: -1}})

	var result SampleSetupResult
	err := sampleSetupCollection(params).FindOne(context.TODO(), bson.M{"slideId": slideId}, opts).Decode(&result)
	if err == mongo.ErrNoDocuments {
		return nil, errorwithstatus.MakeNotFoundError(slideId)
	}
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Streams an archived macro image (raw or with the detected box drawn on)
// straight out of the acquisition bucket. Etag passes through so UIs showing
// the overlay after every registration don't re-pull an unchanged image
func sampleSetupImageDownload(params handlers.ApiHandlerStreamParams) (*s3.GetObjectOutput, string, string, string, int, error) {
	slideId := params.PathParams[slideIdentifier]
	fileName := params.PathParams["fileName"]

	if !utils.StringInSlice(fileName, []string{macroImageFileName, macroOverlayFileName}) {
		return nil, "", "", "", 0, errorwithstatus.MakeBadRequestError(
			fmt.Errorf("unknown sample setup file: %v", fileName))
	}

	obj := &s3.GetObjectInput{
		Bucket: aws.String(params.Svcs.Config.AcquisitionBucket),
		Key:    aws.String(path.Join("sample-setups", slideId, fileName)),
	}

	result, err := params.Svcs.S3.GetObject(obj)

	etag := ""
	if result != nil && result.ETag != nil {
		etag = *result.ETag
	}
	lastModified := ""
	if result != nil && result.LastModified != nil {
		lastModified = result.LastModified.String()
	}

	// Slide ids come off barcode scanners and LIMS exports, not always filename-safe
	return result, utils.MakeSaveableFileName(slideId + "-" + fileName), etag, lastModified, 0, err
}
