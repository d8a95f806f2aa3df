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

package client

import (
	"fmt"
	"net/url"
	"time"

	"github.com/slidescope/core/api/acquisition"
	"github.com/slidescope/core/core/microscope"
	"github.com/slidescope/core/core/tiling"
	"github.com/slidescope/core/core/transform"
)

// Mirror of what the daemon serves, kept lean - only the fields the tools use

type MicroscopeStatus struct {
	MicroscopeId        string  `json:"microscopeId"`
	Connected           bool    `json:"connected"`
	ServerVersion       string  `json:"serverVersion"`
	XUM                 float64 `json:"xUM"`
	YUM                 float64 `json:"yUM"`
	ZUM                 float64 `json:"zUM"`
	ActiveAcquisitionId string  `json:"activeAcquisitionId"`
	Error               string  `json:"error"`
}

type TilingPlanResult struct {
	Plan       tiling.TilePlan `json:"plan"`
	CoverageUM transform.Rect  `json:"coverageUM"`
	TileCount  int             `json:"tileCount"`
	InBounds   bool            `json:"inBounds"`
}

type TransformFitResult struct {
	Transform transform.AffineTransform   `json:"transform"`
	Report    *transform.ValidationReport `json:"report"`
}

type AcquisitionFile struct {
	Path    string `json:"path"`
	LinkURL string `json:"link"`
}

type acquisitionFilesResult struct {
	Files []AcquisitionFile `json:"files"`
}

type microscopeListResult struct {
	Microscopes []microscope.MicroscopeConfig `json:"microscopes"`
}

type acquisitionListResult struct {
	Acquisitions []acquisition.AcquisitionSummary `json:"acquisitions"`
}

func (c *APIClient) ListMicroscopes() ([]microscope.MicroscopeConfig, error) {
	var result microscopeListResult
	err := c.getJSON("/microscope", &result)
	return result.Microscopes, err
}

func (c *APIClient) GetMicroscopeStatus(microscopeId string) (MicroscopeStatus, error) {
	var result MicroscopeStatus
	err := c.getJSON("/microscope/"+url.PathEscape(microscopeId)+"/status", &result)
	return result, err
}

func (c *APIClient) PlanTiling(req tiling.TilingRequest) (TilingPlanResult, error) {
	var result TilingPlanResult
	err := c.postJSON("/tiling-plan", req, &result)
	return result, err
}

func (c *APIClient) FitTransform(pairs []transform.PointPair, toleranceUM float64) (TransformFitResult, error) {
	body := map[string]interface{}{
		"pairs":       pairs,
		"toleranceUM": toleranceUM,
	}

	var result TransformFitResult
	err := c.postJSON("/transform-fit", body, &result)
	return result, err
}

func (c *APIClient) StartAcquisition(req tiling.TilingRequest) (acquisition.AcquisitionSummary, error) {
	var result acquisition.AcquisitionSummary
	err := c.postJSON("/acquisition", req, &result)
	return result, err
}

func (c *APIClient) GetAcquisition(id string) (acquisition.AcquisitionSummary, error) {
	var result acquisition.AcquisitionSummary
	err := c.getJSON("/acquisition/"+url.PathEscape(id), &result)
	return result, err
}

func (c *APIClient) ListAcquisitions(microscopeId string, slideId string) ([]acquisition.AcquisitionSummary, error) {
	query := url.Values{}
	if len(microscopeId) > 0 {
		query.Set("microscope", microscopeId)
	}
	if len(slideId) > 0 {
		query.Set("slide", slideId)
	}

	path := "/acquisition"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var result acquisitionListResult
	err := c.getJSON(path, &result)
	return result.Acquisitions, err
}

func (c *APIClient) CancelAcquisition(id string) error {
	return c.do("DELETE", "/acquisition/"+url.PathEscape(id), nil, nil)
}

func (c *APIClient) GetAcquisitionFiles(id string) ([]AcquisitionFile, error) {
	var result acquisitionFilesResult
	err := c.getJSON("/acquisition/"+url.PathEscape(id)+"/files", &result)
	return result.Files, err
}

// WaitForAcquisition - polls until the run reaches a terminal state. onUpdate
// may be nil, otherwise it's called whenever the summary changes
func (c *APIClient) WaitForAcquisition(id string, pollInterval time.Duration, timeout time.Duration, onUpdate func(acquisition.AcquisitionSummary)) (acquisition.AcquisitionSummary, error) {
	deadline := time.Now().Add(timeout)
	last := acquisition.AcquisitionSummary{}

	for {
		summary, err := c.GetAcquisition(id)
		if err != nil {
			return last, err
		}

		if onUpdate != nil && (summary.State != last.State || summary.TilesDone != last.TilesDone) {
			onUpdate(summary)
		}
		last = summary

		if summary.State.IsTerminal() {
			return summary, nil
		}

		if time.Now().After(deadline) {
			return last, fmt.Errorf("acquisition %v still %v after %v", id, summary.State, timeout)
		}

		time.Sleep(pollInterval)
	}
}
