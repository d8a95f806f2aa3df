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
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
)

func postTilingPlan(t *testing.T, body string) (*tilingPlanResponse, int, string) {
	t.Helper()

	svcs := MakeMockSvcs(nil, 9999) // no simulator needed, planning is offline
	router := makeTestRouter(&svcs)

	req, _ := http.NewRequest("POST", "/tiling-plan", bytes.NewReader([]byte(body)))
	resp := executeRequest(req, router)

	if resp.Code != 200 {
		return nil, resp.Code, resp.Body.String()
	}

	var result tilingPlanResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to parse plan response: %v", err)
	}
	return &result, resp.Code, ""
}

func TestTilingPlanPost(t *testing.T) {
	// 150x150um region, 100x100um FOV at 10% overlap -> step 90um -> 2x2
	plan, code, _ := postTilingPlan(t, `{
		"microscopeId": "rig1",
		"slideId": "slide-1",
		"regionUM": {"minX": 4000, "minY": 4000, "maxX": 4150, "maxY": 4150},
		"objective": "10x",
		"overlapPercent": 10
	}`)

	if code != 200 {
		t.Fatalf("Plan request failed with %v", code)
	}
	if plan.Plan.Cols != 2 || plan.Plan.Rows != 2 || plan.TileCount != 4 {
		t.Errorf("Got %vx%v (%v tiles), want 2x2 (4)", plan.Plan.Cols, plan.Plan.Rows, plan.TileCount)
	}
	if !plan.InBounds {
		t.Errorf("Plan reported out of stage bounds, region is well inside travel")
	}
	if plan.Plan.StepXUM != 90 || plan.Plan.StepYUM != 90 {
		t.Errorf("Got step %vx%v, want 90x90", plan.Plan.StepXUM, plan.Plan.StepYUM)
	}
}

func TestTilingPlanDefaults(t *testing.T) {
	// Objective and overlap omitted - profile says 10x and 10%
	plan, code, _ := postTilingPlan(t, `{
		"microscopeId": "rig1",
		"slideId": "slide-1",
		"regionUM": {"minX": 4000, "minY": 4000, "maxX": 4150, "maxY": 4150}
	}`)

	if code != 200 {
		t.Fatalf("Plan request failed with %v", code)
	}
	if plan.Plan.StepXUM != 90 {
		t.Errorf("Profile overlap default not applied, step %v, want 90", plan.Plan.StepXUM)
	}
}

func TestTilingPlanOutOfBounds(t *testing.T) {
	// Region runs off the end of stage travel - preview still succeeds but
	// flags it
	plan, code, _ := postTilingPlan(t, `{
		"microscopeId": "rig1",
		"slideId": "slide-1",
		"regionUM": {"minX": 9900, "minY": 9900, "maxX": 10100, "maxY": 10100}
	}`)

	if code != 200 {
		t.Fatalf("Plan request failed with %v", code)
	}
	if plan.InBounds {
		t.Errorf("Plan reported in bounds, coverage runs past stage travel")
	}
}

func TestTilingPlanErrors(t *testing.T) {
	_, code, body := postTilingPlan(t, `{
		"microscopeId": "no-such-rig",
		"slideId": "slide-1",
		"regionUM": {"minX": 0, "minY": 0, "maxX": 100, "maxY": 100}
	}`)
	if code != 404 {
		t.Errorf("Unknown microscope got %v (%v), want 404", code, body)
	}

	_, code, body = postTilingPlan(t, `{
		"microscopeId": "rig1",
		"slideId": "slide-1",
		"regionUM": {"minX": 100, "minY": 100, "maxX": 100, "maxY": 100}
	}`)
	if code != 400 {
		t.Errorf("Empty region got %v (%v), want 400", code, body)
	}

	// 10000x10000um at 90um step blows the 100 tile limit
	_, code, body = postTilingPlan(t, `{
		"microscopeId": "rig1",
		"slideId": "slide-1",
		"regionUM": {"minX": 0, "minY": 0, "maxX": 10000, "maxY": 10000}
	}`)
	if code != 400 {
		t.Errorf("Oversized plan got %v (%v), want 400", code, body)
	}
}
