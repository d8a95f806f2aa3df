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
	"errors"
	"fmt"
)

// TransformPreset - a named, persisted WSI->stage transform for one microscope
// profile. Saved in Mongo, picked during sample setup
type TransformPreset struct {
	Id              string          `json:"id" bson:"_id"`
	Name            string          `json:"name" bson:"name"`
	MicroscopeId    string          `json:"microscopeId" bson:"microscopeId"`
	Transform       AffineTransform `json:"transform" bson:"transform"`
	GroundTruth     []PointPair     `json:"groundTruth" bson:"groundTruth"`
	Creator         string          `json:"creator" bson:"creator"`
	CreatedUnixSec  int64           `json:"createdUnixSec" bson:"createdUnixSec"`
	ModifiedUnixSec int64           `json:"modifiedUnixSec" bson:"modifiedUnixSec"`
}

// Checks a preset is storable. Degenerate transforms are rejected here so they
// can never reach an acquisition
func (p TransformPreset) Validate() error {
	if len(p.Name) <= 0 {
		return errors.New("preset name cannot be empty")
	}
	if len(p.MicroscopeId) <= 0 {
		return errors.New("preset must reference a microscope profile")
	}
	if p.Transform.IsDegenerate() {
		return fmt.Errorf("preset %v transform is degenerate", p.Name)
	}
	return nil
}
