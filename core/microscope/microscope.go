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

// Per-rig microscope hardware profiles. These live as YAML files, one per
// profile, loaded at startup. Everything the daemon knows about a rig's
// stage travel, camera and objectives comes from here.
package microscope

import (
	"fmt"

	"github.com/slidescope/core/core/transform"
)

type ScopeServerConfig struct {
	Host              string `yaml:"host" json:"host"`
	Port              int    `yaml:"port" json:"port"`
	DialTimeoutSec    int    `yaml:"dialTimeoutSec" json:"dialTimeoutSec"`
	RequestTimeoutSec int    `yaml:"requestTimeoutSec" json:"requestTimeoutSec"`
	PollIntervalMS    int    `yaml:"pollIntervalMS" json:"pollIntervalMS"`
}

type StageConfig struct {
	MinXUM        float64 `yaml:"minXUM" json:"minXUM"`
	MaxXUM        float64 `yaml:"maxXUM" json:"maxXUM"`
	MinYUM        float64 `yaml:"minYUM" json:"minYUM"`
	MaxYUM        float64 `yaml:"maxYUM" json:"maxYUM"`
	SettleMS      int     `yaml:"settleMS" json:"settleMS"`
	HomeOnConnect bool    `yaml:"homeOnConnect" json:"homeOnConnect"`
}

type CameraConfig struct {
	PixelSizeUM   float64 `yaml:"pixelSizeUM" json:"pixelSizeUM"`
	ImageWidthPX  int     `yaml:"imageWidthPX" json:"imageWidthPX"`
	ImageHeightPX int     `yaml:"imageHeightPX" json:"imageHeightPX"`
}

type ObjectiveConfig struct {
	Name          string  `yaml:"name" json:"name"`
	Magnification float64 `yaml:"magnification" json:"magnification"`
	// Effective pixel size at the sample through this objective
	PixelSizeUM float64 `yaml:"pixelSizeUM" json:"pixelSizeUM"`
}

type TilingDefaults struct {
	OverlapPercent float64 `yaml:"overlapPercent" json:"overlapPercent"`
	Serpentine     bool    `yaml:"serpentine" json:"serpentine"`
}

type MicroscopeConfig struct {
	Id               string            `yaml:"id" json:"id"`
	DisplayName      string            `yaml:"displayName" json:"displayName"`
	ScopeServer      ScopeServerConfig `yaml:"scopeServer" json:"scopeServer"`
	Stage            StageConfig       `yaml:"stage" json:"stage"`
	Camera           CameraConfig      `yaml:"camera" json:"camera"`
	Objectives       []ObjectiveConfig `yaml:"objectives" json:"objectives"`
	DefaultObjective string            `yaml:"defaultObjective" json:"defaultObjective"`
	Tiling           TilingDefaults    `yaml:"tiling" json:"tiling"`
}

func (c MicroscopeConfig) Validate() error {
	if len(c.Id) <= 0 {
		return fmt.Errorf("microscope profile is missing an id")
	}
	if c.ScopeServer.Port <= 0 || c.ScopeServer.Port > 65535 {
		return fmt.Errorf("profile %v: scope server port %v is not valid", c.Id, c.ScopeServer.Port)
	}
	if c.Stage.MinXUM >= c.Stage.MaxXUM {
		return fmt.Errorf("profile %v: stage x travel min %v must be below max %v", c.Id, c.Stage.MinXUM, c.Stage.MaxXUM)
	}
	if c.Stage.MinYUM >= c.Stage.MaxYUM {
		return fmt.Errorf("profile %v: stage y travel min %v must be below max %v", c.Id, c.Stage.MinYUM, c.Stage.MaxYUM)
	}
	if c.Camera.PixelSizeUM <= 0 {
		return fmt.Errorf("profile %v: camera pixel size must be positive, got %v", c.Id, c.Camera.PixelSizeUM)
	}
	if c.Camera.ImageWidthPX <= 0 || c.Camera.ImageHeightPX <= 0 {
		return fmt.Errorf("profile %v: camera image size %vx%v is not valid", c.Id, c.Camera.ImageWidthPX, c.Camera.ImageHeightPX)
	}
	if c.Tiling.OverlapPercent < 0 || c.Tiling.OverlapPercent >= 90 {
		return fmt.Errorf("profile %v: tiling overlap must be in [0, 90), got %v", c.Id, c.Tiling.OverlapPercent)
	}
	if len(c.Objectives) <= 0 {
		return fmt.Errorf("profile %v: needs at least one objective", c.Id)
	}
	for _, obj := range c.Objectives {
		if len(obj.Name) <= 0 {
			return fmt.Errorf("profile %v: objective with empty name", c.Id)
		}
		if obj.PixelSizeUM <= 0 {
			return fmt.Errorf("profile %v: objective %v pixel size must be positive, got %v", c.Id, obj.Name, obj.PixelSizeUM)
		}
	}
	if _, err := c.Objective(c.DefaultObjective); err != nil {
		return fmt.Errorf("profile %v: default objective: %v", c.Id, err)
	}
	return nil
}

// Objective - looks up an objective by name
func (c MicroscopeConfig) Objective(name string) (ObjectiveConfig, error) {
	for _, obj := range c.Objectives {
		if obj.Name == name {
			return obj, nil
		}
	}
	return ObjectiveConfig{}, fmt.Errorf("objective %v not found", name)
}

// StageBounds - the travel rect in stage micrometers
func (c MicroscopeConfig) StageBounds() transform.Rect {
	return transform.Rect{
		MinX: c.Stage.MinXUM,
		MinY: c.Stage.MinYUM,
		MaxX: c.Stage.MaxXUM,
		MaxY: c.Stage.MaxYUM,
	}
}

// FOVUM - the camera field of view in stage micrometers at a given objective
func (c MicroscopeConfig) FOVUM(objectiveName string) (float64, float64, error) {
	obj, err := c.Objective(objectiveName)
	if err != nil {
		return 0, 0, err
	}
	return float64(c.Camera.ImageWidthPX) * obj.PixelSizeUM, float64(c.Camera.ImageHeightPX) * obj.PixelSizeUM, nil
}
