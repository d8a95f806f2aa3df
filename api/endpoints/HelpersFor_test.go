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
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gorilla/mux"
	"github.com/olahol/melody"
	"github.com/slidescope/core/api/config"
	"github.com/slidescope/core/api/permission"
	"github.com/slidescope/core/api/services"
	apiWs "github.com/slidescope/core/api/ws"
	"github.com/slidescope/core/core/apikeys"
	"github.com/slidescope/core/core/fileaccess"
	"github.com/slidescope/core/core/logger"
	"github.com/slidescope/core/core/microscope"
	"github.com/slidescope/core/core/scopeclient"
	"github.com/slidescope/core/core/timestamper"
)

const AcquisitionBucketForUnitTest = "acquisition-bucket"

type MockAPIKeyReader struct {
	InfoToReturn *apikeys.UserInfo
}

func (m MockAPIKeyReader) GetUserInfo(*http.Request) (apikeys.UserInfo, error) {
	if m.InfoToReturn != nil {
		return *m.InfoToReturn, nil
	}
	return apikeys.UserInfo{
		Name:        "test-operator",
		Role:        "admin",
		Permissions: permission.RolePermissions["admin"],
	}, nil
}

type MockIDGenerator struct {
	ids []string
}

func (m *MockIDGenerator) GenObjectID() string {
	if len(m.ids) > 0 {
		id := m.ids[0]
		m.ids = m.ids[1:]
		return id
	}
	return "NO_ID_DEFINED"
}

// Test rig profile. Stage travel 0-10000um each way, camera 100x100px, so the
// 10x objective at 1um/px gives a 100x100um field of view
func profileForUnitTest(port int) microscope.MicroscopeConfig {
	return microscope.MicroscopeConfig{
		Id:          "rig1",
		DisplayName: "Test rig",
		ScopeServer: microscope.ScopeServerConfig{
			Host:           "127.0.0.1",
			Port:           port,
			DialTimeoutSec: 1, RequestTimeoutSec: 2,
			PollIntervalMS: 5,
		},
		Stage:  microscope.StageConfig{MinXUM: 0, MaxXUM: 10000, MinYUM: 0, MaxYUM: 10000},
		Camera: microscope.CameraConfig{PixelSizeUM: 1, ImageWidthPX: 100, ImageHeightPX: 100},
		Objectives: []microscope.ObjectiveConfig{
			{Name: "4x", Magnification: 4, PixelSizeUM: 2.5},
			{Name: "10x", Magnification: 10, PixelSizeUM: 1},
		},
		DefaultObjective: "10x",
		Tiling:           microscope.TilingDefaults{OverlapPercent: 10},
	}
}

// MakeMockSvcs - builds an APIServices good enough for endpoint tests. No
// mongo connection, so endpoints that hit the database need more setup than
// this provides. simPort <= 0 means no rig profile is registered at all
func MakeMockSvcs(idGen services.IDGenerator, simPort int) services.APIServices {
	cfg := config.APIConfig{
		EnvironmentName:    "unit-test",
		AcquisitionBucket:  AcquisitionBucketForUnitTest,
		LogLevel:           logger.LogDebug,
		MaxTilesPerPlan:    100,
		SignedURLExpirySec: 900,
	}

	profiles := microscope.MakeStore()
	if simPort > 0 {
		profiles = microscope.MakeStore(profileForUnitTest(simPort))
	}

	scopes := scopeclient.MakeRegistry(func(scopeId string) (scopeclient.Config, error) {
		profile, ok := profiles.Get(scopeId)
		if !ok {
			return scopeclient.Config{}, fmt.Errorf("no profile %v", scopeId)
		}
		return scopeclient.Config{
			Host:           profile.ScopeServer.Host,
			Port:           profile.ScopeServer.Port,
			DialTimeout:    time.Second,
			RequestTimeout: 2 * time.Second,
		}, nil
	})

	return services.APIServices{
		Config:      cfg,
		Log:         &logger.NullLogger{},
		FS:          fileaccess.MakeMemoryFileAccess(),
		Auth:        MockAPIKeyReader{},
		IDGen:       idGen,
		TimeStamper: &timestamper.MockTimeNowStamper{QueuedTimeStamps: []int64{1234567890, 1234567891, 1234567892, 1234567893}},
		Profiles:    profiles,
		Scopes:      scopes,
	}
}

func makeTestRouter(svcs *services.APIServices) *mux.Router {
	ws := apiWs.MakeWSHandler(melody.New(), svcs)
	router := MakeRouter(svcs, ws)
	return router.Router
}

// NOTE: The following came from https://semaphoreci.com/community/tutorials/building-and-testing-a-rest-api-in-go-with-gorilla-mux-and-postgresql
func executeRequest(req *http.Request, router *mux.Router) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}
