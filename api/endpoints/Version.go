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
	"github.com/slidescope/core/api/handlers"
	apiRouter "github.com/slidescope/core/api/router"
	"github.com/slidescope/core/api/services"
)

////////////////////////////////////////////////////////////////////////////////////////////////////////////
// Getting component versions

// ComponentVersion is getting versions of stuff in the daemon, public because it's used in integration test
type ComponentVersion struct {
	Component string `json:"component"`
	Version   string `json:"version"`
}

// ComponentVersionsGetResponse is wrapper of above
type ComponentVersionsGetResponse struct {
	Components []ComponentVersion `json:"components"`
}

func getAPIVersion() string {
	ver := services.ApiVersion
	if len(services.ApiVersion) <= 0 {
		ver = "(Local build)"
	}

	if len(services.GitHash) > 0 {
		hashEnd := 8
		if len(services.GitHash) < 8 {
			hashEnd = len(services.GitHash)
		}
		ver += "-" + services.GitHash[0:hashEnd]
	}

	return ver
}

func registerVersionHandler(router *apiRouter.ApiObjectRouter) {
	// User goes to root of API, returns a short identification string
	router.AddPublicHandler("/", "GET", rootRequest)

	// User requesting version as JSON
	router.AddPublicHandler("/version", "GET", componentVersionsGet)
}

func rootRequest(params handlers.ApiHandlerGenericPublicParams) error {
	params.Writer.Write([]byte("SlideScope API " + getAPIVersion()))
	return nil
}

func componentVersionsGet(params handlers.ApiHandlerGenericPublicParams) error {
	result := ComponentVersionsGetResponse{
		Components: []ComponentVersion{
			{
				Component: "API",
				Version:   getAPIVersion(),
			},
		},
	}

	// Report the scope server version for any rig we've already got a link to.
	// We don't dial here, a version request shouldn't spin up connections
	for _, profile := range params.Svcs.Profiles.List() {
		client, connected := params.Svcs.Scopes.Peek(profile.Id)
		if !connected {
			continue
		}

		ver, err := client.Ping()
		if err != nil {
			continue
		}
		result.Components = append(result.Components, ComponentVersion{
			Component: "scope-server/" + profile.Id,
			Version:   ver,
		})
	}

	handlers.ToJSON(params.Writer, result)
	return nil
}
