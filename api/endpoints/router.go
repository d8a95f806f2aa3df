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

// The daemon's HTTP route table. Each endpoint file registers its own routes,
// this just strings them together
package endpoints

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/slidescope/core/api/handlers"
	"github.com/slidescope/core/api/permission"
	apiRouter "github.com/slidescope/core/api/router"
	"github.com/slidescope/core/api/services"
	apiWs "github.com/slidescope/core/api/ws"
)

func MakeRouter(svcs *services.APIServices, ws *apiWs.WSHandler) apiRouter.ApiObjectRouter {
	router := mux.NewRouter() //.StrictSlash(true)

	r := apiRouter.NewAPIRouter(svcs, router)

	registerVersionHandler(&r)
	registerMetricsHandler(&r)
	registerMicroscopeHandler(&r)
	registerTransformPresetHandler(&r)
	registerTransformFitHandler(&r)
	registerSampleSetupHandler(&r)
	registerTilingPlanHandler(&r)
	registerAcquisitionHandler(&r)
	registerWSHandler(&r, ws)

	return r
}

func registerMetricsHandler(router *apiRouter.ApiObjectRouter) {
	promHandler := promhttp.Handler()
	router.AddPublicHandler("/metrics", "GET", func(params handlers.ApiHandlerGenericPublicParams) error {
		promHandler.ServeHTTP(params.Writer, params.Request)
		return nil
	})
}

func registerWSHandler(router *apiRouter.ApiObjectRouter, ws *apiWs.WSHandler) {
	// Clients hit /ws-connect with their API key to get a short-lived token,
	// then open the socket with the token. The socket route itself is public,
	// the token is the auth
	router.AddGenericHandler("/ws-connect", apiRouter.MakeMethodPermission("GET", permission.PermReadScope), ws.HandleBeginWSConnection)
	router.AddPublicHandler("/ws", "GET", ws.HandleSocketCreation)
}
