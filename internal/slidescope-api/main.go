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

package main

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/slidescope/core/api/acquisition"
	"github.com/slidescope/core/api/config"
	"github.com/slidescope/core/api/dbCollections"
	"github.com/slidescope/core/api/endpoints"
	"github.com/slidescope/core/api/permission"
	"github.com/slidescope/core/api/services"
	"github.com/slidescope/core/api/stitch"
	apiWs "github.com/slidescope/core/api/ws"
	"github.com/slidescope/core/core/apikeys"
	"github.com/slidescope/core/core/awsutil"
	"github.com/slidescope/core/core/idgen"
	"github.com/slidescope/core/core/utils"

	_ "net/http/pprof"
)

func main() {
	// This was added for a profiler to be able to connect, otherwise uses no resources really
	go func() {
		http.ListenAndServe(":1234", nil)
	}()

	log.Printf("API version: \"%v\"", services.ApiVersion)

	cfg := loadConfig()

	auth, err := apikeys.MakeReader(cfg.APIKeys, permission.RolePermissions)
	if err != nil {
		log.Fatalf("Bad APIKeys config: %v", err)
	}
	if len(cfg.APIKeys) == 0 {
		log.Println("WARNING: no API keys configured, running in local dev mode with auth disabled")
	}

	svcs := services.InitAPIServices(cfg, auth, &idgen.IDGen{}, &awsutil.RealURLSigner{})

	dbCollections.InitCollections(svcs.MongoDB, svcs.Log)

	////////////////////////////////////////////////////
	// Set up WebSocket server - state change pushes go out through here
	m := apiWs.MakeMelody(cfg)
	ws := apiWs.MakeWSHandler(m, &svcs)

	m.HandleConnect(ws.HandleConnect)
	m.HandleDisconnect(ws.HandleDisconnect)
	m.HandleMessage(ws.HandleMessage)

	svcs.Notifier = ws

	////////////////////////////////////////////////////
	// Acquisition orchestration
	var stitcher acquisition.Stitcher
	if len(cfg.StitcherPath) > 0 {
		stitcher = stitch.MakeRunner(cfg.StitcherPath, cfg.AcquisitionBucket, cfg.StitchWorkDir, svcs.FS, svcs.Log)
	}

	manager := acquisition.MakeManager(acquisition.Deps{
		Store:           acquisition.MakeMongoStore(svcs.MongoDB),
		Profiles:        svcs.Profiles,
		Scopes:          svcs.Scopes,
		FS:              svcs.FS,
		Notifier:        ws,
		IDGen:           svcs.IDGen,
		TS:              svcs.TimeStamper,
		Log:             svcs.Log,
		Bucket:          cfg.AcquisitionBucket,
		TileDirRoot:     cfg.TileDirRoot,
		MaxTilesPerPlan: int(cfg.MaxTilesPerPlan),
		StallTimeoutSec: int64(cfg.StallTimeoutSec),
		PollFailLimit:   int(cfg.PollFailLimit),
		Stitcher:        stitcher,
	})
	svcs.Acq = manager

	// Anything that was mid-run when the last daemon died gets marked, the
	// scope server's job is long gone
	if err := manager.RecoverOrphaned(); err != nil {
		svcs.Log.Errorf("Orphaned acquisition recovery failed: %v", err)
	}

	////////////////////////////////////////////////////
	// Set up HTTP server
	router := endpoints.MakeRouter(&svcs, ws)

	routePermissions := router.GetPermissions()
	printRoutePermissions(routePermissions)

	authware := endpoints.AuthMiddleWareData{
		RoutePermissionsRequired: routePermissions,
		APIKeys:                  auth,
		Logger:                   svcs.Log,
	}
	logware := endpoints.LoggerMiddleware{
		APIServices: &svcs,
	}
	promware := endpoints.PrometheusMiddleware

	router.Router.Use(authware.Middleware, logware.Middleware, promware)

	// Now also log this to the world...
	svcs.Log.Infof("API version \"%v\" started...", services.ApiVersion)

	log.Fatal(
		http.ListenAndServe(":8080",
			handlers.CORS(
				handlers.AllowedHeaders([]string{"X-Requested-With", "Content-Type", "Authorization"}),
				handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "HEAD", "OPTIONS"}),
				handlers.AllowedOrigins([]string{"*"}))(router.Router)))
}

func loadConfig() config.APIConfig {
	cfg, err := config.Init()
	if err != nil {
		log.Fatalf("Something went wrong with API config. Error: %v\n", err)
	}

	// Show the config
	cfgJSON, err := json.MarshalIndent(cfg, "", utils.PrettyPrintIndentForJSON)
	if err != nil {
		log.Fatalf("Error trying to display config\n")
	}

	log.Println(string(cfgJSON))
	return cfg
}
