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

package services

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/slidescope/core/api/acquisition"
	"github.com/slidescope/core/core/apikeys"
	"github.com/slidescope/core/core/fileaccess"
	"github.com/slidescope/core/core/microscope"
	"github.com/slidescope/core/core/scopeclient"
	"github.com/slidescope/core/core/timestamper"
	"github.com/slidescope/core/core/utils"

	"github.com/getsentry/sentry-go"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/slidescope/core/api/config"
	"github.com/slidescope/core/core/awsutil"
	"github.com/slidescope/core/core/logger"
	"github.com/slidescope/core/core/mongoDBConnection"
)

// NOTE: these 2 vars are set during compilation in CI build (see Makefile)
var ApiVersion string
var GitHash string

// This defines some generic interfaces that are used by a lot of the API code. Instead
// of using a bunch of global variables we pass around this services object and other
// code has access to a logger, random string generator etc.
// This comes in very useful when writing unit tests, since we can mock these interfaces

// IAPIKeyReader - Caller identity getter from HTTP request
type IAPIKeyReader interface {
	GetUserInfo(*http.Request) (apikeys.UserInfo, error)
}

// IDGenerator - Generates ID strings
type IDGenerator interface {
	GenObjectID() string
}

// URLSigner - Generates AWS S3 signed URLs
type URLSigner interface {
	GetSignedURL(s3iface.S3API, string, string, time.Duration) (string, error)
}

// IPush - whoever wants to hear about state changes (the websocket hub in
// production, a recorder in tests)
type IPush interface {
	Broadcast(msgType string, payload interface{})
}

////////////////////////////////////////////////////////////////////////////////////////////////////////////

// APIServices contains any services that HTTP handlers would want to use, like logging/config reading
type APIServices struct {
	// Configuration read in on startup
	Config config.APIConfig

	// Default logger
	Log logger.ILogger

	// This is configured on startup to talk to the configured AWS region
	AWSSessionCW *session.Session

	// Anything talking to S3 should use this
	S3 s3iface.S3API

	// Anything accessing files should use this
	FS fileaccess.FileAccess

	// Validation of API key tokens
	Auth IAPIKeyReader

	// ID generator
	IDGen IDGenerator

	// URL signer for S3
	Signer URLSigner

	// Timestamp retriever - so can be mocked for unit tests
	TimeStamper timestamper.ITimeStamper

	// Our mongo db connection
	Mongo *mongo.Client

	// The database we store everything in
	MongoDB *mongo.Database

	// Microscope hardware profiles loaded from YAML at startup
	Profiles *microscope.Store

	// Live scope server connections, one per rig
	Scopes *scopeclient.Registry

	// State-change push, normally the websocket hub
	Notifier IPush

	// Acquisition orchestration. Wired up in main after the websocket hub
	// exists, because the manager broadcasts through it
	Acq *acquisition.Manager
}

// InitAPIServices sets up a new APIServices instance
func InitAPIServices(cfg config.APIConfig, auth IAPIKeyReader, idGen IDGenerator, signer URLSigner) APIServices {
	// Get a session for the bucket region
	sess, err := awsutil.GetSession()
	if err != nil {
		log.Fatalf("Failed to create AWS session. Error: %v", err)
	}

	s3svc, err := awsutil.GetS3(sess)
	if err != nil {
		log.Fatalf("Failed to create AWS S3 service. Error: %v", err)
	}

	fs := fileaccess.MakeS3Access(s3svc)

	// Init default logger - if we're local, we just output to stdout
	// NOTE: we contain multiple streams for the one application in the one log group. Here we define
	// a log group for the API for this environment, and other parts of the code that deal with logging will write
	// there also
	var ourLogger logger.ILogger
	if cfg.EnvironmentName == "local" {
		ourLogger = &logger.StdOutLogger{}
	} else {
		ourLogger, err = logger.InitCloudWatchLogger(
			sess,
			"/api/"+cfg.EnvironmentName,
			// Startup date/time, but with randomness after so it's likely unique
			fmt.Sprintf("%v (%v)", time.Now().Format("02-Jan-2006 15-04-05"), utils.RandStringBytesMaskImpr(8)),
			cfg.LogLevel,
			30, // Log retention for 30 days
			3,  // Send logs every 3 seconds in batches
		)

		if err != nil {
			log.Fatalf("Failed to initialise API logger: %v", err)
		}
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.SentryEndpoint,
		Environment: cfg.EnvironmentName,
		Release:     ApiVersion,
	}); err != nil {
		ourLogger.Errorf("Sentry initialization failed: %v", err)
	}

	// Load the rig profiles - no point starting without them
	profiles, err := microscope.LoadDir(cfg.MicroscopeProfileDir)
	if err != nil {
		log.Fatalf("Failed to load microscope profiles from %v: %v", cfg.MicroscopeProfileDir, err)
	}

	// Connect to mongo
	mongoClient, err := mongoDBConnection.Connect(sess, cfg.MongoSecret, cfg.MongoEndpoint, ourLogger)
	if err != nil {
		log.Fatalf("Failed to connect to mongo: %v", err)
	}

	dbName := mongoDBConnection.GetDatabaseName(cfg.DatabaseName, cfg.EnvironmentName)

	// Scope links dial lazily per profile
	scopes := scopeclient.MakeRegistry(func(scopeId string) (scopeclient.Config, error) {
		profile, ok := profiles.Get(scopeId)
		if !ok {
			return scopeclient.Config{}, fmt.Errorf("microscope profile %v not found", scopeId)
		}
		return scopeclient.Config{
			Host:           profile.ScopeServer.Host,
			Port:           profile.ScopeServer.Port,
			DialTimeout:    time.Duration(profile.ScopeServer.DialTimeoutSec) * time.Second,
			RequestTimeout: time.Duration(profile.ScopeServer.RequestTimeoutSec) * time.Second,
		}, nil
	})

	return APIServices{
		Config:       cfg,
		Log:          ourLogger,
		AWSSessionCW: sess,
		FS:           fs,
		S3:           s3svc,
		Auth:         auth,
		IDGen:        idGen,
		Signer:       signer,
		TimeStamper:  &timestamper.UnixTimeNowStamper{},
		Mongo:        mongoClient,
		MongoDB:      mongoClient.Database(dbName),
		Profiles:     profiles,
		Scopes:       scopes,
	}
}
