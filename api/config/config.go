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

// API configuration as read from strings/JSON and some constants defined here also
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/slidescope/core/core/logger"
)

////////////////////////////////////////////////////////////////////////////////////////////////////////////
// Configuration for the daemon

// APIConfig combines env vars and config JSON values
type APIConfig struct {
	EnvironmentName string

	// Where acquired tile sets + summaries get archived
	AcquisitionBucket string

	// Directory of per-rig microscope profile YAML files, loaded at startup
	MicroscopeProfileDir string

	LogLevel logger.LogLevel // Can be changed at runtime, but if API restarts, it goes back to configured value

	// Mongo Connection
	MongoSecret   string
	MongoEndpoint string
	DatabaseName  string

	SentryEndpoint string

	// Static bearer tokens for rig scripts, "token:role" entries.
	// Roles are defined in api/permission. Empty list = local dev, no auth.
	APIKeys []string

	// Local directory the scope server writes tiles into, one subdir per run.
	// Daemon and scope server share the rig filesystem
	TileDirRoot string

	// External stitcher. Empty StitcherPath disables the stitch step.
	StitcherPath  string
	StitchWorkDir string

	// Acquisition orchestration limits
	MaxTilesPerPlan int32
	StallTimeoutSec int32
	PollFailLimit   int32

	// How long signed S3 download links stay valid for the files endpoint
	SignedURLExpirySec int32

	// Web Socket config
	WSWriteWaitMs       uint
	WSPongWaitMs        uint
	WSPingPeriodMs      uint
	WSMaxMessageSize    uint
	WSMessageBufferSize uint
}

func NewConfigFromFile(configFilePath string) (APIConfig, error) {
	var cfg APIConfig

	fmt.Printf("Loading custom config from: %s\n", configFilePath)
	customConfig, err := os.ReadFile(configFilePath)
	if err != nil {
		return cfg, fmt.Errorf("could not read config file at %s", configFilePath)
	}
	return buildConfig(customConfig)
}

func NewConfigFromJsonString(configJson string) (APIConfig, error) {
	return buildConfig([]byte(configJson))
}

func buildConfig(configJson []byte) (APIConfig, error) {
	var cfg APIConfig

	err := json.Unmarshal(configJson, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("failed to parse custom config: %v", err)
	}

	// Override Config with any values explicitly set in Env Vars (SLIDESCOPE_CONFIG_*)
	// NOTE: For []string slices, pass in a comma-separated string to the corresponding SLIDESCOPE_CONFIG_ var
	// 			Ex: export SLIDESCOPE_CONFIG_APIKeys="token1:operator,token2:viewer"
	reflection := reflect.ValueOf(&cfg).Elem()
	for i := 0; i < reflection.NumField(); i++ {
		fieldName := reflection.Type().Field(i).Name
		field := reflection.Field(i)
		if val, present := os.LookupEnv(fmt.Sprintf("SLIDESCOPE_CONFIG_%s", fieldName)); present {
			switch field.Kind() {
			case reflect.String:
				field.SetString(val)
			case reflect.Slice:
				if field.Type().Elem().Kind() == reflect.String {
					slicedVal := strings.Split(val, ",")
					field.Set(reflect.ValueOf(slicedVal))
				}

			case reflect.Int32:
				i, err := strconv.Atoi(val)
				if err != nil {
					fmt.Printf("Could not cast value SLIDESCOPE_CONFIG_%s=%s to Int", fieldName, val)
					continue
				}
				field.SetInt(int64(i))
			}
		}
	}
	return cfg, nil
}

// Init config, loads config params
func Init() (APIConfig, error) {
	// Firstly, read command line arguments
	configFilePath := flag.String("customConfigPath", "", "Path to the json file holding a set of custom config for the SlideScope API")
	flag.Parse()

	// Now that we have that, construct the Config from the possible sources
	var cfg APIConfig
	cfg.WSMaxMessageSize = 40000 // 40kb, enough for a macro detection result+overhead
	var err error

	// Populate API Config with contents of config.json or CUSTOM_CONFIG if supplied
	if configFilePath != nil && *configFilePath != "" {
		// Load config from a referenced json file
		cfg, err = NewConfigFromFile(*configFilePath)
	} else {
		err = errors.New("no configuration provided")
	}
	if err != nil {
		return cfg, err
	}

	if cfg.MaxTilesPerPlan <= 0 {
		cfg.MaxTilesPerPlan = 2500
	}

	if cfg.StallTimeoutSec <= 0 {
		cfg.StallTimeoutSec = int32(5 * 60)
	}

	if cfg.PollFailLimit <= 0 {
		cfg.PollFailLimit = 5
	}

	if cfg.SignedURLExpirySec <= 0 {
		cfg.SignedURLExpirySec = int32(15 * 60)
	}

	return cfg, nil
}
