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

// HTTP client for the daemon's JSON API, used by the command line tools and
// rig scripts.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/pkg/errors"
)

type ClientConfig struct {
	// Base URL of the daemon, eg http://localhost:8080
	Host string `json:"host"`

	// Bearer token, one of the daemon's configured API keys. Empty is fine
	// against a local-dev daemon with no keys configured
	APIKey string `json:"apiKey"`
}

var configEnvVar = "SLIDESCOPE_CLIENT_CONFIG"

type APIClient struct {
	cfg  ClientConfig
	http *http.Client
}

// Connect builds a client using one of two config sources:
// - If configPath is not empty, it must be a JSON file deserialising to ClientConfig
// - Otherwise the SLIDESCOPE_CLIENT_CONFIG environment variable must hold the same JSON
func Connect(configPath string) (*APIClient, error) {
	cfg := ClientConfig{}

	if len(configPath) > 0 {
		cfgBytes, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %v. Error: %v", configPath, err)
		}

		if err := json.Unmarshal(cfgBytes, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse client config: %v", err)
		}
	} else {
		cfgStr := os.Getenv(configEnvVar)
		if len(cfgStr) <= 0 {
			return nil, fmt.Errorf("no config path and no environment variable (%v) defined. Cannot connect", configEnvVar)
		}

		if err := json.Unmarshal([]byte(cfgStr), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse client config from environment variable %v: %v", configEnvVar, err)
		}
	}

	return MakeClient(cfg), nil
}

func MakeClient(cfg ClientConfig) *APIClient {
	return &APIClient{
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *APIClient) do(method string, path string, body []byte, result interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequest(method, c.cfg.Host+path, reader)
	if err != nil {
		return err
	}
	if len(c.cfg.APIKey) > 0 {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%v %v failed", method, path)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%v %v returned %v: %v", method, path, resp.StatusCode, string(bytes.TrimSpace(respBody)))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return errors.Wrapf(err, "%v %v returned unparseable body", method, path)
		}
	}

	return nil
}

func (c *APIClient) getJSON(path string, result interface{}) error {
	return c.do("GET", path, nil, result)
}

func (c *APIClient) postJSON(path string, body interface{}, result interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return c.do("POST", path, data, result)
}
