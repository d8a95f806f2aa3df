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
	"net/http/httptest"
	"testing"

	"github.com/slidescope/core/core/logger"
)

func TestLoggerMiddlewareErrorsLogged(t *testing.T) {
	testLog := &logger.StdOutLoggerForTest{}

	svcs := MakeMockSvcs(nil, 0)
	svcs.Log = testLog
	router := makeTestRouter(&svcs)

	wrapped := (&LoggerMiddleware{APIServices: &svcs}).Middleware(router)

	// Unknown rig -> 404, which must end up in the log even outside debug level
	req := httptest.NewRequest("GET", "/microscope/no-such-rig", nil)
	rr := httptest.NewRecorder()
	wrapped.ServeHTTP(rr, req)

	if rr.Code != 404 {
		t.Errorf("Expected 404, got %v", rr.Code)
	}
	if !testLog.LogContains("(404)") {
		t.Errorf("Error response wasn't logged, last line: %v", testLog.LastLogLine())
	}
	if !testLog.LogContains("/microscope/no-such-rig") {
		t.Errorf("Logged error missing the request path, last line: %v", testLog.LastLogLine())
	}
}

func TestLoggerMiddlewareSkipsRoot(t *testing.T) {
	testLog := &logger.StdOutLoggerForTest{}

	svcs := MakeMockSvcs(nil, 0)
	svcs.Log = testLog
	router := makeTestRouter(&svcs)

	wrapped := (&LoggerMiddleware{APIServices: &svcs}).Middleware(router)

	// Load balancer health checks hammer /, those stay out of the log
	req := httptest.NewRequest("GET", "/", nil)
	rr := httptest.NewRecorder()
	wrapped.ServeHTTP(rr, req)

	if rr.Code != 200 {
		t.Errorf("Expected 200, got %v", rr.Code)
	}
	if testLog.LogContains("GET /") {
		t.Errorf("Request to / shouldn't be logged, got: %v", testLog.LastLogLine())
	}
}
