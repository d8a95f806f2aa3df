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

package mongoDBConnection

import "testing"

func TestLocalMongoUri(t *testing.T) {
	// Config endpoint beats the env var
	if got := localMongoUri("mongo-on-docker:27888", "mongodb://elsewhere"); got != "mongodb://mongo-on-docker:27888" {
		t.Errorf("Endpoint not used: %v", got)
	}
	if got := localMongoUri("", "mongodb://elsewhere"); got != "mongodb://elsewhere" {
		t.Errorf("Env var not used: %v", got)
	}
	if got := localMongoUri("", ""); got != "mongodb://localhost" {
		t.Errorf("Default not used: %v", got)
	}
}
