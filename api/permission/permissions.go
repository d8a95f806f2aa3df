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

package permission

// We have a few public things, mainly getting the API version...
const PermPublic = "public"

// Permissions for routes - API key roles map onto sets of these

// Reading profiles, presets, plans, acquisition status
const PermReadScope = "read:scope"

// Driving the stage/camera directly (move, snap)
const PermEditScope = "write:scope"

// Starting and cancelling acquisitions, running sample setup
const PermAcquire = "write:acquisition"

// Creating/editing/deleting transform presets
const PermWritePresets = "write:transform-preset"

// The roles API keys can be assigned in config
var RolePermissions = map[string]map[string]bool{
	"viewer": {
		PermReadScope: true,
	},
	"operator": {
		PermReadScope: true,
		PermEditScope: true,
		PermAcquire:   true,
	},
	"admin": {
		PermReadScope:    true,
		PermEditScope:    true,
		PermAcquire:      true,
		PermWritePresets: true,
	},
}
