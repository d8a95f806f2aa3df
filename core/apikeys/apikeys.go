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

// Static bearer-token auth for rig scripts. There's no user database on a
// rig, just tokens handed out in config as "token:role" entries, so this is
// deliberately much simpler than a web-app auth stack.
package apikeys

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Who a request is acting as. Name is a label derived from the role since
// tokens aren't people
type UserInfo struct {
	Name        string
	Role        string
	Permissions map[string]bool
}

type Reader struct {
	// token -> role
	keys map[string]string

	// With no keys configured we're in local dev mode: everything is allowed
	allowAll bool

	rolePermissions map[string]map[string]bool
}

// MakeReader - parses config "token:role" entries. An empty list means local
// dev mode where all requests get full permissions
func MakeReader(apiKeys []string, rolePermissions map[string]map[string]bool) (*Reader, error) {
	reader := &Reader{
		keys:            map[string]string{},
		allowAll:        len(apiKeys) == 0,
		rolePermissions: rolePermissions,
	}

	for _, entry := range apiKeys {
		parts := strings.SplitN(entry, ":", 2)
		if len(parts) != 2 || len(parts[0]) == 0 || len(parts[1]) == 0 {
			return nil, fmt.Errorf("API key entry must be token:role, got %q", entry)
		}

		token, role := parts[0], parts[1]
		if _, ok := rolePermissions[role]; !ok {
			return nil, fmt.Errorf("API key entry %q names unknown role %v", entry, role)
		}
		if _, dup := reader.keys[token]; dup {
			return nil, errors.New("duplicate API key token in config")
		}
		reader.keys[token] = role
	}

	return reader, nil
}

func (r *Reader) GetUserInfo(req *http.Request) (UserInfo, error) {
	if r.allowAll {
		return UserInfo{
			Name:        "local-dev",
			Role:        "admin",
			Permissions: r.rolePermissions["admin"],
		}, nil
	}

	header := req.Header.Get("Authorization")
	if len(header) == 0 {
		return UserInfo{}, errors.New("no Authorization header")
	}

	token, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		return UserInfo{}, errors.New("Authorization header must be a Bearer token")
	}

	role, ok := r.keys[token]
	if !ok {
		return UserInfo{}, errors.New("unrecognised API key")
	}

	return UserInfo{
		Name:        "key-" + role,
		Role:        role,
		Permissions: r.rolePermissions[role],
	}, nil
}
