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
	"fmt"
	"sort"
	"strings"
)

func printRoutePermissions(routePermissions map[string]string) {
	// Gather keys
	paths := []string{}
	longestPath := 0
	for k := range routePermissions {
		pathStart := strings.Index(k, "/")
		method := k[0:pathStart]
		path := k[pathStart:]

		// Store it so it's sortable but we can split it later
		paths = append(paths, fmt.Sprintf("%v|%v|%v", path, method, k))

		pathLen := len(path)
		if pathLen > longestPath {
			longestPath = pathLen
		}
	}
	sort.Strings(paths)

	// Print
	fmt.Println("Route Permissions:")
	fmtString := fmt.Sprintf("%%-7v%%-%vv -> %%v\n", longestPath)

	for _, path := range paths {
		// Make it more presentable
		bits := strings.Split(path, "|")
		path := bits[0]
		method := bits[1]
		query := bits[2]

		fmt.Printf(fmtString, method, path, routePermissions[query])
	}
}
