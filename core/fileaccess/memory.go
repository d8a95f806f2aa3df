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

package fileaccess

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/slidescope/core/core/utils"
)

// In-memory implementation of FileAccess for unit tests. Objects are keyed
// bucket -> path, writes are copied so callers can't mutate stored data.
type MemoryFileAccess struct {
	mu      sync.Mutex
	objects map[string]map[string][]byte
}

func MakeMemoryFileAccess() *MemoryFileAccess {
	return &MemoryFileAccess{objects: map[string]map[string][]byte{}}
}

type memNotFoundError struct {
	bucket string
	path   string
}

func (e memNotFoundError) Error() string {
	return fmt.Sprintf("object not found: %v/%v", e.bucket, e.path)
}

func (m *MemoryFileAccess) ListObjects(bucket string, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := []string{}
	for path := range m.objects[bucket] {
		if strings.HasPrefix(path, prefix) {
			result = append(result, path)
		}
	}

	// Map iteration order would make tests flaky
	sort.Strings(result)
	return result, nil
}

func (m *MemoryFileAccess) ObjectExists(bucket string, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.objects[bucket][path]
	return ok, nil
}

func (m *MemoryFileAccess) ReadObject(bucket string, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.objects[bucket][path]
	if !ok {
		return nil, memNotFoundError{bucket: bucket, path: path}
	}

	cpy := make([]byte, len(data))
	copy(cpy, data)
	return cpy, nil
}

func (m *MemoryFileAccess) WriteObject(bucket string, path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.objects[bucket] == nil {
		m.objects[bucket] = map[string][]byte{}
	}

	cpy := make([]byte, len(data))
	copy(cpy, data)
	m.objects[bucket][path] = cpy
	return nil
}

func (m *MemoryFileAccess) ReadJSON(bucket string, s3Path string, itemsPtr interface{}, emptyIfNotFound bool) error {
	fileData, err := m.ReadObject(bucket, s3Path)
	if err != nil {
		if emptyIfNotFound && m.IsNotFoundError(err) {
			return nil
		}
		return err
	}

	return json.Unmarshal(fileData, itemsPtr)
}

func (m *MemoryFileAccess) WriteJSON(bucket string, s3Path string, itemsPtr interface{}) error {
	fileData, err := json.MarshalIndent(itemsPtr, "", utils.PrettyPrintIndentForJSON)
	if err != nil {
		return err
	}

	return m.WriteObject(bucket, s3Path, fileData)
}

func (m *MemoryFileAccess) WriteJSONNoIndent(bucket string, s3Path string, itemsPtr interface{}) error {
	fileData, err := json.Marshal(itemsPtr)
	if err != nil {
		return err
	}

	return m.WriteObject(bucket, s3Path, fileData)
}

func (m *MemoryFileAccess) DeleteObject(bucket string, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.objects[bucket][path]; !ok {
		return memNotFoundError{bucket: bucket, path: path}
	}

	delete(m.objects[bucket], path)
	return nil
}

func (m *MemoryFileAccess) CopyObject(srcBucket string, srcPath string, dstBucket string, dstPath string) error {
	data, err := m.ReadObject(srcBucket, srcPath)
	if err != nil {
		return err
	}

	return m.WriteObject(dstBucket, dstPath, data)
}

func (m *MemoryFileAccess) EmptyObjects(targetBucket string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.objects, targetBucket)
	return nil
}

func (m *MemoryFileAccess) IsNotFoundError(err error) bool {
	_, ok := err.(memNotFoundError)
	return ok
}
