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

package microscope

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Decode - strict YAML decode of one profile. Unknown fields are errors so
// typos like overlapPercnet get caught at startup, not mid-acquisition
func Decode(data []byte) (MicroscopeConfig, error) {
	var cfg MicroscopeConfig

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

func Load(path string) (MicroscopeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return MicroscopeConfig{}, err
	}

	cfg, err := Decode(data)
	if err != nil {
		return cfg, fmt.Errorf("%v: %v", path, err)
	}
	return cfg, nil
}

// Holds all the profiles we loaded, keyed by profile id. Guarded because
// profiles can be imported at runtime while handlers are reading
type Store struct {
	mu       sync.RWMutex
	profiles map[string]MicroscopeConfig
	files    map[string]string // profile id -> source file, for duplicate reporting
}

// LoadDir - loads every .yml/.yaml file in a directory. Duplicate profile ids
// across files are an error naming both files
func LoadDir(dir string) (*Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	store := &Store{
		profiles: map[string]MicroscopeConfig{},
		files:    map[string]string{},
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yml" && ext != ".yaml" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		cfg, err := Load(path)
		if err != nil {
			return nil, err
		}

		if prevFile, exists := store.files[cfg.Id]; exists {
			return nil, fmt.Errorf("duplicate microscope profile id %v in %v and %v", cfg.Id, prevFile, path)
		}

		store.profiles[cfg.Id] = cfg
		store.files[cfg.Id] = path
	}

	return store, nil
}

func MakeStore(configs ...MicroscopeConfig) *Store {
	store := &Store{
		profiles: map[string]MicroscopeConfig{},
		files:    map[string]string{},
	}
	for _, cfg := range configs {
		store.profiles[cfg.Id] = cfg
	}
	return store
}

func (s *Store) Get(id string) (MicroscopeConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.profiles[id]
	return cfg, ok
}

// Add - registers a profile at runtime, used by the profile import endpoint.
// Existing ids can't be replaced, that'd pull the rug out from a running
// acquisition
func (s *Store) Add(cfg MicroscopeConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.profiles[cfg.Id]; exists {
		return fmt.Errorf("microscope profile %v already exists", cfg.Id)
	}
	s.profiles[cfg.Id] = cfg
	return nil
}

// List - all profiles, sorted by id so the API output is stable
func (s *Store) List() []MicroscopeConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]MicroscopeConfig, 0, len(s.profiles))
	for _, cfg := range s.profiles {
		result = append(result, cfg)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Id < result[j].Id })
	return result
}

// Export - re-encode a profile as YAML, used by the profile export endpoint
func (s *Store) Export(id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.profiles[id]
	if !ok {
		return nil, fmt.Errorf("microscope profile %v not found", id)
	}
	return yaml.Marshal(cfg)
}
