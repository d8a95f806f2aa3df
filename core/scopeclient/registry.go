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

package scopeclient

import (
	"fmt"
	"sync"
)

// Registry - live scope connections keyed by microscope profile id. Connects
// lazily on first use and redials when a connection has been poisoned by a
// timeout. The config lookup is injected so this package doesn't need to know
// where profiles come from
type Registry struct {
	mu      sync.Mutex
	clients map[string]*Client
	lookup  func(scopeId string) (Config, error)
	dial    func(cfg Config) (*Client, error)
}

func MakeRegistry(lookup func(scopeId string) (Config, error)) *Registry {
	return &Registry{
		clients: map[string]*Client{},
		lookup:  lookup,
		dial:    Dial,
	}
}

// Get - returns the live client for a scope, dialling if there isn't one or
// the existing one went unhealthy
func (r *Registry) Get(scopeId string) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if client, ok := r.clients[scopeId]; ok && client.Healthy() {
		return client, nil
	}

	cfg, err := r.lookup(scopeId)
	if err != nil {
		return nil, err
	}

	// Drop any dead connection before replacing it
	if old, ok := r.clients[scopeId]; ok {
		old.Close()
		delete(r.clients, scopeId)
	}

	client, err := r.dial(cfg)
	if err != nil {
		return nil, fmt.Errorf("scope %v: %v", scopeId, err)
	}

	r.clients[scopeId] = client
	return client, nil
}

// Peek - returns the client only if one is already connected, never dials.
// The status endpoint uses this so asking for status doesn't spin up links
func (r *Registry) Peek(scopeId string) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, ok := r.clients[scopeId]
	return client, ok
}

func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, client := range r.clients {
		client.Close()
		delete(r.clients, id)
	}
}
