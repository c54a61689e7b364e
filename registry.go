/*
 * Copyright 2026 unistore-io.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package unistore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/unistore-io/unistore/repository"
)

// Registry holds named stores with an explicit lifecycle: the owner creates
// it, registers connected stores, and closes it on shutdown. There is no
// ambient global registry.
type Registry struct {
	mu     sync.RWMutex
	stores map[string]repository.Store
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{stores: map[string]repository.Store{}}
}

// Register adds a store under a unique name.
func (r *Registry) Register(name string, store repository.Store) error {
	if store == nil {
		return fmt.Errorf("registry: store for %q cannot be nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.stores[name]; exists {
		return fmt.Errorf("registry: store %q is already registered", name)
	}
	r.stores[name] = store
	return nil
}

// Get returns the named store.
func (r *Registry) Get(name string) (repository.Store, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stores[name]
	return s, ok
}

// Deregister removes the named store without disconnecting it and returns
// it, or nil when unknown.
func (r *Registry) Deregister(name string) repository.Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.stores[name]
	delete(r.stores, name)
	return s
}

// Close disconnects every registered store and empties the registry,
// returning the joined disconnect errors.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name, s := range r.stores {
		if err := s.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("disconnect %q: %w", name, err))
		}
	}
	r.stores = map[string]repository.Store{}
	return errors.Join(errs...)
}
