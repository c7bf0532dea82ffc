// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package service

import (
	"fmt"
	"sync"
)

// Registry maps implementation names to factories. It is populated during
// program start and frozen before use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	order     []string
	frozen    bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory under its Name.
// Returns an error if the name is taken or the registry is frozen.
func (r *Registry) Register(f Factory) error {
	if f == nil {
		return fmt.Errorf("factory cannot be nil")
	}
	name := f.Name()
	if name == "" {
		return fmt.Errorf("implementation name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return fmt.Errorf("cannot register %q: %w", name, ErrRegistryFrozen)
	}
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("implementation %q is already registered", name)
	}

	r.factories[name] = f
	r.order = append(r.order, name)
	return nil
}

// Lookup returns the factory registered as name. An empty name selects the
// first registered implementation.
func (r *Registry) Lookup(name string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if name == "" {
		if len(r.order) == 0 {
			return nil, fmt.Errorf("no implementations registered: %w", ErrUnknownImpl)
		}
		name = r.order[0]
	}

	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownImpl)
	}
	return f, nil
}

// Names returns the registered implementation names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Freeze makes the registry read-only.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}
