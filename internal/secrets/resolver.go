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

package secrets

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Resolver looks secrets up across backends, highest priority first.
type Resolver struct {
	backends []SecretBackend
}

// NewResolver keeps the available backends, ordered by priority. Backends
// with equal priority keep the order they were given in.
func NewResolver(backends ...SecretBackend) *Resolver {
	r := &Resolver{}
	for _, b := range backends {
		if b.Available() {
			r.backends = append(r.backends, b)
		}
	}
	sort.SliceStable(r.backends, func(i, j int) bool {
		return r.backends[i].Priority() > r.backends[j].Priority()
	})
	return r
}

// Backends returns the available backends in lookup order.
func (r *Resolver) Backends() []SecretBackend {
	return r.backends
}

// Get returns the value of key from the first backend that has it.
func (r *Resolver) Get(ctx context.Context, key string) (string, error) {
	value, _, err := r.Lookup(ctx, key)
	return value, err
}

// Lookup is Get that also names the backend the value came from. A
// backend failure other than ErrSecretNotFound is reported only when no
// later backend has the key.
func (r *Resolver) Lookup(ctx context.Context, key string) (value, backend string, err error) {
	if len(r.backends) == 0 {
		return "", "", fmt.Errorf("%w: no available backends", ErrBackendUnavailable)
	}

	var failure error
	for _, b := range r.backends {
		v, err := b.Get(ctx, key)
		switch {
		case err == nil:
			return v, b.Name(), nil
		case !errors.Is(err, ErrSecretNotFound) && failure == nil:
			failure = fmt.Errorf("%s: %w", b.Name(), err)
		}
	}
	if failure != nil {
		return "", "", fmt.Errorf("failed to get secret %q: %w", key, failure)
	}
	return "", "", fmt.Errorf("%w: %q", ErrSecretNotFound, key)
}

// Set stores key in the named backend, or in the first writable one when
// backendName is empty. It returns the backend that took the value.
func (r *Resolver) Set(ctx context.Context, key, value, backendName string) (string, error) {
	targets, err := r.targets(backendName)
	if err != nil {
		return "", err
	}
	for _, b := range targets {
		err := b.Set(ctx, key, value)
		if err == nil {
			return b.Name(), nil
		}
		if backendName == "" && errors.Is(err, ErrReadOnlyBackend) {
			continue
		}
		return "", fmt.Errorf("failed to set secret in %s: %w", b.Name(), err)
	}
	return "", fmt.Errorf("%w: no writable backend", ErrBackendUnavailable)
}

// Delete removes key from the named backend, or from every writable
// backend that holds it when backendName is empty.
func (r *Resolver) Delete(ctx context.Context, key, backendName string) error {
	targets, err := r.targets(backendName)
	if err != nil {
		return err
	}
	deleted := false
	for _, b := range targets {
		err := b.Delete(ctx, key)
		switch {
		case err == nil:
			deleted = true
		case backendName == "" && (errors.Is(err, ErrSecretNotFound) || errors.Is(err, ErrReadOnlyBackend)):
		default:
			return fmt.Errorf("failed to delete secret from %s: %w", b.Name(), err)
		}
	}
	if !deleted {
		return fmt.Errorf("%w: %q", ErrSecretNotFound, key)
	}
	return nil
}

// targets returns the named backend, or every writable backend.
func (r *Resolver) targets(backendName string) ([]SecretBackend, error) {
	if len(r.backends) == 0 {
		return nil, fmt.Errorf("%w: no available backends", ErrBackendUnavailable)
	}
	if backendName != "" {
		for _, b := range r.backends {
			if b.Name() == backendName {
				return []SecretBackend{b}, nil
			}
		}
		return nil, fmt.Errorf("%w: %q", ErrBackendUnavailable, backendName)
	}

	var writable []SecretBackend
	for _, b := range r.backends {
		if ro, ok := b.(ReadOnlyBackend); ok && ro.ReadOnly() {
			continue
		}
		writable = append(writable, b)
	}
	return writable, nil
}
