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

package ldaptest

import (
	"fmt"
	"os"
	"sync"
	"testing"
)

// CleanupFunc releases one fixture resource.
type CleanupFunc func() error

// CleanupManager runs cleanups in reverse order when the test ends and
// reports any that fail.
type CleanupManager struct {
	t         testing.TB
	mu        sync.Mutex
	resources []cleanupEntry
}

type cleanupEntry struct {
	name    string
	cleanup CleanupFunc
}

// NewCleanupManager creates a cleanup manager registered with t.Cleanup.
func NewCleanupManager(t testing.TB) *CleanupManager {
	t.Helper()

	cm := &CleanupManager{t: t}
	t.Cleanup(cm.runAll)
	return cm
}

// Add registers a cleanup for a named resource.
func (cm *CleanupManager) Add(name string, cleanup CleanupFunc) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.resources = append(cm.resources, cleanupEntry{name: name, cleanup: cleanup})
}

// runAll executes all cleanup functions in reverse order, continuing past
// failures.
func (cm *CleanupManager) runAll() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for i := len(cm.resources) - 1; i >= 0; i-- {
		entry := cm.resources[i]
		if err := entry.cleanup(); err != nil {
			cm.t.Errorf("cleanup failed for %s: %v", entry.name, err)
		}
	}
	cm.resources = nil
}

// Count returns the number of registered cleanup functions.
func (cm *CleanupManager) Count() int {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return len(cm.resources)
}

// CleanupDir removes a directory tree.
func CleanupDir(path string) CleanupFunc {
	return func() error {
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
		return nil
	}
}
