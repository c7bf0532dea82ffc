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
	"context"
	"fmt"

	"github.com/tombee/dirsvc/internal/directory"
)

// Impl is one supervised daemon instance of a particular implementation.
// Implementations are not safe for concurrent use.
type Impl interface {
	// Name is the implementation name the instance was created by.
	Name() string

	URIs() []string
	ConfigDir() string

	// Status probes the daemon and returns the resulting status.
	Status() Status

	// PID is the daemon's pid, or 0 if it was never started.
	PID() int

	StopOnClose() bool
	SetStopOnClose(stop bool)

	// Start launches the daemon and returns its pid once it is ready.
	Start(ctx context.Context, mode LaunchMode) (int, error)

	// Stop terminates the daemon and waits for it to exit.
	Stop(ctx context.Context) error

	// Client opens a connection to the preferred URI.
	Client(ctx context.Context) (directory.Conn, error)

	// Close stops the daemon if StopOnClose is set and it is running.
	// Errors are logged, never returned.
	Close() error
}

// Factory creates instances of one implementation.
type Factory interface {
	Name() string

	// New returns an instance for an existing configuration directory.
	New(opts InstanceOptions) (Impl, error)

	// CreateBasic generates, validates and bootstraps a configuration,
	// leaving the returned instance stopped.
	CreateBasic(ctx context.Context, spec BootstrapSpec) (Impl, error)
}

// Describe names an instance in errors and logs.
func Describe(impl, configDir string) string {
	return fmt.Sprintf("%s(%s)", impl, configDir)
}
