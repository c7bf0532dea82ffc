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
)

// Status is the lifecycle state of a service instance.
type Status int

const (
	// StatusStopped means no daemon is attached to the instance.
	StatusStopped Status = iota

	// StatusRunning means the instance started or attached to a daemon that
	// was alive at the last probe.
	StatusRunning

	// StatusGone means the daemon disappeared without being stopped through
	// the instance. It is terminal.
	StatusGone
)

func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusRunning:
		return "running"
	case StatusGone:
		return "gone"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// LaunchMode selects how Start runs the daemon.
type LaunchMode int

const (
	// LaunchSpawn runs the daemon as a child process and returns once it
	// reports readiness.
	LaunchSpawn LaunchMode = iota

	// LaunchExec replaces the current process with the daemon. Start only
	// returns if the exec fails.
	LaunchExec
)

func (m LaunchMode) String() string {
	switch m {
	case LaunchSpawn:
		return "spawn"
	case LaunchExec:
		return "exec"
	default:
		return fmt.Sprintf("LaunchMode(%d)", int(m))
	}
}
