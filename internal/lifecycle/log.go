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

package lifecycle

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Event names written to the lifecycle log.
const (
	EventCreate         = "create"
	EventCreateSuccess  = "create_success"
	EventCreateFailure  = "create_failure"
	EventStart          = "start"
	EventStartSuccess   = "start_success"
	EventStartFailure   = "start_failure"
	EventStop           = "stop"
	EventStopSuccess    = "stop_success"
	EventStopFailure    = "stop_failure"
	EventGone           = "gone_detected"
	EventAlreadyRunning = "already_running"
)

// LifecycleEvent is one line of the lifecycle log.
type LifecycleEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Event     string    `json:"event"`
	Impl      string    `json:"impl,omitempty"`
	ConfigDir string    `json:"config_dir,omitempty"`
	RunID     string    `json:"run_id,omitempty"`
	PID       int       `json:"pid,omitempty"`
	ExitCode  int       `json:"exit_code,omitempty"`
	Success   bool      `json:"success"`
	Message   string    `json:"message,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// LifecycleLogger appends service lifecycle events to a JSON-lines audit
// file, one logger per service instance.
type LifecycleLogger struct {
	logPath   string
	impl      string
	configDir string
}

// NewLifecycleLogger creates a new lifecycle logger for one instance.
func NewLifecycleLogger(logPath, impl, configDir string) *LifecycleLogger {
	return &LifecycleLogger{
		logPath:   logPath,
		impl:      impl,
		configDir: configDir,
	}
}

// Path returns the log file location.
func (l *LifecycleLogger) Path() string {
	return l.logPath
}

// LogCreate logs the beginning of a cold-start bootstrap.
func (l *LifecycleLogger) LogCreate(runID string) error {
	return l.writeEvent(LifecycleEvent{
		Event:   EventCreate,
		RunID:   runID,
		Success: true,
		Message: "Bootstrap initiated",
	})
}

// LogCreateSuccess logs a completed bootstrap.
func (l *LifecycleLogger) LogCreateSuccess(runID string, duration time.Duration) error {
	return l.writeEvent(LifecycleEvent{
		Event:   EventCreateSuccess,
		RunID:   runID,
		Success: true,
		Message: fmt.Sprintf("Bootstrap completed (duration: %v)", duration),
	})
}

// LogCreateFailure logs a failed bootstrap.
func (l *LifecycleLogger) LogCreateFailure(runID string, err error) error {
	return l.writeEvent(LifecycleEvent{
		Event:   EventCreateFailure,
		RunID:   runID,
		Success: false,
		Message: "Bootstrap failed",
		Error:   errString(err),
	})
}

// LogStart logs a start request.
func (l *LifecycleLogger) LogStart(mode string) error {
	return l.writeEvent(LifecycleEvent{
		Event:   EventStart,
		Success: true,
		Message: fmt.Sprintf("Daemon start initiated (mode: %s)", mode),
	})
}

// LogStartSuccess logs a daemon that reported readiness.
func (l *LifecycleLogger) LogStartSuccess(pid int, duration time.Duration) error {
	return l.writeEvent(LifecycleEvent{
		Event:   EventStartSuccess,
		PID:     pid,
		Success: true,
		Message: fmt.Sprintf("Daemon ready (duration: %v)", duration),
	})
}

// LogStartFailure logs a daemon that failed to become ready.
func (l *LifecycleLogger) LogStartFailure(err error) error {
	return l.writeEvent(LifecycleEvent{
		Event:   EventStartFailure,
		Success: false,
		Message: "Daemon failed to start",
		Error:   errString(err),
	})
}

// LogStop logs a stop request.
func (l *LifecycleLogger) LogStop(pid int) error {
	return l.writeEvent(LifecycleEvent{
		Event:   EventStop,
		PID:     pid,
		Success: true,
		Message: "Daemon stop initiated",
	})
}

// LogStopSuccess logs a completed stop.
func (l *LifecycleLogger) LogStopSuccess(pid int, duration time.Duration) error {
	return l.writeEvent(LifecycleEvent{
		Event:   EventStopSuccess,
		PID:     pid,
		Success: true,
		Message: fmt.Sprintf("Daemon stopped (duration: %v)", duration),
	})
}

// LogStopFailure logs a failed stop.
func (l *LifecycleLogger) LogStopFailure(pid int, err error) error {
	return l.writeEvent(LifecycleEvent{
		Event:   EventStopFailure,
		PID:     pid,
		Success: false,
		Message: "Failed to stop daemon",
		Error:   errString(err),
	})
}

// LogGone logs a daemon that disappeared without being stopped.
func (l *LifecycleLogger) LogGone(pid int, reason string) error {
	return l.writeEvent(LifecycleEvent{
		Event:   EventGone,
		PID:     pid,
		Success: true,
		Message: fmt.Sprintf("Daemon went away: %s", reason),
	})
}

// LogAlreadyRunning logs a start request for a daemon that is already up.
func (l *LifecycleLogger) LogAlreadyRunning(pid int) error {
	return l.writeEvent(LifecycleEvent{
		Event:   EventAlreadyRunning,
		PID:     pid,
		Success: true,
		Message: "Daemon already running",
	})
}

// writeEvent appends a lifecycle event to the log file.
func (l *LifecycleLogger) writeEvent(event LifecycleEvent) error {
	event.Timestamp = time.Now()
	event.Impl = l.impl
	event.ConfigDir = l.configDir

	logDir := filepath.Dir(l.logPath)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(l.logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lifecycle log: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
