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
	"errors"
	"fmt"
	"strings"
	"time"

	dirsvcerrors "github.com/tombee/dirsvc/pkg/errors"
)

// Sentinel errors. The typed errors below match them with errors.Is.
var (
	// ErrInvalidOperation is returned for a lifecycle call the current
	// status does not allow.
	ErrInvalidOperation = errors.New("invalid service operation")

	// ErrInvalidConfig is returned when the config validator rejects a
	// generated configuration.
	ErrInvalidConfig = errors.New("invalid service configuration")

	// ErrStartupFailed is returned when the daemon exits before it reports
	// readiness.
	ErrStartupFailed = errors.New("service failed to start")

	// ErrStartupTimeout is returned when the daemon does not report
	// readiness in time.
	ErrStartupTimeout = errors.New("service startup timed out")

	// ErrInvalidSuffix is returned for a database suffix that does not end
	// in dc=<org>,dc=<tld>.
	ErrInvalidSuffix = errors.New("invalid database suffix")

	ErrUnknownImpl    = errors.New("unknown service implementation")
	ErrRegistryFrozen = errors.New("service registry is frozen")
)

var (
	_ dirsvcerrors.UserVisibleError = (*OperationError)(nil)
	_ dirsvcerrors.UserVisibleError = (*InvalidConfigError)(nil)
	_ dirsvcerrors.UserVisibleError = (*StartupFailedError)(nil)
	_ dirsvcerrors.UserVisibleError = (*StartupTimeoutError)(nil)
	_ dirsvcerrors.UserVisibleError = (*InvalidSuffixError)(nil)
	_ dirsvcerrors.ErrorClassifier  = (*OperationError)(nil)
	_ dirsvcerrors.ErrorClassifier  = (*StartupTimeoutError)(nil)
)

// OperationError reports a lifecycle operation that is not valid in the
// instance's current state.
type OperationError struct {
	// Service describes the instance, see Describe.
	Service string

	// Operation is the attempted verb, e.g. "start" or "stop".
	Operation string

	Message string
}

func (e *OperationError) Error() string {
	msg := fmt.Sprintf("cannot %s service %s", e.Operation, e.Service)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Is matches ErrInvalidOperation.
func (e *OperationError) Is(target error) bool { return target == ErrInvalidOperation }

func (e *OperationError) IsUserVisible() bool { return true }
func (e *OperationError) UserMessage() string { return e.Error() }

func (e *OperationError) Suggestion() string {
	switch e.Operation {
	case "start":
		return "Run 'dirsvc status' to check the current state, or 'dirsvc stop' first"
	case "stop":
		return "Run 'dirsvc status' to check whether the daemon is running"
	}
	return ""
}

func (e *OperationError) ErrorType() string { return "invalid_operation" }
func (e *OperationError) IsRetryable() bool { return false }

// InvalidConfigError carries the validator's verdict on a generated
// configuration file.
type InvalidConfigError struct {
	ConfigFile string
	ExitCode   int

	// Output is the validator's combined output, verbatim.
	Output string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid configuration %s (exit status %d): %s",
		e.ConfigFile, e.ExitCode, strings.TrimSpace(e.Output))
}

// Is matches ErrInvalidConfig.
func (e *InvalidConfigError) Is(target error) bool { return target == ErrInvalidConfig }

func (e *InvalidConfigError) IsUserVisible() bool { return true }
func (e *InvalidConfigError) UserMessage() string { return e.Error() }
func (e *InvalidConfigError) Suggestion() string {
	return "Check the schema paths, modules and database settings in the bootstrap profile"
}
func (e *InvalidConfigError) ErrorType() string { return "invalid_config" }
func (e *InvalidConfigError) IsRetryable() bool { return false }

// StartupFailedError reports a daemon that exited, or could not be run,
// before it reported readiness.
type StartupFailedError struct {
	Command string

	// ExitCode is the daemon's exit status, negative for a signal and 0
	// when it never ran.
	ExitCode int

	Output string
	Cause  error
}

func (e *StartupFailedError) Error() string {
	msg := fmt.Sprintf("%s failed to start", e.Command)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	} else {
		msg += fmt.Sprintf(" (exit status %d)", e.ExitCode)
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += "\n" + out
	}
	return msg
}

func (e *StartupFailedError) Unwrap() error { return e.Cause }

// Is matches ErrStartupFailed.
func (e *StartupFailedError) Is(target error) bool { return target == ErrStartupFailed }

func (e *StartupFailedError) IsUserVisible() bool { return true }
func (e *StartupFailedError) UserMessage() string { return e.Error() }
func (e *StartupFailedError) Suggestion() string {
	return "Run with --verbose to see the daemon's debug output"
}
func (e *StartupFailedError) ErrorType() string { return "startup_failed" }
func (e *StartupFailedError) IsRetryable() bool { return false }

// StartupTimeoutError reports a daemon that did not become ready in time.
// The daemon has been killed by the time it is returned.
type StartupTimeoutError struct {
	Command string
	Timeout time.Duration
	Output  string
	Cause   error
}

func (e *StartupTimeoutError) Error() string {
	msg := fmt.Sprintf("%s did not become ready within %s", e.Command, e.Timeout)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *StartupTimeoutError) Unwrap() error { return e.Cause }

// Is matches ErrStartupTimeout.
func (e *StartupTimeoutError) Is(target error) bool { return target == ErrStartupTimeout }

func (e *StartupTimeoutError) IsUserVisible() bool { return true }
func (e *StartupTimeoutError) UserMessage() string { return e.Error() }
func (e *StartupTimeoutError) Suggestion() string {
	return "Increase daemon.startup_timeout or check that the ready marker matches the daemon's output"
}
func (e *StartupTimeoutError) ErrorType() string { return "startup_timeout" }
func (e *StartupTimeoutError) IsRetryable() bool { return true }

// InvalidSuffixError reports a database suffix that cannot be bootstrapped.
type InvalidSuffixError struct {
	Suffix string
	Cause  error
}

func (e *InvalidSuffixError) Error() string {
	msg := fmt.Sprintf("invalid suffix %q", e.Suffix)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *InvalidSuffixError) Unwrap() error { return e.Cause }

// Is matches ErrInvalidSuffix.
func (e *InvalidSuffixError) Is(target error) bool { return target == ErrInvalidSuffix }

func (e *InvalidSuffixError) IsUserVisible() bool { return true }
func (e *InvalidSuffixError) UserMessage() string { return e.Error() }
func (e *InvalidSuffixError) Suggestion() string {
	return "Use a suffix such as dc=example,dc=net or ou=people,dc=example,dc=net"
}
func (e *InvalidSuffixError) ErrorType() string { return "invalid_suffix" }
func (e *InvalidSuffixError) IsRetryable() bool { return false }
