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

package shared

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tombee/dirsvc/internal/config"
	"github.com/tombee/dirsvc/internal/directory"
	"github.com/tombee/dirsvc/internal/service"
	pkgerrors "github.com/tombee/dirsvc/pkg/errors"
)

// Exit codes for dirsvc commands
const (
	ExitSuccess          = 0
	ExitFailure          = 1
	ExitInvalidConfig    = 2
	ExitInvalidOperation = 3
	ExitStartupFailed    = 4
	ExitInvalidInput     = 5
	ExitLocked           = 75 // Instance busy (EX_TEMPFAIL from sysexits.h)
)

// ExitError is an error that carries an exit code
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewExitError wraps cause with the exit code ExitCodeFor picks for it.
func NewExitError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitCodeFor(cause),
		Message: msg,
		Cause:   cause,
	}
}

// NewLockedError creates an error for an instance another command holds.
func NewLockedError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitLocked,
		Message: msg,
		Cause:   cause,
	}
}

// ExitCodeFor maps an error onto the process exit code.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Code != 0 {
		return exitErr.Code
	}

	var cfgErr *pkgerrors.ConfigError
	var validationErr *pkgerrors.ValidationError
	switch {
	case errors.Is(err, service.ErrInvalidSuffix), errors.As(err, &validationErr):
		return ExitInvalidInput
	case errors.Is(err, service.ErrInvalidConfig), errors.Is(err, config.ErrInvalidConfig), errors.As(err, &cfgErr):
		return ExitInvalidConfig
	case errors.Is(err, service.ErrInvalidOperation):
		return ExitInvalidOperation
	case errors.Is(err, service.ErrStartupFailed), errors.Is(err, service.ErrStartupTimeout):
		return ExitStartupFailed
	}
	return ExitFailure
}

// HandleExitError prints err and exits with the code ExitCodeFor picks.
func HandleExitError(err error) {
	if err == nil {
		return
	}
	os.Exit(reportError(os.Stderr, err))
}

// existsSuggestion answers an LDAP "entry already exists" result, which
// create hits when the database directory already holds the suffix.
const existsSuggestion = "The directory already holds this entry. Create into an empty config_dir and db_dir, or start the existing instance"

// reportError writes err and any suggestion to w and returns the exit code.
func reportError(w io.Writer, err error) int {
	if msg := err.Error(); msg != "" {
		fmt.Fprintln(w, "Error:", msg)
	}
	if code := directory.ResultCode(err); code >= 0 {
		fmt.Fprintf(w, "LDAP result code: %d\n", code)
	}
	if !printUserVisibleSuggestion(w, err) && directory.IsAlreadyExists(err) {
		fmt.Fprintf(w, "\nSuggestion: %s\n", existsSuggestion)
	}
	return ExitCodeFor(err)
}

// printUserVisibleSuggestion checks if an error implements UserVisibleError
// and prints the suggestion if available. It reports whether it printed one.
func printUserVisibleSuggestion(w io.Writer, err error) bool {
	// Walk the error chain to find a UserVisibleError
	for err != nil {
		if userErr, ok := err.(pkgerrors.UserVisibleError); ok {
			if !userErr.IsUserVisible() {
				return false
			}
			suggestion := userErr.Suggestion()
			if suggestion == "" {
				return false
			}
			fmt.Fprintf(w, "\nSuggestion: %s\n", suggestion)
			return true
		}

		// Continue unwrapping
		err = errors.Unwrap(err)
	}
	return false
}
