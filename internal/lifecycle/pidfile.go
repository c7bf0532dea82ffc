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
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

var (
	// ErrInvalidPID is returned when the PID file contains invalid data.
	ErrInvalidPID = errors.New("invalid PID in file")

	// ErrNoPIDDirectory is returned when no candidate directory is writable.
	ErrNoPIDDirectory = errors.New("no writable directory for PID file")
)

// PIDFileManager reads PID files written by a supervised daemon. The daemon
// owns the file; this side only reads and, after a stop, cleans it up.
type PIDFileManager struct {
	path string
}

// NewPIDFileManager creates a new PID file manager for the given path.
func NewPIDFileManager(path string) *PIDFileManager {
	return &PIDFileManager{
		path: path,
	}
}

// Path returns the managed file path.
func (m *PIDFileManager) Path() string {
	return m.path
}

// Read reads the PID from the file. The whole trimmed content must be a
// positive integer, otherwise ErrInvalidPID is returned.
func (m *PIDFileManager) Read() (int, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to read PID file: %w", err)
	}

	pidStr := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPID, pidStr)
	}

	if pid <= 0 {
		return 0, fmt.Errorf("%w: PID must be positive, got %d", ErrInvalidPID, pid)
	}

	return pid, nil
}

// Remove deletes the PID file. A missing file is not an error.
func (m *PIDFileManager) Remove() error {
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

// ReservePIDFile returns a fresh, unused file name matching pattern (see
// os.CreateTemp) in the first writable directory of candidates, falling back
// to the system temp directory. The placeholder file is removed again so the
// daemon can create it.
func ReservePIDFile(pattern string, candidates ...string) (string, error) {
	dirs := append(append([]string{}, candidates...), os.TempDir())
	for _, dir := range dirs {
		if !IsWritableDir(dir) {
			continue
		}
		f, err := os.CreateTemp(dir, pattern)
		if err != nil {
			continue
		}
		name := f.Name()
		f.Close()
		if err := os.Remove(name); err != nil {
			return "", fmt.Errorf("failed to release reserved PID file: %w", err)
		}
		return name, nil
	}
	return "", fmt.Errorf("%w (tried %s)", ErrNoPIDDirectory, strings.Join(dirs, ", "))
}

// IsWritableDir reports whether path is an existing directory the current
// user may create files in.
func IsWritableDir(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	return unix.Access(path, unix.W_OK) == nil
}
