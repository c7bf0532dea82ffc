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
	"context"
	"errors"
	"fmt"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

var (
	// ErrProcessNotRunning is returned when the process does not exist.
	ErrProcessNotRunning = errors.New("process not running")

	// ErrNotChild is returned by Reap when the pid was not started by this
	// process and therefore cannot be waited for.
	ErrNotChild = errors.New("process is not a child of this process")

	// ErrShutdownTimeout is returned when the process doesn't exit within the timeout.
	ErrShutdownTimeout = errors.New("shutdown timeout exceeded")
)

// exitPollInterval is how often WaitForExit re-probes a process it cannot wait for.
const exitPollInterval = 100 * time.Millisecond

// ProcessInfo contains information about a running process.
type ProcessInfo struct {
	PID     int
	Running bool
	Zombie  bool
	Command string
}

// IsProcessRunning checks if a process with the given PID exists. A zombie
// still counts as existing; use IsZombie to tell the two apart.
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	// EPERM means the process exists but belongs to someone else.
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// IsZombie reports whether pid has exited but not yet been reaped.
func IsZombie(pid int) bool {
	if pid <= 0 {
		return false
	}
	return isZombie(pid)
}

// IsDaemonProcess checks that the command line of pid mentions name. It keeps
// signals away from unrelated processes when a pid file is stale.
func IsDaemonProcess(pid int, name string) bool {
	cmd, err := getProcessCommand(pid)
	if err != nil {
		return false
	}
	return strings.Contains(cmd, name)
}

// SendSignal sends a signal to the given process. A vanished process yields
// an error wrapping ErrProcessNotRunning.
func SendSignal(pid int, sig syscall.Signal) error {
	if pid <= 0 {
		return fmt.Errorf("refusing to signal pid %d", pid)
	}
	if err := unix.Kill(pid, sig); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return fmt.Errorf("%w: %d", ErrProcessNotRunning, pid)
		}
		return fmt.Errorf("failed to send signal %v to process %d: %w", sig, pid, err)
	}
	return nil
}

// Reap blocks until the child pid exits and returns its exit code (negative
// signal number when killed by a signal). Returns ErrNotChild when pid is
// not our child.
func Reap(pid int) (int, error) {
	var ws unix.WaitStatus
	for {
		_, err := unix.Wait4(pid, &ws, 0, nil)
		switch {
		case err == nil:
			return exitCode(ws), nil
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.ECHILD):
			return 0, ErrNotChild
		default:
			return 0, fmt.Errorf("wait4 %d: %w", pid, err)
		}
	}
}

// TryReap collects the exit status of pid if it has already exited, without
// blocking.
func TryReap(pid int) (exited bool, code int, err error) {
	var ws unix.WaitStatus
	for {
		wpid, err := unix.Wait4(pid, &ws, unix.WNOHANG, nil)
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.ECHILD):
			return false, 0, ErrNotChild
		case err != nil:
			return false, 0, fmt.Errorf("wait4 %d: %w", pid, err)
		case wpid == 0:
			return false, 0, nil
		default:
			return true, exitCode(ws), nil
		}
	}
}

func exitCode(ws unix.WaitStatus) int {
	switch {
	case ws.Exited():
		return ws.ExitStatus()
	case ws.Signaled():
		return -int(ws.Signal())
	default:
		return -1
	}
}

// WaitForExit waits for a process we cannot reap to disappear, checking
// every 100ms. A zombie counts as gone. Returns ErrShutdownTimeout if the
// process is still there after timeout.
func WaitForExit(ctx context.Context, pid int, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(exitPollInterval)
	defer ticker.Stop()

	for {
		if !IsProcessRunning(pid) || IsZombie(pid) {
			return nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrShutdownTimeout
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Terminate sends SIGTERM and waits for pid to exit, reaping it when it is
// our child. Used for both supervised children and attached daemons.
func Terminate(ctx context.Context, pid int, timeout time.Duration) error {
	if err := SendSignal(pid, syscall.SIGTERM); err != nil {
		return err
	}
	if _, err := Reap(pid); err != nil {
		if !errors.Is(err, ErrNotChild) {
			return err
		}
		return WaitForExit(ctx, pid, timeout)
	}
	return nil
}

// Kill sends SIGKILL and reaps the child if possible. Errors are ignored:
// the process is being abandoned.
func Kill(pid int) {
	if pid <= 0 {
		return
	}
	_ = unix.Kill(pid, unix.SIGKILL)
	_, _ = Reap(pid)
}

// GetProcessInfo returns information about the process with the given PID.
func GetProcessInfo(pid int) *ProcessInfo {
	info := &ProcessInfo{
		PID:     pid,
		Running: IsProcessRunning(pid),
	}

	if info.Running {
		info.Zombie = IsZombie(pid)
		cmd, err := getProcessCommand(pid)
		if err != nil {
			info.Command = "<unknown>"
		} else {
			info.Command = cmd
		}
	}

	return info
}
