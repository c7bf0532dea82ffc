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
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// Spawner launches daemon processes, either as a supervised child or by
// replacing the current process image.
type Spawner struct {
	// Env is the environment passed to the daemon.
	Env []string

	// NewProcessGroup puts the child in its own process group so terminal
	// signals aimed at the supervisor do not reach it.
	NewProcessGroup bool
}

// NewSpawner creates a new process spawner.
func NewSpawner() *Spawner {
	return &Spawner{
		Env:             os.Environ(),
		NewProcessGroup: true,
	}
}

// WithEnv sets the environment for spawned processes.
func (s *Spawner) WithEnv(env []string) *Spawner {
	s.Env = env
	return s
}

// Child is a spawned daemon whose combined stdout and stderr are readable
// from Output. The caller reaps it with Reap or TryReap.
type Child struct {
	PID     int
	Command string
	Output  *os.File
}

// CloseOutput closes the read side of the output pipe. It is safe to call
// more than once.
func (c *Child) CloseOutput() error {
	if c.Output == nil {
		return nil
	}
	err := c.Output.Close()
	c.Output = nil
	return err
}

// Spawn starts binary with args as a child process. Stdin is closed and
// stdout/stderr share one pipe. The process handle is released so exit
// status is collected with wait4 by pid.
func (s *Spawner) Spawn(binary string, args []string) (*Child, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create output pipe: %w", err)
	}

	cmd := exec.Command(binary, args...)
	cmd.Env = s.Env
	cmd.Stdin = nil
	cmd.Stdout = w
	cmd.Stderr = w
	if s.NewProcessGroup {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}

	if err := cmd.Start(); err != nil {
		r.Close()
		w.Close()
		return nil, fmt.Errorf("failed to start process: %w", err)
	}

	// Only the child holds the write end now, so EOF means it closed its output.
	w.Close()

	child := &Child{
		PID:     cmd.Process.Pid,
		Command: commandLine(binary, args),
		Output:  r,
	}

	if err := cmd.Process.Release(); err != nil {
		return child, fmt.Errorf("process started but failed to release: %w", err)
	}

	return child, nil
}

// Exec replaces the current process image with binary. It returns only when
// the replacement fails.
func (s *Spawner) Exec(binary string, args []string) error {
	path, err := exec.LookPath(binary)
	if err != nil {
		return fmt.Errorf("failed to locate %s: %w", binary, err)
	}
	argv := append([]string{binary}, args...)
	if err := unix.Exec(path, argv, s.Env); err != nil {
		return fmt.Errorf("exec %s: %w", path, err)
	}
	return nil
}

func commandLine(binary string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, binary)
	for _, a := range args {
		if a == "" || strings.ContainsAny(a, " \t\"'") {
			a = fmt.Sprintf("%q", a)
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}
