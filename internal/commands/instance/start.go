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

package instance

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/dirsvc/internal/commands/completion"
	"github.com/tombee/dirsvc/internal/commands/shared"
	"github.com/tombee/dirsvc/internal/config"
	"github.com/tombee/dirsvc/internal/service"
)

// NewStartCommand creates the start command.
func NewStartCommand() *cobra.Command {
	var (
		foreground bool
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the directory daemon",
		Long: `Start slapd for the configured instance and wait until it accepts
connections.

With --foreground dirsvc replaces itself with slapd, which suits service
managers that supervise the process themselves.

The start command is idempotent: if the daemon is already running it
exits successfully.`,
		Example: `  # Start in the background and wait for readiness
  dirsvc start

  # Hand the process over to slapd (systemd, containers)
  dirsvc start --foreground

  # Allow a slow first start
  dirsvc start --timeout 2m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd, foreground, timeout)
		},
	}

	cmd.Flags().BoolVar(&foreground, "foreground", false, "Replace dirsvc with slapd")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Readiness timeout (default: daemon.startup_timeout)")
	cmd.RegisterFlagCompletionFunc("timeout", completion.CompleteStartupTimeout)

	return cmd
}

func runStart(cmd *cobra.Command, foreground bool, timeout time.Duration) error {
	ctx := cmd.Context()

	rt, err := Setup(ctx, "start", func(c *config.Config) {
		if timeout > 0 {
			c.Daemon.StartupTimeout = timeout
		}
	})
	if err != nil {
		return fail(cmd, "start", err)
	}
	defer rt.Close()

	svc, err := rt.Open()
	if err != nil {
		return fail(cmd, "start", err)
	}
	// A started daemon outlives this command.
	svc.SetStopOnClose(false)
	defer svc.Close()

	mode := service.LaunchSpawn
	if foreground {
		mode = service.LaunchExec
		// Nothing after a successful exec runs.
		rt.Flush(ctx)
	}

	spinner := newSpinner(cmd)
	spinner.Start("Starting slapd")
	pid, err := svc.Start(ctx, mode)
	spinner.Stop()
	if err != nil {
		if errors.Is(err, service.ErrInvalidOperation) && svc.Status() == service.StatusRunning {
			return report(cmd, describe("start", rt, svc), fmt.Sprintf("slapd is already running (PID %d)", svc.PID()))
		}
		return fail(cmd, "start", err)
	}

	return report(cmd, describe("start", rt, svc), shared.RenderOK(fmt.Sprintf("slapd started (PID %d)", pid)))
}
