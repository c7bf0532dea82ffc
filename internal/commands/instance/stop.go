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
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/dirsvc/internal/commands/completion"
	"github.com/tombee/dirsvc/internal/commands/shared"
	"github.com/tombee/dirsvc/internal/config"
	"github.com/tombee/dirsvc/internal/service"
)

// NewStopCommand creates the stop command.
func NewStopCommand() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the directory daemon",
		Long: `Stop slapd for the configured instance.

Sends SIGTERM and waits for the daemon to exit. The stop command is
idempotent: if the daemon is not running it exits successfully.`,
		Example: `  # Stop the daemon
  dirsvc stop

  # Wait longer for a large database to close
  dirsvc stop --timeout 2m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStop(cmd, timeout)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Shutdown timeout (default: daemon.stop_timeout)")
	cmd.RegisterFlagCompletionFunc("timeout", completion.CompleteStopTimeout)

	return cmd
}

func runStop(cmd *cobra.Command, timeout time.Duration) error {
	ctx := cmd.Context()

	rt, err := Setup(ctx, "stop", func(c *config.Config) {
		if timeout > 0 {
			c.Daemon.StopTimeout = timeout
		}
	})
	if err != nil {
		return fail(cmd, "stop", err)
	}
	defer rt.Close()

	svc, err := rt.Open()
	if err != nil {
		return fail(cmd, "stop", err)
	}
	svc.SetStopOnClose(false)
	defer svc.Close()

	if st := svc.Status(); st != service.StatusRunning {
		return report(cmd, describe("stop", rt, svc), "slapd is not running")
	}

	pid := svc.PID()
	spinner := newSpinner(cmd)
	spinner.Start(fmt.Sprintf("Stopping slapd (PID %d)", pid))
	err = svc.Stop(ctx)
	spinner.Stop()
	if err != nil {
		return fail(cmd, "stop", err)
	}

	return report(cmd, describe("stop", rt, svc), shared.RenderOK(fmt.Sprintf("slapd stopped (PID %d)", pid)))
}
