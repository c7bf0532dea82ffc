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
	"github.com/spf13/cobra"

	"github.com/tombee/dirsvc/internal/commands/shared"
)

// NewStatusCommand creates the status command.
func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the directory daemon is running",
		Long: `Report the status of the configured instance: running, stopped, or
gone when the daemon exited without being stopped.`,
		Example: `  # Show status
  dirsvc status

  # Extract the pid
  dirsvc status --json | jq -r '.pid'`,
		Args: cobra.NoArgs,
		RunE: runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	rt, err := Setup(cmd.Context(), "status")
	if err != nil {
		return fail(cmd, "status", err)
	}
	defer rt.Close()

	svc, err := rt.Open()
	if err != nil {
		return fail(cmd, "status", err)
	}
	svc.SetStopOnClose(false)
	defer svc.Close()

	status := svc.Status()
	info := describe("status", rt, svc)
	if shared.GetJSON() {
		return shared.EmitJSON(cmd.OutOrStdout(), info)
	}
	if !shared.GetQuiet() {
		printDetails(cmd.OutOrStdout(), info, status)
	}
	return nil
}
