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
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/dirsvc/internal/commands/shared"
	"github.com/tombee/dirsvc/internal/lifecycle"
	"github.com/tombee/dirsvc/internal/service"
)

// InstanceInfo is the JSON output of every instance command.
type InstanceInfo struct {
	shared.JSONResponse
	Impl      string   `json:"impl"`
	ConfigDir string   `json:"config_dir"`
	URIs      []string `json:"uris"`
	Status    string   `json:"status"`
	PID       int      `json:"pid,omitempty"`
	Cmdline   string   `json:"cmdline,omitempty"`
	RunID     string   `json:"run_id,omitempty"`
	Message   string   `json:"message,omitempty"`
}

func describe(command string, rt *Runtime, svc *service.Service) InstanceInfo {
	info := InstanceInfo{
		JSONResponse: shared.NewJSONResponse(command),
		Impl:         rt.Impl,
		ConfigDir:    rt.Config.Instance.ConfigDir,
		URIs:         rt.Config.Instance.URIs,
		Status:       service.StatusStopped.String(),
		RunID:        rt.RunID,
	}
	if svc != nil {
		info.URIs = svc.URIs()
		info.Status = svc.Status().String()
		info.PID = svc.PID()
	}
	if info.Status == service.StatusRunning.String() {
		if p := lifecycle.GetProcessInfo(info.PID); p.Running && !p.Zombie {
			info.Cmdline = p.Command
		}
	}
	return info
}

// report prints info, as JSON with --json and as msg otherwise. --quiet
// silences the human output.
func report(cmd *cobra.Command, info InstanceInfo, msg string) error {
	info.Message = msg
	if shared.GetJSON() {
		return shared.EmitJSON(cmd.OutOrStdout(), info)
	}
	if !shared.GetQuiet() {
		fmt.Fprintln(cmd.OutOrStdout(), msg)
	}
	return nil
}

// fail emits err as JSON when asked to and returns it for the exit code.
func fail(cmd *cobra.Command, command string, err error) error {
	if shared.GetJSON() {
		_ = shared.EmitJSONError(cmd.OutOrStdout(), command, err)
	}
	return err
}

func printDetails(w io.Writer, info InstanceInfo, status service.Status) {
	fmt.Fprintf(w, "%s %s\n", shared.Bold.Render(info.Impl), info.ConfigDir)
	fmt.Fprintf(w, "  %s %s\n", shared.RenderLabel("status:"), shared.RenderServiceStatus(status))
	if info.PID > 0 {
		fmt.Fprintf(w, "  %s %d\n", shared.RenderLabel("pid:   "), info.PID)
	}
	if info.Cmdline != "" {
		fmt.Fprintf(w, "  %s %s\n", shared.RenderLabel("cmd:   "), info.Cmdline)
	}
	fmt.Fprintf(w, "  %s %s\n", shared.RenderLabel("uris:  "), strings.Join(info.URIs, " "))
}

// newSpinner returns a spinner unless the output is JSON or quiet.
func newSpinner(cmd *cobra.Command) *shared.Spinner {
	if shared.GetJSON() || shared.GetQuiet() {
		return shared.NewSpinnerTo(io.Discard)
	}
	return shared.NewSpinner()
}
