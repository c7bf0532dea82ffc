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

	"github.com/tombee/dirsvc/internal/commands/shared"
	"github.com/tombee/dirsvc/internal/log"
	"github.com/tombee/dirsvc/internal/openldap"
	"github.com/tombee/dirsvc/internal/secrets"
	"github.com/tombee/dirsvc/internal/service"
)

// NewCreateCommand creates the create command.
func NewCreateCommand() *cobra.Command {
	var start bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create and bootstrap a directory instance",
		Long: `Create a new directory instance from the profile's bootstrap section.

The configuration is rendered, checked with slaptest and compiled into
instance.config_dir. The daemon is then started, the database, suffix
entries and organizational units are added, and the daemon is stopped
again unless --start is given.

Passwords may be given literally, pre-hashed ({SSHA}...), as
$secret:<key> references, or as "prompt" to be asked for on the terminal.`,
		Example: `  # Create the instance described by the default profile
  dirsvc create

  # Create and leave the daemon running
  dirsvc create --config ./example.yaml --start`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(cmd, start)
		},
	}

	cmd.Flags().BoolVar(&start, "start", false, "Leave the daemon running after bootstrap")

	return cmd
}

func runCreate(cmd *cobra.Command, start bool) error {
	ctx := cmd.Context()

	rt, err := Setup(ctx, "create")
	if err != nil {
		return fail(cmd, "create", err)
	}
	defer rt.Close()

	if err := rt.Config.ResolveSecrets(ctx, secrets.DefaultResolver(), shared.Prompter()); err != nil {
		return fail(cmd, "create", err)
	}
	spec, err := rt.Config.BootstrapSpec(systemSchema)
	if err != nil {
		return fail(cmd, "create", err)
	}

	if err := rt.Audit.LogCreate(rt.RunID); err != nil {
		rt.Logger.Warn("failed to write lifecycle log", log.Error(err))
	}

	spinner := newSpinner(cmd)
	spinner.Start(fmt.Sprintf("Creating %s instance in %s", rt.Impl, spec.ConfigDir))
	began := time.Now()
	svc, err := service.CreateBasic(ctx, rt.Registry, rt.Impl, spec)
	spinner.Stop()
	if err != nil {
		if logErr := rt.Audit.LogCreateFailure(rt.RunID, err); logErr != nil {
			rt.Logger.Warn("failed to write lifecycle log", log.Error(logErr))
		}
		return fail(cmd, "create", err)
	}
	defer svc.Close()

	if err := rt.Audit.LogCreateSuccess(rt.RunID, time.Since(began)); err != nil {
		rt.Logger.Warn("failed to write lifecycle log", log.Error(err))
	}

	msg := shared.RenderOK(fmt.Sprintf("Created %s instance in %s", rt.Impl, spec.ConfigDir))
	if start {
		pid, err := svc.Start(ctx, service.LaunchSpawn)
		if err != nil {
			return fail(cmd, "create", err)
		}
		msg = shared.RenderOK(fmt.Sprintf("Created %s instance in %s and started slapd (PID %d)", rt.Impl, spec.ConfigDir, pid))
	}
	return report(cmd, describe("create", rt, svc), msg)
}

// systemSchema resolves a bare schema name in the system schema directory.
func systemSchema(name string) (string, error) {
	paths, err := openldap.SystemSchemas(name)
	if err != nil {
		return "", err
	}
	return paths[0], nil
}
