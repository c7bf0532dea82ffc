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

// Package version implements the version command.
package version

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/tombee/dirsvc/internal/commands/shared"
	"github.com/tombee/dirsvc/internal/config"
	"github.com/tombee/dirsvc/internal/openldap"
)

// VersionInfo contains version metadata
type VersionInfo struct {
	shared.JSONResponse
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`

	// Slapd is the release SlapdPath reports; empty when it is not an
	// OpenLDAP slapd.
	SlapdPath string `json:"slapd_path"`
	Slapd     string `json:"slapd,omitempty"`
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Display the dirsvc version, commit hash and build date, and the
release of the slapd the profile points at.`,
		Args: cobra.NoArgs,
		RunE: runVersion,
	}
}

func runVersion(cmd *cobra.Command, args []string) error {
	v, c, b := shared.GetVersion()
	info := VersionInfo{
		JSONResponse: shared.NewJSONResponse("version"),
		Version:      v,
		Commit:       c,
		BuildDate:    b,
		GoVersion:    runtime.Version(),
		SlapdPath:    slapdPath(),
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	info.Slapd, _ = openldap.Version(ctx, info.SlapdPath)

	if shared.GetJSON() {
		return shared.EmitJSON(cmd.OutOrStdout(), info)
	}

	slapd := info.Slapd
	if slapd == "" {
		slapd = shared.Muted.Render("not found")
	}
	cmd.Printf("dirsvc version %s\n", info.Version)
	cmd.Printf("  commit:     %s\n", info.Commit)
	cmd.Printf("  build date: %s\n", info.BuildDate)
	cmd.Printf("  go:         %s\n", info.GoVersion)
	cmd.Printf("  slapd:      %s (%s)\n", slapd, info.SlapdPath)
	return nil
}

// slapdPath is daemon.slapd_path from the profile, falling back to the
// defaults when there is no usable profile. Version never fails on a
// broken profile.
func slapdPath() string {
	path := shared.GetConfigPath()
	if path == "" {
		if p, err := config.ConfigPath(); err == nil {
			if _, err := os.Stat(p); !errors.Is(err, fs.ErrNotExist) {
				path = p
			}
		}
	}
	if cfg, err := config.Load(path); err == nil {
		return cfg.Daemon.SlapdPath
	}
	if p := os.Getenv("DIRSVC_SLAPD_PATH"); p != "" {
		return p
	}
	return openldap.DefaultSlapdPath
}
