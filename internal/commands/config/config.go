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

// Package config implements the config command: show, path and validate
// for dirsvc profiles.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tombee/dirsvc/internal/commands/shared"
	"github.com/tombee/dirsvc/internal/config"
	"github.com/tombee/dirsvc/internal/secrets"
)

// NewConfigCommand creates the config command with subcommands
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and check the profile",
		Long: `View and check the dirsvc profile.

Subcommands:
  show     - Display the effective profile
  path     - Show the profile location
  validate - Check the profile for errors`,
		Args: cobra.NoArgs,
		RunE: runConfigShow,
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigPathCommand())
	cmd.AddCommand(NewValidateCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display the effective profile",
		Long: `Display the profile after defaults and environment overrides.

Passwords are masked. $secret: references and "prompt" are shown as written.`,
		Args: cobra.NoArgs,
		RunE: runConfigShow,
	}
}

func newConfigPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show the profile location",
		Args:  cobra.NoArgs,
		RunE:  runConfigPath,
	}
}

// ShowResult is the JSON form of config show.
type ShowResult struct {
	shared.JSONResponse
	Path   string         `json:"path"`
	Config *config.Config `json:"config"`
}

// profilePath returns the --config path or the default profile.
func profilePath() (string, error) {
	if p := shared.GetConfigPath(); p != "" {
		return p, nil
	}
	p, err := config.ConfigPath()
	if err != nil {
		return "", fmt.Errorf("failed to determine config path: %w", err)
	}
	return p, nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfgPath, err := profilePath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfgPath); errors.Is(err, fs.ErrNotExist) {
		return shared.NewExitError(fmt.Sprintf("no profile found at %s", cfgPath), config.ErrInvalidConfig)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return shared.NewExitError("failed to load profile", err)
	}
	masked := maskSecrets(cfg)

	out := cmd.OutOrStdout()
	if shared.GetJSON() {
		return shared.EmitJSON(out, ShowResult{
			JSONResponse: shared.NewJSONResponse("config show"),
			Path:         cfgPath,
			Config:       masked,
		})
	}

	fmt.Fprintf(out, "Profile: %s\n", cfgPath)
	fmt.Fprintln(out, strings.Repeat("=", 50))
	fmt.Fprintln(out)

	encoder := yaml.NewEncoder(out)
	encoder.SetIndent(2)
	if err := encoder.Encode(masked); err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	return encoder.Close()
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	cfgPath, err := profilePath()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), cfgPath)
	return nil
}

// maskSecrets returns a copy of cfg with literal passwords masked.
func maskSecrets(cfg *config.Config) *config.Config {
	masked := *cfg
	masked.Bootstrap.ConfigPassword = maskPassword(cfg.Bootstrap.ConfigPassword)
	masked.Bootstrap.RootPassword = maskPassword(cfg.Bootstrap.RootPassword)
	return &masked
}

// maskPassword hides a literal password. A pre-hashed value keeps its
// scheme so the reader can tell it is hashed.
func maskPassword(pw string) string {
	switch {
	case pw == "":
		return ""
	case pw == config.PromptValue, secrets.IsReference(pw):
		return pw
	case strings.HasPrefix(pw, "{"):
		if end := strings.Index(pw, "}"); end > 0 {
			return pw[:end+1] + "****"
		}
	}
	return "****"
}
