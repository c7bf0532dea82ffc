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

package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/tombee/dirsvc/internal/commands/shared"
	"github.com/tombee/dirsvc/internal/config"
	"github.com/tombee/dirsvc/internal/secrets"
)

// ValidationResult represents the result of profile validation.
type ValidationResult struct {
	shared.JSONResponse
	Path     string   `json:"path"`
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// NewValidateCommand creates the 'config validate' subcommand.
func NewValidateCommand() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the profile for errors",
		Long: `Check the profile the way every other command loads it, then look
for settings that will make create or start fail later:

  - instance.config_dir is required by every instance command
  - bootstrap.suffix and bootstrap.db_dir are required by create
  - passwords stored in plain text in the profile

With --strict, warnings are treated as errors.`,
		Example: `  # Validate the default profile
  dirsvc config validate

  # Fail on warnings too
  dirsvc config validate --strict --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, strict)
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Treat warnings as errors")

	return cmd
}

func runValidate(cmd *cobra.Command, strict bool) error {
	cfgPath, err := profilePath()
	if err != nil {
		return err
	}

	result := ValidationResult{
		JSONResponse: shared.NewJSONResponse("config validate"),
		Path:         cfgPath,
	}
	if _, err := os.Stat(cfgPath); errors.Is(err, fs.ErrNotExist) {
		result.Errors = []string{fmt.Sprintf("no profile found at %s", cfgPath)}
	} else if cfg, err := config.Load(cfgPath); err != nil {
		result.Errors = []string{err.Error()}
	} else {
		result.Warnings = checkProfile(cfg)
	}
	result.Valid = len(result.Errors) == 0
	result.Success = result.Valid && !(strict && len(result.Warnings) > 0)

	if err := outputValidationResult(cmd.OutOrStdout(), result, strict); err != nil {
		return err
	}

	// The result is already printed; exit with the code alone.
	if !result.Success {
		return &shared.ExitError{Code: shared.ExitInvalidConfig}
	}
	return nil
}

// checkProfile returns warnings for a profile that loads but is incomplete.
func checkProfile(cfg *config.Config) []string {
	var warnings []string
	if cfg.Instance.ConfigDir == "" {
		warnings = append(warnings, "instance.config_dir is not set; every instance command needs it")
	}
	if cfg.Bootstrap.Suffix == "" {
		warnings = append(warnings, "bootstrap.suffix is not set; create needs it")
	}
	if cfg.Bootstrap.DBDir == "" {
		warnings = append(warnings, "bootstrap.db_dir is not set; create needs it")
	}
	for key, pw := range map[string]string{
		"bootstrap.config_password": cfg.Bootstrap.ConfigPassword,
		"bootstrap.root_password":   cfg.Bootstrap.RootPassword,
	} {
		if isPlaintext(pw) {
			warnings = append(warnings, fmt.Sprintf("%s is stored in plain text; use %s<key> or %q", key, secrets.ReferencePrefix, config.PromptValue))
		}
	}
	sort.Strings(warnings)
	return warnings
}

func isPlaintext(pw string) bool {
	return pw != "" && pw != config.PromptValue && !secrets.IsReference(pw) && maskPassword(pw) == "****"
}

func outputValidationResult(w io.Writer, result ValidationResult, strict bool) error {
	if shared.GetJSON() {
		return shared.EmitJSON(w, result)
	}

	if result.Valid {
		fmt.Fprintln(w, shared.RenderOK("Profile is valid"))
	} else {
		fmt.Fprintln(w, shared.RenderError("Profile validation failed"))
	}
	fmt.Fprintln(w)

	if len(result.Errors) > 0 {
		fmt.Fprintln(w, shared.Bold.Render("Errors:"))
		for _, e := range result.Errors {
			fmt.Fprintf(w, "  %s %s\n", shared.StatusError.Render(shared.SymbolError), e)
		}
		fmt.Fprintln(w)
	}

	if len(result.Warnings) > 0 {
		fmt.Fprintln(w, shared.Bold.Render("Warnings:"))
		for _, warn := range result.Warnings {
			fmt.Fprintf(w, "  %s %s\n", shared.StatusWarn.Render(shared.SymbolWarn), warn)
		}
		fmt.Fprintln(w)
	}

	if result.Valid && len(result.Warnings) == 0 {
		fmt.Fprintln(w, "No issues found.")
	}
	if result.Valid && strict && len(result.Warnings) > 0 {
		fmt.Fprintln(w, "Validation failed (strict mode: warnings treated as errors)")
	}
	return nil
}
