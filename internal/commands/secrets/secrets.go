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

// Package secrets implements the secrets command, which stores the
// passwords a profile names with $secret:<key> references.
package secrets

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/dirsvc/internal/commands/shared"
	"github.com/tombee/dirsvc/internal/secrets"
)

// newResolver is replaced in tests.
var newResolver = secrets.DefaultResolver

// NewCommand creates the secrets command for secret management.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage the passwords profiles reference",
		Long: `Manage secrets that profiles name with $secret:<key>.

Secrets are looked up in order:
  1. Environment variables (DIRSVC_SECRET_<KEY>, read-only)
  2. System keychain

Examples:
  dirsvc secrets set openldap/root_password
  dirsvc secrets get openldap/root_password
  dirsvc secrets delete openldap/root_password`,
	}

	cmd.AddCommand(newSetCommand())
	cmd.AddCommand(newGetCommand())
	cmd.AddCommand(newDeleteCommand())

	return cmd
}

func newSetCommand() *cobra.Command {
	var backend string

	cmd := &cobra.Command{
		Use:   "set <key>",
		Short: "Store a secret",
		Long: `Store a secret in the first writable backend, or the one named by
--backend.

The value is read with a hidden prompt, or from standard input when
dirsvc is not running interactively:

  echo "$PASSWORD" | dirsvc secrets set openldap/root_password`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSet(cmd, args[0], backend)
		},
	}

	cmd.Flags().StringVar(&backend, "backend", "", "Target backend (keychain)")

	return cmd
}

func newGetCommand() *cobra.Command {
	var unmask bool

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Show a secret, masked unless --unmask is given",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, args[0], unmask)
		},
	}

	cmd.Flags().BoolVar(&unmask, "unmask", false, "Show full value (not masked)")

	return cmd
}

func newDeleteCommand() *cobra.Command {
	var backend string

	cmd := &cobra.Command{
		Use:   "delete <key>",
		Short: "Remove a secret from the writable backends",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd, args[0], backend)
		},
	}

	cmd.Flags().StringVar(&backend, "backend", "", "Only delete from this backend")

	return cmd
}

func runSet(cmd *cobra.Command, key, backend string) error {
	value, err := readValue(cmd.InOrStdin(), key)
	if err != nil {
		return err
	}
	if value == "" {
		return &shared.ExitError{Code: shared.ExitInvalidInput, Message: "secret value cannot be empty"}
	}

	stored, err := newResolver().Set(cmd.Context(), key, value, backend)
	if err != nil {
		if errors.Is(err, secrets.ErrBackendUnavailable) {
			return fmt.Errorf("backend unavailable: %w\n\nSet it in the environment instead: export %s=<value>", err, secrets.EnvVar(key))
		}
		return fmt.Errorf("failed to set secret: %w", err)
	}

	if !shared.GetQuiet() {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\nReference it as %s\n",
			shared.RenderOK(fmt.Sprintf("Secret stored in %s backend", stored)), secrets.Reference(key))
	}
	return nil
}

func runGet(cmd *cobra.Command, key string, unmask bool) error {
	value, err := newResolver().Get(cmd.Context(), key)
	if err != nil {
		if errors.Is(err, secrets.ErrSecretNotFound) {
			return fmt.Errorf("secret not found: %q\n\nSet it with: dirsvc secrets set %s", key, key)
		}
		return fmt.Errorf("failed to get secret: %w", err)
	}

	if unmask {
		fmt.Fprintln(cmd.OutOrStdout(), value)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%s (use --unmask to show full value)\n", maskSecret(value))
	}
	return nil
}

func runDelete(cmd *cobra.Command, key, backend string) error {
	if err := newResolver().Delete(cmd.Context(), key, backend); err != nil {
		if errors.Is(err, secrets.ErrSecretNotFound) {
			return fmt.Errorf("secret not found: %q", key)
		}
		return fmt.Errorf("failed to delete secret: %w", err)
	}
	if !shared.GetQuiet() {
		fmt.Fprintf(cmd.OutOrStdout(), "Secret %q deleted\n", key)
	}
	return nil
}

// readValue prompts for the value, or reads the first line of in when
// there is no terminal.
func readValue(in io.Reader, key string) (string, error) {
	if !shared.IsNonInteractive() {
		return shared.PromptPassword("value for "+key)
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read secret from stdin: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// maskSecret shows the first and last two characters of long values.
func maskSecret(value string) string {
	if len(value) <= 8 {
		return "****"
	}
	return value[:2] + strings.Repeat("*", len(value)-4) + value[len(value)-2:]
}
