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

package openldap

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/tombee/dirsvc/internal/lifecycle"
	"github.com/tombee/dirsvc/internal/log"
	"github.com/tombee/dirsvc/internal/service"
)

// Validator compiles a slapd.conf into a cn=config directory with slaptest.
type Validator struct {
	// Path is the slaptest binary, resolved via PATH.
	Path string

	Logger *slog.Logger
}

// EnsureConfigDir creates dir with mode 0700 when it does not exist, and
// rejects a path that is not a writable directory.
func EnsureConfigDir(dir string) error {
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.Mkdir(dir, 0700); err != nil {
			return fmt.Errorf("cannot create config dir %q: %w", dir, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("cannot access config dir %q: %w", dir, err)
	case !info.IsDir() || !lifecycle.IsWritableDir(dir):
		return fmt.Errorf("invalid config dir %q: expecting a writable directory", dir)
	}
	return nil
}

// Validate runs slaptest -f configFile -F configDir. A non-zero exit yields
// an *service.InvalidConfigError carrying slaptest's output.
func (v *Validator) Validate(ctx context.Context, configFile, configDir string) error {
	if err := EnsureConfigDir(configDir); err != nil {
		return err
	}

	path := v.Path
	if path == "" {
		path = DefaultSlaptestPath
	}
	logger := v.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = log.WithComponent(logger, "slaptest")

	cmd := exec.CommandContext(ctx, path, "-f", configFile, "-F", configDir)
	out, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &service.InvalidConfigError{
				ConfigFile: configFile,
				ExitCode:   exitErr.ExitCode(),
				Output:     string(out),
			}
		}
		return fmt.Errorf("failed to run %s: %w", path, err)
	}

	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		logger.Debug(scanner.Text())
	}
	return nil
}
