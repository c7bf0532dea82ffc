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
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tombee/dirsvc/internal/lifecycle"
)

// rootConfigLDIF is the file slaptest writes for the cn=config entry.
const rootConfigLDIF = "cn=config.ldif"

// ConfiguredPIDFile returns the olcPidFile value from the cn=config entry in
// configDir, or "" when the directory has no such entry or attribute.
func ConfiguredPIDFile(configDir string) (string, error) {
	f, err := os.Open(filepath.Join(configDir, rootConfigLDIF))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read cn=config: %w", err)
	}
	defer f.Close()

	var attr strings.Builder
	flush := func() (string, error) {
		line := attr.String()
		attr.Reset()
		name, value, ok := strings.Cut(line, ":")
		if !ok || !strings.EqualFold(name, "olcPidFile") {
			return "", nil
		}
		return ldifValue(value)
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		// LDIF folds long values onto continuation lines that start with a space.
		if strings.HasPrefix(line, " ") && attr.Len() > 0 {
			attr.WriteString(line[1:])
			continue
		}
		if path, err := flush(); path != "" || err != nil {
			return path, err
		}
		attr.WriteString(line)
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read cn=config: %w", err)
	}
	return flush()
}

// ldifValue decodes what follows the first colon of an attribute line:
// a plain value, or a base64 one after a second colon.
func ldifValue(v string) (string, error) {
	switch {
	case strings.HasPrefix(v, ":"):
		raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(v[1:]))
		if err != nil {
			return "", fmt.Errorf("invalid base64 olcPidFile in cn=config: %w", err)
		}
		return string(raw), nil
	case strings.HasPrefix(v, "<"):
		return "", fmt.Errorf("unsupported URL value for olcPidFile in cn=config: %s", strings.TrimSpace(v[1:]))
	}
	return strings.TrimSpace(v), nil
}

// RunningPID returns the pid recorded in the configured pid file of
// configDir when that process is alive and its command line mentions
// slapdName. It returns 0 when nothing is running there.
func RunningPID(configDir, slapdName string) (int, error) {
	path, err := ConfiguredPIDFile(configDir)
	if err != nil || path == "" {
		return 0, err
	}
	pid, err := lifecycle.NewPIDFileManager(path).Read()
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !isSlapd(pid, slapdName) {
		return 0, nil
	}
	return pid, nil
}

// isSlapd reports whether pid is a live, unreaped process whose command line
// names the slapd binary. A pid file left behind by a dead slapd may name an
// unrelated process by now.
func isSlapd(pid int, slapdPath string) bool {
	if !lifecycle.IsProcessRunning(pid) || lifecycle.IsZombie(pid) {
		return false
	}
	return lifecycle.IsDaemonProcess(pid, filepath.Base(slapdPath))
}
