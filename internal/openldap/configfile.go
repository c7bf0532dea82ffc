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
	"fmt"
	"os"
	"strings"

	"github.com/tombee/dirsvc/internal/lifecycle"
)

// DefaultPIDDir is where a pid file is reserved when none is configured and
// the directory is writable.
const DefaultPIDDir = "/var/run"

// RenderConfig returns the bootstrap slapd.conf text: the schema includes,
// the pid file, and a config database whose root credential is rootPW.
// rootPW must already be hashed.
func RenderConfig(schemas []string, pidFile, rootPW string) string {
	var b strings.Builder
	for _, schema := range schemas {
		fmt.Fprintf(&b, "include %s\n", schema)
	}
	fmt.Fprintf(&b, "pidfile %s\n", pidFile)
	b.WriteString("database config\n")
	fmt.Fprintf(&b, "rootpw %s\n", rootPW)
	return b.String()
}

// ConfigFile is a rendered bootstrap configuration on disk.
type ConfigFile struct {
	// Path is a temporary file the caller removes once validated.
	Path string

	// PIDFile is the pid file the configuration names.
	PIDFile string
}

// Remove deletes the configuration file.
func (c *ConfigFile) Remove() error {
	if err := os.Remove(c.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// WriteConfigFile hashes configPassword, reserves a pid file when pidFile is
// empty, and writes the rendered configuration to a new temporary file.
// pidDirs are tried in order for the reservation before the system temp
// directory.
func WriteConfigFile(schemas []string, configPassword, pidFile string, pidDirs ...string) (*ConfigFile, error) {
	rootPW, err := HashPassword(configPassword)
	if err != nil {
		return nil, err
	}

	if pidFile == "" {
		if len(pidDirs) == 0 {
			pidDirs = []string{DefaultPIDDir}
		}
		pidFile, err = lifecycle.ReservePIDFile("slapd-*.pid", pidDirs...)
		if err != nil {
			return nil, err
		}
	}

	f, err := os.CreateTemp("", "slapd-*.conf")
	if err != nil {
		return nil, fmt.Errorf("failed to create config file: %w", err)
	}
	cfg := &ConfigFile{Path: f.Name(), PIDFile: pidFile}

	if _, err := f.WriteString(RenderConfig(schemas, pidFile, rootPW)); err != nil {
		f.Close()
		cfg.Remove()
		return nil, fmt.Errorf("failed to write config file: %w", err)
	}
	if err := f.Close(); err != nil {
		cfg.Remove()
		return nil, fmt.Errorf("failed to write config file: %w", err)
	}
	return cfg, nil
}
