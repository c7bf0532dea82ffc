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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// systemConfigDirs are the places distributions install slapd's
// configuration, in probe order.
var systemConfigDirs = []string{
	"/etc/openldap",
	"/etc/ldap",
	"/usr/local/etc/openldap",
	"/opt/local/etc/openldap",
}

// SystemConfigDir is the first of the standard OpenLDAP configuration
// directories that exists on this host, or "".
var SystemConfigDir = findConfigDir(systemConfigDirs)

// ErrNoSystemSchemas is returned by SystemSchemas when no OpenLDAP
// configuration directory exists on this host.
var ErrNoSystemSchemas = errors.New("no OpenLDAP configuration directory found")

// DefaultSchemas are enough for inetOrgPerson accounts.
var DefaultSchemas = []string{"core", "cosine", "inetorgperson"}

func findConfigDir(candidates []string) string {
	for _, dir := range candidates {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}
	return ""
}

// SystemSchemas returns the paths of the named schemas in the system
// schema directory. With no names, DefaultSchemas are used.
func SystemSchemas(names ...string) ([]string, error) {
	if SystemConfigDir == "" {
		return nil, fmt.Errorf("%w (tried %s); give schema files by path", ErrNoSystemSchemas, strings.Join(systemConfigDirs, ", "))
	}
	if len(names) == 0 {
		names = DefaultSchemas
	}
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(SystemConfigDir, "schema", name+".schema")
	}
	return paths, nil
}
