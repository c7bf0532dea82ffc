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

package service

import (
	"strconv"

	"github.com/tombee/dirsvc/internal/directory"
	dirsvcerrors "github.com/tombee/dirsvc/pkg/errors"
)

// AuthzRule maps authenticated identities matching Match to Replace.
type AuthzRule struct {
	Match   string `yaml:"match" json:"match"`
	Replace string `yaml:"replace" json:"replace"`
}

// BootstrapSpec is everything needed to create a service instance from
// scratch.
type BootstrapSpec struct {
	URIs      []string
	ConfigDir string

	// Schemas are schema file paths, included in order.
	Schemas []string

	// Modules are loadable backend modules, e.g. back_mdb.la. May be empty
	// for a daemon with the backend built in.
	Modules []string

	ConfigPassword string
	DBType         string
	DBDir          string
	Suffix         string
	RootDN         string
	RootPassword   string

	// AuthzMap is evaluated in order; the first matching rule wins.
	AuthzMap []AuthzRule

	Access []string
	Index  []string

	// PIDFile is the daemon's pid file. A fresh path is reserved when
	// empty.
	PIDFile string
}

// Validate checks that the required fields are present and that the suffix
// can be bootstrapped.
func (s BootstrapSpec) Validate() error {
	required := []struct {
		field string
		empty bool
	}{
		{"uris", len(s.URIs) == 0},
		{"config_dir", s.ConfigDir == ""},
		{"config_password", s.ConfigPassword == ""},
		{"db_type", s.DBType == ""},
		{"db_dir", s.DBDir == ""},
		{"suffix", s.Suffix == ""},
		{"root_dn", s.RootDN == ""},
		{"root_password", s.RootPassword == ""},
	}
	for _, r := range required {
		if r.empty {
			return &dirsvcerrors.ValidationError{
				Field:   r.field,
				Message: "is required",
				Hint:    "Set bootstrap." + r.field + " in the profile",
			}
		}
	}
	for i, rule := range s.AuthzMap {
		if rule.Match == "" || rule.Replace == "" {
			return &dirsvcerrors.ValidationError{
				Field:   "authz_map",
				Message: "every rule needs a match and a replace pattern",
				Hint:    "Fix rule " + strconv.Itoa(i+1),
			}
		}
	}
	_, err := s.SplitSuffix()
	return err
}

// SplitSuffix parses Suffix, returning an *InvalidSuffixError when it does
// not end in dc=<org>,dc=<tld>.
func (s BootstrapSpec) SplitSuffix() (*directory.Suffix, error) {
	suffix, err := directory.SplitSuffix(s.Suffix)
	if err != nil {
		return nil, &InvalidSuffixError{Suffix: s.Suffix, Cause: err}
	}
	return suffix, nil
}

// InstanceOptions selects an existing service instance.
type InstanceOptions struct {
	URIs      []string
	ConfigDir string

	// PID attaches the instance to a running daemon when positive.
	PID int

	StopOnClose bool
}

// Options returns the InstanceOptions for the instance s describes.
func (s BootstrapSpec) Options() InstanceOptions {
	return InstanceOptions{URIs: s.URIs, ConfigDir: s.ConfigDir}
}
