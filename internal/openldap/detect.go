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
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

const detectTimeout = 5 * time.Second

// ErrNotOpenLDAP is returned by Version for a binary whose banner does not
// name OpenLDAP.
var ErrNotOpenLDAP = errors.New("not an OpenLDAP slapd")

var bannerVersion = regexp.MustCompile(`slapd\s+(\d+(?:\.\d+)+)`)

// Available reports whether slapdPath (looked up in PATH) is an OpenLDAP
// slapd, judged by its -VV version banner.
func Available(ctx context.Context, slapdPath string) bool {
	_, err := Version(ctx, slapdPath)
	return err == nil
}

// Version returns the release slapdPath reports in its -VV banner, such
// as "2.6.7", or the whole banner line when it carries no number.
func Version(ctx context.Context, slapdPath string) (string, error) {
	if slapdPath == "" {
		slapdPath = DefaultSlapdPath
	}
	path, err := exec.LookPath(slapdPath)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, detectTimeout)
	defer cancel()

	// slapd -VV exits non-zero after printing the banner on most builds.
	out, err := exec.CommandContext(ctx, path, "-VV").CombinedOutput()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return "", err
	}
	for _, line := range strings.Split(string(out), "\n") {
		if !strings.Contains(strings.ToLower(line), "openldap") {
			continue
		}
		if m := bannerVersion.FindStringSubmatch(line); m != nil {
			return m[1], nil
		}
		return strings.TrimSpace(line), nil
	}
	return "", fmt.Errorf("%s: %w", path, ErrNotOpenLDAP)
}
