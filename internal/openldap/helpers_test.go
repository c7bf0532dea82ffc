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
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/require"

	"github.com/tombee/dirsvc/internal/directory"
	"github.com/tombee/dirsvc/internal/lifecycle"
	"github.com/tombee/dirsvc/internal/service"
)

// parseFlags is shell that sets $conf and $dir from -f and -F.
const parseFlags = `
while [ $# -gt 0 ]; do
  case "$1" in
    -f) conf="$2"; shift ;;
    -F) dir="$2"; shift ;;
  esac
  shift
done
`

// slaptestOK compiles the pidfile directive into cn=config.ldif.
const slaptestOK = parseFlags + `
pid=$(sed -n 's/^pidfile //p' "$conf")
printf 'dn: cn=config\nobjectClass: olcGlobal\ncn: config\nolcPidFile: %s\n' "$pid" > "$dir/cn=config.ldif"
echo "config file testing succeeded"
`

// slapdReady writes its pid where cn=config says, reports readiness and
// then becomes a long sleep with the same pid.
const slapdReady = `
for a in "$@"; do echo "$a"; done > "$(dirname "$0")/args"
` + parseFlags + `
pid=$(sed -n 's/^olcPidFile: //p' "$dir/cn=config.ldif" 2>/dev/null)
[ -n "$pid" ] && echo $$ > "$pid"
echo "daemon: listening"
echo "slapd starting"
exec sleep 60
`

// slapdIgnoresTerm detaches a daemon that ignores SIGTERM, records its pid
// where cn=config says and exits once the daemon is set up.
const slapdIgnoresTerm = `
if [ "$1" = daemon ]; then
  trap '' TERM
  : > "$2"
  while :; do sleep 1; done
fi
` + parseFlags + `
pid=$(sed -n 's/^olcPidFile: //p' "$dir/cn=config.ldif")
ready="$(dirname "$0")/daemon-ready"
"$0" daemon "$ready" &
echo $! > "$pid"
while [ ! -f "$ready" ]; do sleep 0.01; done
echo "slapd starting"
`

// writeScript installs an executable shell script named name and returns
// its path.
func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755))
	return path
}

// testOptions returns Options running the given fake binaries with fast
// polling.
func testOptions(t *testing.T, slapd, slaptest string) Options {
	t.Helper()
	return Options{
		SlapdPath:      slapd,
		SlaptestPath:   slaptest,
		PollInterval:   5 * time.Millisecond,
		StartupTimeout: 5 * time.Second,
		StopTimeout:    5 * time.Second,
		PIDDirs:        []string{t.TempDir()},
	}
}

// skipOnSpawnError skips when the environment forbids running scripts.
func skipOnSpawnError(t *testing.T, err error) {
	t.Helper()
	var failed *service.StartupFailedError
	if errors.As(err, &failed) && failed.Cause != nil {
		t.Skipf("cannot spawn processes here: %v", err)
	}
}

// cleanupPID kills pid when the test ends.
func cleanupPID(t *testing.T, pid *int) {
	t.Cleanup(func() {
		if *pid > 0 && lifecycle.IsProcessRunning(*pid) {
			lifecycle.Kill(*pid)
		}
	})
}

// writeConfigLDIF fakes slaptest output naming pidFile.
func writeConfigLDIF(t *testing.T, configDir, pidFile string) {
	t.Helper()
	body := "dn: cn=config\nobjectClass: olcGlobal\ncn: config\n"
	if pidFile != "" {
		body += "olcPidFile: " + pidFile + "\n"
	}
	require.NoError(t, os.WriteFile(filepath.Join(configDir, rootConfigLDIF), []byte(body), 0600))
}

// recorder is a directory.Conn that records every request.
type recorder struct {
	ops     []string
	adds    map[string]*ldap.AddRequest
	mods    map[string]*ldap.ModifyRequest
	failAdd map[string]error
	dials   int
	closed  int
}

func newRecorder() *recorder {
	return &recorder{
		adds:    map[string]*ldap.AddRequest{},
		mods:    map[string]*ldap.ModifyRequest{},
		failAdd: map[string]error{},
	}
}

func (r *recorder) Dial(ctx context.Context, uri string) (directory.Conn, error) {
	if !strings.HasPrefix(uri, "ldap") {
		return nil, fmt.Errorf("unexpected uri %q", uri)
	}
	r.dials++
	return r, nil
}

func (r *recorder) dial(ctx context.Context) (directory.Conn, error) {
	return r.Dial(ctx, "ldapi:///")
}

func (r *recorder) Bind(username, password string) error {
	r.ops = append(r.ops, "bind "+username)
	return nil
}

func (r *recorder) Add(req *ldap.AddRequest) error {
	r.ops = append(r.ops, "add "+req.DN)
	r.adds[req.DN] = req
	return r.failAdd[req.DN]
}

func (r *recorder) Modify(req *ldap.ModifyRequest) error {
	r.ops = append(r.ops, "modify "+req.DN)
	r.mods[req.DN] = req
	return nil
}

func (r *recorder) Unbind() error {
	r.ops = append(r.ops, "unbind")
	return nil
}

func (r *recorder) Close() error {
	r.closed++
	return nil
}

// checkSSHA reports whether password matches an {SSHA} value.
func checkSSHA(hashed, password string) bool {
	if Scheme(hashed) != "SSHA" {
		return false
	}
	raw, err := base64.StdEncoding.DecodeString(hashed[len("{SSHA}"):])
	if err != nil || len(raw) <= sha1.Size {
		return false
	}
	return ssha(password, raw[sha1.Size:]) == hashed
}

func addValues(req *ldap.AddRequest, attr string) []string {
	for _, a := range req.Attributes {
		if a.Type == attr {
			return a.Vals
		}
	}
	return nil
}

func modChange(req *ldap.ModifyRequest, attr string) (uint, []string, bool) {
	for _, c := range req.Changes {
		if c.Modification.Type == attr {
			return c.Operation, c.Modification.Vals, true
		}
	}
	return 0, nil, false
}
