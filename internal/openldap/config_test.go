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
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/dirsvc/internal/service"
)

func TestHashPassword(t *testing.T) {
	hashed, err := HashPassword("secret")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hashed, "{SSHA}"), hashed)

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(hashed, "{SSHA}"))
	require.NoError(t, err)
	assert.Len(t, raw, sha1.Size+saltSize)
	assert.True(t, checkSSHA(hashed, "secret"))
	assert.False(t, checkSSHA(hashed, "Secret"))

	again, err := HashPassword("secret")
	require.NoError(t, err)
	assert.NotEqual(t, hashed, again, "salt must be random")
}

func TestHashPassword_Verbatim(t *testing.T) {
	for _, v := range []string{"{CRYPT}xyz", "{SSHA}abcd", "{CLEARTEXT}plain", "{MD5}"} {
		got, err := HashPassword(v)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
	assert.Equal(t, "CRYPT", Scheme("{CRYPT}xyz"))
	assert.Equal(t, "", Scheme("{not a scheme}x"))
	assert.False(t, IsHashed("{}x"))
	assert.False(t, checkSSHA("{CRYPT}xyz", "xyz"))
}

func TestRenderConfig_Order(t *testing.T) {
	text := RenderConfig([]string{"/s/core.schema", "/s/cosine.schema", "/s/inetorgperson.schema"}, "/tmp/x.pid", "{SSHA}hash")

	assert.True(t, strings.HasSuffix(text, "\n"))
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	assert.Equal(t, []string{
		"include /s/core.schema",
		"include /s/cosine.schema",
		"include /s/inetorgperson.schema",
		"pidfile /tmp/x.pid",
		"database config",
		"rootpw {SSHA}hash",
	}, lines)
}

func TestWriteConfigFile(t *testing.T) {
	pidDir := t.TempDir()
	cfg, err := WriteConfigFile([]string{"/s/core.schema"}, "admin", "", pidDir)
	require.NoError(t, err)
	defer cfg.Remove()

	assert.Equal(t, pidDir, filepath.Dir(cfg.PIDFile))
	assert.True(t, strings.HasPrefix(filepath.Base(cfg.PIDFile), "slapd-"))
	assert.True(t, strings.HasSuffix(cfg.PIDFile, ".pid"))
	_, err = os.Stat(cfg.PIDFile)
	assert.True(t, os.IsNotExist(err), "reserved pid file is left for slapd to create")

	data, err := os.ReadFile(cfg.Path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "pidfile "+cfg.PIDFile+"\n")
	assert.Contains(t, text, "rootpw {SSHA}")
	assert.NotContains(t, text, "admin")

	require.NoError(t, cfg.Remove())
	_, err = os.Stat(cfg.Path)
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, cfg.Remove())
}

func TestWriteConfigFile_ExplicitPIDFileAndFallback(t *testing.T) {
	cfg, err := WriteConfigFile(nil, "{CRYPT}abc", "/tmp/x.pid")
	require.NoError(t, err)
	defer cfg.Remove()
	assert.Equal(t, "/tmp/x.pid", cfg.PIDFile)
	data, err := os.ReadFile(cfg.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "rootpw {CRYPT}abc\n")

	unwritable := filepath.Join(t.TempDir(), "missing")
	cfg2, err := WriteConfigFile(nil, "admin", "", unwritable)
	require.NoError(t, err)
	defer cfg2.Remove()
	assert.Equal(t, filepath.Clean(os.TempDir()), filepath.Dir(cfg2.PIDFile))
}

func TestEnsureConfigDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "slapd.d")
	require.NoError(t, EnsureConfigDir(dir))
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())

	require.NoError(t, EnsureConfigDir(dir), "existing writable dir is accepted")

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0600))
	assert.Error(t, EnsureConfigDir(file))

	assert.Error(t, EnsureConfigDir(filepath.Join(t.TempDir(), "a", "b")))
}

func TestValidator(t *testing.T) {
	slaptest := writeScript(t, "slaptest", slaptestOK)
	configDir := filepath.Join(t.TempDir(), "slapd.d")

	cfg, err := WriteConfigFile(nil, "admin", "/tmp/dirsvc-test.pid")
	require.NoError(t, err)
	defer cfg.Remove()

	v := &Validator{Path: slaptest}
	err = v.Validate(context.Background(), cfg.Path, configDir)
	if err != nil && !strings.Contains(err.Error(), "invalid configuration") {
		t.Skipf("cannot run scripts here: %v", err)
	}
	require.NoError(t, err)

	pidFile, err := ConfiguredPIDFile(configDir)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/dirsvc-test.pid", pidFile)
}

func TestValidator_Rejects(t *testing.T) {
	slaptest := writeScript(t, "slaptest", "echo 'line 1: unknown directive <bogus>'\necho 'slaptest: bad configuration file!'\nexit 1\n")
	v := &Validator{Path: slaptest}

	err := v.Validate(context.Background(), "/tmp/slapd.conf", t.TempDir())
	if err != nil && strings.Contains(err.Error(), "failed to run") {
		t.Skipf("cannot run scripts here: %v", err)
	}
	require.ErrorIs(t, err, service.ErrInvalidConfig)

	var cfgErr *service.InvalidConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "/tmp/slapd.conf", cfgErr.ConfigFile)
	assert.Equal(t, 1, cfgErr.ExitCode)
	assert.Equal(t, "line 1: unknown directive <bogus>\nslaptest: bad configuration file!\n", cfgErr.Output)
}

func TestValidator_MissingBinary(t *testing.T) {
	v := &Validator{Path: filepath.Join(t.TempDir(), "no-slaptest")}
	err := v.Validate(context.Background(), "/tmp/slapd.conf", t.TempDir())
	require.Error(t, err)
	assert.NotErrorIs(t, err, service.ErrInvalidConfig)
}

func TestConfiguredPIDFile(t *testing.T) {
	dir := t.TempDir()

	path, err := ConfiguredPIDFile(dir)
	require.NoError(t, err)
	assert.Empty(t, path, "no cn=config.ldif")

	writeConfigLDIF(t, dir, "")
	path, err = ConfiguredPIDFile(dir)
	require.NoError(t, err)
	assert.Empty(t, path)

	writeConfigLDIF(t, dir, "/var/run/slapd/slapd.pid")
	path, err = ConfiguredPIDFile(dir)
	require.NoError(t, err)
	assert.Equal(t, "/var/run/slapd/slapd.pid", path)

	folded := "dn: cn=config\nobjectClass: olcGlobal\nolcPidFile: /very/long/path/that/slaptest/wr\n aps/slapd.pid\nolcArgsFile: /x\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, rootConfigLDIF), []byte(folded), 0600))
	path, err = ConfiguredPIDFile(dir)
	require.NoError(t, err)
	assert.Equal(t, "/very/long/path/that/slaptest/wraps/slapd.pid", path)

	encoded := "dn: cn=config\nolcPidFile:: " + base64.StdEncoding.EncodeToString([]byte("/run/slapd pid/slapd.pid ")) + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, rootConfigLDIF), []byte(encoded), 0600))
	path, err = ConfiguredPIDFile(dir)
	require.NoError(t, err)
	assert.Equal(t, "/run/slapd pid/slapd.pid ", path)

	require.NoError(t, os.WriteFile(filepath.Join(dir, rootConfigLDIF), []byte("dn: cn=config\nolcPidFile:: not base64!\n"), 0600))
	_, err = ConfiguredPIDFile(dir)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, rootConfigLDIF), []byte("dn: cn=config\nolcPidFile:< file:///tmp/p\n"), 0600))
	_, err = ConfiguredPIDFile(dir)
	assert.Error(t, err)
}

func TestRunningPID(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(t.TempDir(), "slapd.pid")

	pid, err := RunningPID(dir, "slapd")
	require.NoError(t, err)
	assert.Zero(t, pid, "no cn=config.ldif")

	writeConfigLDIF(t, dir, pidFile)
	pid, err = RunningPID(dir, "slapd")
	require.NoError(t, err)
	assert.Zero(t, pid, "no pid file yet")

	require.NoError(t, os.WriteFile(pidFile, []byte("garbage\n"), 0600))
	_, err = RunningPID(dir, "slapd")
	assert.Error(t, err)

	// The test binary stands in for the daemon.
	self := strconv.Itoa(os.Getpid())
	require.NoError(t, os.WriteFile(pidFile, []byte(self+"\n"), 0600))
	pid, err = RunningPID(dir, os.Args[0])
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	pid, err = RunningPID(dir, "/usr/sbin/not-this-daemon")
	require.NoError(t, err)
	assert.Zero(t, pid, "command line does not match")
}

func TestSlapdArgs(t *testing.T) {
	assert.Equal(t,
		[]string{"-h", "ldapi:/// ldap://:3389/", "-F", "/etc/slapd.d", "-d", "32768"},
		slapdArgs([]string{"ldapi:///", "ldap://:3389/"}, "/etc/slapd.d", false))
	assert.Equal(t, "239", slapdArgs([]string{"ldapi:///"}, "/x", true)[5])
}

func TestDefaultOptions(t *testing.T) {
	o := DefaultOptions()
	assert.Equal(t, "slapd", o.SlapdPath)
	assert.Equal(t, "slaptest", o.SlaptestPath)
	assert.Equal(t, "slapd starting", o.ReadyMarker)
	assert.Equal(t, DefaultStartupTimeout, o.StartupTimeout)
	assert.Equal(t, []string{"/var/run"}, o.PIDDirs)
	assert.NotNil(t, o.Logger)
	assert.NotNil(t, o.Dialer)
}

func TestSystemSchemas(t *testing.T) {
	orig := SystemConfigDir
	defer func() { SystemConfigDir = orig }()
	SystemConfigDir = "/etc/openldap"

	paths, err := SystemSchemas()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/etc/openldap/schema/core.schema",
		"/etc/openldap/schema/cosine.schema",
		"/etc/openldap/schema/inetorgperson.schema",
	}, paths)
	paths, err = SystemSchemas("nis")
	require.NoError(t, err)
	assert.Equal(t, []string{"/etc/openldap/schema/nis.schema"}, paths)

	SystemConfigDir = ""
	_, err = SystemSchemas("core")
	assert.ErrorIs(t, err, ErrNoSystemSchemas)

	dir := t.TempDir()
	assert.Equal(t, dir, findConfigDir([]string{filepath.Join(dir, "missing"), dir}))
	assert.Equal(t, "", findConfigDir([]string{filepath.Join(dir, "missing")}))
}

func TestAvailable(t *testing.T) {
	openldap := writeScript(t, "slapd", "echo '@(#) $OpenLDAP: slapd 2.6.7 (Jan  1 2024) $' >&2\nexit 1\n")
	other := writeScript(t, "slapd", "echo 'some other directory server 1.0'\n")

	assert.True(t, Available(context.Background(), openldap))
	assert.False(t, Available(context.Background(), other))
	assert.False(t, Available(context.Background(), filepath.Join(t.TempDir(), "missing")))
}

func TestVersion(t *testing.T) {
	ctx := context.Background()

	release := writeScript(t, "slapd", "echo '@(#) $OpenLDAP: slapd 2.6.7 (Jan  1 2024) $' >&2\necho '\tbuilder@host:/build/servers/slapd' >&2\nexit 1\n")
	v, err := Version(ctx, release)
	require.NoError(t, err)
	assert.Equal(t, "2.6.7", v)

	unnumbered := writeScript(t, "slapd", "echo 'OpenLDAP slapd (devel)'\n")
	v, err = Version(ctx, unnumbered)
	require.NoError(t, err)
	assert.Equal(t, "OpenLDAP slapd (devel)", v)

	other := writeScript(t, "slapd", "echo '389-ds-base 2.4'\n")
	_, err = Version(ctx, other)
	assert.ErrorIs(t, err, ErrNotOpenLDAP)
}
