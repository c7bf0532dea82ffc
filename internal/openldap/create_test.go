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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/tombee/dirsvc/internal/lifecycle"
	"github.com/tombee/dirsvc/internal/service"
)

type createFixture struct {
	factory *Factory
	rec     *recorder
	spec    service.BootstrapSpec
}

func newCreateFixture(t *testing.T) *createFixture {
	t.Helper()
	rec := newRecorder()
	o := testOptions(t, writeScript(t, "slapd", slapdReady), writeScript(t, "slaptest", slaptestOK))
	o.Dialer = rec.Dial

	spec := bootstrapSpec()
	spec.ConfigDir = filepath.Join(t.TempDir(), "slapd.d")
	spec.DBDir = t.TempDir()
	return &createFixture{factory: NewFactory(o), rec: rec, spec: spec}
}

func TestFactory_CreateBasic(t *testing.T) {
	f := newCreateFixture(t)

	impl, err := f.factory.CreateBasic(context.Background(), f.spec)
	skipOnSpawnError(t, err)
	require.NoError(t, err)

	assert.Equal(t, service.StatusStopped, impl.Status(), "slapd is stopped once bootstrapped")
	assert.Equal(t, 0, impl.PID())
	assert.Equal(t, f.spec.ConfigDir, impl.ConfigDir())
	assert.Equal(t, f.spec.URIs, impl.URIs())

	assert.Equal(t, "bind cn=config", f.rec.ops[0])
	assert.Contains(t, f.rec.ops, "add ou=eng,ou=people,dc=example,dc=net")
	assert.Equal(t, 2, f.rec.dials)

	pidFile, err := ConfiguredPIDFile(f.spec.ConfigDir)
	require.NoError(t, err)
	assert.NotEmpty(t, pidFile)
}

func TestFactory_CreateBasic_BootstrapFailureStopsDaemon(t *testing.T) {
	f := newCreateFixture(t)
	f.rec.failAdd["dc=example,dc=net"] = ldap.NewError(ldap.LDAPResultEntryAlreadyExists, errors.New("exists"))

	impl, err := f.factory.CreateBasic(context.Background(), f.spec)
	skipOnSpawnError(t, err)
	require.Error(t, err)
	assert.Nil(t, impl)
	assert.True(t, ldap.IsErrorWithCode(err, ldap.LDAPResultEntryAlreadyExists))

	pidFile, perr := ConfiguredPIDFile(f.spec.ConfigDir)
	require.NoError(t, perr)
	pid, perr := lifecycle.NewPIDFileManager(pidFile).Read()
	if perr == nil && pid > 0 {
		assert.False(t, lifecycle.IsProcessRunning(pid), "slapd must not outlive a failed bootstrap")
	}
}

func TestFactory_CreateBasic_StopFailureKeepsBootstrapError(t *testing.T) {
	f := newCreateFixture(t)
	f.factory.Options.SlapdPath = writeScript(t, "slapd", slapdIgnoresTerm)
	f.factory.Options.StopTimeout = 200 * time.Millisecond
	f.rec.failAdd["dc=example,dc=net"] = ldap.NewError(ldap.LDAPResultEntryAlreadyExists, errors.New("exists"))

	_, err := f.factory.CreateBasic(context.Background(), f.spec)
	skipOnSpawnError(t, err)

	pidFile, perr := ConfiguredPIDFile(f.spec.ConfigDir)
	require.NoError(t, perr)
	daemon, perr := lifecycle.NewPIDFileManager(pidFile).Read()
	require.NoError(t, perr)
	t.Cleanup(func() { _ = unix.Kill(daemon, unix.SIGKILL) })

	require.Error(t, err)
	assert.True(t, ldap.IsErrorWithCode(err, ldap.LDAPResultEntryAlreadyExists), "got %v", err)
	assert.NotErrorIs(t, err, lifecycle.ErrShutdownTimeout)
	assert.True(t, lifecycle.IsProcessRunning(daemon), "daemon ignores SIGTERM")
}

func TestFactory_CreateBasic_InvalidSuffix(t *testing.T) {
	f := newCreateFixture(t)
	f.spec.Suffix = "cn=eng,dc=example,dc=net"

	_, err := f.factory.CreateBasic(context.Background(), f.spec)
	require.ErrorIs(t, err, service.ErrInvalidSuffix)

	_, statErr := os.Stat(f.spec.ConfigDir)
	assert.True(t, os.IsNotExist(statErr), "nothing is written for an invalid suffix")
	assert.Zero(t, f.rec.dials)
}

func TestFactory_CreateBasic_Validation(t *testing.T) {
	f := newCreateFixture(t)
	f.spec.RootDN = ""

	_, err := f.factory.CreateBasic(context.Background(), f.spec)
	require.Error(t, err)
	assert.Zero(t, f.rec.dials)
}

func TestFactory_CreateBasic_InvalidConfig(t *testing.T) {
	rec := newRecorder()
	o := testOptions(t, writeScript(t, "slapd", slapdReady), writeScript(t, "slaptest", "echo 'bad config' >&2\nexit 1\n"))
	o.Dialer = rec.Dial
	spec := bootstrapSpec()
	spec.ConfigDir = filepath.Join(t.TempDir(), "slapd.d")

	_, err := NewFactory(o).CreateBasic(context.Background(), spec)
	skipOnSpawnError(t, err)
	require.ErrorIs(t, err, service.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "bad config")
	assert.Zero(t, rec.dials)
}

func TestFactory_FromConfigFile(t *testing.T) {
	o := testOptions(t, writeScript(t, "slapd", slapdReady), writeScript(t, "slaptest", slaptestOK))
	configDir := filepath.Join(t.TempDir(), "slapd.d")

	conf := filepath.Join(t.TempDir(), "slapd.conf")
	require.NoError(t, os.WriteFile(conf, []byte(RenderConfig(nil, "/tmp/from-config.pid", "{CRYPT}x")), 0600))

	sup, err := NewFactory(o).FromConfigFile(context.Background(), []string{"ldapi:///"}, conf, configDir)
	skipOnSpawnError(t, err)
	require.NoError(t, err)
	assert.Equal(t, service.StatusStopped, sup.Status())

	pidFile, err := ConfiguredPIDFile(configDir)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-config.pid", pidFile)
}

func TestFactory_CreateMinimal(t *testing.T) {
	o := testOptions(t, writeScript(t, "slapd", slapdReady), writeScript(t, "slaptest", slaptestOK))
	configDir := filepath.Join(t.TempDir(), "slapd.d")

	sup, err := NewFactory(o).CreateMinimal(context.Background(), []string{"ldapi:///"}, configDir, nil, "admin", "")
	skipOnSpawnError(t, err)
	require.NoError(t, err)
	assert.Equal(t, service.StatusStopped, sup.Status())

	pidFile, err := ConfiguredPIDFile(configDir)
	require.NoError(t, err)
	assert.Equal(t, o.PIDDirs[0], filepath.Dir(pidFile))
}

func TestFactory_Register(t *testing.T) {
	reg := service.NewRegistry()
	require.NoError(t, Register(reg, Options{}))

	f, err := reg.Lookup("")
	require.NoError(t, err)
	assert.Equal(t, ImplName, f.Name())

	impl, err := f.New(service.InstanceOptions{URIs: []string{"ldapi:///"}, ConfigDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, service.StatusStopped, impl.Status())
}
