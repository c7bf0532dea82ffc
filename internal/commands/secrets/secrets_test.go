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

package secrets

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/dirsvc/internal/cli"
	"github.com/tombee/dirsvc/internal/commands/shared"
	"github.com/tombee/dirsvc/internal/secrets"
)

// memoryBackend is a writable in-process backend.
type memoryBackend struct {
	values map[string]string
}

func (m *memoryBackend) Name() string    { return "memory" }
func (m *memoryBackend) Available() bool { return true }
func (m *memoryBackend) Priority() int   { return 10 }

func (m *memoryBackend) Get(ctx context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", secrets.ErrSecretNotFound
	}
	return v, nil
}

func (m *memoryBackend) Set(ctx context.Context, key, value string) error {
	m.values[key] = value
	return nil
}

func (m *memoryBackend) Delete(ctx context.Context, key string) error {
	if _, ok := m.values[key]; !ok {
		return secrets.ErrSecretNotFound
	}
	delete(m.values, key)
	return nil
}

func setup(t *testing.T) *memoryBackend {
	t.Helper()
	t.Setenv("DIRSVC_NON_INTERACTIVE", "true")
	mem := &memoryBackend{values: map[string]string{}}
	orig := newResolver
	newResolver = func() *secrets.Resolver {
		return secrets.NewResolver(secrets.NewEnvBackend(), mem)
	}
	t.Cleanup(func() { newResolver = orig })
	return mem
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(shared.ResetFlagsForTest)

	root := cli.NewRootCommand()
	root.AddCommand(NewCommand())
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestSet_FromStdin(t *testing.T) {
	mem := setup(t)

	out, err := run(t, "s3cret-password\n", "secrets", "set", "openldap/root_password")
	require.NoError(t, err)
	assert.Equal(t, "s3cret-password", mem.values["openldap/root_password"])
	assert.Contains(t, out, "Secret stored in memory backend")
	assert.Contains(t, out, "$secret:openldap/root_password")
}

func TestSet_EmptyValue(t *testing.T) {
	setup(t)

	_, err := run(t, "\n", "secrets", "set", "openldap/root_password")
	require.Error(t, err)
	assert.Equal(t, shared.ExitInvalidInput, shared.ExitCodeFor(err))
}

func TestGet_MaskedAndUnmasked(t *testing.T) {
	mem := setup(t)
	mem.values["openldap/root_password"] = "s3cret-password"

	out, err := run(t, "", "secrets", "get", "openldap/root_password")
	require.NoError(t, err)
	assert.Contains(t, out, "s3***********rd")
	assert.NotContains(t, out, "s3cret-password")

	out, err = run(t, "", "secrets", "get", "openldap/root_password", "--unmask")
	require.NoError(t, err)
	assert.Equal(t, "s3cret-password\n", out)
}

func TestGet_FromEnvironment(t *testing.T) {
	setup(t)
	t.Setenv(secrets.EnvVar("openldap/config_password"), "from-env")

	out, err := run(t, "", "secrets", "get", "openldap/config_password", "--unmask")
	require.NoError(t, err)
	assert.Equal(t, "from-env\n", out)
}

func TestGet_NotFound(t *testing.T) {
	setup(t)

	_, err := run(t, "", "secrets", "get", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dirsvc secrets set missing")
}

func TestDelete(t *testing.T) {
	mem := setup(t)
	mem.values["k"] = "v"

	_, err := run(t, "", "secrets", "delete", "k")
	require.NoError(t, err)
	assert.Empty(t, mem.values)

	_, err = run(t, "", "secrets", "delete", "k")
	assert.Error(t, err)
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "****", maskSecret("short"))
	assert.Equal(t, "ab*****yz", maskSecret("abcdefxyz"))
}
