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

package version

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/dirsvc/internal/commands/shared"
)

func fakeSlapd(t *testing.T, banner string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "slapd")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\necho '"+banner+"' >&2\nexit 1\n"), 0755))
	return path
}

func execute(t *testing.T, args ...string) string {
	t.Helper()
	shared.SetVersion("1.0.0", "test123", "2025-12-22")
	t.Cleanup(func() {
		shared.SetVersion("dev", "unknown", "unknown")
		shared.ResetFlagsForTest()
	})

	root := &cobra.Command{Use: "dirsvc"}
	_, _, jsonPtr, configPtr := shared.RegisterFlagPointers()
	root.PersistentFlags().BoolVar(jsonPtr, "json", false, "JSON output")
	root.PersistentFlags().StringVar(configPtr, "config", "", "profile")
	root.AddCommand(NewVersionCommand())

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs(args)
	require.NoError(t, root.Execute())
	return buf.String()
}

func TestVersion_Text(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("DIRSVC_SLAPD_PATH", fakeSlapd(t, "@(#) $OpenLDAP: slapd 2.6.7 (Jan  1 2024) $"))

	out := execute(t, "version")
	assert.Contains(t, out, "dirsvc version 1.0.0")
	assert.Contains(t, out, "commit:     test123")
	assert.Contains(t, out, "slapd:      2.6.7")
}

func TestVersion_JSONFromProfile(t *testing.T) {
	slapd := fakeSlapd(t, "@(#) $OpenLDAP: slapd 2.5.16 $")
	profile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(profile, []byte("daemon:\n  slapd_path: "+slapd+"\n"), 0600))

	out := execute(t, "--config", profile, "--json", "version")

	var info VersionInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "1.0.0", info.Version)
	assert.Equal(t, "test123", info.Commit)
	assert.Equal(t, "2025-12-22", info.BuildDate)
	assert.Equal(t, slapd, info.SlapdPath)
	assert.Equal(t, "2.5.16", info.Slapd)
	assert.True(t, info.Success)
}

func TestVersion_NoSlapd(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("DIRSVC_SLAPD_PATH", filepath.Join(t.TempDir(), "missing"))

	out := execute(t, "--json", "version")

	var info VersionInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Empty(t, info.Slapd)
}
