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

package completion

import (
	"time"

	"github.com/spf13/cobra"
)

var commonTimeouts = []time.Duration{10 * time.Second, 30 * time.Second, time.Minute, 2 * time.Minute}

// CompleteProfiles completes --config with YAML files.
func CompleteProfiles(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return []string{"yaml", "yml"}, cobra.ShellCompDirectiveFilterFileExt
}

// CompleteStartupTimeout completes start --timeout, offering the profile's
// startup_timeout first.
func CompleteStartupTimeout(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
		var configured time.Duration
		if cfg, err := LoadConfigForCompletion(); err == nil && cfg != nil {
			configured = cfg.Daemon.StartupTimeout
		}
		return timeouts(configured, "daemon.startup_timeout"), cobra.ShellCompDirectiveNoFileComp
	})
}

// CompleteStopTimeout completes stop --timeout, offering the profile's
// stop_timeout first.
func CompleteStopTimeout(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
		var configured time.Duration
		if cfg, err := LoadConfigForCompletion(); err == nil && cfg != nil {
			configured = cfg.Daemon.StopTimeout
		}
		return timeouts(configured, "daemon.stop_timeout"), cobra.ShellCompDirectiveNoFileComp
	})
}

func timeouts(configured time.Duration, key string) []string {
	var out []string
	if configured > 0 {
		out = append(out, configured.String()+"\t"+key)
	}
	for _, d := range commonTimeouts {
		if d != configured {
			out = append(out, d.String())
		}
	}
	return out
}
