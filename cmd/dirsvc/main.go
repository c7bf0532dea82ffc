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

package main

import (
	"github.com/tombee/dirsvc/internal/cli"
	"github.com/tombee/dirsvc/internal/commands/completion"
	configcmd "github.com/tombee/dirsvc/internal/commands/config"
	"github.com/tombee/dirsvc/internal/commands/instance"
	secretscmd "github.com/tombee/dirsvc/internal/commands/secrets"
	versioncmd "github.com/tombee/dirsvc/internal/commands/version"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildDate)

	rootCmd := cli.NewRootCommand()
	rootCmd.AddCommand(instance.NewCommands()...)
	rootCmd.AddCommand(versioncmd.NewVersionCommand())
	rootCmd.AddCommand(configcmd.NewConfigCommand())
	rootCmd.AddCommand(secretscmd.NewCommand())
	rootCmd.AddCommand(completion.NewCommand())

	if err := rootCmd.Execute(); err != nil {
		cli.HandleExitError(err)
	}
}
