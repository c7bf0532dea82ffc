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

/*
Package cli provides the root command for dirsvc.

This package creates the main Cobra command and handles global concerns like
version information, persistent flags, and error handling. Individual commands
are implemented in the internal/commands subpackages.

# Command Tree

	dirsvc
	├── create        Create and bootstrap an instance
	├── start         Start slapd
	├── stop          Stop slapd
	├── status        Show daemon status
	└── version       Show version

# Global Flags

	-v, --verbose   Debug logging
	-q, --quiet     Only errors
	    --json      Machine-readable output
	    --config    Profile path
*/
package cli
