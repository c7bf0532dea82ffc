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
	"log/slog"
	"strings"
	"time"

	"github.com/tombee/dirsvc/internal/directory"
	"github.com/tombee/dirsvc/internal/lifecycle"
	"github.com/tombee/dirsvc/internal/log"
	"github.com/tombee/dirsvc/internal/tracing"
)

// ImplName is the registry name of the OpenLDAP implementation.
const ImplName = "openldap"

const (
	DefaultSlapdPath      = "slapd"
	DefaultSlaptestPath   = "slaptest"
	DefaultReadyMarker    = "slapd starting"
	DefaultStartupTimeout = 30 * time.Second
	DefaultStopTimeout    = 30 * time.Second
)

// slapd debug levels: 239 traces connections, ACLs and config parsing;
// 32768 only keeps the daemon in the foreground.
const (
	debugLevelVerbose = "239"
	debugLevelQuiet   = "32768"
)

// Options configures how slapd and slaptest are run. The zero value uses
// the defaults above.
type Options struct {
	SlapdPath    string
	SlaptestPath string

	// ReadyMarker is the output substring that means slapd accepts
	// connections.
	ReadyMarker string

	PollInterval   time.Duration
	StartupTimeout time.Duration

	// StopTimeout bounds the wait for a daemon that is not our child.
	StopTimeout time.Duration

	// PIDDirs are tried in order when a pid file has to be reserved.
	PIDDirs []string

	// Env is the daemon environment; nil inherits ours.
	Env []string

	Logger *slog.Logger

	// Audit, if set, receives lifecycle events.
	Audit *lifecycle.LifecycleLogger

	// Timings, if set, records operation durations.
	Timings *tracing.LifecycleMetrics

	// Dialer opens client connections; directory.Dial when nil.
	Dialer directory.Dialer
}

// DefaultOptions returns Options with every default filled in.
func DefaultOptions() Options {
	return Options{}.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.SlapdPath == "" {
		o.SlapdPath = DefaultSlapdPath
	}
	if o.SlaptestPath == "" {
		o.SlaptestPath = DefaultSlaptestPath
	}
	if o.ReadyMarker == "" {
		o.ReadyMarker = DefaultReadyMarker
	}
	if o.PollInterval <= 0 {
		o.PollInterval = lifecycle.DefaultPollInterval
	}
	if o.StartupTimeout <= 0 {
		o.StartupTimeout = DefaultStartupTimeout
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = DefaultStopTimeout
	}
	if len(o.PIDDirs) == 0 {
		o.PIDDirs = []string{DefaultPIDDir}
	}
	if o.Logger == nil {
		o.Logger = log.Discard()
	}
	if o.Dialer == nil {
		o.Dialer = directory.Dial
	}
	return o
}

// slapdArgs builds the slapd command line for a cn=config directory.
func slapdArgs(uris []string, configDir string, debug bool) []string {
	level := debugLevelQuiet
	if debug {
		level = debugLevelVerbose
	}
	return []string{"-h", strings.Join(uris, " "), "-F", configDir, "-d", level}
}
