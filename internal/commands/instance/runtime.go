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

package instance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tombee/dirsvc/internal/commands/shared"
	"github.com/tombee/dirsvc/internal/config"
	"github.com/tombee/dirsvc/internal/lifecycle"
	"github.com/tombee/dirsvc/internal/log"
	"github.com/tombee/dirsvc/internal/metrics"
	"github.com/tombee/dirsvc/internal/openldap"
	"github.com/tombee/dirsvc/internal/service"
	"github.com/tombee/dirsvc/internal/tracing"
	pkgerrors "github.com/tombee/dirsvc/pkg/errors"
)

const shutdownTimeout = 5 * time.Second

// Overridden in tests.
var (
	newRegisterer func() prometheus.Registerer
	logOutput     io.Writer = os.Stderr
)

// Runtime is everything an instance command needs: the loaded profile, a
// logger tagged with the run id, the implementation registry and the
// instance lock.
type Runtime struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *service.Registry
	Impl     string
	Audit    *lifecycle.LifecycleLogger
	RunID    string

	provider *tracing.Provider
	lock     *flock.Flock
}

// Setup loads the profile named by --config (or the default profile if it
// exists), applies overrides and takes the instance lock. The caller must
// Close the runtime.
func Setup(ctx context.Context, command string, overrides ...func(*config.Config)) (_ *Runtime, err error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	for _, o := range overrides {
		o(cfg)
	}
	if cfg.Instance.ConfigDir == "" {
		return nil, &pkgerrors.ConfigError{Key: "instance.config_dir", Reason: "must be set"}
	}
	if abs, err := filepath.Abs(cfg.Instance.ConfigDir); err == nil {
		cfg.Instance.ConfigDir = abs
	}

	rt := &Runtime{Config: cfg, RunID: uuid.NewString()}
	defer func() {
		if err != nil {
			rt.Close()
		}
	}()

	rt.Logger = log.WithComponent(log.WithCorrelationID(newLogger(cfg), rt.RunID), command)

	if err := rt.acquireLock(); err != nil {
		return nil, err
	}

	tcfg := cfg.Tracing
	tcfg.ServiceVersion, _, _ = shared.GetVersion()
	if newRegisterer != nil {
		tcfg.Registerer = newRegisterer()
	}
	rt.provider, err = tracing.NewProvider(ctx, tcfg)
	if err != nil {
		return nil, &pkgerrors.ConfigError{Key: "tracing", Reason: "failed to set up tracing", Cause: err}
	}

	rt.Registry, err = NewRegistry(ctx, rt.openldapOptions())
	if err != nil {
		return nil, err
	}
	factory, err := rt.Registry.Lookup(cfg.Impl)
	if err != nil {
		if cfg.Impl == "" {
			return nil, &shared.ExitError{
				Code:    shared.ExitFailure,
				Message: fmt.Sprintf("no supported directory server found (looked for %s)", cfg.Daemon.SlapdPath),
				Cause:   err,
			}
		}
		return nil, err
	}
	rt.Impl = factory.Name()

	return rt, nil
}

// NewRegistry registers every implementation whose daemon is installed on
// this host and freezes the registry.
func NewRegistry(ctx context.Context, o openldap.Options) (*service.Registry, error) {
	reg := service.NewRegistry()
	if openldap.Available(ctx, o.SlapdPath) {
		if err := openldap.Register(reg, o); err != nil {
			return nil, err
		}
	}
	reg.Freeze()
	return reg, nil
}

func loadConfig() (*config.Config, error) {
	path := shared.GetConfigPath()
	if path == "" {
		if def, err := config.ConfigPath(); err == nil {
			if _, err := os.Stat(def); err == nil {
				path = def
			}
		}
	}
	return config.Load(path)
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := cfg.Log.Level
	switch {
	case shared.GetVerbose():
		level = "debug"
	case shared.GetQuiet():
		level = "error"
	}
	return log.New(&log.Config{
		Level:     level,
		Format:    log.Format(cfg.Log.Format),
		Output:    logOutput,
		AddSource: cfg.Log.AddSource,
	})
}

// openldapOptions maps the daemon section onto supervisor options and
// opens the audit log the supervisors write to.
func (rt *Runtime) openldapOptions() openldap.Options {
	d := rt.Config.Daemon
	rt.Audit = lifecycle.NewLifecycleLogger(auditLogPath(rt.Config), openldap.ImplName, rt.Config.Instance.ConfigDir)
	return openldap.Options{
		SlapdPath:      d.SlapdPath,
		SlaptestPath:   d.SlaptestPath,
		ReadyMarker:    d.ReadyMarker,
		PollInterval:   d.PollInterval,
		StartupTimeout: d.StartupTimeout,
		StopTimeout:    d.StopTimeout,
		PIDDirs:        d.PIDDirs,
		Logger:         rt.Logger,
		Audit:          rt.Audit,
		Timings:        rt.provider.LifecycleMetrics(),
	}
}

func auditLogPath(cfg *config.Config) string {
	return filepath.Join(cfg.StateDir, "lifecycle.log")
}

// LockPath is the lock file guarding configDir.
func LockPath(stateDir, configDir string) string {
	name := strings.Trim(strings.ReplaceAll(filepath.Clean(configDir), string(filepath.Separator), "_"), "_")
	return filepath.Join(stateDir, "locks", name+".lock")
}

func (rt *Runtime) acquireLock() error {
	path := LockPath(rt.Config.StateDir, rt.Config.Instance.ConfigDir)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock %s: %w", path, err)
	}
	if !locked {
		return shared.NewLockedError(
			fmt.Sprintf("another dirsvc command is working on %s", rt.Config.Instance.ConfigDir),
			errors.New("lock "+path+" is held"))
	}
	rt.lock = lock
	return nil
}

// Open returns the configured instance, attached to its daemon when one
// is running.
func (rt *Runtime) Open() (*service.Service, error) {
	pid, err := openldap.RunningPID(rt.Config.Instance.ConfigDir, rt.Config.Daemon.SlapdPath)
	if err != nil {
		rt.Logger.Warn("cannot read pid file, assuming stopped", log.Error(err))
	}
	return service.Open(rt.Registry, rt.Impl, rt.Config.InstanceOptions(pid))
}

// Flush writes the metrics textfile and exports pending spans.
func (rt *Runtime) Flush(ctx context.Context) {
	if path := rt.Config.Metrics.Textfile; path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			rt.Logger.Warn("failed to write metrics textfile", log.String("path", path), log.Error(err))
		}
	}
	if rt.provider != nil {
		if err := rt.provider.ForceFlush(ctx); err != nil {
			rt.Logger.Debug("failed to flush telemetry", log.Error(err))
		}
	}
}

// Close flushes telemetry and releases the instance lock.
func (rt *Runtime) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if rt.Logger != nil {
		rt.Flush(ctx)
	}
	if rt.provider != nil {
		_ = rt.provider.Shutdown(ctx)
		rt.provider = nil
	}
	if rt.lock != nil {
		_ = rt.lock.Unlock()
		rt.lock = nil
	}
}
