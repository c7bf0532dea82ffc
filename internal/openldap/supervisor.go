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
	"fmt"
	"log/slog"
	"time"

	"github.com/tombee/dirsvc/internal/directory"
	"github.com/tombee/dirsvc/internal/lifecycle"
	"github.com/tombee/dirsvc/internal/log"
	"github.com/tombee/dirsvc/internal/metrics"
	"github.com/tombee/dirsvc/internal/service"
)

// Supervisor runs one slapd instance over a cn=config directory and tracks
// it through the stopped, running and gone states. It is not safe for
// concurrent use.
type Supervisor struct {
	uris        []string
	configDir   string
	opts        Options
	logger      *slog.Logger
	status      service.Status
	pid         int
	stopOnClose bool
}

var _ service.Impl = (*Supervisor)(nil)

// NewSupervisor returns a supervisor for the instance opts describes. A
// positive opts.PID attaches to an already running daemon.
func NewSupervisor(opts service.InstanceOptions, o Options) (*Supervisor, error) {
	if len(opts.URIs) == 0 {
		return nil, fmt.Errorf("at least one URI is required")
	}
	if opts.ConfigDir == "" {
		return nil, fmt.Errorf("config dir is required")
	}
	if opts.PID < 0 {
		return nil, fmt.Errorf("invalid pid %d", opts.PID)
	}

	o = o.withDefaults()
	s := &Supervisor{
		uris:        append([]string(nil), opts.URIs...),
		configDir:   opts.ConfigDir,
		opts:        o,
		logger:      log.WithInstance(o.Logger, ImplName, opts.ConfigDir),
		stopOnClose: opts.StopOnClose,
	}
	if opts.PID > 0 {
		s.setRunning(opts.PID)
		s.probe()
	}
	return s, nil
}

func (s *Supervisor) Name() string      { return ImplName }
func (s *Supervisor) ConfigDir() string { return s.configDir }
func (s *Supervisor) PID() int          { return s.pid }

func (s *Supervisor) URIs() []string {
	return append([]string(nil), s.uris...)
}

func (s *Supervisor) StopOnClose() bool        { return s.stopOnClose }
func (s *Supervisor) SetStopOnClose(stop bool) { s.stopOnClose = stop }

// Status probes the daemon before answering. A running daemon whose pid has
// vanished or turned into a zombie becomes gone; gone never reverts.
func (s *Supervisor) Status() service.Status {
	s.probe()
	return s.status
}

func (s *Supervisor) probe() {
	if s.status != service.StatusRunning {
		return
	}
	switch {
	case !lifecycle.IsProcessRunning(s.pid):
		s.markGone("process not found")
	case lifecycle.IsZombie(s.pid):
		if _, _, err := lifecycle.TryReap(s.pid); err != nil && !errors.Is(err, lifecycle.ErrNotChild) {
			s.logger.Debug("failed to reap zombie", log.Int(log.PIDKey, s.pid), log.Error(err))
		}
		s.markGone("zombie")
	}
}

func (s *Supervisor) setRunning(pid int) {
	s.status = service.StatusRunning
	s.pid = pid
}

// markGone keeps the pid so callers can still report which process vanished.
func (s *Supervisor) markGone(reason string) {
	s.status = service.StatusGone
	s.logger.Warn("slapd went away", log.Int(log.PIDKey, s.pid), log.String("reason", reason))
	metrics.RecordGone(ImplName, reason)
	s.audit(func(a *lifecycle.LifecycleLogger) error { return a.LogGone(s.pid, reason) })
}

func (s *Supervisor) opError(op, msg string) error {
	return &service.OperationError{
		Service:   service.Describe(ImplName, s.configDir),
		Operation: op,
		Message:   msg,
	}
}

// Start launches slapd. With service.LaunchSpawn it blocks until slapd
// reports readiness and returns its pid; with service.LaunchExec the
// current process becomes slapd and Start returns only on failure.
func (s *Supervisor) Start(ctx context.Context, mode service.LaunchMode) (int, error) {
	if st := s.Status(); st != service.StatusStopped {
		if st == service.StatusRunning {
			s.audit(func(a *lifecycle.LifecycleLogger) error { return a.LogAlreadyRunning(s.pid) })
		}
		return 0, s.opError("start", "service is "+st.String())
	}

	args := slapdArgs(s.uris, s.configDir, log.DebugEnabled(s.logger))
	s.audit(func(a *lifecycle.LifecycleLogger) error { return a.LogStart(mode.String()) })
	began := time.Now()

	var pid int
	var err error
	switch mode {
	case service.LaunchSpawn:
		pid, err = s.spawn(ctx, args)
	case service.LaunchExec:
		err = s.exec(args)
	default:
		err = fmt.Errorf("unknown launch mode %v", mode)
	}

	d := time.Since(began)
	metrics.RecordStart(ImplName, mode.String(), metrics.ResultOf(err))
	s.opts.Timings.RecordStart(ctx, ImplName, d, err)
	if err != nil {
		s.logger.Error("slapd failed to start", log.Error(err))
		s.audit(func(a *lifecycle.LifecycleLogger) error { return a.LogStartFailure(err) })
		return 0, err
	}

	s.logger.Info("slapd started", log.Int(log.PIDKey, pid), log.Duration(log.DurationKey, d.Milliseconds()))
	s.audit(func(a *lifecycle.LifecycleLogger) error { return a.LogStartSuccess(pid, d) })
	return pid, nil
}

func (s *Supervisor) exec(args []string) error {
	spawner := lifecycle.NewSpawner()
	if s.opts.Env != nil {
		spawner.WithEnv(s.opts.Env)
	}
	err := spawner.Exec(s.opts.SlapdPath, args)
	return &service.StartupFailedError{Command: s.opts.SlapdPath, Cause: err}
}

func (s *Supervisor) spawn(ctx context.Context, args []string) (int, error) {
	spawner := lifecycle.NewSpawner()
	if s.opts.Env != nil {
		spawner.WithEnv(s.opts.Env)
	}

	child, err := spawner.Spawn(s.opts.SlapdPath, args)
	if err != nil {
		return 0, &service.StartupFailedError{Command: s.opts.SlapdPath, Cause: err}
	}
	defer child.CloseOutput()

	daemonLog := log.WithComponent(s.logger, "slapd")
	out, err := lifecycle.WaitForMarker(ctx, child, lifecycle.ReadinessOptions{
		Marker:       s.opts.ReadyMarker,
		PollInterval: s.opts.PollInterval,
		Timeout:      s.opts.StartupTimeout,
		OnLine:       func(line string) { daemonLog.Debug(line) },
	})
	if err != nil {
		var exitErr *lifecycle.ChildExitError
		if errors.As(err, &exitErr) {
			return 0, &service.StartupFailedError{
				Command:  child.Command,
				ExitCode: exitErr.ExitCode,
				Output:   exitErr.Output,
			}
		}

		lifecycle.Kill(child.PID)
		if errors.Is(err, lifecycle.ErrReadinessTimeout) || ctx.Err() != nil {
			return 0, &service.StartupTimeoutError{
				Command: child.Command,
				Timeout: s.opts.StartupTimeout,
				Output:  out,
				Cause:   err,
			}
		}
		return 0, &service.StartupFailedError{Command: child.Command, Output: out, Cause: err}
	}
	child.CloseOutput()

	pid := s.resolvePID(child.PID)
	if pid != child.PID {
		// The daemon detached; collect the launcher if it has already exited.
		_, _, _ = lifecycle.TryReap(child.PID)
	}
	s.setRunning(pid)
	return pid, nil
}

// resolvePID prefers the pid slapd wrote to its configured pid file.
func (s *Supervisor) resolvePID(childPID int) int {
	path, err := ConfiguredPIDFile(s.configDir)
	if err != nil {
		s.logger.Warn("cannot discover pid file, using child pid", log.Error(err))
		return childPID
	}
	if path == "" {
		return childPID
	}
	pidFile := lifecycle.NewPIDFileManager(path)
	pid, err := pidFile.Read()
	if err != nil {
		s.logger.Warn("cannot read pid file, using child pid", log.String("path", path), log.Error(err))
		return childPID
	}
	if pid != childPID && !isSlapd(pid, s.opts.SlapdPath) {
		s.logger.Warn("pid file is stale, using child pid",
			log.String("path", path), log.Int(log.PIDKey, pid))
		if err := pidFile.Remove(); err != nil {
			s.logger.Debug("failed to remove stale pid file", log.Error(err))
		}
		return childPID
	}
	return pid
}

// Stop sends SIGTERM and waits for the daemon to exit. A daemon that is
// already gone yields an invalid operation error and the status becomes
// gone.
func (s *Supervisor) Stop(ctx context.Context) error {
	if st := s.Status(); st != service.StatusRunning {
		return s.opError("stop", "service is "+st.String())
	}

	pid := s.pid
	began := time.Now()
	s.audit(func(a *lifecycle.LifecycleLogger) error { return a.LogStop(pid) })

	err := s.stop(ctx, pid)
	d := time.Since(began)
	metrics.RecordStop(ImplName, metrics.ResultOf(err))
	s.opts.Timings.RecordStop(ctx, ImplName, d, err)
	if err != nil {
		s.audit(func(a *lifecycle.LifecycleLogger) error { return a.LogStopFailure(pid, err) })
		return err
	}

	s.status = service.StatusStopped
	s.pid = 0
	s.logger.Info("slapd stopped", log.Int(log.PIDKey, pid), log.Duration(log.DurationKey, d.Milliseconds()))
	s.audit(func(a *lifecycle.LifecycleLogger) error { return a.LogStopSuccess(pid, d) })
	return nil
}

// stop reaps slapd when it is our child and otherwise polls until an
// attached or double-forked daemon disappears.
func (s *Supervisor) stop(ctx context.Context, pid int) error {
	err := lifecycle.Terminate(ctx, pid, s.opts.StopTimeout)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, lifecycle.ErrProcessNotRunning):
		s.markGone("exited before stop")
		return s.opError("stop", "service went away before it could be stopped")
	case errors.Is(err, lifecycle.ErrShutdownTimeout):
		return fmt.Errorf("slapd (pid %d) did not exit: %w", pid, err)
	default:
		return err
	}
}

// Client connects to the preferred URI: the first ldapi URI, else the
// first URI.
func (s *Supervisor) Client(ctx context.Context) (directory.Conn, error) {
	return s.opts.Dialer(ctx, directory.ChooseURI(s.uris))
}

// Close stops a running daemon when StopOnClose is set. Failures are logged
// at debug level and never returned.
func (s *Supervisor) Close() error {
	if !s.stopOnClose || s.Status() != service.StatusRunning {
		return nil
	}
	if err := s.Stop(context.Background()); err != nil {
		s.logger.Debug("stop on close failed", log.Error(err))
	}
	return nil
}

func (s *Supervisor) audit(fn func(*lifecycle.LifecycleLogger) error) {
	if s.opts.Audit == nil {
		return
	}
	if err := fn(s.opts.Audit); err != nil {
		s.logger.Warn("failed to write lifecycle log", log.Error(err))
	}
}
