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
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/dirsvc/internal/log"
	"github.com/tombee/dirsvc/internal/metrics"
	"github.com/tombee/dirsvc/internal/service"
)

// CreateBasic builds a new instance from spec: it writes and validates the
// bootstrap configuration, starts slapd, loads the config and suffix
// entries, and stops slapd again. The daemon is stopped on every path once
// it has started.
func (f *Factory) CreateBasic(ctx context.Context, spec service.BootstrapSpec) (service.Impl, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	o := f.Options.withDefaults()
	logger := log.WithInstance(o.Logger, ImplName, spec.ConfigDir)
	began := time.Now()

	sup, err := f.createBasic(ctx, spec)

	d := time.Since(began)
	metrics.RecordBootstrap(ImplName, metrics.ResultOf(err))
	o.Timings.RecordBootstrap(ctx, ImplName, d, err)
	if err != nil {
		logger.Error("bootstrap failed", log.Error(err))
		return nil, err
	}
	logger.Info("bootstrap complete", log.Duration(log.DurationKey, d.Milliseconds()))
	return sup, nil
}

func (f *Factory) createBasic(ctx context.Context, spec service.BootstrapSpec) (_ *Supervisor, err error) {
	sup, err := f.CreateMinimal(ctx, spec.URIs, spec.ConfigDir, spec.Schemas, spec.ConfigPassword, spec.PIDFile)
	if err != nil {
		return nil, err
	}

	if _, err := sup.Start(ctx, service.LaunchSpawn); err != nil {
		return nil, err
	}
	defer func() {
		if sup.Status() != service.StatusRunning {
			return
		}
		stopErr := sup.Stop(context.WithoutCancel(ctx))
		switch {
		case stopErr == nil:
		case err != nil:
			sup.logger.Warn("failed to stop slapd after bootstrap error", log.Error(stopErr))
		default:
			err = stopErr
		}
	}()

	b := &Bootstrapper{Spec: spec, Logger: sup.logger}
	if err := b.Run(ctx, sup.Client); err != nil {
		return nil, err
	}
	return sup, nil
}

// CreateMinimal writes a configuration holding only the schemas, the pid
// file and the config database, and compiles it into configDir. slapd is
// not started.
func (f *Factory) CreateMinimal(ctx context.Context, uris []string, configDir string, schemas []string, configPassword, pidFile string) (*Supervisor, error) {
	o := f.Options.withDefaults()

	cfg, err := WriteConfigFile(schemas, configPassword, pidFile, o.PIDDirs...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := cfg.Remove(); err != nil {
			o.Logger.Warn("failed to remove bootstrap config", log.String("path", cfg.Path), log.Error(err))
		}
	}()

	return f.FromConfigFile(ctx, uris, cfg.Path, configDir)
}

// FromConfigFile compiles a slapd.conf into configDir with slaptest and
// returns a stopped instance for it.
func (f *Factory) FromConfigFile(ctx context.Context, uris []string, configFile, configDir string) (*Supervisor, error) {
	o := f.Options.withDefaults()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "openldap.validate",
		trace.WithAttributes(attribute.String("dirsvc.config_file", configFile)))
	defer span.End()

	v := &Validator{Path: o.SlaptestPath, Logger: log.WithInstance(o.Logger, ImplName, configDir)}
	if err := v.Validate(ctx, configFile, configDir); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	return NewSupervisor(service.InstanceOptions{URIs: uris, ConfigDir: configDir}, f.Options)
}
