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

// Package service is the implementation-neutral facade over supervised
// directory daemons: the Impl and Factory contracts, the registry that
// maps implementation names to factories, and the Service handle used by
// callers.
package service

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/tombee/dirsvc/internal/service"

// Service is a handle on one instance. Close it when done; with
// StopOnClose set, Close stops a running daemon.
type Service struct {
	Impl
}

// Open returns a handle on an existing instance of implName.
func Open(reg *Registry, implName string, opts InstanceOptions) (*Service, error) {
	f, err := reg.Lookup(implName)
	if err != nil {
		return nil, err
	}
	impl, err := f.New(opts)
	if err != nil {
		return nil, err
	}
	return &Service{Impl: impl}, nil
}

// With opens an instance, runs fn and closes the instance on every return
// path. fn's error is returned.
func With(ctx context.Context, reg *Registry, implName string, opts InstanceOptions, fn func(context.Context, *Service) error) error {
	svc, err := Open(reg, implName, opts)
	if err != nil {
		return err
	}
	defer svc.Close()
	return fn(ctx, svc)
}

// CreateBasic bootstraps a new instance of implName from spec and returns it
// stopped. The suffix is validated before anything is written or launched.
func CreateBasic(ctx context.Context, reg *Registry, implName string, spec BootstrapSpec) (*Service, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "service.CreateBasic",
		trace.WithAttributes(
			attribute.String("dirsvc.impl", implName),
			attribute.String("dirsvc.config_dir", spec.ConfigDir),
			attribute.String("dirsvc.suffix", spec.Suffix),
		))
	defer span.End()

	svc, err := createBasic(ctx, reg, implName, spec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return svc, nil
}

func createBasic(ctx context.Context, reg *Registry, implName string, spec BootstrapSpec) (*Service, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	f, err := reg.Lookup(implName)
	if err != nil {
		return nil, err
	}
	impl, err := f.CreateBasic(ctx, spec)
	if err != nil {
		return nil, err
	}
	return &Service{Impl: impl}, nil
}

// Start launches the daemon. See Impl.Start.
func (s *Service) Start(ctx context.Context, mode LaunchMode) (int, error) {
	ctx, span := s.span(ctx, "service.Start", attribute.String("dirsvc.launch_mode", mode.String()))
	defer span.End()

	pid, err := s.Impl.Start(ctx, mode)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	span.SetAttributes(attribute.Int("dirsvc.pid", pid))
	return pid, nil
}

// Stop terminates the daemon. See Impl.Stop.
func (s *Service) Stop(ctx context.Context) error {
	ctx, span := s.span(ctx, "service.Stop", attribute.Int("dirsvc.pid", s.PID()))
	defer span.End()

	if err := s.Impl.Stop(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (s *Service) span(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		attribute.String("dirsvc.impl", s.Name()),
		attribute.String("dirsvc.config_dir", s.ConfigDir()),
	)
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}
