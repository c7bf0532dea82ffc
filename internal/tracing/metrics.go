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

package tracing

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// LifecycleMetrics records how long lifecycle operations take. A nil
// *LifecycleMetrics records nothing.
type LifecycleMetrics struct {
	startDuration     metric.Float64Histogram
	stopDuration      metric.Float64Histogram
	bootstrapDuration metric.Float64Histogram
}

// NewLifecycleMetrics creates the duration histograms on meterProvider.
func NewLifecycleMetrics(meterProvider metric.MeterProvider) (*LifecycleMetrics, error) {
	meter := meterProvider.Meter("github.com/tombee/dirsvc")

	m := &LifecycleMetrics{}
	var err error

	m.startDuration, err = meter.Float64Histogram(
		"dirsvc_start_duration_seconds",
		metric.WithDescription("Time from launching the daemon to readiness or failure"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.stopDuration, err = meter.Float64Histogram(
		"dirsvc_stop_duration_seconds",
		metric.WithDescription("Time from the stop signal until the daemon exited"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.bootstrapDuration, err = meter.Float64Histogram(
		"dirsvc_bootstrap_duration_seconds",
		metric.WithDescription("Duration of a full instance bootstrap"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordStart records a start attempt.
func (m *LifecycleMetrics) RecordStart(ctx context.Context, impl string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.startDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attrs(impl, err)...))
}

// RecordStop records a stop attempt.
func (m *LifecycleMetrics) RecordStop(ctx context.Context, impl string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.stopDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attrs(impl, err)...))
}

// RecordBootstrap records a CreateBasic run.
func (m *LifecycleMetrics) RecordBootstrap(ctx context.Context, impl string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.bootstrapDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attrs(impl, err)...))
}

func attrs(impl string, err error) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("impl", impl),
		attribute.Bool("success", err == nil),
	}
}
