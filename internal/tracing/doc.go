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
Package tracing sets up OpenTelemetry for dirsvc.

Spans are created with the global tracer (otel.Tracer) around the service
lifecycle operations; this package installs the provider that exports them
and the meter provider whose histograms are bridged into the Prometheus
registry.

# Quick Start

	cfg := tracing.DefaultConfig()
	cfg.Enabled = true
	cfg.Exporters = []tracing.ExporterConfig{
	    {Type: "otlp", Endpoint: "localhost:4317", Insecure: true},
	}

	provider, err := tracing.NewProvider(ctx, cfg)
	if err != nil {
	    return err
	}
	defer provider.Shutdown(ctx)

	opts.Timings = provider.LifecycleMetrics()

# Exporters

	console     pretty-printed spans on stderr
	otlp        OTLP over gRPC
	otlp-http   OTLP over HTTP
	none        drop spans

Sampling is parent-based with a trace-id ratio of SampleRate.
*/
package tracing
