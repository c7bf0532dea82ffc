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
	"fmt"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
)

// Config holds observability configuration.
type Config struct {
	// Enabled controls whether spans are exported.
	Enabled bool `yaml:"enabled"`

	// ServiceName identifies this program in traces.
	ServiceName string `yaml:"service_name,omitempty"`

	// ServiceVersion is the application version.
	ServiceVersion string `yaml:"-"`

	// SampleRate is the fraction of traces recorded (0.0 - 1.0).
	SampleRate float64 `yaml:"sample_rate"`

	// Exporters configures export destinations.
	Exporters []ExporterConfig `yaml:"exporters,omitempty"`

	// BatchTimeout is how often batched spans are flushed.
	BatchTimeout time.Duration `yaml:"batch_timeout,omitempty"`

	// Registerer receives the metrics collector; the default Prometheus
	// registry when nil.
	Registerer promclient.Registerer `yaml:"-"`
}

// ExporterConfig defines one span export destination.
type ExporterConfig struct {
	// Type is "console", "otlp" (gRPC), "otlp-http" or "none".
	Type string `yaml:"type"`

	// Endpoint is the receiver address, e.g. localhost:4317.
	Endpoint string `yaml:"endpoint,omitempty"`

	// Headers are sent with every export request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Insecure disables TLS.
	Insecure bool `yaml:"insecure,omitempty"`

	// CACertPath verifies the receiver against a private CA.
	CACertPath string `yaml:"ca_cert,omitempty"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:        false, // Opt-in
		ServiceName:    "dirsvc",
		ServiceVersion: "unknown",
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
	}
}

// Validate checks the exporter types and the sample rate.
func (c Config) Validate() error {
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("sample_rate must be between 0 and 1, got %v", c.SampleRate)
	}
	for i, e := range c.Exporters {
		switch e.Type {
		case "console", "none", "":
		case "otlp", "otlp-http", "otlp_http":
			if e.Endpoint == "" {
				return fmt.Errorf("exporters[%d]: endpoint is required for %s", i, e.Type)
			}
		default:
			return fmt.Errorf("exporters[%d]: unknown exporter type %q", i, e.Type)
		}
	}
	return nil
}
