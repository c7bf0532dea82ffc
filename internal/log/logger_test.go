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

package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != "info" {
		t.Errorf("expected default level 'info', got %q", cfg.Level)
	}
	if cfg.Format != FormatText {
		t.Errorf("expected default format 'text', got %q", cfg.Format)
	}
	if cfg.Output != os.Stderr {
		t.Errorf("expected default output to be os.Stderr")
	}
}

func TestFromEnv(t *testing.T) {
	tests := []struct {
		name       string
		envVars    map[string]string
		wantLevel  string
		wantFormat Format
		wantSource bool
	}{
		{
			name:       "defaults when no env vars",
			envVars:    map[string]string{},
			wantLevel:  "info",
			wantFormat: FormatText,
		},
		{
			name:       "LOG_LEVEL is lowercased",
			envVars:    map[string]string{"LOG_LEVEL": "DEBUG"},
			wantLevel:  "debug",
			wantFormat: FormatText,
		},
		{
			name:       "DIRSVC_LOG_LEVEL wins over LOG_LEVEL",
			envVars:    map[string]string{"LOG_LEVEL": "error", "DIRSVC_LOG_LEVEL": "warn"},
			wantLevel:  "warn",
			wantFormat: FormatText,
		},
		{
			name:       "DIRSVC_DEBUG enables debug and source",
			envVars:    map[string]string{"DIRSVC_DEBUG": "1", "DIRSVC_LOG_LEVEL": "error"},
			wantLevel:  "debug",
			wantFormat: FormatText,
			wantSource: true,
		},
		{
			name:       "LOG_FORMAT=json",
			envVars:    map[string]string{"LOG_FORMAT": "JSON"},
			wantLevel:  "info",
			wantFormat: FormatJSON,
		},
		{
			name:       "LOG_SOURCE=1",
			envVars:    map[string]string{"LOG_SOURCE": "1"},
			wantLevel:  "info",
			wantFormat: FormatText,
			wantSource: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range []string{"DIRSVC_DEBUG", "DIRSVC_LOG_LEVEL", "LOG_LEVEL", "LOG_FORMAT", "LOG_SOURCE"} {
				t.Setenv(k, "")
			}
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := FromEnv()

			if cfg.Level != tt.wantLevel {
				t.Errorf("expected level %q, got %q", tt.wantLevel, cfg.Level)
			}
			if cfg.Format != tt.wantFormat {
				t.Errorf("expected format %q, got %q", tt.wantFormat, cfg.Format)
			}
			if cfg.AddSource != tt.wantSource {
				t.Errorf("expected AddSource %v, got %v", tt.wantSource, cfg.AddSource)
			}
		})
	}
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer

	logger := New(&Config{Level: "debug", Format: FormatJSON, Output: &buf})
	logger.Info("slapd starting", PIDKey, 42)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected valid JSON output, got error: %v", err)
	}
	if entry["msg"] != "slapd starting" {
		t.Errorf("unexpected msg: %v", entry["msg"])
	}
	if entry[PIDKey] != float64(42) {
		t.Errorf("expected pid 42, got %v", entry[PIDKey])
	}
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer

	logger := New(&Config{Level: "info", Format: FormatText, Output: &buf})
	logger.Info("test message", "key", "value")

	if !strings.Contains(buf.String(), "key=value") {
		t.Errorf("expected output to contain 'key=value', got: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"trace", LevelTrace},
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if level := ParseLevel(tt.input); level != tt.expected {
				t.Errorf("expected level %v, got %v", tt.expected, level)
			}
		})
	}
}

func TestDebugEnabled(t *testing.T) {
	var buf bytes.Buffer

	if DebugEnabled(nil) {
		t.Error("nil logger must not report debug")
	}
	if DebugEnabled(New(&Config{Level: "info", Output: &buf})) {
		t.Error("info logger reported debug enabled")
	}
	if !DebugEnabled(New(&Config{Level: "debug", Output: &buf})) {
		t.Error("debug logger reported debug disabled")
	}
	if !DebugEnabled(New(&Config{Level: "trace", Output: &buf})) {
		t.Error("trace logger reported debug disabled")
	}
	if DebugEnabled(Discard()) {
		t.Error("discard logger reported debug enabled")
	}
}

func TestWithInstance(t *testing.T) {
	var buf bytes.Buffer

	logger := WithInstance(New(&Config{Format: FormatJSON, Output: &buf}), "openldap", "/tmp/slapd.d")
	logger = WithComponent(logger, "supervisor")
	logger.Info("started")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected valid JSON output: %v", err)
	}
	if entry[ImplKey] != "openldap" {
		t.Errorf("expected impl field, got %v", entry[ImplKey])
	}
	if entry[ConfigDirKey] != "/tmp/slapd.d" {
		t.Errorf("expected config_dir field, got %v", entry[ConfigDirKey])
	}
	if entry["component"] != "supervisor" {
		t.Errorf("expected component field, got %v", entry["component"])
	}
}

func TestWithCorrelationID(t *testing.T) {
	var buf bytes.Buffer

	logger := WithCorrelationID(New(&Config{Format: FormatJSON, Output: &buf}), "run-1")
	logger.Info("test message")

	if !strings.Contains(buf.String(), `"correlation_id":"run-1"`) {
		t.Errorf("expected correlation id in output, got: %s", buf.String())
	}
}

func TestAttrHelpers(t *testing.T) {
	if a := String("k", "v"); a.Key != "k" || a.Value.String() != "v" {
		t.Errorf("String() = %v", a)
	}
	if a := Int("n", 3); a.Value.Int64() != 3 {
		t.Errorf("Int() = %v", a)
	}
	if a := Duration("wait", 12); a.Key != "wait_ms" {
		t.Errorf("Duration() key = %q", a.Key)
	}
	if a := Error(errors.New("boom")); a.Key != "error" {
		t.Errorf("Error() key = %q", a.Key)
	}
	if SanitizeSecret("admin") != "[REDACTED]" {
		t.Error("secret not redacted")
	}
}

func TestTrace(t *testing.T) {
	var buf bytes.Buffer

	Trace(New(&Config{Level: "debug", Output: &buf}), "hidden")
	if buf.Len() != 0 {
		t.Errorf("trace logged at debug level: %s", buf.String())
	}

	Trace(New(&Config{Level: "trace", Output: &buf}), "shown", String("line", "x"))
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("trace not logged at trace level: %s", buf.String())
	}
}
