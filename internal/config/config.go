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

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tombee/dirsvc/internal/service"
	"github.com/tombee/dirsvc/internal/tracing"
	pkgerrors "github.com/tombee/dirsvc/pkg/errors"
)

var (
	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("config: invalid configuration")
)

// PromptValue as a password asks for it on the terminal.
const PromptValue = "prompt"

// Config is a directory service profile.
type Config struct {
	// Impl names the registered implementation; empty picks the first.
	Impl string `yaml:"impl,omitempty"`

	Instance  InstanceConfig  `yaml:"instance"`
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
	Daemon    DaemonConfig    `yaml:"daemon"`
	Log       LogConfig       `yaml:"log"`
	Tracing   tracing.Config  `yaml:"tracing"`
	Metrics   MetricsConfig   `yaml:"metrics"`

	// StateDir holds the lifecycle audit log and instance locks.
	// Environment: DIRSVC_STATE_DIR
	StateDir string `yaml:"state_dir,omitempty"`
}

// InstanceConfig identifies the supervised daemon.
type InstanceConfig struct {
	// URIs are the listener URIs; the first ldapi URI is used by clients.
	// Environment: DIRSVC_URIS (comma separated)
	URIs []string `yaml:"uris"`

	// ConfigDir is the compiled cn=config directory.
	// Environment: DIRSVC_CONFIG_DIR
	ConfigDir string `yaml:"config_dir"`

	// StopOnClose stops a running daemon when the CLI releases it.
	StopOnClose bool `yaml:"stop_on_close"`
}

// BootstrapConfig describes the directory that "create" builds.
type BootstrapConfig struct {
	Schemas []string `yaml:"schemas,omitempty"`
	Modules []string `yaml:"modules,omitempty"`

	// ConfigPassword and RootPassword may be literal, pre-hashed
	// ({SSHA}...), $secret:<key> references or "prompt".
	// Environment: DIRSVC_CONFIG_PASSWORD, DIRSVC_ROOT_PASSWORD
	ConfigPassword string `yaml:"config_password,omitempty"`
	RootPassword   string `yaml:"root_password,omitempty"`

	DBType   string              `yaml:"db_type,omitempty"`
	DBDir    string              `yaml:"db_dir,omitempty"`
	Suffix   string              `yaml:"suffix,omitempty"`
	RootDN   string              `yaml:"root_dn,omitempty"`
	AuthzMap []service.AuthzRule `yaml:"authz_map,omitempty"`
	Access   []string            `yaml:"access,omitempty"`
	Index    []string            `yaml:"index,omitempty"`
	PIDFile  string              `yaml:"pid_file,omitempty"`
}

// DaemonConfig controls how slapd and slaptest are run.
type DaemonConfig struct {
	// Environment: DIRSVC_SLAPD_PATH, DIRSVC_SLAPTEST_PATH
	SlapdPath    string `yaml:"slapd_path,omitempty"`
	SlaptestPath string `yaml:"slaptest_path,omitempty"`

	// ReadyMarker is the output line that means slapd accepts connections.
	ReadyMarker string `yaml:"ready_marker,omitempty"`

	PollInterval time.Duration `yaml:"poll_interval,omitempty"`

	// Environment: DIRSVC_STARTUP_TIMEOUT, DIRSVC_STOP_TIMEOUT
	StartupTimeout time.Duration `yaml:"startup_timeout,omitempty"`
	StopTimeout    time.Duration `yaml:"stop_timeout,omitempty"`

	// PIDDirs are tried in order for a reserved pid file.
	PIDDirs []string `yaml:"pid_dirs,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is the log level (debug, info, warn, error).
	// Environment: LOG_LEVEL
	Level string `yaml:"level"`

	// Format is the log format (json, text).
	// Environment: LOG_FORMAT
	Format string `yaml:"format"`

	// AddSource adds source file and line to log entries.
	// Environment: LOG_SOURCE
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig configures metrics output.
type MetricsConfig struct {
	// Textfile, if set, receives the lifecycle counters in the Prometheus
	// text format after every command.
	// Environment: DIRSVC_METRICS_TEXTFILE
	Textfile string `yaml:"textfile,omitempty"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Instance: InstanceConfig{
			URIs: []string{"ldapi:///"},
		},
		Bootstrap: BootstrapConfig{
			Schemas: []string{"core", "cosine", "inetorgperson"},
			DBType:  "mdb",
			Index:   []string{"uid eq,pres,sub"},
		},
		Daemon: DaemonConfig{
			SlapdPath:      "slapd",
			SlaptestPath:   "slaptest",
			ReadyMarker:    "slapd starting",
			PollInterval:   10 * time.Millisecond,
			StartupTimeout: 30 * time.Second,
			StopTimeout:    30 * time.Second,
			PIDDirs:        []string{"/var/run"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Tracing:  tracing.DefaultConfig(),
		StateDir: defaultStateDir(),
	}
}

// Load reads the profile at configPath (if any), fills in defaults,
// applies environment overrides and validates the result.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, &pkgerrors.ConfigError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s", configPath),
				Cause:  err,
			}
		}
	}

	cfg.applyDefaults()
	cfg.loadFromEnv()
	cfg.expandPaths()
	if err := cfg.expandSchemaGlobs(); err != nil {
		return nil, &pkgerrors.ConfigError{
			Key:    "bootstrap.schemas",
			Reason: "failed to expand schema patterns",
			Cause:  err,
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, &pkgerrors.ConfigError{
			Key:    "validation",
			Reason: "configuration validation failed",
			Cause:  err,
		}
	}
	return cfg, nil
}

// applyDefaults fills in zero values so a minimal profile works.
func (c *Config) applyDefaults() {
	defaults := Default()

	if len(c.Instance.URIs) == 0 {
		c.Instance.URIs = defaults.Instance.URIs
	}
	if len(c.Bootstrap.Schemas) == 0 {
		c.Bootstrap.Schemas = defaults.Bootstrap.Schemas
	}
	if c.Bootstrap.DBType == "" {
		c.Bootstrap.DBType = defaults.Bootstrap.DBType
	}
	if c.Bootstrap.Index == nil {
		c.Bootstrap.Index = defaults.Bootstrap.Index
	}

	if c.Daemon.SlapdPath == "" {
		c.Daemon.SlapdPath = defaults.Daemon.SlapdPath
	}
	if c.Daemon.SlaptestPath == "" {
		c.Daemon.SlaptestPath = defaults.Daemon.SlaptestPath
	}
	if c.Daemon.ReadyMarker == "" {
		c.Daemon.ReadyMarker = defaults.Daemon.ReadyMarker
	}
	if c.Daemon.PollInterval == 0 {
		c.Daemon.PollInterval = defaults.Daemon.PollInterval
	}
	if c.Daemon.StartupTimeout == 0 {
		c.Daemon.StartupTimeout = defaults.Daemon.StartupTimeout
	}
	if c.Daemon.StopTimeout == 0 {
		c.Daemon.StopTimeout = defaults.Daemon.StopTimeout
	}
	if len(c.Daemon.PIDDirs) == 0 {
		c.Daemon.PIDDirs = defaults.Daemon.PIDDirs
	}

	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = defaults.Tracing.ServiceName
	}
	if c.Tracing.ServiceVersion == "" {
		c.Tracing.ServiceVersion = defaults.Tracing.ServiceVersion
	}
	if c.Tracing.SampleRate == 0 {
		c.Tracing.SampleRate = defaults.Tracing.SampleRate
	}
	if c.Tracing.BatchTimeout == 0 {
		c.Tracing.BatchTimeout = defaults.Tracing.BatchTimeout
	}

	if c.StateDir == "" {
		c.StateDir = defaults.StateDir
	}
}

// loadFromFile loads configuration from a YAML file.
func (c *Config) loadFromFile(path string) error {
	path, err := ExpandHome(path)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// loadFromEnv loads configuration from environment variables.
func (c *Config) loadFromEnv() {
	if val := os.Getenv("DIRSVC_IMPL"); val != "" {
		c.Impl = val
	}
	if val := os.Getenv("DIRSVC_URIS"); val != "" {
		uris := strings.Split(val, ",")
		for i, u := range uris {
			uris[i] = strings.TrimSpace(u)
		}
		c.Instance.URIs = uris
	}
	if val := os.Getenv("DIRSVC_CONFIG_DIR"); val != "" {
		c.Instance.ConfigDir = val
	}
	if val := os.Getenv("DIRSVC_STOP_ON_CLOSE"); val != "" {
		c.Instance.StopOnClose = parseBool(val)
	}

	if val := os.Getenv("DIRSVC_CONFIG_PASSWORD"); val != "" {
		c.Bootstrap.ConfigPassword = val
	}
	if val := os.Getenv("DIRSVC_ROOT_PASSWORD"); val != "" {
		c.Bootstrap.RootPassword = val
	}

	if val := os.Getenv("DIRSVC_SLAPD_PATH"); val != "" {
		c.Daemon.SlapdPath = val
	}
	if val := os.Getenv("DIRSVC_SLAPTEST_PATH"); val != "" {
		c.Daemon.SlaptestPath = val
	}
	if val := os.Getenv("DIRSVC_STARTUP_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.Daemon.StartupTimeout = d
		}
	}
	if val := os.Getenv("DIRSVC_STOP_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.Daemon.StopTimeout = d
		}
	}

	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_SOURCE"); val != "" {
		c.Log.AddSource = parseBool(val)
	}

	if val := os.Getenv("DIRSVC_TRACING_ENABLED"); val != "" {
		c.Tracing.Enabled = parseBool(val)
	}
	if val := os.Getenv("DIRSVC_TRACING_SAMPLE_RATE"); val != "" {
		if rate, err := strconv.ParseFloat(val, 64); err == nil {
			c.Tracing.SampleRate = rate
		}
	}
	if val := os.Getenv("DIRSVC_METRICS_TEXTFILE"); val != "" {
		c.Metrics.Textfile = val
	}
	if val := os.Getenv("DIRSVC_STATE_DIR"); val != "" {
		c.StateDir = val
	}
}

func parseBool(val string) bool {
	return val == "1" || strings.EqualFold(val, "true")
}

// expandPaths resolves a leading ~/ in every path setting. A path that
// cannot be expanded is left for Validate to report.
func (c *Config) expandPaths() {
	for _, p := range []*string{
		&c.Instance.ConfigDir,
		&c.Bootstrap.DBDir,
		&c.Bootstrap.PIDFile,
		&c.Metrics.Textfile,
		&c.StateDir,
	} {
		if expanded, err := ExpandHome(*p); err == nil {
			*p = expanded
		}
	}
	for i, s := range c.Bootstrap.Schemas {
		if expanded, err := ExpandHome(s); err == nil {
			c.Bootstrap.Schemas[i] = expanded
		}
	}
}

// ExpandHome replaces a leading ~/ with the user's home directory.
func ExpandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, path[2:]), nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	if len(c.Instance.URIs) == 0 {
		errs = append(errs, "instance.uris must not be empty")
	}
	for _, u := range c.Instance.URIs {
		if err := validateURI(u); err != nil {
			errs = append(errs, fmt.Sprintf("instance.uris: %v", err))
		}
	}

	for i, rule := range c.Bootstrap.AuthzMap {
		if rule.Match == "" || rule.Replace == "" {
			errs = append(errs, fmt.Sprintf("bootstrap.authz_map[%d] needs both match and replace", i))
		}
	}

	if c.Daemon.PollInterval < 0 {
		errs = append(errs, fmt.Sprintf("daemon.poll_interval must not be negative, got %v", c.Daemon.PollInterval))
	}
	if c.Daemon.StartupTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("daemon.startup_timeout must be positive, got %v", c.Daemon.StartupTimeout))
	}
	if c.Daemon.StopTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("daemon.stop_timeout must be positive, got %v", c.Daemon.StopTimeout))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true, "trace": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level must be one of [trace, debug, info, warn, error], got %q", c.Log.Level))
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, fmt.Sprintf("log.format must be json or text, got %q", c.Log.Format))
	}

	if err := c.Tracing.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("tracing: %v", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}

func validateURI(raw string) error {
	scheme, _, ok := strings.Cut(raw, "://")
	if !ok {
		return fmt.Errorf("%q is not a URI", raw)
	}
	switch strings.ToLower(scheme) {
	case "ldapi":
		// The host part is a percent-encoded socket path url.Parse rejects.
		return nil
	case "ldap", "ldaps":
		if _, err := url.Parse(raw); err != nil {
			return fmt.Errorf("%q: %w", raw, err)
		}
		return nil
	default:
		return fmt.Errorf("%q: unsupported scheme %q", raw, scheme)
	}
}

// InstanceOptions describes the configured instance for Open.
func (c *Config) InstanceOptions(pid int) service.InstanceOptions {
	return service.InstanceOptions{
		URIs:        append([]string(nil), c.Instance.URIs...),
		ConfigDir:   c.Instance.ConfigDir,
		PID:         pid,
		StopOnClose: c.Instance.StopOnClose,
	}
}

// BootstrapSpec combines the instance and bootstrap sections. schemaPath
// maps bare schema names (no path separator) to files.
func (c *Config) BootstrapSpec(schemaPath func(name string) (string, error)) (service.BootstrapSpec, error) {
	b := c.Bootstrap
	schemas := make([]string, len(b.Schemas))
	for i, s := range b.Schemas {
		if schemaPath != nil && !strings.ContainsRune(s, filepath.Separator) {
			path, err := schemaPath(s)
			if err != nil {
				return service.BootstrapSpec{}, &pkgerrors.ConfigError{Key: "bootstrap.schemas", Reason: "cannot resolve schema " + s, Cause: err}
			}
			s = path
		}
		schemas[i] = s
	}
	return service.BootstrapSpec{
		URIs:           append([]string(nil), c.Instance.URIs...),
		ConfigDir:      c.Instance.ConfigDir,
		Schemas:        schemas,
		Modules:        b.Modules,
		ConfigPassword: b.ConfigPassword,
		DBType:         b.DBType,
		DBDir:          b.DBDir,
		Suffix:         b.Suffix,
		RootDN:         b.RootDN,
		RootPassword:   b.RootPassword,
		AuthzMap:       b.AuthzMap,
		Access:         b.Access,
		Index:          b.Index,
		PIDFile:        b.PIDFile,
	}, nil
}
