// Package config handles YAML configuration loading, environment variable
// expansion, defaults and structural validation for sitewatch.
package config

import (
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/sitewatch/internal/security"
	"github.com/flemzord/sitewatch/internal/watch"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// DataDir overrides the persistent data directory.
	DataDir string `yaml:"data_dir,omitempty"`

	Scheduler SchedulerConfig `yaml:"scheduler"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Audit     AuditConfig     `yaml:"audit"`
	Security  SecurityConfig  `yaml:"security"`
	Notify    NotifyConfig    `yaml:"notify"`
	Reload    ReloadConfig    `yaml:"reload"`

	// Jobs are created at startup when no job with the same guild and name
	// exists yet. Existing jobs are left untouched.
	Jobs []watch.Definition `yaml:"jobs,omitempty"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "channel.telegram").
	Modules map[string]yaml.Node `yaml:"modules"`
}

// SchedulerConfig controls the periodic driver.
type SchedulerConfig struct {
	// Period is the tick length. Defaults to one minute.
	Period time.Duration `yaml:"period"`

	// Overlap is "allow" (default) or "skip".
	Overlap string `yaml:"overlap"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// TelemetryConfig controls optional tracing export.
type TelemetryConfig struct {
	Tracing TracingConfig `yaml:"tracing"`
}

// TracingConfig configures the OTLP/HTTP trace exporter. Tracing is off
// when Endpoint is empty.
type TracingConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// AuditConfig controls the JSONL audit trail. Disabled when Path is empty.
type AuditConfig struct {
	Path string `yaml:"path"`
}

// SecurityConfig holds security settings shared by modules.
type SecurityConfig struct {
	URLFilter security.URLFilterConfig `yaml:"url_filter"`
}

// NotifyConfig controls notification routing.
type NotifyConfig struct {
	// DefaultChannel names the channel (e.g. "telegram") used for job
	// channel IDs that carry no "<channel>:" prefix.
	DefaultChannel string `yaml:"default_channel"`

	// Silent and DisablePreview apply to every notification, on top of
	// each channel's own settings.
	Silent         bool `yaml:"silent"`
	DisablePreview bool `yaml:"disable_preview"`
}

// ReloadConfig controls picking up configuration edits while running.
// Only seed jobs are applied; module changes need a restart.
type ReloadConfig struct {
	Watch        bool          `yaml:"watch"`
	PollInterval time.Duration `yaml:"poll_interval"`
}
