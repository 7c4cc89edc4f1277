package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flemzord/sitewatch/internal/core"
	"github.com/flemzord/sitewatch/internal/cron"
	"github.com/flemzord/sitewatch/internal/security"
	"github.com/flemzord/sitewatch/internal/watch"
)

// requiredNamespaces must each have at least one configured module.
var requiredNamespaces = []string{"store", "fetcher", "channel"}

// Validate checks the structural validity of a Config: version, modules
// known to the registry and covering every required namespace, scheduler
// and logging settings, and seed job definitions. All problems are
// reported together.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	errs = append(errs, validateModules(cfg)...)
	errs = append(errs, validateScheduler(cfg.Scheduler)...)
	errs = append(errs, validateLog(cfg.Log)...)
	errs = append(errs, validateTelemetry(cfg.Telemetry)...)
	errs = append(errs, validateNotify(cfg)...)
	if cfg.Reload.PollInterval < 0 {
		errs = append(errs, fmt.Errorf("config: reload.poll_interval must not be negative, got %s", cfg.Reload.PollInterval))
	}
	errs = append(errs, validateJobs(cfg.Jobs)...)

	return errors.Join(errs...)
}

func validateModules(cfg *Config) []error {
	var errs []error
	if len(cfg.Modules) == 0 {
		return []error{errors.New("config: at least one module must be configured")}
	}

	present := make(map[string]bool)
	for id := range cfg.Modules {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
			continue
		}
		present[core.ModuleID(id).Namespace()] = true
	}
	for _, ns := range requiredNamespaces {
		if !present[ns] {
			errs = append(errs, fmt.Errorf("config: no %s module configured (want one of %s)", ns, namespaceIDs(ns)))
		}
	}
	return errs
}

func namespaceIDs(ns string) string {
	var ids []string
	for _, info := range core.GetModulesByNamespace(ns) {
		ids = append(ids, string(info.ID))
	}
	if len(ids) == 0 {
		return "none registered"
	}
	return strings.Join(ids, ", ")
}

func validateScheduler(s SchedulerConfig) []error {
	var errs []error
	if s.Period < time.Second {
		errs = append(errs, fmt.Errorf("config: scheduler.period must be at least 1s, got %s", s.Period))
	}
	if _, err := cron.ParseOverlap(s.Overlap); err != nil {
		errs = append(errs, fmt.Errorf("config: scheduler.overlap: %w", err))
	}
	return errs
}

func validateLog(l LogConfig) []error {
	var errs []error
	if _, err := security.ParseLevel(l.Level); err != nil {
		errs = append(errs, fmt.Errorf("config: log.level: %w", err))
	}
	switch strings.ToLower(l.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("config: log.format must be text or json, got %q", l.Format))
	}
	return errs
}

func validateTelemetry(t TelemetryConfig) []error {
	if r := t.Tracing.SampleRatio; r < 0 || r > 1 {
		return []error{fmt.Errorf("config: telemetry.tracing.sample_ratio must be within [0,1], got %g", r)}
	}
	return nil
}

func validateNotify(cfg *Config) []error {
	name := cfg.Notify.DefaultChannel
	if name == "" {
		return nil
	}
	if _, ok := cfg.Modules["channel."+name]; !ok {
		return []error{fmt.Errorf("config: notify.default_channel %q has no channel.%s module configured", name, name)}
	}
	return nil
}

func validateJobs(defs []watch.Definition) []error {
	var errs []error
	seen := make(map[watch.Key]int, len(defs))
	for i, def := range defs {
		if err := def.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("config: jobs[%d]: %w", i, err))
			continue
		}
		key := watch.Key{GuildID: def.GuildID, Name: def.Name}
		if prev, dup := seen[key]; dup {
			errs = append(errs, fmt.Errorf("config: jobs[%d]: duplicate of jobs[%d] (%s)", i, prev, key))
			continue
		}
		seen[key] = i
	}
	return errs
}
