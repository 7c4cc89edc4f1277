// Package app provides the entry points shared by the sitewatch commands:
// building the module graph from configuration, running the service until
// a signal arrives, and one-shot passes.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
)

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// DataDir overrides the configured persistent data directory.
	DataDir string

	// LogLevel overrides the configured log level when non-empty.
	LogLevel string

	// LogOutput receives process logs. Defaults to os.Stderr.
	LogOutput io.Writer
}

// Run builds the application, starts every module and the scheduler, and
// blocks until SIGINT or SIGTERM.
func Run(params RunParams) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return RunContext(ctx, params)
}

// RunContext is Run with the shutdown trigger supplied by the caller.
func RunContext(ctx context.Context, params RunParams) error {
	inst, err := Open(ctx, params)
	if err != nil {
		return err
	}
	inst.EnableScheduler()
	if inst.Config.Reload.Watch {
		inst.EnableReload()
	}

	if err := inst.Start(); err != nil {
		inst.Close()
		return err
	}
	inst.Logger.Info("sitewatch started",
		"version", params.Version,
		"jobs", inst.Registry.Len(),
		"period", inst.Config.Scheduler.Period,
	)

	<-ctx.Done()
	inst.Logger.Info("shutdown signal received", "cause", context.Cause(ctx))
	inst.Close()
	inst.Logger.Info("shutdown complete")
	return nil
}

// RunOnce builds the application and executes a single full pass over
// every active job, without starting the scheduler or the gateway.
func RunOnce(ctx context.Context, params RunParams) (PassSummary, error) {
	inst, err := Open(ctx, params)
	if err != nil {
		return PassSummary{}, err
	}
	defer inst.Close()

	report := inst.Scheduler.RunAll(ctx)
	return PassSummary{Due: report.Due, Ran: report.Ran, Failed: report.Failed, Duration: report.Duration}, nil
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/sitewatch/sitewatch.yaml → ~/.config/sitewatch/sitewatch.yaml → ./sitewatch.yaml
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "sitewatch", "sitewatch.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "sitewatch", "sitewatch.yaml"))
	}

	candidates = append(candidates, "sitewatch.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

// DefaultDataDir returns the default persistent data directory.
// Uses $XDG_DATA_HOME/sitewatch if set, otherwise ~/.local/share/sitewatch.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok && dir != "" {
		return filepath.Join(dir, "sitewatch")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "sitewatch")
}
