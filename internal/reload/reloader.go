package reload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/flemzord/sitewatch/internal/config"
	"github.com/flemzord/sitewatch/internal/watch"
)

// JobSeeder is the part of the job registry that seeding needs.
type JobSeeder interface {
	Get(guildID, name string) (watch.Job, bool)
	Create(ctx context.Context, def watch.Definition) (watch.Job, error)
}

// SeedJobs creates every definition whose guild and name are not known to
// jobs yet and returns how many it created. Existing jobs are never
// modified, so a job disabled at runtime stays disabled. Failures do not
// stop the remaining definitions; they are returned joined.
func SeedJobs(ctx context.Context, jobs JobSeeder, defs []watch.Definition) (int, error) {
	var (
		created int
		errs    []error
	)
	for _, def := range defs {
		if _, ok := jobs.Get(def.GuildID, def.Name); ok {
			continue
		}
		if _, err := jobs.Create(ctx, def); err != nil {
			errs = append(errs, fmt.Errorf("seeding job %s/%s: %w", def.GuildID, def.Name, err))
			continue
		}
		created++
	}
	return created, errors.Join(errs...)
}

// Config configures a Reloader.
type Config struct {
	// ConfigPath is the configuration file to re-read.
	ConfigPath string

	// PollInterval is how often the file is checked. Zero uses the
	// watcher default.
	PollInterval time.Duration

	// Jobs receives the new seed jobs.
	Jobs JobSeeder

	Logger *slog.Logger
}

// Reloader re-reads the configuration file when it changes or when the
// process receives SIGHUP, and seeds the jobs it adds. Module settings
// are only applied on restart.
type Reloader struct {
	cfg     Config
	logger  *slog.Logger
	watcher *Watcher

	mu     sync.Mutex // serializes reloads
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Reloader. Call Start to begin watching.
func New(cfg Config) *Reloader {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reloader{
		cfg:    cfg,
		logger: logger,
		watcher: NewWatcher(WatcherConfig{
			Path:         cfg.ConfigPath,
			PollInterval: cfg.PollInterval,
		}),
	}
}

// Reload reads and validates the configuration file, then seeds the jobs
// it defines. An invalid file changes nothing.
func (r *Reloader) Reload(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, err := config.Load(r.cfg.ConfigPath)
	if err != nil {
		return 0, err
	}
	if err := config.Validate(cfg); err != nil {
		return 0, fmt.Errorf("validating config: %w", err)
	}
	return SeedJobs(ctx, r.cfg.Jobs, cfg.Jobs)
}

// Start begins watching the file and listening for SIGHUP.
func (r *Reloader) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	r.watcher.Start(ctx)

	go func() {
		defer close(r.done)
		defer signal.Stop(hup)
		for {
			var trigger string
			select {
			case <-ctx.Done():
				return
			case <-r.watcher.Changes():
				trigger = "file"
			case <-hup:
				trigger = "signal"
			}
			r.reload(ctx, trigger)
		}
	}()
	r.logger.Info("reload: watching configuration", "path", r.cfg.ConfigPath)
}

func (r *Reloader) reload(ctx context.Context, trigger string) {
	created, err := r.Reload(ctx)
	if err != nil {
		r.logger.Error("reload: configuration rejected",
			"trigger", trigger,
			"created", created,
			"error", err,
		)
		return
	}
	r.logger.Info("reload: configuration applied", "trigger", trigger, "created", created)
}

// Stop stops watching and waits for an in-flight reload to finish.
func (r *Reloader) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	r.watcher.Stop()
	<-r.done
}
