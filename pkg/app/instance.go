package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/flemzord/sitewatch/internal/channel"
	"github.com/flemzord/sitewatch/internal/config"
	"github.com/flemzord/sitewatch/internal/core"
	"github.com/flemzord/sitewatch/internal/cron"
	"github.com/flemzord/sitewatch/internal/metrics"
	"github.com/flemzord/sitewatch/internal/reload"
	"github.com/flemzord/sitewatch/internal/security"
	"github.com/flemzord/sitewatch/internal/telemetry"
	"github.com/flemzord/sitewatch/internal/watch"
)

// ErrStartup marks failures that leave the process unable to serve, such
// as a job store that cannot be read.
var ErrStartup = errors.New("startup failure")

// PassSummary reports the outcome of a one-shot pass.
type PassSummary struct {
	Due      int
	Ran      int
	Failed   int
	Duration time.Duration
}

// Instance is a fully wired but not yet started application. Close
// releases everything Open acquired.
type Instance struct {
	Config     *config.Config
	ConfigPath string
	Logger     *slog.Logger
	Registry   *watch.Registry
	Runner     *watch.Runner
	Scheduler  *cron.Scheduler
	Dispatcher *channel.Dispatcher
	Metrics    *metrics.Collector
	Audit      *security.AuditLogger

	app       *core.App
	appCtx    *core.AppContext
	telemetry *telemetry.Provider
	auditFile io.Closer
	closed    bool
}

// Open loads and validates the configuration, provisions every configured
// module, wires the watch engine, and loads the job registry. Seed jobs
// from the configuration are created when missing.
func Open(ctx context.Context, params RunParams) (_ *Instance, err error) {
	cfgPath := params.ConfigPath
	if cfgPath == "" {
		if cfgPath, err = ResolveConfigPath(); err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if params.LogLevel != "" {
		cfg.Log.Level = params.LogLevel
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	dataDir := params.DataDir
	if dataDir == "" {
		dataDir = cfg.DataDir
	}
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}

	inst := &Instance{Config: cfg, ConfigPath: cfgPath}
	defer func() {
		if err != nil {
			inst.Close()
		}
	}()

	// Security foundation: the redactor wraps every log line and audit event.
	redactor := security.NewRedactor()
	level, _ := security.ParseLevel(cfg.Log.Level)
	out := params.LogOutput
	if out == nil {
		out = os.Stderr
	}
	logger := security.NewLogger(out, level, cfg.Log.Format, redactor)
	inst.Logger = logger

	auditCfg := security.AuditLoggerConfig{Redactor: redactor}
	if cfg.Audit.Path != "" {
		auditFile, err := security.OpenAuditFile(cfg.Audit.Path)
		if err != nil {
			return nil, err
		}
		inst.auditFile = auditFile
		auditCfg.Writer = auditFile
	}
	inst.Audit = security.NewAuditLogger(auditCfg)

	tr := cfg.Telemetry.Tracing
	inst.telemetry, err = telemetry.Setup(ctx, telemetry.Config{
		Endpoint:       tr.Endpoint,
		Insecure:       tr.Insecure,
		ServiceName:    tr.ServiceName,
		ServiceVersion: params.Version,
		SampleRatio:    tr.SampleRatio,
	})
	if err != nil {
		return nil, err
	}

	promReg := metrics.NewRegistry()
	inst.Metrics, err = metrics.New(promReg)
	if err != nil {
		return nil, err
	}

	appCtx := core.NewAppContext(logger, dataDir).WithModuleConfigs(cfg.Modules)
	appCtx.RegisterService(security.RedactorService, redactor)
	appCtx.RegisterService(security.AuditService, inst.Audit)
	appCtx.RegisterService(security.URLFilterService, security.NewURLFilter(cfg.Security.URLFilter))
	appCtx.RegisterService(metrics.RegistryService, promReg)
	appCtx.RegisterService(metrics.CollectorService, inst.Metrics)
	inst.appCtx = appCtx

	inst.app = core.NewApp(appCtx)
	ids := config.Resolve(cfg)
	if err := inst.app.LoadModules(ids); err != nil {
		return nil, err
	}

	if err := inst.wire(ids); err != nil {
		return nil, err
	}

	if err := inst.Registry.Load(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStartup, err)
	}
	if err := inst.seedJobs(ctx); err != nil {
		return nil, err
	}

	inst.Audit.Log(security.AuditEvent{Type: security.EventStartup, Detail: params.Version})
	return inst, nil
}

// wire builds the engine collaborators from the loaded modules and
// publishes them as services for the gateway.
func (inst *Instance) wire(ids []string) error {
	store, err := core.ServiceAs[watch.Store](inst.appCtx, watch.StoreService)
	if err != nil {
		return fmt.Errorf("no store module registered a job store: %w", err)
	}

	mux, err := buildFetchMux(inst.appCtx, ids)
	if err != nil {
		return err
	}
	dispatcher, err := buildDispatcher(inst.appCtx, ids, inst.Config.Notify)
	if err != nil {
		return err
	}

	registry := watch.NewRegistry(watch.RegistryConfig{
		Store:  store,
		Logger: inst.Logger.With("component", "registry"),
		Audit:  inst.Audit,
	})
	runner, err := watch.NewRunner(watch.RunnerConfig{
		Registry: registry,
		Store:    store,
		Fetcher:  mux,
		Notifier: dispatcher,
		Logger:   inst.Logger.With("component", "runner"),
		Observer: inst.Metrics,
		Tracer:   inst.telemetry.Tracer("github.com/flemzord/sitewatch/internal/watch"),
	})
	if err != nil {
		return err
	}
	overlap, err := cron.ParseOverlap(inst.Config.Scheduler.Overlap)
	if err != nil {
		return err
	}
	scheduler, err := cron.NewScheduler(cron.Config{
		Jobs:     registry,
		Runner:   runner,
		Period:   inst.Config.Scheduler.Period,
		Overlap:  overlap,
		Logger:   inst.Logger.With("component", "scheduler"),
		Observer: inst.Metrics,
		Tracer:   inst.telemetry.Tracer("github.com/flemzord/sitewatch/internal/cron"),
	})
	if err != nil {
		return err
	}

	inst.appCtx.RegisterService(watch.FetcherService, mux)
	inst.appCtx.RegisterService(watch.NotifierService, dispatcher)
	inst.appCtx.RegisterService(watch.RegistryService, registry)

	inst.Dispatcher = dispatcher
	inst.Registry = registry
	inst.Runner = runner
	inst.Scheduler = scheduler
	return nil
}

// seedJobs creates configured jobs that the store does not know yet.
func (inst *Instance) seedJobs(ctx context.Context) error {
	created, err := reload.SeedJobs(ctx, inst.Registry, inst.Config.Jobs)
	if created > 0 {
		inst.Logger.Info("seed jobs created", "count", created)
	}
	return err
}

// EnableScheduler appends the periodic driver to the module lifecycle so
// that it starts after every configured module and stops before them.
func (inst *Instance) EnableScheduler() {
	inst.app.Register(&schedulerModule{scheduler: inst.Scheduler})
}

// EnableReload appends the configuration watcher to the module lifecycle.
func (inst *Instance) EnableReload() {
	inst.app.Register(&reloadModule{reloader: reload.New(reload.Config{
		ConfigPath:   inst.ConfigPath,
		PollInterval: inst.Config.Reload.PollInterval,
		Jobs:         inst.Registry,
		Logger:       inst.Logger.With("component", "reload"),
	})})
}

// Start starts every module.
func (inst *Instance) Start() error {
	return inst.app.Start()
}

// Close stops all modules, flushes traces, and closes the audit log.
// Safe to call more than once.
func (inst *Instance) Close() {
	if inst.closed {
		return
	}
	inst.closed = true

	if inst.app != nil {
		inst.app.Stop()
	}
	if inst.telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := inst.telemetry.Shutdown(ctx); err != nil && inst.Logger != nil {
			inst.Logger.Warn("trace exporter shutdown failed", "error", err)
		}
		cancel()
	}
	inst.Audit.Log(security.AuditEvent{Type: security.EventShutdown})
	if inst.auditFile != nil {
		_ = inst.auditFile.Close()
	}
}
