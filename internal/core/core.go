package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ShutdownTimeout bounds the time given to all modules to stop.
const ShutdownTimeout = 30 * time.Second

// App manages the lifecycle of a set of modules.
type App struct {
	ctx     *AppContext
	modules []moduleInstance
	logger  *slog.Logger
}

type moduleInstance struct {
	id      ModuleID
	module  Module
	started bool
	stopped bool
}

// NewApp creates an App bound to ctx.
func NewApp(ctx *AppContext) *App {
	return &App{
		ctx:    ctx,
		logger: ctx.Logger.With("component", "core"),
	}
}

// LoadModules loads the modules for ids in order. If any fails, modules
// already loaded are stopped and discarded.
func (a *App) LoadModules(ids []string) error {
	for _, id := range ids {
		mod, err := a.ctx.LoadModule(id)
		if err != nil {
			a.cleanup()
			return fmt.Errorf("loading module %s: %w", id, err)
		}
		a.Register(mod)
	}
	return nil
}

// Register adds an already provisioned module, for components built by
// the caller rather than loaded from the registry.
func (a *App) Register(mod Module) {
	info := mod.ModuleInfo()
	a.modules = append(a.modules, moduleInstance{id: info.ID, module: mod})
	a.logger.Info("module loaded", "module", string(info.ID))
}

// Module returns the loaded instance with the given ID.
func (a *App) Module(id ModuleID) (Module, bool) {
	for _, mi := range a.modules {
		if mi.id == id {
			return mi.module, true
		}
	}
	return nil, false
}

// Start starts every module that implements Starter, in load order.
// On failure, modules already started are stopped in reverse order.
func (a *App) Start() error {
	for i := range a.modules {
		mi := &a.modules[i]
		s, ok := mi.module.(Starter)
		if !ok {
			continue
		}
		a.logger.Info("starting module", "module", string(mi.id))
		if err := s.Start(); err != nil {
			a.logger.Error("module start failed", "module", string(mi.id), "error", err)
			a.stopModules(i - 1)
			return fmt.Errorf("starting module %s: %w", mi.id, err)
		}
		mi.started = true
	}
	a.logger.Info("all modules started")
	return nil
}

// Stop stops all started modules in reverse order within ShutdownTimeout.
// Modules that were loaded but never started still get Stop, so they can
// release what Provision opened.
func (a *App) Stop() {
	a.cleanup()
}

func (a *App) stopModules(fromIndex int) {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	for i := fromIndex; i >= 0; i-- {
		mi := &a.modules[i]
		if !mi.started {
			continue
		}
		a.stopOne(ctx, mi)
	}
}

func (a *App) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	for i := len(a.modules) - 1; i >= 0; i-- {
		a.stopOne(ctx, &a.modules[i])
	}
	a.modules = nil
}

func (a *App) stopOne(ctx context.Context, mi *moduleInstance) {
	if mi.stopped {
		return
	}
	mi.stopped = true
	if s, ok := mi.module.(Stopper); ok {
		a.logger.Info("stopping module", "module", string(mi.id))
		if err := s.Stop(ctx); err != nil {
			a.logger.Error("module stop error", "module", string(mi.id), "error", err)
		}
	}
	mi.started = false
}

// Run starts all modules, blocks until ctx is done, then stops them.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(); err != nil {
		a.cleanup()
		return err
	}
	<-ctx.Done()
	a.logger.Info("shutdown requested", "cause", context.Cause(ctx))
	a.Stop()
	a.logger.Info("shutdown complete")
	return nil
}
