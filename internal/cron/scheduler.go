package cron

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/flemzord/sitewatch/internal/cron"

// Config configures a Scheduler.
type Config struct {
	Jobs   JobSource
	Runner JobRunner

	// Period is the tick length. Defaults to DefaultPeriod.
	Period time.Duration

	// Overlap defaults to OverlapAllow.
	Overlap Overlap

	Logger   *slog.Logger
	Observer PassObserver
	Tracer   trace.Tracer

	// Schedule overrides the tick schedule derived from Period (used in tests).
	Schedule cron.Schedule
}

// Scheduler selects due jobs and hands them to the runner. Jobs within one
// pass never run concurrently; passes of successive ticks may, unless
// Overlap is OverlapSkip.
type Scheduler struct {
	jobs     JobSource
	runner   JobRunner
	schedule cron.Schedule
	overlap  Overlap
	logger   *slog.Logger
	observer PassObserver
	tracer   trace.Tracer

	// passMu is only taken in OverlapSkip mode (TryLock, atomic, no race).
	passMu sync.Mutex
}

// NewScheduler creates a scheduler. Jobs and Runner are required.
func NewScheduler(cfg Config) (*Scheduler, error) {
	if cfg.Jobs == nil {
		return nil, errors.New("cron: scheduler requires a job source")
	}
	if cfg.Runner == nil {
		return nil, errors.New("cron: scheduler requires a runner")
	}
	overlap := cfg.Overlap
	if overlap == "" {
		overlap = OverlapAllow
	}
	if _, err := ParseOverlap(string(overlap)); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	schedule := cfg.Schedule
	if schedule == nil {
		period := cfg.Period
		if period <= 0 {
			period = DefaultPeriod
		}
		// Every rounds sub-second periods up to one second.
		schedule = cron.Every(period)
	}
	return &Scheduler{
		jobs:     cfg.Jobs,
		runner:   cfg.Runner,
		schedule: schedule,
		overlap:  overlap,
		logger:   logger,
		observer: cfg.Observer,
		tracer:   tracer,
	}, nil
}

// RunOnInterval starts the periodic driver. Tick 0 fires immediately; every
// later tick fires once per period whether or not the previous pass has
// finished. Cancelling ctx stops future ticks and is visible to in-flight
// runs. The returned Handle stops future ticks without interrupting passes.
func (s *Scheduler) RunOnInterval(ctx context.Context) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h := &Handle{
		cron:   cron.New(),
		logger: s.logger,
		done:   make(chan struct{}),
	}

	// The counter is read and advanced when a tick fires, before its pass
	// starts, so overlapping passes see distinct values.
	var counter atomic.Uint64
	fire := func() {
		s.runTick(ctx, counter.Add(1)-1)
	}

	h.cron.Schedule(s.schedule, cron.FuncJob(fire))

	h.initial.Add(1)
	go func() {
		defer h.initial.Done()
		fire()
	}()
	h.cron.Start()

	go func() {
		select {
		case <-ctx.Done():
			h.halt()
		case <-h.done:
		}
	}()

	s.logger.Info("cron: scheduler started", "overlap", string(s.overlap))
	return h, nil
}

// Handle cancels a running periodic driver.
type Handle struct {
	cron    *cron.Cron
	logger  *slog.Logger
	initial sync.WaitGroup

	once    sync.Once
	stopped context.Context
	done    chan struct{}
}

// halt prevents future ticks. Safe to call more than once.
func (h *Handle) halt() context.Context {
	h.once.Do(func() {
		h.stopped = h.cron.Stop()
		close(h.done)
	})
	return h.stopped
}

// Stop prevents future ticks and waits for in-flight passes to finish, or
// for ctx to expire. Passes are never interrupted.
func (h *Handle) Stop(ctx context.Context) error {
	cronDone := h.halt()

	initialDone := make(chan struct{})
	go func() {
		h.initial.Wait()
		close(initialDone)
	}()

	for _, wait := range []<-chan struct{}{cronDone.Done(), initialDone} {
		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	h.logger.Info("cron: scheduler stopped")
	return nil
}
