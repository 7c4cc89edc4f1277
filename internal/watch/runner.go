package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/flemzord/sitewatch/internal/watch"

// Result describes the outcome of one job run. It is informational: the
// runner has already handled every failure when it returns.
type Result struct {
	Job      Key
	Failure  FailureKind
	NewItems []string
	Notified bool
	Disabled bool
	Err      error
	Duration time.Duration
}

// Outcome returns a short label for logs and metrics.
func (r Result) Outcome() string {
	switch r.Failure {
	case FailureResourceFetch:
		return "resource_fetch_failure"
	case FailureTransient:
		return "transient_error"
	}
	if len(r.NewItems) > 0 {
		return "new_items"
	}
	return "no_new_items"
}

// RunObserver receives every run result. Implemented by the metrics package.
type RunObserver interface {
	ObserveRun(Result)
}

// RunnerConfig wires the collaborators of a Runner.
type RunnerConfig struct {
	Registry *Registry
	Store    Store
	Fetcher  Fetcher
	Notifier Notifier
	Logger   *slog.Logger
	Observer RunObserver
	Tracer   trace.Tracer
}

// Runner executes the fetch → diff → persist → notify protocol for a single
// job and applies the failure state machine. Errors never escape Run.
type Runner struct {
	registry *Registry
	store    Store
	fetcher  Fetcher
	notifier Notifier
	logger   *slog.Logger
	observer RunObserver
	tracer   trace.Tracer
}

// NewRunner creates a Runner. Registry, Store, Fetcher and Notifier are required.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	switch {
	case cfg.Registry == nil:
		return nil, errors.New("watch: runner requires a registry")
	case cfg.Store == nil:
		return nil, errors.New("watch: runner requires a store")
	case cfg.Fetcher == nil:
		return nil, errors.New("watch: runner requires a fetcher")
	case cfg.Notifier == nil:
		return nil, errors.New("watch: runner requires a notifier")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return &Runner{
		registry: cfg.Registry,
		store:    cfg.Store,
		fetcher:  cfg.Fetcher,
		notifier: cfg.Notifier,
		logger:   logger,
		observer: cfg.Observer,
		tracer:   tracer,
	}, nil
}

// Run executes one job. At most one notification, one item write and one
// registry mutation happen per call.
func (r *Runner) Run(ctx context.Context, job Job) Result {
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "watch.run", trace.WithAttributes(
		attribute.String("job.guild", job.GuildID),
		attribute.String("job.name", job.Name),
		attribute.String("job.url", job.URL),
	))
	defer span.End()

	res := r.run(ctx, job)
	res.Duration = time.Since(start)

	span.SetAttributes(
		attribute.String("job.outcome", res.Outcome()),
		attribute.Int("job.new_items", len(res.NewItems)),
	)
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Outcome())
	}
	if r.observer != nil {
		r.observer.ObserveRun(res)
	}
	return res
}

func (r *Runner) run(ctx context.Context, job Job) Result {
	res := Result{Job: job.Key()}

	items, err := r.fetcher.FetchItems(ctx, job.URL, job.Selector)
	if err != nil {
		if rfe, ok := IsResourceFetchError(err); ok {
			return r.handleResourceFailure(ctx, job, rfe, res)
		}
		return r.handleTransient(job, fmt.Errorf("fetch: %w", err), res)
	}

	known, err := r.store.KnownItems(ctx, job.GuildID, job.Name)
	if err != nil {
		return r.handleTransient(job, fmt.Errorf("load known items: %w", err), res)
	}

	fresh := NewItems(items, known)
	if len(fresh) > 0 {
		// Items must be durable before anyone hears about them.
		if err := r.store.SaveNewItems(ctx, job.GuildID, job.Name, fresh); err != nil {
			return r.handleTransient(job, fmt.Errorf("save new items: %w", err), res)
		}
	}
	res.NewItems = fresh

	text := ReportMessage(job.Name, fresh)
	r.logger.Info("watch: job completed",
		"guild", job.GuildID,
		"job", job.Name,
		"fetched", len(items),
		"new", len(fresh),
	)
	if err := r.notifier.Send(ctx, job.ChannelID, text); err != nil {
		return r.handleTransient(job, fmt.Errorf("notify: %w", err), res)
	}
	res.Notified = true
	return res
}

// handleResourceFailure notifies the job's channel and disables the job if
// it is still active.
func (r *Runner) handleResourceFailure(ctx context.Context, job Job, rfe *ResourceFetchError, res Result) Result {
	res.Failure = FailureResourceFetch
	res.Err = rfe

	active := job.Active
	if current, ok := r.registry.Get(job.GuildID, job.Name); ok {
		active = current.Active
	}

	r.logger.Error("watch: resource fetch failed",
		"guild", job.GuildID,
		"job", job.Name,
		"url", job.URL,
		"error", rfe.Message,
		"disabling", active,
	)

	text := FailureMessage(job.Name, rfe.Message, active)
	if err := r.notifier.Send(ctx, job.ChannelID, text); err != nil {
		r.logger.Error("watch: failure notification not delivered",
			"guild", job.GuildID,
			"job", job.Name,
			"error", err,
		)
	} else {
		res.Notified = true
	}

	if !active {
		return res
	}
	if err := r.registry.SetActive(ctx, job.GuildID, job.Name, false); err != nil {
		r.logger.Error("watch: disable job failed",
			"guild", job.GuildID,
			"job", job.Name,
			"error", err,
		)
		return res
	}
	res.Disabled = true
	return res
}

// handleTransient logs the failure. The job stays eligible for later ticks.
func (r *Runner) handleTransient(job Job, err error, res Result) Result {
	res.Failure = FailureTransient
	res.Err = err
	r.logger.Warn("watch: job run failed",
		"guild", job.GuildID,
		"job", job.Name,
		"error", err,
	)
	return res
}
