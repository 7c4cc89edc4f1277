package cron

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/sitewatch/internal/watch"
)

// Due returns the active jobs whose interval evenly divides tick, in input
// order. Jobs with an interval below one are never due.
func Due(jobs []watch.Job, tick uint64) []watch.Job {
	due := make([]watch.Job, 0, len(jobs))
	for _, j := range jobs {
		if !j.Active || j.Interval < 1 {
			continue
		}
		if tick%uint64(j.Interval) == 0 {
			due = append(due, j)
		}
	}
	return due
}

// RunAll runs every active job of the current snapshot once, sequentially,
// in registry order. Inactive jobs are skipped with no side effects.
func (s *Scheduler) RunAll(ctx context.Context) PassReport {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "scheduler.run_all")
	defer span.End()

	var active []watch.Job
	for _, j := range s.jobs.All() {
		if j.Active {
			active = append(active, j)
		}
	}

	report := s.execute(ctx, active)
	report.Duration = time.Since(start)
	span.SetAttributes(attribute.Int("pass.due", report.Due), attribute.Int("pass.failed", report.Failed))

	s.logger.Info("cron: full pass completed",
		"ran", report.Ran,
		"failed", report.Failed,
		"duration", report.Duration,
	)
	return report
}

// runTick executes the pass for one tick.
func (s *Scheduler) runTick(ctx context.Context, tick uint64) {
	if s.overlap == OverlapSkip {
		if !s.passMu.TryLock() {
			s.logger.Warn("cron: previous pass still running, skipping tick", "tick", tick)
			s.observe(PassReport{Tick: tick, Skipped: true})
			return
		}
		defer s.passMu.Unlock()
	}

	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "scheduler.tick", trace.WithAttributes(
		attribute.Int64("tick", int64(tick)),
	))
	defer span.End()

	due := Due(s.jobs.All(), tick)
	span.SetAttributes(attribute.Int("pass.due", len(due)))

	report := s.execute(ctx, due)
	report.Tick = tick
	report.Duration = time.Since(start)
	s.observe(report)

	s.logger.Debug("cron: tick completed",
		"tick", tick,
		"due", report.Due,
		"ran", report.Ran,
		"failed", report.Failed,
		"duration", report.Duration,
	)
}

// execute runs jobs one after another. A cancelled context stops the pass
// before the next job; the job in progress finishes on its own terms.
func (s *Scheduler) execute(ctx context.Context, jobs []watch.Job) PassReport {
	report := PassReport{Due: len(jobs)}
	for _, j := range jobs {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("cron: pass cancelled", "remaining", len(jobs)-report.Ran, "error", err)
			break
		}
		res := s.runner.Run(ctx, j)
		report.Ran++
		if res.Failure != watch.FailureNone {
			report.Failed++
		}
	}
	return report
}

func (s *Scheduler) observe(r PassReport) {
	if s.observer != nil {
		s.observer.ObservePass(r)
	}
}
