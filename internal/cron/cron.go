// Package cron drives periodic job execution: an immediate full pass, then a
// fixed-period tick that runs the jobs whose interval divides the tick count.
package cron

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/flemzord/sitewatch/internal/watch"
)

// DefaultPeriod is the wall-clock duration of one tick.
const DefaultPeriod = time.Minute

// JobSource provides the point-in-time job list for a pass.
// Implemented by *watch.Registry.
type JobSource interface {
	All() []watch.Job
}

// JobRunner executes one job. Implemented by *watch.Runner.
// Run must not return errors; failures are reported in the Result.
type JobRunner interface {
	Run(ctx context.Context, job watch.Job) watch.Result
}

// PassReport summarizes one scheduling pass.
type PassReport struct {
	Tick     uint64
	Due      int
	Ran      int
	Failed   int
	Skipped  bool // overlap=skip dropped this tick
	Duration time.Duration
}

// PassObserver receives a report for every pass, including skipped ticks.
type PassObserver interface {
	ObservePass(PassReport)
}

// Overlap controls what happens when a tick fires while the previous pass
// is still running.
type Overlap string

// Overlap modes.
const (
	// OverlapAllow starts the new pass regardless.
	OverlapAllow Overlap = "allow"

	// OverlapSkip drops the tick. The tick counter still advances.
	OverlapSkip Overlap = "skip"
)

// ParseOverlap parses an overlap mode. Empty means OverlapAllow.
func ParseOverlap(s string) (Overlap, error) {
	switch Overlap(strings.ToLower(strings.TrimSpace(s))) {
	case "", OverlapAllow:
		return OverlapAllow, nil
	case OverlapSkip:
		return OverlapSkip, nil
	default:
		return "", fmt.Errorf("cron: unknown overlap mode %q (want allow or skip)", s)
	}
}
