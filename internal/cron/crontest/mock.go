// Package crontest provides test doubles for the cron package.
package crontest

import (
	"context"
	"sync"
	"time"

	"github.com/flemzord/sitewatch/internal/cron"
	"github.com/flemzord/sitewatch/internal/watch"
)

// StaticJobs is a fixed cron.JobSource.
type StaticJobs struct {
	mu   sync.Mutex
	jobs []watch.Job
}

// Compile-time interface check.
var _ cron.JobSource = (*StaticJobs)(nil)

// NewStaticJobs creates a source returning jobs.
func NewStaticJobs(jobs ...watch.Job) *StaticJobs {
	return &StaticJobs{jobs: jobs}
}

// All implements cron.JobSource.
func (s *StaticJobs) All() []watch.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]watch.Job(nil), s.jobs...)
}

// SetActive flips a job's flag in the source.
func (s *StaticJobs) SetActive(name string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.jobs {
		if s.jobs[i].Name == name {
			s.jobs[i].Active = active
		}
	}
}

// MockRunner records every job run.
type MockRunner struct {
	RunFunc func(ctx context.Context, job watch.Job) watch.Result

	mu    sync.Mutex
	calls []string
	ch    chan string
}

// Compile-time interface check.
var _ cron.JobRunner = (*MockRunner)(nil)

// NewMockRunner creates a runner that also publishes job names on a
// buffered channel.
func NewMockRunner() *MockRunner {
	return &MockRunner{ch: make(chan string, 1024)}
}

// Run implements cron.JobRunner.
func (m *MockRunner) Run(ctx context.Context, job watch.Job) watch.Result {
	m.mu.Lock()
	m.calls = append(m.calls, job.Name)
	m.mu.Unlock()

	res := watch.Result{Job: job.Key()}
	if m.RunFunc != nil {
		res = m.RunFunc(ctx, job)
	}
	select {
	case m.ch <- job.Name:
	default:
	}
	return res
}

// Calls returns the names of run jobs, in order.
func (m *MockRunner) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// WaitCalls blocks until n runs completed or timeout expires, and reports
// whether n was reached.
func (m *MockRunner) WaitCalls(n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for got := 0; got < n; got++ {
		select {
		case <-m.ch:
		case <-deadline:
			return false
		}
	}
	return true
}

// FixedSchedule fires every Delay, with sub-second precision.
type FixedSchedule struct {
	Delay time.Duration
}

// Next implements robfig cron.Schedule.
func (s FixedSchedule) Next(t time.Time) time.Time {
	return t.Add(s.Delay)
}

// PassRecorder is a cron.PassObserver that stores reports.
type PassRecorder struct {
	mu      sync.Mutex
	reports []cron.PassReport
}

// Compile-time interface check.
var _ cron.PassObserver = (*PassRecorder)(nil)

// ObservePass implements cron.PassObserver.
func (r *PassRecorder) ObservePass(p cron.PassReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, p)
}

// Reports returns a copy of recorded reports.
func (r *PassRecorder) Reports() []cron.PassReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]cron.PassReport(nil), r.reports...)
}
