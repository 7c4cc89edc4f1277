// Package metrics exports Prometheus metrics for job runs and scheduler
// passes. A Collector is both a watch.RunObserver and a cron.PassObserver.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/flemzord/sitewatch/internal/cron"
	"github.com/flemzord/sitewatch/internal/watch"
)

const namespace = "sitewatch"

// AppContext service names.
const (
	RegistryService  = "metrics.registry"
	CollectorService = "metrics.collector"
)

// Compile-time interface guards.
var (
	_ watch.RunObserver = (*Collector)(nil)
	_ cron.PassObserver = (*Collector)(nil)
)

// Collector records run and pass observations.
type Collector struct {
	runs         *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	newItems     prometheus.Counter
	disabled     prometheus.Counter
	ticks        *prometheus.CounterVec
	passDuration prometheus.Histogram
	jobsDue      prometheus.Gauge

	// Snapshot counters for the JSON status endpoint.
	totalRuns     atomic.Int64
	totalFailures atomic.Int64
	totalItems    atomic.Int64
	totalDisabled atomic.Int64
	totalTicks    atomic.Int64
	skippedTicks  atomic.Int64
	lastPass      atomic.Int64 // unix nanoseconds
}

// New creates a Collector and registers its metrics with reg.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Job runs by outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_run_duration_seconds",
			Help:      "Duration of one job run.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		newItems: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "new_items_total",
			Help:      "Items reported as new.",
		}),
		disabled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_disabled_total",
			Help:      "Jobs disabled after a resource fetch failure.",
		}),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Scheduler ticks by result (ran or skipped).",
		}, []string{"result"}),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pass_duration_seconds",
			Help:      "Duration of one scheduler pass.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}),
		jobsDue: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_due",
			Help:      "Jobs selected by the most recent tick.",
		}),
	}

	for _, m := range []prometheus.Collector{
		c.runs, c.runDuration, c.newItems, c.disabled,
		c.ticks, c.passDuration, c.jobsDue,
	} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// NewRegistry returns a registry carrying the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ObserveRun implements watch.RunObserver.
func (c *Collector) ObserveRun(r watch.Result) {
	outcome := r.Outcome()
	c.runs.WithLabelValues(outcome).Inc()
	c.runDuration.WithLabelValues(outcome).Observe(r.Duration.Seconds())
	c.newItems.Add(float64(len(r.NewItems)))

	c.totalRuns.Add(1)
	c.totalItems.Add(int64(len(r.NewItems)))
	if r.Failure != watch.FailureNone {
		c.totalFailures.Add(1)
	}
	if r.Disabled {
		c.disabled.Inc()
		c.totalDisabled.Add(1)
	}
}

// ObservePass implements cron.PassObserver.
func (c *Collector) ObservePass(p cron.PassReport) {
	c.totalTicks.Add(1)
	if p.Skipped {
		c.ticks.WithLabelValues("skipped").Inc()
		c.skippedTicks.Add(1)
		return
	}
	c.ticks.WithLabelValues("ran").Inc()
	c.jobsDue.Set(float64(p.Due))
	c.passDuration.Observe(p.Duration.Seconds())
	c.lastPass.Store(time.Now().UnixNano())
}

// Snapshot is a serializable point-in-time view of the counters.
type Snapshot struct {
	Runs         int64     `json:"runs"`
	Failures     int64     `json:"failures"`
	NewItems     int64     `json:"new_items"`
	Disabled     int64     `json:"disabled"`
	Ticks        int64     `json:"ticks"`
	SkippedTicks int64     `json:"skipped_ticks"`
	LastPass     time.Time `json:"last_pass,omitzero"`
}

// Snapshot returns the counters accumulated since start.
func (c *Collector) Snapshot() Snapshot {
	s := Snapshot{
		Runs:         c.totalRuns.Load(),
		Failures:     c.totalFailures.Load(),
		NewItems:     c.totalItems.Load(),
		Disabled:     c.totalDisabled.Load(),
		Ticks:        c.totalTicks.Load(),
		SkippedTicks: c.skippedTicks.Load(),
	}
	if ns := c.lastPass.Load(); ns != 0 {
		s.LastPass = time.Unix(0, ns).UTC()
	}
	return s
}
