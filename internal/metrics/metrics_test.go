package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/flemzord/sitewatch/internal/cron"
	"github.com/flemzord/sitewatch/internal/watch"
)

func newTestCollector(t *testing.T) *Collector {
	t.Helper()
	c, err := New(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestObserveRun(t *testing.T) {
	t.Parallel()

	c := newTestCollector(t)
	key := watch.Key{GuildID: "g1", Name: "news"}

	c.ObserveRun(watch.Result{Job: key, NewItems: []string{"a", "b"}, Notified: true, Duration: time.Second})
	c.ObserveRun(watch.Result{Job: key, Notified: true})
	c.ObserveRun(watch.Result{Job: key, Failure: watch.FailureResourceFetch, Disabled: true, Err: errors.New("dead")})
	c.ObserveRun(watch.Result{Job: key, Failure: watch.FailureTransient, Err: errors.New("flaky")})

	tests := []struct {
		outcome string
		want    float64
	}{
		{"new_items", 1},
		{"no_new_items", 1},
		{"resource_fetch_failure", 1},
		{"transient_error", 1},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(c.runs.WithLabelValues(tt.outcome)); got != tt.want {
			t.Errorf("job_runs_total{outcome=%q} = %v, want %v", tt.outcome, got, tt.want)
		}
	}
	if got := testutil.ToFloat64(c.newItems); got != 2 {
		t.Errorf("new_items_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.disabled); got != 1 {
		t.Errorf("jobs_disabled_total = %v, want 1", got)
	}

	snap := c.Snapshot()
	if snap.Runs != 4 || snap.Failures != 2 || snap.NewItems != 2 || snap.Disabled != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestObservePass(t *testing.T) {
	t.Parallel()

	c := newTestCollector(t)
	c.ObservePass(cron.PassReport{Tick: 0, Due: 3, Ran: 3, Duration: 2 * time.Second})
	c.ObservePass(cron.PassReport{Tick: 1, Skipped: true})
	c.ObservePass(cron.PassReport{Tick: 2, Due: 1, Ran: 1})

	if got := testutil.ToFloat64(c.ticks.WithLabelValues("ran")); got != 2 {
		t.Errorf("ticks_total{result=ran} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.ticks.WithLabelValues("skipped")); got != 1 {
		t.Errorf("ticks_total{result=skipped} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.jobsDue); got != 1 {
		t.Errorf("jobs_due = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(c.passDuration); n != 1 {
		t.Errorf("pass_duration_seconds series = %d, want 1", n)
	}

	snap := c.Snapshot()
	if snap.Ticks != 3 || snap.SkippedTicks != 1 || snap.LastPass.IsZero() {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestExposition(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c, err := New(reg)
	if err != nil {
		t.Fatal(err)
	}
	c.ObserveRun(watch.Result{NewItems: []string{"x"}})

	expected := `
# HELP sitewatch_new_items_total Items reported as new.
# TYPE sitewatch_new_items_total counter
sitewatch_new_items_total 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "sitewatch_new_items_total"); err != nil {
		t.Error(err)
	}
}

func TestNew_DuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	if _, err := New(reg); err != nil {
		t.Fatal(err)
	}
	if _, err := New(reg); err == nil {
		t.Error("second registration on the same registry should fail")
	}
}

func TestNewRegistry(t *testing.T) {
	t.Parallel()

	families, err := NewRegistry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var found bool
	for _, f := range families {
		if f.GetName() == "go_goroutines" {
			found = true
		}
	}
	if !found {
		t.Error("go collector not registered")
	}
}
