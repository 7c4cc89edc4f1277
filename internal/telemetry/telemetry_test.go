package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestSetup_Disabled(t *testing.T) {
	p, err := Setup(context.Background(), Config{ServiceName: "sitewatch"})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if p.Enabled() {
		t.Error("provider without endpoint should be disabled")
	}

	_, span := p.Tracer("test").Start(context.Background(), "noop")
	if span.SpanContext().IsValid() {
		t.Error("no-op tracer produced a valid span context")
	}
	span.End()

	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestSetup_ExportsOnShutdown(t *testing.T) {
	var (
		requests atomic.Int32
		path     atomic.Value
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		path.Store(r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	p, err := Setup(context.Background(), Config{
		Endpoint:    srv.URL,
		ServiceName: "sitewatch-test",
		SampleRatio: 1,
	})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if !p.Enabled() {
		t.Fatal("provider should be enabled")
	}

	_, span := p.Tracer("test").Start(context.Background(), "job.run")
	if !span.SpanContext().IsValid() {
		t.Error("span context should be valid")
	}
	span.End()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	if requests.Load() == 0 {
		t.Fatal("collector received no export request")
	}
	if got := path.Load(); got != defaultTracesPath {
		t.Errorf("export path = %v, want %s", got, defaultTracesPath)
	}
}

func TestExporterOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		endpoint string
		wantErr  bool
	}{
		{"http://collector:4318", false},
		{"https://collector:4318/custom/traces", false},
		{"collector:4318", false},
		{"grpc://collector:4317", true},
		{"http://[::1", true},
	}
	for _, tt := range tests {
		_, err := exporterOptions(Config{Endpoint: tt.endpoint})
		if (err != nil) != tt.wantErr {
			t.Errorf("exporterOptions(%q) error = %v, wantErr %v", tt.endpoint, err, tt.wantErr)
		}
	}
}
