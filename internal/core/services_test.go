package core_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/flemzord/sitewatch/internal/core"
	"github.com/flemzord/sitewatch/internal/watch"
	"github.com/flemzord/sitewatch/modules/store/sqlite"
)

func TestAppContext_StoreServiceFromModule(t *testing.T) {
	t.Parallel()

	dataDir := t.TempDir()
	ctx := core.NewAppContext(slog.New(slog.NewTextHandler(io.Discard, nil)), dataDir)

	mod := &sqlite.Module{}
	if err := mod.Provision(ctx.ForModule("store.sqlite")); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	t.Cleanup(func() { _ = mod.Stop(context.Background()) })

	store, err := core.ServiceAs[watch.Store](ctx, watch.StoreService)
	if err != nil {
		t.Fatalf("ServiceAs[watch.Store]: %v", err)
	}
	jobs, err := store.LoadJobs(context.Background())
	if err != nil {
		t.Fatalf("LoadJobs: %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("fresh store has %d jobs", len(jobs))
	}

	if _, err := os.Stat(filepath.Join(dataDir, "sitewatch.db")); err != nil {
		t.Errorf("database not created under the data dir: %v", err)
	}
	if _, err := core.ServiceAs[watch.Fetcher](ctx, watch.StoreService); err == nil {
		t.Error("expected type mismatch for the store service")
	}
}
