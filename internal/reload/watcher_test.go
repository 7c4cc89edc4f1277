package reload

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/flemzord/sitewatch/internal/config"
)

func TestWatcher_DetectsChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("initial"), 0o644); err != nil {
		t.Fatalf("writing initial file: %v", err)
	}

	w := NewWatcher(WatcherConfig{
		Path:         path,
		PollInterval: 50 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	// Wait for the watcher to read the initial modtime.
	time.Sleep(100 * time.Millisecond)

	// Modify the file.
	if err := os.WriteFile(path, []byte("modified"), 0o644); err != nil {
		t.Fatalf("writing modified file: %v", err)
	}

	select {
	case <-w.Changes():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for file change event")
	}
}

func TestWatcher_Stop(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}

	w := NewWatcher(WatcherConfig{
		Path:         path,
		PollInterval: 50 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)

	// Stop should return promptly.
	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
		// OK
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return in time")
	}
}

func TestWatcher_ContextCancellation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}

	w := NewWatcher(WatcherConfig{
		Path:         path,
		PollInterval: 50 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)

	// Cancel the context.
	cancel()

	// Stop should still work after context cancellation.
	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
		// OK
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after context cancel")
	}
}

func TestWatcher_StopBeforeStart(t *testing.T) {
	w := NewWatcher(WatcherConfig{
		Path:         "/any/path",
		PollInterval: 50 * time.Millisecond,
	})

	// Stop before Start should not deadlock.
	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
		// OK
	case <-time.After(2 * time.Second):
		t.Fatal("Stop before Start deadlocked")
	}
}

func TestWatcher_MissingFile(t *testing.T) {
	w := NewWatcher(WatcherConfig{
		Path:         "/nonexistent/file.yaml",
		PollInterval: 50 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	// Should not emit any events for a missing file.
	select {
	case <-w.Changes():
		t.Error("unexpected change for a missing file")
	case <-ctx.Done():
	}
}

func TestWatcher_IgnoresTouch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("same"), 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}

	w := NewWatcher(WatcherConfig{Path: path, PollInterval: 20 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	time.Sleep(60 * time.Millisecond)
	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	select {
	case <-w.Changes():
		t.Error("unexpected change after touching the file")
	case <-ctx.Done():
	}
}

func TestWatcher_SeedJobAdded(t *testing.T) {
	const base = `version: "1"
jobs:
  - guild_id: g1
    name: news
    url: https://example.com/news
    selector: "article h2 a"
    channel_id: "telegram:42"
`
	path := filepath.Join(t.TempDir(), "sitewatch.yaml")
	if err := os.WriteFile(path, []byte(base), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	w := NewWatcher(WatcherConfig{Path: path, PollInterval: 20 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	time.Sleep(60 * time.Millisecond)

	updated := base + `  - guild_id: g1
    name: blog
    url: https://example.com/blog
    selector: ".post a"
    channel_id: "telegram:42"
    interval: 5
`
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("rewriting config: %v", err)
	}

	select {
	case <-w.Changes():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the new seed job")
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Jobs) != 2 {
		t.Fatalf("jobs = %d, want 2", len(cfg.Jobs))
	}
	if got := cfg.Jobs[1]; got.Name != "blog" || got.Interval != 5 {
		t.Errorf("added job = %+v", got)
	}
}
