// Package reload keeps the job registry in step with the configuration
// file: it detects edits by polling and on SIGHUP, and creates the seed jobs
// that the new file adds.
package reload

import (
	"context"
	"crypto/sha256"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

const defaultPollInterval = 5 * time.Second

// WatcherConfig configures the file watcher.
type WatcherConfig struct {
	// Path is the file to watch.
	Path string

	// PollInterval is how often to check for changes. Defaults to 5 seconds.
	PollInterval time.Duration
}

func (c WatcherConfig) pollIntervalOrDefault() time.Duration {
	if c.PollInterval > 0 {
		return c.PollInterval
	}
	return defaultPollInterval
}

// Watcher polls a file and emits a signal when its content changes.
// Touching the file without changing it is not a change.
type Watcher struct {
	cfg     WatcherConfig
	changes chan struct{}
	stop    chan struct{}
	stopped chan struct{}

	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewWatcher creates a file watcher. Call Start to begin polling.
func NewWatcher(cfg WatcherConfig) *Watcher {
	return &Watcher{
		cfg:     cfg,
		changes: make(chan struct{}, 1),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Start begins polling. Only the first call has an effect.
func (w *Watcher) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		w.started.Store(true)
		go w.poll(ctx)
	})
}

// Changes returns the change channel. Bursts of edits between two reads
// collapse into one signal.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Stop stops polling and waits for the poller to exit. Safe to call more
// than once and before Start.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stop)
	})
	if w.started.Load() {
		<-w.stopped
	}
}

func (w *Watcher) poll(ctx context.Context) {
	defer close(w.stopped)

	ticker := time.NewTicker(w.cfg.pollIntervalOrDefault())
	defer ticker.Stop()

	last, lastOK := w.fingerprint()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			current, ok := w.fingerprint()
			if !ok {
				// Editors often replace the file; wait for it to reappear.
				continue
			}
			if lastOK && current == last {
				continue
			}
			last, lastOK = current, true
			select {
			case w.changes <- struct{}{}:
			default:
			}
		}
	}
}

func (w *Watcher) fingerprint() ([sha256.Size]byte, bool) {
	raw, err := os.ReadFile(w.cfg.Path)
	if err != nil {
		return [sha256.Size]byte{}, false
	}
	return sha256.Sum256(raw), true
}
