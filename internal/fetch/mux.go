package fetch

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/flemzord/sitewatch/internal/watch"
)

// Backend is a fetcher that owns a selector prefix. The empty prefix
// marks the default backend.
type Backend interface {
	watch.Fetcher
	SelectorPrefix() string
}

// ServiceName returns the AppContext service name for a fetcher module.
func ServiceName(name string) string {
	return "fetcher." + name
}

// Mux routes FetchItems to the backend whose prefix starts the selector,
// passing the selector with the prefix removed. Selectors without a known
// prefix go to the default backend. It implements watch.Fetcher.
type Mux struct {
	mu       sync.RWMutex
	backends map[string]watch.Fetcher
}

var _ watch.Fetcher = (*Mux)(nil)

// NewMux creates an empty Mux.
func NewMux() *Mux {
	return &Mux{backends: make(map[string]watch.Fetcher)}
}

// Handle registers b under its selector prefix.
func (m *Mux) Handle(b Backend) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prefix := b.SelectorPrefix()
	if _, exists := m.backends[prefix]; exists {
		return fmt.Errorf("fetch: duplicate backend for prefix %q", prefix)
	}
	m.backends[prefix] = b
	return nil
}

// Prefixes returns the registered prefixes, longest first.
func (m *Mux) Prefixes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.prefixesLocked()
}

func (m *Mux) prefixesLocked() []string {
	out := make([]string, 0, len(m.backends))
	for p := range m.backends {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b string) int {
		if len(a) != len(b) {
			return len(b) - len(a)
		}
		return strings.Compare(a, b)
	})
	return out
}

// FetchItems implements watch.Fetcher.
func (m *Mux) FetchItems(ctx context.Context, url, selector string) ([]string, error) {
	m.mu.RLock()
	var (
		backend watch.Fetcher
		rest    string
	)
	for _, p := range m.prefixesLocked() {
		if strings.HasPrefix(selector, p) {
			backend, rest = m.backends[p], strings.TrimPrefix(selector, p)
			break
		}
	}
	m.mu.RUnlock()

	if backend == nil {
		return nil, fmt.Errorf("fetch: no backend for selector %q", selector)
	}
	return backend.FetchItems(ctx, url, rest)
}
