// Package watchtest provides test doubles for the watch package.
package watchtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/flemzord/sitewatch/internal/watch"
)

// MemoryStore is an in-memory watch.Store. Each *Func field, when set,
// replaces the default behavior of the matching method.
type MemoryStore struct {
	LoadJobsFunc        func(ctx context.Context) ([]watch.Job, error)
	CreateJobFunc       func(ctx context.Context, def watch.Definition) (watch.Job, error)
	UpdateJobActiveFunc func(ctx context.Context, guildID, name string, active bool) error
	KnownItemsFunc      func(ctx context.Context, guildID, name string) (map[string]struct{}, error)
	SaveNewItemsFunc    func(ctx context.Context, guildID, name string, items []string) error

	mu     sync.Mutex
	jobs   []watch.Job
	seen   map[watch.Key][]string
	nextID int
	saves  int
}

// Compile-time interface check.
var _ watch.Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store seeded with jobs.
func NewMemoryStore(jobs ...watch.Job) *MemoryStore {
	return &MemoryStore{
		jobs: append([]watch.Job(nil), jobs...),
		seen: make(map[watch.Key][]string),
	}
}

// LoadJobs implements watch.Store.
func (s *MemoryStore) LoadJobs(ctx context.Context) ([]watch.Job, error) {
	if s.LoadJobsFunc != nil {
		return s.LoadJobsFunc(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]watch.Job(nil), s.jobs...), nil
}

// CreateJob implements watch.Store.
func (s *MemoryStore) CreateJob(ctx context.Context, def watch.Definition) (watch.Job, error) {
	if s.CreateJobFunc != nil {
		return s.CreateJobFunc(ctx, def)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.GuildID == def.GuildID && j.Name == def.Name {
			return watch.Job{}, watch.ErrDuplicateJob
		}
	}
	s.nextID++
	job := watch.Job{
		ID:        fmt.Sprintf("job-%d", s.nextID),
		GuildID:   def.GuildID,
		Name:      def.Name,
		URL:       def.URL,
		Selector:  def.Selector,
		ChannelID: def.ChannelID,
		Interval:  def.Interval,
		Active:    def.IsActive(),
		CreatedAt: time.Now().UTC(),
	}
	s.jobs = append(s.jobs, job)
	return job, nil
}

// UpdateJobActive implements watch.Store.
func (s *MemoryStore) UpdateJobActive(ctx context.Context, guildID, name string, active bool) error {
	if s.UpdateJobActiveFunc != nil {
		return s.UpdateJobActiveFunc(ctx, guildID, name, active)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.jobs {
		if s.jobs[i].GuildID == guildID && s.jobs[i].Name == name {
			s.jobs[i].Active = active
			return nil
		}
	}
	return watch.ErrJobNotFound
}

// KnownItems implements watch.Store.
func (s *MemoryStore) KnownItems(ctx context.Context, guildID, name string) (map[string]struct{}, error) {
	if s.KnownItemsFunc != nil {
		return s.KnownItemsFunc(ctx, guildID, name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	known := make(map[string]struct{})
	for _, v := range s.seen[watch.Key{GuildID: guildID, Name: name}] {
		known[v] = struct{}{}
	}
	return known, nil
}

// SaveNewItems implements watch.Store.
func (s *MemoryStore) SaveNewItems(ctx context.Context, guildID, name string, items []string) error {
	if s.SaveNewItemsFunc != nil {
		return s.SaveNewItemsFunc(ctx, guildID, name, items)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := watch.Key{GuildID: guildID, Name: name}
	s.seen[key] = append(s.seen[key], items...)
	s.saves++
	return nil
}

// Seed marks items as already seen for a job.
func (s *MemoryStore) Seed(guildID, name string, items ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := watch.Key{GuildID: guildID, Name: name}
	s.seen[key] = append(s.seen[key], items...)
}

// Seen returns a copy of the items recorded for a job.
func (s *MemoryStore) Seen(guildID, name string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.seen[watch.Key{GuildID: guildID, Name: name}]...)
}

// SaveCount returns the number of successful SaveNewItems calls.
func (s *MemoryStore) SaveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// Job returns the persisted copy of a job.
func (s *MemoryStore) Job(guildID, name string) (watch.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.GuildID == guildID && j.Name == name {
			return j, true
		}
	}
	return watch.Job{}, false
}

// MockFetcher is a configurable watch.Fetcher. Items maps a URL to the
// items returned for it; Errors maps a URL to a returned error.
type MockFetcher struct {
	FetchFunc func(ctx context.Context, url, selector string) ([]string, error)

	mu     sync.Mutex
	items  map[string][]string
	errs   map[string]error
	calls  []string
	onCall func(url string)
}

// Compile-time interface check.
var _ watch.Fetcher = (*MockFetcher)(nil)

// NewMockFetcher creates an empty MockFetcher.
func NewMockFetcher() *MockFetcher {
	return &MockFetcher{
		items: make(map[string][]string),
		errs:  make(map[string]error),
	}
}

// SetItems configures the items returned for url.
func (f *MockFetcher) SetItems(url string, items ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[url] = items
	delete(f.errs, url)
}

// SetError configures the error returned for url.
func (f *MockFetcher) SetError(url string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[url] = err
}

// OnCall registers a hook invoked at the start of every fetch.
func (f *MockFetcher) OnCall(fn func(url string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onCall = fn
}

// FetchItems implements watch.Fetcher.
func (f *MockFetcher) FetchItems(ctx context.Context, url, selector string) ([]string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	hook := f.onCall
	items, err := f.items[url], f.errs[url]
	f.mu.Unlock()

	if hook != nil {
		hook(url)
	}
	if f.FetchFunc != nil {
		return f.FetchFunc(ctx, url, selector)
	}
	if err != nil {
		return nil, err
	}
	return append([]string(nil), items...), nil
}

// Calls returns the URLs fetched so far, in order.
func (f *MockFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// SentMessage is a notification recorded by MockNotifier.
type SentMessage struct {
	ChannelID string
	Text      string
}

// MockNotifier records sent notifications.
type MockNotifier struct {
	SendFunc func(ctx context.Context, channelID, text string) error

	mu   sync.Mutex
	sent []SentMessage
}

// Compile-time interface check.
var _ watch.Notifier = (*MockNotifier)(nil)

// Send implements watch.Notifier.
func (n *MockNotifier) Send(ctx context.Context, channelID, text string) error {
	if n.SendFunc != nil {
		if err := n.SendFunc(ctx, channelID, text); err != nil {
			return err
		}
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, SentMessage{ChannelID: channelID, Text: text})
	return nil
}

// Sent returns a copy of all delivered messages.
func (n *MockNotifier) Sent() []SentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]SentMessage(nil), n.sent...)
}

// Reset clears recorded messages.
func (n *MockNotifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = nil
}
