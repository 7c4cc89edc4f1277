// Package watch implements the change-detection engine: the job model, the
// item differ, the write-through job registry, and the per-job runner with
// its failure state machine.
package watch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// AppContext service names under which modules publish the engine's
// collaborators.
const (
	StoreService    = "watch.store"
	FetcherService  = "watch.fetcher"
	NotifierService = "watch.notifier"
	RegistryService = "watch.registry"
)

// Job is a configured recurring watch task over one resource.
// Identity is GuildID + Name.
type Job struct {
	ID        string    `json:"id"`
	GuildID   string    `json:"guild_id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Selector  string    `json:"selector"`
	ChannelID string    `json:"channel_id"`
	Interval  int       `json:"interval"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Key returns the identity of the job.
func (j Job) Key() Key {
	return Key{GuildID: j.GuildID, Name: j.Name}
}

// Key identifies a job within the registry and the store.
type Key struct {
	GuildID string
	Name    string
}

// String implements fmt.Stringer.
func (k Key) String() string {
	return k.GuildID + "/" + k.Name
}

// Definition holds the user-supplied fields of a new job. Storage assigns
// the remaining fields (ID, CreatedAt).
type Definition struct {
	GuildID   string `json:"guild_id" yaml:"guild_id"`
	Name      string `json:"name" yaml:"name"`
	URL       string `json:"url" yaml:"url"`
	Selector  string `json:"selector" yaml:"selector"`
	ChannelID string `json:"channel_id" yaml:"channel_id"`
	Interval  int    `json:"interval" yaml:"interval"`
	Active    *bool  `json:"active,omitempty" yaml:"active,omitempty"`
}

// IsActive reports the initial active state. Unset means active.
func (d Definition) IsActive() bool {
	return d.Active == nil || *d.Active
}

// Validate checks that every required field is present and that the
// interval is at least one tick.
func (d Definition) Validate() error {
	var errs []error
	if strings.TrimSpace(d.GuildID) == "" {
		errs = append(errs, errors.New("guild_id is required"))
	}
	if strings.TrimSpace(d.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if strings.TrimSpace(d.URL) == "" {
		errs = append(errs, errors.New("url is required"))
	}
	if strings.TrimSpace(d.Selector) == "" {
		errs = append(errs, errors.New("selector is required"))
	}
	if strings.TrimSpace(d.ChannelID) == "" {
		errs = append(errs, errors.New("channel_id is required"))
	}
	if d.Interval < 1 {
		errs = append(errs, fmt.Errorf("interval must be >= 1, got %d", d.Interval))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}
	return nil
}

// Store is the persistence collaborator for jobs and seen items.
type Store interface {
	// LoadJobs returns every persisted job in creation order.
	LoadJobs(ctx context.Context) ([]Job, error)

	// CreateJob persists a new job and returns it with storage-assigned
	// fields populated. Returns ErrDuplicateJob if the identity is taken.
	CreateJob(ctx context.Context, def Definition) (Job, error)

	// UpdateJobActive sets the active flag of an existing job.
	UpdateJobActive(ctx context.Context, guildID, name string, active bool) error

	// KnownItems returns the set of items already seen for a job.
	KnownItems(ctx context.Context, guildID, name string) (map[string]struct{}, error)

	// SaveNewItems records items as seen for a job. It must be durable
	// when it returns nil.
	SaveNewItems(ctx context.Context, guildID, name string, items []string) error
}

// Fetcher is the content-extraction collaborator. It returns the items
// matched by selector on the resource at url, in document order.
//
// An unrecoverable retrieval failure is reported as *ResourceFetchError;
// any other error is treated as transient.
type Fetcher interface {
	FetchItems(ctx context.Context, url, selector string) ([]string, error)
}

// Notifier delivers a text message to a destination channel.
type Notifier interface {
	Send(ctx context.Context, channelID, text string) error
}
