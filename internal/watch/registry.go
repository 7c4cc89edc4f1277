package watch

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/flemzord/sitewatch/internal/security"
)

// Registry is the in-memory cache of all jobs, backed by a Store.
// It is loaded once at startup; afterwards every mutation writes through
// to the store before the in-memory list changes.
//
// Mutations are serialized by writeMu. Snapshots only take the read side
// of mu, so the scheduler never waits on store I/O.
type Registry struct {
	store  Store
	logger *slog.Logger
	audit  *security.AuditLogger

	writeMu sync.Mutex

	mu     sync.RWMutex
	jobs   []*Job
	loaded bool
}

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	Store  Store
	Logger *slog.Logger

	// Audit, if non-nil, receives one event per mutation.
	Audit *security.AuditLogger
}

// NewRegistry creates an empty, unloaded registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		store:  cfg.Store,
		logger: logger,
		audit:  cfg.Audit,
	}
}

// Load reads every persisted job into memory. It is meant to be called once
// at process start; a failure means the process cannot serve.
func (r *Registry) Load(ctx context.Context) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	jobs, err := r.store.LoadJobs(ctx)
	if err != nil {
		return fmt.Errorf("watch: load jobs: %w", err)
	}

	list := make([]*Job, 0, len(jobs))
	for i := range jobs {
		j := jobs[i]
		list = append(list, &j)
	}

	r.mu.Lock()
	r.jobs = list
	r.loaded = true
	r.mu.Unlock()

	r.logger.Info("watch: registry loaded", "jobs", len(list))
	return nil
}

// Create validates def, writes it through to the store, and appends the
// stored job. Nothing is appended if the write fails.
func (r *Registry) Create(ctx context.Context, def Definition) (Job, error) {
	if err := def.Validate(); err != nil {
		return Job{}, err
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if err := r.checkLoaded(); err != nil {
		return Job{}, err
	}
	key := Key{GuildID: def.GuildID, Name: def.Name}
	if _, ok := r.find(key); ok {
		return Job{}, fmt.Errorf("%w: %s", ErrDuplicateJob, key)
	}

	job, err := r.store.CreateJob(ctx, def)
	if err != nil {
		return Job{}, fmt.Errorf("watch: create job %s: %w", key, err)
	}

	r.mu.Lock()
	r.jobs = append(r.jobs, &job)
	r.mu.Unlock()

	r.logger.Info("watch: job created", "guild", job.GuildID, "job", job.Name, "interval", job.Interval)
	r.emit(security.EventJobCreate, job, job.URL)
	return job, nil
}

// SetActive writes the active flag through to the store and then updates
// the in-memory job in place.
func (r *Registry) SetActive(ctx context.Context, guildID, name string, active bool) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	if err := r.checkLoaded(); err != nil {
		return err
	}
	key := Key{GuildID: guildID, Name: name}
	if _, ok := r.find(key); !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, key)
	}

	if err := r.store.UpdateJobActive(ctx, guildID, name, active); err != nil {
		return fmt.Errorf("watch: update job %s: %w", key, err)
	}

	r.mu.Lock()
	job, _ := r.findLocked(key)
	job.Active = active
	snapshot := *job
	r.mu.Unlock()

	event := security.EventJobActivate
	if !active {
		event = security.EventJobDisable
	}
	r.logger.Info("watch: job active flag updated", "guild", guildID, "job", name, "active", active)
	r.emit(event, snapshot, strconv.FormatBool(active))
	return nil
}

// All returns a point-in-time copy of the jobs in creation order.
func (r *Registry) All() []Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Job, len(r.jobs))
	for i, j := range r.jobs {
		out[i] = *j
	}
	return out
}

// Get returns a copy of the job with the given identity.
func (r *Registry) Get(guildID, name string) (Job, bool) {
	return r.find(Key{GuildID: guildID, Name: name})
}

// Len returns the number of registered jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

func (r *Registry) checkLoaded() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.loaded {
		return ErrNotLoaded
	}
	return nil
}

func (r *Registry) find(key Key) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.findLocked(key)
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// findLocked must be called with mu held.
func (r *Registry) findLocked(key Key) (*Job, bool) {
	for _, j := range r.jobs {
		if j.GuildID == key.GuildID && j.Name == key.Name {
			return j, true
		}
	}
	return nil, false
}

func (r *Registry) emit(t security.EventType, job Job, detail string) {
	if r.audit == nil {
		return
	}
	r.audit.Log(security.AuditEvent{
		Type:      t,
		GuildID:   job.GuildID,
		JobName:   job.Name,
		ChannelID: job.ChannelID,
		Detail:    detail,
	})
}
