package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/flemzord/sitewatch/internal/watch"
)

// Store implements watch.Store on a SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ watch.Store = (*Store)(nil)

func (s *Store) timeNow() time.Time {
	if s.now != nil {
		return s.now().UTC()
	}
	return time.Now().UTC()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: ping: %w", err)
	}
	return nil
}

// LoadJobs returns every job in creation order.
func (s *Store) LoadJobs(ctx context.Context) ([]watch.Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guild_id, name, url, selector, channel_id, interval, active, created_at
		FROM jobs
		ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: load jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []watch.Job
	for rows.Next() {
		var (
			job          watch.Job
			createdAtStr string
		)
		if err := rows.Scan(
			&job.ID, &job.GuildID, &job.Name, &job.URL, &job.Selector,
			&job.ChannelID, &job.Interval, &job.Active, &createdAtStr,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scan job: %w", err)
		}
		job.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("sqlite: parse created_at of %s/%s: %w", job.GuildID, job.Name, err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate jobs: %w", err)
	}
	return jobs, nil
}

// CreateJob inserts a job with a fresh UUID and creation time. Returns
// watch.ErrDuplicateJob if guild and name are taken.
func (s *Store) CreateJob(ctx context.Context, def watch.Definition) (watch.Job, error) {
	job := watch.Job{
		ID:        uuid.NewString(),
		GuildID:   def.GuildID,
		Name:      def.Name,
		URL:       def.URL,
		Selector:  def.Selector,
		ChannelID: def.ChannelID,
		Interval:  def.Interval,
		Active:    def.IsActive(),
		CreatedAt: s.timeNow(),
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, guild_id, name, url, selector, channel_id, interval, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (guild_id, name) DO NOTHING`,
		job.ID, job.GuildID, job.Name, job.URL, job.Selector,
		job.ChannelID, job.Interval, job.Active,
		job.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return watch.Job{}, fmt.Errorf("sqlite: create job: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return watch.Job{}, fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if n == 0 {
		return watch.Job{}, fmt.Errorf("%w: %s", watch.ErrDuplicateJob, job.Key())
	}
	return job, nil
}

// UpdateJobActive sets the active flag. Returns watch.ErrJobNotFound if
// the job does not exist.
func (s *Store) UpdateJobActive(ctx context.Context, guildID, name string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE jobs SET active = ? WHERE guild_id = ? AND name = ?",
		active, guildID, name,
	)
	if err != nil {
		return fmt.Errorf("sqlite: update job: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s/%s", watch.ErrJobNotFound, guildID, name)
	}
	return nil
}

// KnownItems returns the set of items already recorded for a job.
func (s *Store) KnownItems(ctx context.Context, guildID, name string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT value FROM seen_links WHERE guild_id = ? AND job_name = ?",
		guildID, name,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: known items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	known := make(map[string]struct{})
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("sqlite: scan item: %w", err)
		}
		known[v] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate items: %w", err)
	}
	return known, nil
}

// SaveNewItems records items in one transaction. Items already recorded
// are ignored.
func (s *Store) SaveNewItems(ctx context.Context, guildID, name string, items []string) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT OR IGNORE INTO seen_links (guild_id, job_name, value, seen_at) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("sqlite: prepare: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	seenAt := s.timeNow().Format(time.RFC3339Nano)
	for _, item := range items {
		if _, err := stmt.ExecContext(ctx, guildID, name, item, seenAt); err != nil {
			return fmt.Errorf("sqlite: save item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// CountItems returns the number of items recorded for a job.
func (s *Store) CountItems(ctx context.Context, guildID, name string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM seen_links WHERE guild_id = ? AND job_name = ?",
		guildID, name,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: count items: %w", err)
	}
	return n, nil
}
