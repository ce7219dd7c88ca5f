package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/dgduncan/wheretogo"
	"github.com/dgduncan/wheretogo/caches"
)

var (
	// ErrPingFailed is returned if the initial ping to the database returns an error
	ErrPingFailed = errors.New("ping returned error")
)

var (
	//go:embed create_table.sql
	queryCreateTable string
	//go:embed delete_expired.sql
	queryDeleteExpired string
	//go:embed delete_item.sql
	queryDeleteItem string
	//go:embed delete_stale.sql
	queryDeleteStale string
	//go:embed fetch_by_key.sql
	queryFetchByKey string
	//go:embed upsert_item.sql
	queryUpsertItem string
)

// Config defines the configuration options for the PostgreSQL cache implementation.
type Config struct {
	// TTL is how long a cached event list stays readable after it was
	// written. Zero uses caches.DefaultExpiredDuration.
	TTL time.Duration

	// DeleteExpiredItems enables automatic cleanup of expired cache entries
	// through a background task.
	DeleteExpiredItems bool

	// ExpiredTaskTimer defines the interval at which the cleanup task runs.
	// Shorter durations may impact database performance.
	ExpiredTaskTimer time.Duration
}

// Cache implements the wheretogo.Cache interface using PostgreSQL as the storage backend.
// Event lists are stored JSON encoded alongside the time they were written.
type Cache struct {
	db *sql.DB

	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// Get retrieves the event list stored under k. An entry at least TTL old is
// deleted and reported as wheretogo.ErrNotFound.
func (p *Cache) Get(ctx context.Context, k string) ([]wheretogo.Event, error) {
	stmt, err := p.db.PrepareContext(ctx, queryFetchByKey)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	var response []byte
	var createdAt time.Time
	if err := stmt.QueryRowContext(ctx, k).Scan(&response, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, wheretogo.ErrNotFound
		}
		return nil, err
	}

	if caches.Expired(createdAt, p.now(), p.ttl) {
		p.logger.DebugContext(ctx, "evicting expired cache item", "key", k, "created_at", createdAt.Format(time.RFC3339))
		// only the row we judged stale; a concurrent Set may have replaced it
		if _, err := p.db.ExecContext(ctx, queryDeleteStale, k, createdAt); err != nil {
			return nil, err
		}
		return nil, wheretogo.ErrNotFound
	}

	var events []wheretogo.Event
	if err := json.Unmarshal(response, &events); err != nil {
		return nil, err
	}

	return events, nil
}

// Set stores the event list under k, replacing any previous entry.
func (p *Cache) Set(ctx context.Context, k string, v []wheretogo.Event) error {
	stmt, err := p.db.PrepareContext(ctx, queryUpsertItem)
	if err != nil {
		return err
	}
	defer stmt.Close()

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	_, err = stmt.ExecContext(ctx, k, b, p.now().UTC().Truncate(time.Microsecond))
	return err
}

// Delete removes the entry stored under k. It returns wheretogo.ErrNotFound
// if there is none.
func (p *Cache) Delete(ctx context.Context, k string) error {
	res, err := p.db.ExecContext(ctx, queryDeleteItem, k)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return wheretogo.ErrNotFound
	}

	return nil
}

func createTable(ctx context.Context, db *sql.DB) error {
	stmt, err := db.PrepareContext(ctx, queryCreateTable)
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx)
	if err != nil {
		return err
	}

	return nil
}

func (p *Cache) deleteExpiredItems(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, queryDeleteExpired, p.now().UTC().Add(-p.ttl))
	return err
}

func (p *Cache) expiredTask(ctx context.Context, interval time.Duration) {
	t := time.NewTimer(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.DebugContext(ctx, "expired item task stopped")
			return
		case <-t.C:
			if err := p.deleteExpiredItems(ctx); err != nil {
				p.logger.WarnContext(ctx, "error deleting expired items", "error", err)
			}
			_ = t.Reset(interval)
		}
	}
}

// New creates a new PostgreSQL cache instance with the provided configuration.
// It verifies the database connection, creates the necessary table structure, and
// optionally starts the cleanup task for expired items, which runs until ctx is done.
//
// Returns an error if:
// - The database handle is nil
// - The database connection test fails
// - Table creation fails
func New(ctx context.Context, db *sql.DB, config *Config, logger *slog.Logger) (*Cache, error) {
	if db == nil {
		return nil, caches.ValidationError{
			Reason: "nil database",
		}
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, errors.Join(ErrPingFailed, err)
	}

	if err := createTable(ctx, db); err != nil {
		return nil, err
	}

	c := &Cache{
		db: db,

		ttl:    caches.DefaultExpiredDuration,
		now:    time.Now,
		logger: logger,
	}

	if config != nil {
		if config.TTL > 0 {
			c.ttl = config.TTL
		}

		if config.DeleteExpiredItems {
			interval := config.ExpiredTaskTimer
			if interval <= 0 {
				interval = caches.DefaultExpiredTaskTimer
			}
			go c.expiredTask(ctx, interval)
		}
	}

	return c, nil
}
