package local

import (
	"context"
	"sync"
	"time"

	"github.com/dgduncan/wheretogo"
	"github.com/dgduncan/wheretogo/caches"
)

// Config defines the configuration options for the in-memory cache.
type Config struct {
	// TTL is how long an entry stays readable after its last write.
	// A zero TTL makes every entry stale on its first read.
	TTL time.Duration
}

type entry[V any] struct {
	value     V
	timestamp time.Time
}

// TimedCache is an in-memory key/value store whose entries remember when
// they were written. With a TTL configured, a read that finds an entry at
// least TTL old deletes it and reports wheretogo.ErrNotFound.
//
// Every operation, including the read-evaluate-evict sequence of Get, runs
// under one exclusive lock, so a TimedCache is safe for concurrent use.
type TimedCache[V any] struct {
	entries map[string]entry[V]

	ttl     time.Duration
	expires bool
	now     func() time.Time

	lock sync.Mutex
}

// Get returns the value stored under key.
func (tc *TimedCache[V]) Get(_ context.Context, key string) (V, error) {
	tc.lock.Lock()
	defer tc.lock.Unlock()

	var zero V

	e, found := tc.entries[key]
	if !found {
		return zero, wheretogo.ErrNotFound
	}

	if tc.expires && caches.Expired(e.timestamp, tc.now(), tc.ttl) {
		delete(tc.entries, key)
		return zero, wheretogo.ErrNotFound
	}

	return e.value, nil
}

// Set stores value under key stamped with the current time, replacing any
// previous entry.
func (tc *TimedCache[V]) Set(_ context.Context, key string, value V) error {
	tc.lock.Lock()
	defer tc.lock.Unlock()

	tc.entries[key] = entry[V]{value: value, timestamp: tc.now()}

	return nil
}

// Delete removes key. It returns wheretogo.ErrNotFound if key is absent.
func (tc *TimedCache[V]) Delete(_ context.Context, key string) error {
	tc.lock.Lock()
	defer tc.lock.Unlock()

	if _, found := tc.entries[key]; !found {
		return wheretogo.ErrNotFound
	}
	delete(tc.entries, key)

	return nil
}

// Len returns the number of stored entries, expired or not.
func (tc *TimedCache[V]) Len() int {
	tc.lock.Lock()
	defer tc.lock.Unlock()

	return len(tc.entries)
}

// New creates a TimedCache. A nil config disables expiry.
func New[V any](config *Config) *TimedCache[V] {
	return NewWithTimeFunc[V](config, time.Now)
}

// NewWithTimeFunc is New with an injected clock.
func NewWithTimeFunc[V any](config *Config, now func() time.Time) *TimedCache[V] {
	if now == nil {
		now = time.Now
	}

	tc := &TimedCache[V]{
		entries: make(map[string]entry[V]),
		now:     now,
	}

	if config != nil {
		tc.ttl = config.TTL
		tc.expires = true
	}

	return tc
}

// NewEventCache is New for the value type stored by wheretogo.Fetcher.
func NewEventCache(config *Config) *TimedCache[[]wheretogo.Event] {
	return New[[]wheretogo.Event](config)
}
