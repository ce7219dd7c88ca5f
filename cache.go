package wheretogo

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by a Cache when a key is absent or its entry has expired.
	ErrNotFound = errors.New("cache item not found")
)

// Cache stores fetched event lists by cache key. Implementations own the
// insertion timestamp of every entry and evict an entry on the read that
// finds it older than their configured time-to-live.
//
// Delete returns ErrNotFound when the key is absent.
type Cache interface {
	Get(ctx context.Context, k string) ([]Event, error)
	Set(ctx context.Context, k string, v []Event) error
	Delete(ctx context.Context, k string) error
}
