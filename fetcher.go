package wheretogo

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Source is the remote data source events are fetched from. Implementations
// should return a *TransportError when the call fails and an empty list when
// the response is well formed but holds no events.
type Source interface {
	Fetch(ctx context.Context, start, end time.Time, q Query) ([]Event, error)
}

// Filter narrows an event list. It receives the query the events were
// fetched with.
type Filter interface {
	Apply(events []Event, q Query) []Event
}

// FilterFunc adapts a plain function to the Filter interface.
type FilterFunc func(events []Event, q Query) []Event

func (f FilterFunc) Apply(events []Event, q Query) []Event {
	return f(events, q)
}

// Fetcher fetches events from a Source, caching raw results by query and
// passing them through caller supplied filters.
type Fetcher struct {
	source Source
	cache  Cache
	logger *slog.Logger

	sf singleflight.Group

	c Config
}

// GetEvents returns the events between start and end matching q, after
// applying filters in order. start and end may be anything ParseTime
// accepts.
//
// The process follows these steps:
// 1. Normalizes the date range and builds the cache key
// 2. Returns the cached list on a hit
// 3. Fetches from the source on a miss and caches the result
// 4. Applies each filter to the output of the previous one.
//
// Errors returned by the source are passed through unchanged.
func (f *Fetcher) GetEvents(ctx context.Context, start, end any, q Query, filters ...Filter) ([]Event, error) {
	r, err := NewInterval(start, end)
	if err != nil {
		return nil, err
	}

	query := f.c.Query.Merge(q)

	var args []string
	if n, ok := f.source.(interface{ Name() string }); ok {
		args = append(args, n.Name())
	}

	key, err := NewKey(r.Start, r.End, query, args...)
	if err != nil {
		return nil, err
	}
	k := key.String()

	logger := f.logger.With("request_id", uuid.NewString(), "key", k)

	events, err := f.load(ctx, logger, k, r, query)
	if err != nil {
		return nil, err
	}

	for _, filter := range filters {
		events = filter.Apply(events, query)
	}

	logger.DebugContext(ctx, "events returned", "count", len(events))

	return events, nil
}

func (f *Fetcher) load(ctx context.Context, logger *slog.Logger, k string, r Interval, q Query) ([]Event, error) {
	if f.cache == nil {
		return f.source.Fetch(ctx, r.Start, r.End, q)
	}

	// concurrent misses for one key share a single fetch. The shared work
	// outlives the caller that started it, so one caller giving up does not
	// fail the others.
	shared := context.WithoutCancel(ctx)
	ch := f.sf.DoChan(k, func() (any, error) {
		return f.lookup(shared, logger, k, r, q)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}

	if res.Err != nil {
		return nil, res.Err
	}

	if res.Shared {
		logger.DebugContext(ctx, "joined in-flight fetch")
	}

	// the cached slice must not be shared with filters
	events := res.Val.([]Event)
	return append([]Event(nil), events...), nil
}

func (f *Fetcher) lookup(ctx context.Context, logger *slog.Logger, k string, r Interval, q Query) ([]Event, error) {
	events, err := f.cache.Get(ctx, k)
	if err == nil {
		logger.DebugContext(ctx, "cache item found", "count", len(events))
		return events, nil
	}

	if errors.Is(err, ErrNotFound) {
		logger.DebugContext(ctx, "cache item not found")
	} else {
		logger.WarnContext(ctx, "error reading cache, fetching from source", "error", err)
	}

	events, err = f.source.Fetch(ctx, r.Start, r.End, q)
	if err != nil {
		return nil, err
	}

	if cacheErr := f.cache.Set(ctx, k, events); cacheErr != nil {
		logger.WarnContext(ctx, "error caching events", "error", cacheErr)
	}

	return events, nil
}

// New creates a Fetcher reading from source and caching in cache.
//
// If cache is nil every call goes to the source.
// If opts is nil, DefaultConfig is used.
// If the 'logger' is nil, a no-op logger writing to io.Discard will be used.
func New(
	source Source,
	cache Cache,
	opts *Config,
	logger *slog.Logger,
) *Fetcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c := Config{}
	if opts == nil {
		c = DefaultConfig()
	} else {
		c = *opts
	}

	return &Fetcher{source: source, cache: cache, logger: logger, c: c}
}
