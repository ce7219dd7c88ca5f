package caches

import "time"

var (
	// DefaultExpiredDuration the default expired duration
	DefaultExpiredDuration = 24 * time.Hour

	// DefaultExpiredTaskTimer is the default duration of the expired task timer
	DefaultExpiredTaskTimer = 10 * time.Minute
)

// Expired reports whether an entry written at timestamp is stale at now
// under ttl. An entry exactly ttl old is stale, so a zero ttl expires every
// entry on its first read.
func Expired(timestamp, now time.Time, ttl time.Duration) bool {
	return now.Sub(timestamp) >= ttl
}
