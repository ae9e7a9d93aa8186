// Package cache provides the key-value store the backtester persists its
// trading-calendar and price-resolution data in. The interface is injectable
// so tests run against an in-memory store while production uses a JSON file.
package cache

import "time"

// NoExpiry marks an entry as permanent. Historical facts (trading calendars,
// settled prices, confirmed closed days) never change and are cached forever.
const NoExpiry time.Duration = 0

// Store is a minimal TTL-aware key-value store. Implementations must be safe
// for concurrent use; the backtester itself is single-threaded but the
// results dashboard reads stats while a run is in flight.
type Store interface {
	// Get decodes the entry for key into value and reports whether a live
	// (non-expired) entry existed.
	Get(key string, value any) (bool, error)

	// Put stores value under key. A ttl of NoExpiry never expires; any
	// positive ttl makes the entry invisible to Get after it elapses.
	Put(key string, value any, ttl time.Duration) error

	// Delete removes the entry for key if present.
	Delete(key string) error

	// Stats returns counters accumulated since the store was opened.
	Stats() Stats
}

// Stats summarizes cache effectiveness for the -cache-stats report.
type Stats struct {
	Entries   int   `json:"entries"`
	Permanent int   `json:"permanent"`
	Expiring  int   `json:"expiring"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Expired   int64 `json:"expired"`
}
