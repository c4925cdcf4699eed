// Package cache holds recently read consent snapshots for a bounded time.
// Entries older than the TTL are treated as absent.
package cache

import "time"

// DefaultTTL bounds how stale a cached decision may be.
const DefaultTTL = 5 * time.Minute

// Stats reports cache effectiveness since construction or the last Clear.
type Stats struct {
	Size    int     `json:"size"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

func hitRate(hits, misses uint64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
