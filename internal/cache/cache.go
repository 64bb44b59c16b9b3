// Package cache memoizes composed responses in front of the classify-retrieve
// path. The cache is a pure performance layer: disabling it must never change
// what a query answers, only how fast.
package cache

import (
	"fmt"
	"time"

	"github.com/inkrouter/ink-router/internal/compose"
	"github.com/inkrouter/ink-router/internal/history"
	"github.com/inkrouter/ink-router/internal/pkg/hash"
)

// Metrics is the interface for recording cache metrics. It decouples the
// cache from the metrics package.
type Metrics interface {
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
	UpdateCacheSize(cacheType string, size int)
}

// Cache stores composed responses by context-aware key.
type Cache interface {
	// Get returns a cached response and whether it was present and fresh.
	Get(key string) (compose.Response, bool)

	// Set stores a response under key.
	Set(key string, resp compose.Response)

	// Stats returns current cache statistics.
	Stats() Stats

	// Clear drops all entries.
	Clear()

	// Close releases cache resources.
	Close() error
}

// Stats holds cache statistics.
type Stats struct {
	Size    int   `json:"size"`
	MaxSize int   `json:"max_size"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// HitRate returns hits/(hits+misses), or 0 before any lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Key builds the cache key from the normalized query plus a digest of the
// last n conversation turns, so a differently-contextualized follow-up never
// gets a stale context-dependent answer.
func Key(normalized string, turns []history.Turn, n int) string {
	recent := history.Tail(turns, n)
	parts := make([]string, 0, len(recent)+1)
	parts = append(parts, normalized)
	for _, t := range recent {
		parts = append(parts, fmt.Sprintf("%s:%s:%s", t.Role, t.Pipeline, t.Text))
	}
	return hash.Digest(parts...)
}

// TTL profiles operators pick by name. Aggressive caches longest and is for
// stable corpora; conservative keeps answers barely long enough to absorb
// repeat questions inside one conversation.
const (
	ProfileAggressive   = "aggressive"
	ProfileModerate     = "moderate"
	ProfileConservative = "conservative"
)

// ProfileTTL maps a profile name to its TTL. Unknown names get the moderate
// profile.
func ProfileTTL(profile string) time.Duration {
	switch profile {
	case ProfileAggressive:
		return time.Hour
	case ProfileConservative:
		return 5 * time.Minute
	default:
		return 15 * time.Minute
	}
}
