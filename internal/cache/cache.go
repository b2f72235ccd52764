// Package cache stores aggregated profiles with a per-entry time to live.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/robalyx/roprofile/internal/types"
)

// ErrInvalidTTL is returned when an entry is stored with a non-positive TTL.
var ErrInvalidTTL = errors.New("ttl must be positive")

// Stats summarizes cache activity.
type Stats struct {
	Backend string `json:"backend"`
	Entries int    `json:"entries"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
}

// Cache maps normalized username keys to profiles.
//
// Get never returns an entry whose TTL has elapsed. Keys may include entries
// that have expired but have not yet been evicted.
type Cache interface {
	Get(ctx context.Context, key string) (*types.Profile, bool)
	Set(ctx context.Context, key string, value *types.Profile, ttl time.Duration) error
	Delete(ctx context.Context, key string) (bool, error)
	Clear(ctx context.Context) (int, error)
	Keys(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (Stats, error)
	Close()
}

// cloneProfile copies a profile so stored entries cannot be mutated by callers.
func cloneProfile(p *types.Profile) *types.Profile {
	if p == nil {
		return nil
	}

	c := *p
	c.PreviousUsernames = append(make([]string, 0, len(p.PreviousUsernames)), p.PreviousUsernames...)
	return &c
}
