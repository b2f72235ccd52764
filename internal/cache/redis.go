package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/rueidis"
	"github.com/robalyx/roprofile/internal/types"
	"go.uber.org/zap"
)

const (
	// BackendRedis is the backend name for the shared Redis cache.
	BackendRedis = "redis"

	// KeyPrefix namespaces profile entries in Redis.
	KeyPrefix = "profile:"

	scanBatchSize = 500
)

// Redis stores profiles in Redis with server-side expiry.
type Redis struct {
	client rueidis.Client
	hits   atomic.Uint64
	misses atomic.Uint64
	logger *zap.Logger
}

// NewRedis creates a cache backed by the given client. The client is owned by the caller.
func NewRedis(client rueidis.Client, logger *zap.Logger) *Redis {
	return &Redis{
		client: client,
		logger: logger.Named("redis_cache"),
	}
}

// Get returns the entry for key. Expired entries are already gone on the server side.
func (r *Redis) Get(ctx context.Context, key string) (*types.Profile, bool) {
	payload, err := r.client.Do(ctx, r.client.B().Get().Key(KeyPrefix+key).Build()).AsBytes()
	if err != nil {
		if !rueidis.IsRedisNil(err) {
			r.logger.Warn("Failed to read cache entry", zap.String("key", key), zap.Error(err))
		}
		r.misses.Add(1)
		return nil, false
	}

	var profile types.Profile
	if err := sonic.Unmarshal(payload, &profile); err != nil {
		r.logger.Warn("Dropping undecodable cache entry", zap.String("key", key), zap.Error(err))
		r.client.Do(ctx, r.client.B().Del().Key(KeyPrefix+key).Build())
		r.misses.Add(1)
		return nil, false
	}

	r.hits.Add(1)
	return &profile, true
}

// Set stores value under key with the given TTL, rounded up to whole seconds.
func (r *Redis) Set(ctx context.Context, key string, value *types.Profile, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}

	payload, err := sonic.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}

	ttl = max(ttl.Round(time.Second), time.Second)
	cmd := r.client.B().Set().Key(KeyPrefix + key).Value(rueidis.BinaryString(payload)).Ex(ttl).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to store profile: %w", err)
	}

	return nil
}

// Delete removes key and reports whether it was present.
func (r *Redis) Delete(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Do(ctx, r.client.B().Del().Key(KeyPrefix+key).Build()).AsInt64()
	if err != nil {
		return false, fmt.Errorf("failed to delete profile: %w", err)
	}
	return n > 0, nil
}

// Clear removes every profile entry and returns how many were removed.
func (r *Redis) Clear(ctx context.Context) (int, error) {
	keys, err := r.scan(ctx)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	n, err := r.client.Do(ctx, r.client.B().Del().Key(keys...).Build()).AsInt64()
	if err != nil {
		return 0, fmt.Errorf("failed to clear profiles: %w", err)
	}
	return int(n), nil
}

// Keys lists stored keys without the namespace prefix.
func (r *Redis) Keys(ctx context.Context) ([]string, error) {
	keys, err := r.scan(ctx)
	if err != nil {
		return nil, err
	}

	for i, key := range keys {
		keys[i] = strings.TrimPrefix(key, KeyPrefix)
	}
	return keys, nil
}

// Stats reports entry counts and this process's hit ratios.
func (r *Redis) Stats(ctx context.Context) (Stats, error) {
	keys, err := r.scan(ctx)
	if err != nil {
		return Stats{}, err
	}

	return Stats{
		Backend: BackendRedis,
		Entries: len(keys),
		Hits:    r.hits.Load(),
		Misses:  r.misses.Load(),
	}, nil
}

// Close is a no-op since the client is owned by the redis manager.
func (r *Redis) Close() {}

// scan walks the keyspace for prefixed keys.
func (r *Redis) scan(ctx context.Context) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)

	for {
		entry, err := r.client.Do(ctx, r.client.B().Scan().Cursor(cursor).
			Match(KeyPrefix+"*").Count(scanBatchSize).Build()).AsScanEntry()
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, err
			}
			return nil, fmt.Errorf("failed to scan profiles: %w", err)
		}

		keys = append(keys, entry.Elements...)
		if entry.Cursor == 0 {
			return keys, nil
		}
		cursor = entry.Cursor
	}
}
