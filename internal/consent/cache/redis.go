package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"consentlake/internal/consent/models"
)

const (
	keyPrefix     = "consent:"
	versionPrefix = "consent_seen:"
)

// versionLayout sorts lexically in time order, which the set script relies on.
const versionLayout = "20060102150405.000000000"

// setIfNewer writes the snapshot unless a newer consent_timestamp was
// recorded for the user. The version key outlives Delete so purged users
// keep their watermark until it expires.
var setIfNewer = redis.NewScript(`
local seen = redis.call('GET', KEYS[2])
if seen and seen > ARGV[2] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

// Redis shares cached snapshots between server replicas. Expiry is delegated
// to Redis key TTLs.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewRedis builds a cache on an existing client; a non-positive ttl uses DefaultTTL.
func NewRedis(client redis.UniversalClient, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

// Keys for one user share a hash tag so the set script stays on one slot.
func key(userID string) string {
	return keyPrefix + "{" + userID + "}"
}

func versionKey(userID string) string {
	return versionPrefix + "{" + userID + "}"
}

func (r *Redis) Get(ctx context.Context, userID string) (*models.UserConsent, bool, error) {
	raw, err := r.client.Get(ctx, key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.misses.Add(1)
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get cached consent: %w", err)
	}
	var c models.UserConsent
	if err := json.Unmarshal(raw, &c); err != nil {
		// a corrupt entry is a miss; the store is authoritative
		r.misses.Add(1)
		_ = r.client.Del(ctx, key(userID)).Err()
		return nil, false, nil
	}
	r.hits.Add(1)
	return &c, true, nil
}

func (r *Redis) Set(ctx context.Context, consent *models.UserConsent) error {
	raw, err := json.Marshal(consent)
	if err != nil {
		return fmt.Errorf("marshal cached consent: %w", err)
	}
	keys := []string{key(consent.UserID), versionKey(consent.UserID)}
	version := consent.Timestamp.UTC().Format(versionLayout)
	if err := setIfNewer.Run(ctx, r.client, keys, raw, version, r.ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("set cached consent: %w", err)
	}
	return nil
}

// Delete removes the snapshot but leaves the version key in place.
func (r *Redis) Delete(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, key(userID)).Err(); err != nil {
		return fmt.Errorf("delete cached consent: %w", err)
	}
	return nil
}

// Clear removes every consent and version key. It walks the keyspace with
// SCAN so large caches do not block the server.
func (r *Redis) Clear(ctx context.Context) error {
	for _, prefix := range []string{keyPrefix, versionPrefix} {
		if err := r.deleteMatching(ctx, prefix+"*"); err != nil {
			return err
		}
	}
	r.hits.Store(0)
	r.misses.Store(0)
	return nil
}

func (r *Redis) deleteMatching(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 500).Result()
		if err != nil {
			return fmt.Errorf("scan cached consents: %w", err)
		}
		// keys may span slots on a cluster, so delete one at a time
		for _, k := range keys {
			if err := r.client.Del(ctx, k).Err(); err != nil {
				return fmt.Errorf("clear cached consents: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (r *Redis) Stats(ctx context.Context) (Stats, error) {
	size := 0
	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		size++
	}
	if err := iter.Err(); err != nil {
		return Stats{}, fmt.Errorf("count cached consents: %w", err)
	}
	hits, misses := r.hits.Load(), r.misses.Load()
	return Stats{Size: size, Hits: hits, Misses: misses, HitRate: hitRate(hits, misses)}, nil
}
