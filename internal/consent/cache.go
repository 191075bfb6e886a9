package consent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// noRecord is cached for recipients without a record so that default-allow
// lookups also avoid the backing store.
const noRecord = "-"

// CachedStore is a Redis read-through cache in front of another Store.
// Upserts write through to the backing store and refresh the cache entry.
type CachedStore struct {
	next   Store
	client redis.Cmdable
	ttl    time.Duration
	log    zerolog.Logger
}

// NewCachedStore wraps next with a Redis cache whose entries expire after ttl.
func NewCachedStore(next Store, client redis.Cmdable, ttl time.Duration, log zerolog.Logger) *CachedStore {
	return &CachedStore{next: next, client: client, ttl: ttl, log: log}
}

func cacheKey(tenantID, phone string) string {
	return "consent:" + tenantID + ":" + normalizePhone(phone)
}

// LoadRecipient implements Store. Cache failures fall back to the backing
// store; they are logged but never change the answer.
func (s *CachedStore) LoadRecipient(ctx context.Context, tenantID, phone string) (*Record, error) {
	key := cacheKey(tenantID, phone)

	val, err := s.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		if val == noRecord {
			return nil, nil
		}
		var rec Record
		if jsonErr := json.Unmarshal([]byte(val), &rec); jsonErr == nil {
			return &rec, nil
		}
		s.log.Warn().Str("key", key).Msg("discarding undecodable consent cache entry")
	case errors.Is(err, redis.Nil):
		// miss
	default:
		s.log.Warn().Err(err).Str("key", key).Msg("consent cache read failed")
	}

	rec, err := s.next.LoadRecipient(ctx, tenantID, phone)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, rec)
	return rec, nil
}

// UpsertRecipient implements Store.
func (s *CachedStore) UpsertRecipient(ctx context.Context, rec Record) (*Record, error) {
	saved, err := s.next.UpsertRecipient(ctx, rec)
	if err != nil {
		return nil, err
	}

	key := cacheKey(rec.TenantID, rec.Phone)
	if err := s.client.Del(ctx, key).Err(); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("consent cache invalidation failed")
		return saved, nil
	}
	s.store(ctx, key, saved)
	return saved, nil
}

func (s *CachedStore) store(ctx context.Context, key string, rec *Record) {
	val := noRecord
	if rec != nil {
		data, err := json.Marshal(rec)
		if err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("encode consent cache entry")
			return
		}
		val = string(data)
	}
	if err := s.client.Set(ctx, key, val, s.ttl).Err(); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("consent cache write failed")
	}
}

// NewStore builds the configured consent store. kind selects "memory" or
// "postgres"; a non-nil redis client enables the read-through cache.
func NewStore(kind string, postgres *PostgresStore, client redis.Cmdable, ttl time.Duration, log zerolog.Logger) (Store, error) {
	var base Store
	switch kind {
	case "memory", "":
		base = NewMemoryStore()
	case "postgres":
		if postgres == nil {
			return nil, fmt.Errorf("consent: postgres store requested without a database")
		}
		base = postgres
	default:
		return nil, fmt.Errorf("consent: unknown store type %q", kind)
	}

	if client != nil {
		return NewCachedStore(base, client, ttl, log), nil
	}
	return base, nil
}
