package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/pidb/catalog-api/pkg/errors"
)

// CacheRepository stores JSON values in Redis. Without a client it keeps
// values in process, which is enough for a single instance.
type CacheRepository struct {
	client *redis.Client
	logger *zap.Logger

	mu    sync.Mutex
	local map[string]localEntry
	now   func() time.Time
}

type localEntry struct {
	payload   []byte
	expiresAt time.Time
}

// NewCacheRepository constructs a cache repository. client may be nil.
func NewCacheRepository(client *redis.Client, logger *zap.Logger) *CacheRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	if client == nil {
		logger.Info("redis not configured, using in-process store")
	}
	return &CacheRepository{client: client, logger: logger, local: map[string]localEntry{}, now: time.Now}
}

// Get retrieves and unmarshals the value into dest, or returns ErrCacheMiss.
func (r *CacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	var raw []byte
	if r.client == nil {
		payload, ok := r.getLocal(key)
		if !ok {
			return appErrors.ErrCacheMiss
		}
		raw = payload
	} else {
		b, err := r.client.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return appErrors.ErrCacheMiss
			}
			return fmt.Errorf("redis get %s: %w", key, err)
		}
		raw = b
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("unmarshal cache value for %s: %w", key, err)
	}
	return nil
}

// Set marshals value and stores it with ttl. A zero ttl never expires.
func (r *CacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}

	if r.client == nil {
		r.setLocal(key, payload, ttl)
		return nil
	}
	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes key if present.
func (r *CacheRepository) Delete(ctx context.Context, key string) error {
	if r.client == nil {
		r.mu.Lock()
		delete(r.local, key)
		r.mu.Unlock()
		return nil
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", key, err)
	}
	return nil
}

// Ping reports whether the backing store is reachable.
func (r *CacheRepository) Ping(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying Redis connection if present.
func (r *CacheRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

func (r *CacheRepository) getLocal(key string) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.local[key]
	if !ok {
		return nil, false
	}
	if !entry.expiresAt.IsZero() && r.now().After(entry.expiresAt) {
		delete(r.local, key)
		return nil, false
	}
	return entry.payload, true
}

func (r *CacheRepository) setLocal(key string, payload []byte, ttl time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := localEntry{payload: payload}
	if ttl > 0 {
		entry.expiresAt = r.now().Add(ttl)
	}
	r.local[key] = entry
}
