package repository

import (
	"context"
	"errors"
	"time"

	"github.com/pidb/catalog-api/internal/models"
	appErrors "github.com/pidb/catalog-api/pkg/errors"
)

const sessionKeyPrefix = "session:"

// SessionRepository persists SessionState between requests.
type SessionRepository struct {
	cache *CacheRepository
	ttl   time.Duration
}

func NewSessionRepository(cache *CacheRepository, ttl time.Duration) *SessionRepository {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &SessionRepository{cache: cache, ttl: ttl}
}

func (r *SessionRepository) Get(ctx context.Context, id string) (*models.SessionState, error) {
	var state models.SessionState
	if err := r.cache.Get(ctx, sessionKeyPrefix+id, &state); err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	state.Filter = state.Filter.Normalize()
	return &state, nil
}

// Save stores state and refreshes its expiry.
func (r *SessionRepository) Save(ctx context.Context, state models.SessionState) error {
	return r.cache.Set(ctx, sessionKeyPrefix+state.ID, state, r.ttl)
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	return r.cache.Delete(ctx, sessionKeyPrefix+id)
}
