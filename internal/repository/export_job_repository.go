package repository

import (
	"context"
	"errors"
	"time"

	"github.com/pidb/catalog-api/internal/models"
	appErrors "github.com/pidb/catalog-api/pkg/errors"
)

const exportKeyPrefix = "export:"

// ExportJobRepository keeps export job records alongside sessions.
type ExportJobRepository struct {
	cache *CacheRepository
	ttl   time.Duration
}

func NewExportJobRepository(cache *CacheRepository, ttl time.Duration) *ExportJobRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ExportJobRepository{cache: cache, ttl: ttl}
}

func (r *ExportJobRepository) Save(ctx context.Context, job models.ExportJob) error {
	return r.cache.Set(ctx, exportKeyPrefix+job.ID, job, r.ttl)
}

func (r *ExportJobRepository) FindByID(ctx context.Context, id string) (*models.ExportJob, error) {
	var job models.ExportJob
	if err := r.cache.Get(ctx, exportKeyPrefix+id, &job); err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &job, nil
}
