package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/pidb/catalog-api/internal/models"
	"github.com/pidb/catalog-api/pkg/tabular"
)

// UserRepository reads and updates the credential worksheet.
type UserRepository struct {
	store tabular.Store
	ref   tabular.TableRef
}

func NewUserRepository(store tabular.Store, ref tabular.TableRef) *UserRepository {
	return &UserRepository{store: store, ref: ref}
}

// FindByUsername returns the user row, matching usernames case-insensitively.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	snap, err := r.store.LoadTable(ctx, r.ref)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	_, userHeader, ok := snap.Column(models.ColUsername)
	if !ok {
		return nil, ErrRecordNotFound
	}
	_, hashHeader, _ := snap.Column(models.ColPasswordHash)
	_, roleHeader, _ := snap.Column(models.ColRole)

	want := strings.TrimSpace(username)
	for _, row := range snap.Rows {
		if !strings.EqualFold(row.Get(userHeader), want) {
			continue
		}
		return &models.User{
			Username:     row.Get(userHeader),
			PasswordHash: row.Get(hashHeader),
			Role:         row.Get(roleHeader),
			Row:          row.Number,
		}, nil
	}
	return nil, ErrRecordNotFound
}

// UpdatePasswordHash overwrites the stored hash of username.
func (r *UserRepository) UpdatePasswordHash(ctx context.Context, username, hash string) error {
	err := r.store.WriteCell(ctx, r.ref, tabular.RowKey{Column: models.ColUsername, Value: username}, models.ColPasswordHash, hash)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	return nil
}
