package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pidb/catalog-api/pkg/tabular"
	"github.com/pidb/catalog-api/pkg/tabular/tabulartest"
)

var usersRef = tabular.TableRef{SpreadsheetID: "users", Sheet: "Usuarios"}

func newUserRepo() (*UserRepository, *tabulartest.Store) {
	store := tabulartest.New()
	store.Put(usersRef, [][]string{
		{"Usuario", "Contraseña", "Rol"},
		{"admin", "hash-a", "admin"},
		{"Ana", "hash-b", "editor"},
	})
	return NewUserRepository(store, usersRef), store
}

func TestFindByUsername(t *testing.T) {
	repo, _ := newUserRepo()

	user, err := repo.FindByUsername(context.Background(), "ana")
	require.NoError(t, err)
	assert.Equal(t, "Ana", user.Username)
	assert.Equal(t, "hash-b", user.PasswordHash)
	assert.Equal(t, "editor", user.Role)
	assert.Equal(t, 3, user.Row)

	_, err = repo.FindByUsername(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestUpdatePasswordHash(t *testing.T) {
	repo, store := newUserRepo()

	require.NoError(t, repo.UpdatePasswordHash(context.Background(), "Ana", "new-hash"))
	assert.Equal(t, "new-hash", store.Records(usersRef)[2][1])

	err := repo.UpdatePasswordHash(context.Background(), "ghost", "x")
	assert.ErrorIs(t, err, tabular.ErrRowNotFound)
}
