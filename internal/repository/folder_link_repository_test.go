package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pidb/catalog-api/internal/models"
	"github.com/pidb/catalog-api/pkg/tabular"
	"github.com/pidb/catalog-api/pkg/tabular/tabulartest"
)

func TestFolderLinkRepositoryLoadFiltersProgram(t *testing.T) {
	ref := tabular.TableRef{SpreadsheetID: "folders", Sheet: "PharmD"}
	store := tabulartest.New()
	store.Put(ref, [][]string{
		{"Codificación", "Programa", "CarpetaID"},
		{"FARM 7101", "PharmD", "abc123"},
		{"PHD 801", "PhD", "zzz"},
		{"FARM 7102", "", "def456"},
		{"FARM 7101", "PharmD", "later-duplicate"},
		{"FARM 7103", "PharmD", ""},
	})
	repo := NewFolderLinkRepository(store, map[models.Program]tabular.TableRef{models.ProgramPharmD: ref})

	links, err := repo.Load(context.Background(), models.ProgramPharmD)
	require.NoError(t, err)
	assert.Len(t, links, 2)
	assert.Equal(t, "abc123", links["FARM 7101"].FolderID)
	assert.Equal(t, "def456", links["FARM 7102"].FolderID)
	_, ok := links["PHD 801"]
	assert.False(t, ok)
}

func TestFolderLinkRepositoryUnconfiguredProgram(t *testing.T) {
	repo := NewFolderLinkRepository(tabulartest.New(), nil)
	links, err := repo.Load(context.Background(), models.ProgramPhD)
	assert.Error(t, err)
	assert.Empty(t, links)
}
