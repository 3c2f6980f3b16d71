package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeIndex(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestSemanticIndexRepositoryLoads(t *testing.T) {
	path := writeIndex(t, `{"model":"text-embedding-004","documents":[
		{"embedding":[1,0],"program":"PharmD","code":"FARM 7101","title":"Farmacología","text":"Curso de farmacología"},
		{"embedding":[],"program":"PharmD","code":"SKIP"},
		{"embedding":[0,1],"program":"PhD","code":"PHD 801","title":"Investigación","text":"Métodos"}
	]}`)

	docs, err := NewSemanticIndexRepository(path).Documents(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "PHD 801", docs[1].Code)
}

func TestSemanticIndexRepositoryRejectsMixedDimensions(t *testing.T) {
	path := writeIndex(t, `{"documents":[{"embedding":[1,0]},{"embedding":[1,0,0]}]}`)
	_, err := NewSemanticIndexRepository(path).Documents(context.Background())
	assert.Error(t, err)
}

func TestSemanticIndexRepositoryMissingFile(t *testing.T) {
	repo := NewSemanticIndexRepository(filepath.Join(t.TempDir(), "absent.json"))
	_, err := repo.Documents(context.Background())
	assert.Error(t, err)
}
