package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/pidb/catalog-api/internal/models"
)

// SemanticIndexRepository serves the precomputed semantic index from a JSON
// file. The file is read once, on first use.
type SemanticIndexRepository struct {
	path string

	once sync.Once
	docs []models.SemanticDocument
	err  error
}

func NewSemanticIndexRepository(path string) *SemanticIndexRepository {
	return &SemanticIndexRepository{path: path}
}

// Documents returns every indexed document.
func (r *SemanticIndexRepository) Documents(ctx context.Context) ([]models.SemanticDocument, error) {
	r.once.Do(func() {
		r.docs, r.err = loadSemanticIndex(r.path)
	})
	return r.docs, r.err
}

func loadSemanticIndex(path string) ([]models.SemanticDocument, error) {
	if path == "" {
		return nil, fmt.Errorf("semantic index path not configured")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read semantic index: %w", err)
	}
	var file models.SemanticIndexFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode semantic index: %w", err)
	}

	dim := file.Dimension
	docs := make([]models.SemanticDocument, 0, len(file.Documents))
	for i, doc := range file.Documents {
		if len(doc.Embedding) == 0 {
			continue
		}
		if dim == 0 {
			dim = len(doc.Embedding)
		}
		if len(doc.Embedding) != dim {
			return nil, fmt.Errorf("semantic index document %d has dimension %d, want %d", i, len(doc.Embedding), dim)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
