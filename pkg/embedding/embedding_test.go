package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 2, 3}, []float32{2, 4, 6}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 1}, []float32{-1, -1}), 1e-9)
	assert.Equal(t, 0.0, Cosine([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 2}))
}

func TestDisabledEmbedder(t *testing.T) {
	_, err := Disabled{}.Embed(context.Background(), "q")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewGeminiEmbedder(context.Background(), "", "text-embedding-004")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
