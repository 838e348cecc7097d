package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	vectors [][]float32
	err     error
	calls   int
}

func (s *stubClient) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	s.calls++
	return s.vectors, s.err
}

func TestNewEmbedderWithConfig(t *testing.T) {
	emb, err := NewEmbedderWithConfig(EmbedderConfig{BaseURL: "http://localhost:1234"})
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text:latest", emb.Model())
}

func TestEmbedder_CreateEmbedding(t *testing.T) {
	client := &stubClient{vectors: [][]float32{{1, 0}, {0, 1}}}
	emb := &Embedder{client: client}

	vectors, err := emb.CreateEmbedding(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vectors, 2)

	none, err := emb.CreateEmbedding(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, none)
	assert.Equal(t, 1, client.calls)

	_, err = emb.CreateEmbedding(context.Background(), []string{"a", "b", "c"})
	assert.Error(t, err, "vector count must match input count")
}

func TestEmbedder_EmbedQuery(t *testing.T) {
	emb := &Embedder{client: &stubClient{vectors: [][]float32{{0.5, 0.5}}}}

	v, err := emb.EmbedQuery(context.Background(), "cloud")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5}, v)

	boom := errors.New("down")
	emb = &Embedder{client: &stubClient{err: boom}}
	_, err = emb.EmbedQuery(context.Background(), "cloud")
	assert.ErrorIs(t, err, boom)
}
