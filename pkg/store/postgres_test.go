package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/hexauthor/internal/models"
)

type fixedEmbedder struct {
	dim int
}

func (e fixedEmbedder) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, e.dim)
		v[len(t)%e.dim] = 1
		out[i] = v
	}
	return out, nil
}

func getTestConfig(t *testing.T) PostgresConfig {
	t.Helper()
	conn := os.Getenv("TEST_DATABASE_URL")
	if conn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	return PostgresConfig{
		ConnString: conn,
		TableName:  fmt.Sprintf("test_sections_%d", time.Now().UnixNano()),
		VectorDim:  4,
		BatchSize:  2,
		Embedder:   fixedEmbedder{dim: 4},
	}
}

func TestPostgres_RejectsBadTableName(t *testing.T) {
	_, err := NewWithConfig(context.Background(), PostgresConfig{TableName: "sections; DROP TABLE x"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSchema(t *testing.T) {
	stmts := schema("sections", 768)
	require.Len(t, stmts, 4)
	assert.Contains(t, stmts[0], "embedding vector(768)")
	assert.Contains(t, stmts[0], "tags TEXT[]")
	assert.Contains(t, stmts[3], "USING hnsw (embedding vector_cosine_ops)")
	assert.NotContains(t, stmts[3], "ivfflat")
}

func TestPostgres(t *testing.T) {
	config := getTestConfig(t)
	ctx := context.Background()

	s, err := NewWithConfig(ctx, config)
	require.NoError(t, err)
	defer func() {
		s.pool.Exec(ctx, "DROP TABLE IF EXISTS "+config.TableName)
		s.Close()
	}()

	created, err := s.BulkCreate(ctx, "ws-1", "brochure.pdf", []models.SectionInput{
		{Content: "abc", Name: "one", Tags: []string{"marketing"}},
		{Content: "abcd", Name: "two", Tags: []string{"market-research", "sales"}},
		{Content: "abcde", Name: "three", Tags: []string{"sales"}},
	})
	require.NoError(t, err)
	require.Len(t, created, 3)

	listed, err := s.ListSections(ctx, "ws-1")
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.ElementsMatch(t, []string{"one", "two", "three"}, []string{listed[0].Name, listed[1].Name, listed[2].Name})

	tags, err := s.SearchTags(ctx, "mark", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"market-research", "marketing"}, tags)

	similar, err := s.Similar(ctx, "ws-1", []float32{0, 0, 0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, similar, 1)
	assert.Equal(t, "abc", similar[0].Content)

	_, err = s.BulkCreate(ctx, "", "x", []models.SectionInput{{Content: "x"}})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
