package types

import (
	"context"

	"github.com/xhad/hexauthor/internal/models"
)

// Core interfaces
type SectionStore interface {
	BulkCreate(ctx context.Context, workspaceID, sourceLabel string, sections []models.SectionInput) ([]models.Section, error)
	ListSections(ctx context.Context, workspaceID string) ([]models.Section, error)
	Similar(ctx context.Context, workspaceID string, embedding []float32, limit int) ([]models.Section, error)
	TagSearcher
	Close()
}

type TagSearcher interface {
	SearchTags(ctx context.Context, query string, limit int) ([]string, error)
}

type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}
