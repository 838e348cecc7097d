package store

import (
	"context"
	"math"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/xhad/hexauthor/internal/models"
)

// Memory is a SectionStore kept in process memory. It is used when no
// database is configured and in tests.
type Memory struct {
	mu         sync.RWMutex
	sections   map[string][]models.Section
	embeddings map[string][]float32
	embed      func(ctx context.Context, texts []string) ([][]float32, error)
}

func NewMemory() *Memory {
	return &Memory{
		sections:   make(map[string][]models.Section),
		embeddings: make(map[string][]float32),
	}
}

// WithEmbedder makes BulkCreate store embeddings so Similar can rank sections.
func (m *Memory) WithEmbedder(embed func(ctx context.Context, texts []string) ([][]float32, error)) *Memory {
	m.embed = embed
	return m
}

func (m *Memory) BulkCreate(ctx context.Context, workspaceID, sourceLabel string, sections []models.SectionInput) ([]models.Section, error) {
	inputs, err := validateBulk(workspaceID, sections)
	if err != nil {
		return nil, err
	}

	var vectors [][]float32
	if m.embed != nil {
		texts := make([]string, len(inputs))
		for i, in := range inputs {
			texts[i] = in.Content
		}
		if vectors, err = m.embed(ctx, texts); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	created := make([]models.Section, 0, len(inputs))
	for _, in := range inputs {
		created = append(created, models.Section{
			ID:          newSectionID(),
			WorkspaceID: workspaceID,
			SourceLabel: sourceLabel,
			Name:        in.Name,
			Content:     in.Content,
			Tags:        in.Tags,
			CreatedAt:   now,
		})
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sections[workspaceID] = append(m.sections[workspaceID], created...)
	for i, s := range created {
		if i < len(vectors) {
			m.embeddings[s.ID] = vectors[i]
		}
	}
	return created, nil
}

func (m *Memory) ListSections(ctx context.Context, workspaceID string) ([]models.Section, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.sections[workspaceID]), nil
}

func (m *Memory) SearchTags(ctx context.Context, query string, limit int) ([]string, error) {
	m.mu.RLock()
	seen := make(map[string]bool)
	var tags []string
	for _, sections := range m.sections {
		for _, s := range sections {
			for _, tag := range s.Tags {
				if !seen[tag] {
					seen[tag] = true
					tags = append(tags, tag)
				}
			}
		}
	}
	m.mu.RUnlock()

	return rankTags(tags, query, limit), nil
}

// Similar ranks the workspace's sections by cosine distance to embedding.
// Sections stored without an embedding are ignored.
func (m *Memory) Similar(ctx context.Context, workspaceID string, embedding []float32, limit int) ([]models.Section, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type scored struct {
		section  models.Section
		distance float64
	}
	var candidates []scored
	for _, s := range m.sections[workspaceID] {
		vec, ok := m.embeddings[s.ID]
		if !ok || len(vec) != len(embedding) {
			continue
		}
		candidates = append(candidates, scored{section: s, distance: cosineDistance(vec, embedding)})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]models.Section, len(candidates))
	for i, c := range candidates {
		out[i] = c.section
	}
	return out, nil
}

func (m *Memory) Close() {}

func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
