package store

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/xhad/hexauthor/internal/models"
	"github.com/xhad/hexauthor/internal/types"
)

type PostgresConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
	BatchSize  int
	// Embedder is optional; without it sections are stored unembedded and
	// Similar returns nothing.
	Embedder types.Embedder
}

// Postgres stores workspace sections in PostgreSQL with pgvector embeddings.
type Postgres struct {
	config PostgresConfig
	pool   *pgxpool.Pool
}

var identifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func NewWithConfig(ctx context.Context, config PostgresConfig) (*Postgres, error) {
	if config.TableName == "" {
		config.TableName = "sections"
	}
	if !identifier.MatchString(config.TableName) {
		return nil, fmt.Errorf("%w: table name %q", ErrInvalidInput, config.TableName)
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768 // nomic-embed-text
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	ps := &Postgres{
		config: config,
		pool:   pool,
	}

	if err := ps.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return ps, nil
}

func (ps *Postgres) initialize(ctx context.Context) error {
	if _, err := ps.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	for _, stmt := range schema(ps.config.TableName, ps.config.VectorDim) {
		if _, err := ps.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

func schema(table string, dim int) []string {
	return []string{
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			workspace_id TEXT NOT NULL,
			source_label TEXT NOT NULL DEFAULT '',
			name TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			tags TEXT[] NOT NULL DEFAULT '{}',
			embedding vector(%d),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, table, dim),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_workspace_idx ON %s (workspace_id, created_at)`, table, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_tags_idx ON %s USING GIN (tags)`, table, table),
		fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_embedding_idx
		ON %s
		USING hnsw (embedding vector_cosine_ops)`, table, table),
	}
}

// BulkCreate stores all sections in one transaction. Nothing is retried: a
// failure leaves the workspace untouched and is returned to the caller.
func (ps *Postgres) BulkCreate(ctx context.Context, workspaceID, sourceLabel string, sections []models.SectionInput) ([]models.Section, error) {
	inputs, err := validateBulk(workspaceID, sections)
	if err != nil {
		return nil, err
	}

	vectors, err := ps.embed(ctx, inputs)
	if err != nil {
		return nil, err
	}

	tx, err := ps.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, workspace_id, source_label, name, content, tags, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ps.config.TableName)

	now := time.Now().UTC()
	created := make([]models.Section, 0, len(inputs))
	for i, in := range inputs {
		section := models.Section{
			ID:          newSectionID(),
			WorkspaceID: workspaceID,
			SourceLabel: sourceLabel,
			Name:        in.Name,
			Content:     in.Content,
			Tags:        in.Tags,
			CreatedAt:   now,
		}

		var embedding any
		if vectors != nil {
			embedding = pgvector.NewVector(vectors[i])
		}

		_, err := tx.Exec(ctx, stmt,
			section.ID,
			section.WorkspaceID,
			section.SourceLabel,
			section.Name,
			section.Content,
			section.Tags,
			embedding,
			section.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert section %d: %w", i, err)
		}
		created = append(created, section)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return created, nil
}

// embed creates one vector per input, BatchSize texts per request.
func (ps *Postgres) embed(ctx context.Context, inputs []models.SectionInput) ([][]float32, error) {
	if ps.config.Embedder == nil {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(inputs))
	for i := 0; i < len(inputs); i += ps.config.BatchSize {
		end := min(i+ps.config.BatchSize, len(inputs))

		texts := make([]string, 0, end-i)
		for _, in := range inputs[i:end] {
			texts = append(texts, in.Content)
		}

		batch, err := ps.config.Embedder.CreateEmbedding(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to create embeddings: %w", err)
		}
		if len(batch) != len(texts) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d sections", len(batch), len(texts))
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (ps *Postgres) ListSections(ctx context.Context, workspaceID string) ([]models.Section, error) {
	query := fmt.Sprintf(`
		SELECT id, workspace_id, source_label, name, content, tags, created_at
		FROM %s
		WHERE workspace_id = $1
		ORDER BY created_at, id`,
		ps.config.TableName)

	return ps.querySections(ctx, query, workspaceID)
}

func (ps *Postgres) Similar(ctx context.Context, workspaceID string, embedding []float32, limit int) ([]models.Section, error) {
	if limit <= 0 {
		limit = 5
	}

	query := fmt.Sprintf(`
		SELECT id, workspace_id, source_label, name, content, tags, created_at
		FROM %s
		WHERE workspace_id = $1 AND embedding IS NOT NULL
		ORDER BY embedding <=> $2
		LIMIT $3`,
		ps.config.TableName)

	return ps.querySections(ctx, query, workspaceID, pgvector.NewVector(embedding), limit)
}

func (ps *Postgres) querySections(ctx context.Context, query string, args ...any) ([]models.Section, error) {
	rows, err := ps.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sections: %w", err)
	}
	defer rows.Close()

	var sections []models.Section
	for rows.Next() {
		var s models.Section
		err := rows.Scan(
			&s.ID,
			&s.WorkspaceID,
			&s.SourceLabel,
			&s.Name,
			&s.Content,
			&s.Tags,
			&s.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		sections = append(sections, s)
	}

	return sections, rows.Err()
}

// SearchTags returns distinct tags containing query, prefix matches first.
func (ps *Postgres) SearchTags(ctx context.Context, query string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = DefaultTagLimit
	}
	pattern := escapeLike(strings.ToLower(strings.TrimSpace(query)))

	stmt := fmt.Sprintf(`
		SELECT tag FROM (
			SELECT DISTINCT unnest(tags) AS tag FROM %s
		) t
		WHERE lower(tag) LIKE '%%' || $1 || '%%'
		ORDER BY (lower(tag) LIKE $1 || '%%') DESC, tag COLLATE "C"
		LIMIT $2`,
		ps.config.TableName)

	rows, err := ps.pool.Query(ctx, stmt, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

func (ps *Postgres) Close() {
	if ps.pool != nil {
		ps.pool.Close()
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
