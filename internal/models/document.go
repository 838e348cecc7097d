package models

import "time"

// Document is one ingested content source. Content is the canonical text:
// every chunk offset is measured against it, so it is never rewritten after
// ingestion.
type Document struct {
	ID       string                 `json:"id"`
	URL      string                 `json:"url,omitempty"`
	Title    string                 `json:"title"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Range is a half-open character interval [Start, End).
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (r Range) Len() int {
	return r.End - r.Start
}

// Overlaps reports whether two half-open intervals share at least one character.
func (r Range) Overlaps(o Range) bool {
	return r.Start < o.End && r.End > o.Start
}

// Chunk is a user-confirmed, tagged excerpt of a Document.
type Chunk struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	Tag        string `json:"tag"`
	StartIndex int    `json:"startIndex"`
	EndIndex   int    `json:"endIndex"`
}

func (c Chunk) Range() Range {
	return Range{Start: c.StartIndex, End: c.EndIndex}
}

// Run is one piece of a highlighted render. Plain runs have no ChunkID.
type Run struct {
	Text       string `json:"text"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
	ChunkID    string `json:"chunkId,omitempty"`
	Tag        string `json:"tag,omitempty"`
	Selectable bool   `json:"selectable"`
}

func (r Run) IsChunk() bool {
	return r.ChunkID != ""
}

// SectionInput is the shape accepted by the section bulk-create operation.
type SectionInput struct {
	Content string   `json:"content"`
	Name    string   `json:"name,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// Section is a stored excerpt inside a client workspace.
type Section struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspaceId"`
	SourceLabel string    `json:"sourceLabel"`
	Name        string    `json:"name"`
	Content     string    `json:"content"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"createdAt"`
}

type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// IngestJob tracks the extraction of one content source.
type IngestJob struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Status    JobStatus `json:"status"`
	Error     string    `json:"error,omitempty"`
	Document  *Document `json:"document,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (j IngestJob) Finished() bool {
	return j.Status == JobDone || j.Status == JobFailed
}
