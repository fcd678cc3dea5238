// Package knowledge implements the ingestion and retrieval engine:
// tenant-scoped chunks with pgvector embeddings in PostgreSQL, atomic
// per-source re-indexing, and cosine-similarity retrieval.
package knowledge

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// SourceType identifies where a chunk's content came from.
type SourceType string

const (
	// SourceTypeTicket marks chunks built from resolved support tickets.
	SourceTypeTicket SourceType = "ticket"
	// SourceTypeDocument marks chunks built from documentation pages.
	SourceTypeDocument SourceType = "document"
)

// Valid reports whether st is a known source type.
func (st SourceType) Valid() bool {
	return st == SourceTypeTicket || st == SourceTypeDocument
}

// Chunk is one embedded fragment of a knowledge source. A source
// (ticket or document) maps to one or more chunks sharing its SourceID;
// re-ingesting a source replaces all of them atomically.
type Chunk struct {
	ID          uuid.UUID
	TenantID    string
	SourceType  SourceType
	SourceID    string
	SourceTitle string
	Content     string
	Embedding   pgvector.Vector
	Metadata    map[string]any
	CreatedAt   time.Time
}

// PublicView returns a copy of the chunk without the embedding vector.
// Retrieval callers never need the raw vector and it dominates the
// payload size.
func (c Chunk) PublicView() Chunk {
	c.Embedding = pgvector.Vector{}
	return c
}

// SearchResult pairs a retrieved chunk with its similarity score,
// 1 - cosine distance, clamped to [0, 1].
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// TicketMetadata is the structured metadata attached to ticket chunks.
type TicketMetadata struct {
	ProjectKey  string
	RequestType string
	Priority    string
	Status      string
	Assignee    string
}

// Map converts the metadata to the generic form stored as JSONB.
func (m TicketMetadata) Map() map[string]any {
	out := make(map[string]any, 5)
	if m.ProjectKey != "" {
		out["project_key"] = m.ProjectKey
	}
	if m.RequestType != "" {
		out["request_type"] = m.RequestType
	}
	if m.Priority != "" {
		out["priority"] = m.Priority
	}
	if m.Status != "" {
		out["status"] = m.Status
	}
	if m.Assignee != "" {
		out["assignee"] = m.Assignee
	}
	return out
}

// DocumentMetadata is the structured metadata attached to document chunks.
type DocumentMetadata struct {
	SpaceID  string
	AuthorID string
	WebURL   string
}

// Map converts the metadata to the generic form stored as JSONB.
func (m DocumentMetadata) Map() map[string]any {
	out := make(map[string]any, 3)
	if m.SpaceID != "" {
		out["space_id"] = m.SpaceID
	}
	if m.AuthorID != "" {
		out["author_id"] = m.AuthorID
	}
	if m.WebURL != "" {
		out["web_url"] = m.WebURL
	}
	return out
}

// IngestRequest describes one knowledge source to (re-)index.
type IngestRequest struct {
	TenantID    string
	SourceType  SourceType
	SourceID    string
	SourceTitle string
	Content     string
	Metadata    map[string]any
}
