package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/knowbase/knowbase/internal/embedding"
	"github.com/knowbase/knowbase/internal/textproc"
)

// VectorStore is the persistence surface the engine depends on.
// *Store implements it; tests substitute mocks.
type VectorStore interface {
	ReplaceSource(ctx context.Context, sourceID string, chunks []Chunk) error
	SearchSimilar(ctx context.Context, tenantID string, vec pgvector.Vector, limit int) ([]Chunk, error)
	Distance(ctx context.Context, id uuid.UUID, vec pgvector.Vector) (float64, error)
	DeleteSource(ctx context.Context, sourceID string) (int64, error)
	HasSource(ctx context.Context, sourceID string, sourceType SourceType) (bool, error)
}

// Config tunes chunking and the engine's timeouts. Zero values fall
// back to defaults.
type Config struct {
	// ChunkSize and ChunkOverlap control how normalized content is split.
	ChunkSize    int
	ChunkOverlap int
	// MinContentLength and MaxContentLength bound what gets embedded.
	// Content outside the bounds is skipped, not an error.
	MinContentLength int
	MaxContentLength int
	// Dimension every embedding vector must have.
	Dimension int
	// EmbedTimeout bounds calls to the embedding service.
	EmbedTimeout time.Duration
	// StoreTimeout bounds individual store operations.
	StoreTimeout time.Duration
}

const (
	defaultMinContentLength = 10
	defaultMaxContentLength = 12000
	defaultDimension        = 768
	defaultEmbedTimeout     = 30 * time.Second
	defaultStoreTimeout     = 10 * time.Second
)

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = textproc.DefaultChunkSize
	}
	if c.ChunkOverlap <= 0 {
		c.ChunkOverlap = textproc.DefaultOverlap
	}
	if c.MinContentLength <= 0 {
		c.MinContentLength = defaultMinContentLength
	}
	if c.MaxContentLength <= 0 {
		c.MaxContentLength = defaultMaxContentLength
	}
	if c.Dimension <= 0 {
		c.Dimension = defaultDimension
	}
	if c.EmbedTimeout <= 0 {
		c.EmbedTimeout = defaultEmbedTimeout
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = defaultStoreTimeout
	}
	return c
}

// Engine orchestrates the ingestion and retrieval pipeline. It owns no
// schedule or timer state; callers decide when to ingest.
//
// Engine is safe for concurrent use by multiple goroutines.
type Engine struct {
	store    VectorStore
	embedder embedding.Embedder
	cfg      Config
	logger   *slog.Logger
}

// NewEngine creates an Engine over the given store and embedder.
func NewEngine(store VectorStore, embedder embedding.Embedder, cfg Config, logger *slog.Logger) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:    store,
		embedder: embedder,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}, nil
}

// Ingest normalizes, chunks, embeds, and persists one knowledge source.
// Re-ingesting an existing sourceID replaces its chunks atomically.
//
// Content that normalizes to something shorter than MinContentLength or
// longer than MaxContentLength is skipped with a warning, not an error:
// sync drivers feed whole backlogs through here and a near-empty ticket
// must not abort the run.
//
// Embedding happens before any deletion, so a failed ingest leaves the
// previously stored chunk set intact.
func (e *Engine) Ingest(ctx context.Context, req IngestRequest) error {
	if err := validateIngestRequest(req); err != nil {
		return err
	}

	normalized := textproc.Normalize(req.Content)
	if len(normalized) < e.cfg.MinContentLength || len(normalized) > e.cfg.MaxContentLength {
		e.logger.Warn("skipping content outside length bounds",
			"source_id", req.SourceID,
			"source_type", req.SourceType,
			"normalized_length", len(normalized),
			"min", e.cfg.MinContentLength,
			"max", e.cfg.MaxContentLength)
		return nil
	}

	parts := textproc.Split(normalized, textproc.ChunkOptions{
		ChunkSize: e.cfg.ChunkSize,
		Overlap:   e.cfg.ChunkOverlap,
	})
	texts := make([]string, 0, len(parts))
	for _, p := range parts {
		if len(p) >= e.cfg.MinContentLength {
			texts = append(texts, p)
		}
	}
	if len(texts) == 0 {
		e.logger.Warn("no embeddable chunks after splitting",
			"source_id", req.SourceID)
		return nil
	}

	embedCtx, cancel := context.WithTimeout(ctx, e.cfg.EmbedTimeout)
	defer cancel()

	vectors, err := e.embedder.EmbedBatch(embedCtx, texts)
	if err != nil {
		return fmt.Errorf("embedding %d chunks for source %s: %w", len(texts), req.SourceID, err)
	}
	if len(vectors) != len(texts) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(texts))
	}

	tenant := strings.ToLower(req.TenantID)
	now := time.Now()
	chunks := make([]Chunk, len(texts))
	for i, text := range texts {
		if len(vectors[i]) != e.cfg.Dimension {
			return fmt.Errorf("chunk %d: expected %d dimensions, got %d", i, e.cfg.Dimension, len(vectors[i]))
		}
		chunks[i] = Chunk{
			ID:          uuid.New(),
			TenantID:    tenant,
			SourceType:  req.SourceType,
			SourceID:    req.SourceID,
			SourceTitle: req.SourceTitle,
			Content:     text,
			Embedding:   pgvector.NewVector(vectors[i]),
			Metadata:    req.Metadata,
			CreatedAt:   now,
		}
	}

	storeCtx, cancel := context.WithTimeout(ctx, e.cfg.StoreTimeout)
	defer cancel()

	if err := e.store.ReplaceSource(storeCtx, req.SourceID, chunks); err != nil {
		return fmt.Errorf("replacing chunks for source %s: %w", req.SourceID, err)
	}

	e.logger.Info("ingested source",
		"source_id", req.SourceID,
		"source_type", req.SourceType,
		"tenant", tenant,
		"chunks", len(chunks))
	return nil
}

func validateIngestRequest(req IngestRequest) error {
	if req.TenantID == "" {
		return fmt.Errorf("tenant ID is required")
	}
	if !req.SourceType.Valid() {
		return fmt.Errorf("invalid source type: %q", req.SourceType)
	}
	if req.SourceID == "" {
		return fmt.Errorf("source ID is required")
	}
	return nil
}

// Retrieve returns up to limit chunks for the tenant nearest to the
// query, ordered by similarity descending. The limit passes through to
// the store unchanged; choosing a sensible value is the caller's job.
// A query that normalizes to fewer than MinContentLength bytes yields
// an empty result, not an error. Returned chunks carry no embedding
// vectors.
func (e *Engine) Retrieve(ctx context.Context, tenantID, query string, limit int) ([]Chunk, error) {
	chunks, _, err := e.search(ctx, tenantID, query, limit)
	if err != nil {
		return nil, err
	}
	views := make([]Chunk, len(chunks))
	for i, c := range chunks {
		views[i] = c.PublicView()
	}
	return views, nil
}

// RetrieveWithScore retrieves like Retrieve, then attaches an exact
// similarity score to each chunk and drops those under threshold. The
// top-limit window is taken first; the threshold filters within it.
func (e *Engine) RetrieveWithScore(ctx context.Context, tenantID, query string, limit int, threshold float64) ([]SearchResult, error) {
	chunks, vec, err := e.search(ctx, tenantID, query, limit)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return []SearchResult{}, nil
	}

	storeCtx, cancel := context.WithTimeout(ctx, e.cfg.StoreTimeout)
	defer cancel()

	results := make([]SearchResult, 0, len(chunks))
	for _, c := range chunks {
		distance, err := e.store.Distance(storeCtx, c.ID, vec)
		if err != nil {
			return nil, fmt.Errorf("scoring chunk %s: %w", c.ID, err)
		}
		score := clampScore(1 - distance)
		if score < threshold {
			continue
		}
		results = append(results, SearchResult{Chunk: c.PublicView(), Score: score})
	}
	return results, nil
}

// search embeds the query and runs the tenant-filtered similarity scan.
// Returns the matched chunks with embeddings intact plus the query vector.
func (e *Engine) search(ctx context.Context, tenantID, query string, limit int) ([]Chunk, pgvector.Vector, error) {
	if tenantID == "" {
		return nil, pgvector.Vector{}, fmt.Errorf("tenant ID is required")
	}
	tenant := strings.ToLower(tenantID)

	normalized := textproc.Normalize(query)
	if len(normalized) < e.cfg.MinContentLength {
		e.logger.Debug("query too short after normalization",
			"tenant", tenant, "length", len(normalized))
		return []Chunk{}, pgvector.Vector{}, nil
	}

	embedCtx, cancel := context.WithTimeout(ctx, e.cfg.EmbedTimeout)
	defer cancel()

	queryVec, err := e.embedder.Embed(embedCtx, normalized)
	if err != nil {
		return nil, pgvector.Vector{}, fmt.Errorf("embedding query: %w", err)
	}
	vec := pgvector.NewVector(queryVec)

	storeCtx, cancel := context.WithTimeout(ctx, e.cfg.StoreTimeout)
	defer cancel()

	chunks, err := e.store.SearchSimilar(storeCtx, tenant, vec, limit)
	if err != nil {
		return nil, pgvector.Vector{}, fmt.Errorf("searching tenant %s: %w", tenant, err)
	}
	return chunks, vec, nil
}

// Remove deletes all chunks for a source and returns how many were
// removed. Removing an unknown source is a no-op returning 0.
func (e *Engine) Remove(ctx context.Context, sourceID string) (int64, error) {
	if sourceID == "" {
		return 0, fmt.Errorf("source ID is required")
	}

	storeCtx, cancel := context.WithTimeout(ctx, e.cfg.StoreTimeout)
	defer cancel()

	count, err := e.store.DeleteSource(storeCtx, sourceID)
	if err != nil {
		return 0, fmt.Errorf("removing source %s: %w", sourceID, err)
	}
	e.logger.Info("removed source", "source_id", sourceID, "chunks", count)
	return count, nil
}

// HasSource reports whether a source is already indexed.
func (e *Engine) HasSource(ctx context.Context, sourceID string, sourceType SourceType) (bool, error) {
	storeCtx, cancel := context.WithTimeout(ctx, e.cfg.StoreTimeout)
	defer cancel()
	return e.store.HasSource(storeCtx, sourceID, sourceType)
}

// clampScore bounds a similarity score to [0, 1]. Cosine distance on
// non-normalized vectors can stray slightly outside the ideal range.
func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
