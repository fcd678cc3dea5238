package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// chunkCols is the standard SELECT column list for scanChunks.
const chunkCols = `id, tenant_id, source_type, source_id, source_title,
	content, embedding, metadata, created_at`

const insertChunkSQL = `INSERT INTO knowledge_chunks
	(id, tenant_id, source_type, source_id, source_title, content, embedding, metadata, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// Store persists knowledge chunks in PostgreSQL + pgvector.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ VectorStore = (*Store)(nil)

// NewStore creates a chunk Store over the given pool.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// ReplaceSource atomically swaps all chunks of a source: existing rows
// for sourceID are deleted and the new chunks inserted in one
// transaction, so readers never observe a partial chunk set. Concurrent
// replaces of the same source are last-writer-wins.
func (s *Store) ReplaceSource(ctx context.Context, sourceID string, chunks []Chunk) error {
	if sourceID == "" {
		return fmt.Errorf("source ID is required")
	}
	for i, c := range chunks {
		if c.Content == "" {
			return fmt.Errorf("chunk %d has empty content", i)
		}
		if c.SourceID != sourceID {
			return fmt.Errorf("chunk %d source ID %q does not match %q", i, c.SourceID, sourceID)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", rbErr)
		}
	}()

	tag, err := tx.Exec(ctx, `DELETE FROM knowledge_chunks WHERE source_id = $1`, sourceID)
	if err != nil {
		return fmt.Errorf("deleting chunks for source %s: %w", sourceID, err)
	}

	for i := range chunks {
		if err := insertChunk(ctx, tx, chunks[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing chunk replacement: %w", err)
	}

	s.logger.Debug("replaced source chunks",
		"source_id", sourceID,
		"deleted", tag.RowsAffected(),
		"inserted", len(chunks))
	return nil
}

func insertChunk(ctx context.Context, q querier, c Chunk) error {
	meta, err := marshalMetadata(c.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata for chunk %s: %w", c.ID, err)
	}
	_, err = q.Exec(ctx, insertChunkSQL,
		c.ID, c.TenantID, string(c.SourceType), c.SourceID, c.SourceTitle,
		c.Content, c.Embedding, meta, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting chunk %s: %w", c.ID, err)
	}
	return nil
}

// SearchSimilar returns up to limit chunks for the tenant ordered by
// cosine distance to vec, nearest first. The limit is applied as given;
// callers own its bounds. Embeddings come back populated so callers can
// post-process; strip them with PublicView before returning results
// upstream.
func (s *Store) SearchSimilar(ctx context.Context, tenantID string, vec pgvector.Vector, limit int) ([]Chunk, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("tenant ID is required")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+chunkCols+`
		 FROM knowledge_chunks
		 WHERE tenant_id = $1
		 ORDER BY embedding <=> $2
		 LIMIT $3`,
		tenantID, vec, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("searching chunks: %w", err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

// Distance returns the exact cosine distance between the stored chunk's
// embedding and vec. Used to compute similarity scores without trusting
// approximate index ordering.
func (s *Store) Distance(ctx context.Context, id uuid.UUID, vec pgvector.Vector) (float64, error) {
	var distance float64
	err := s.pool.QueryRow(ctx,
		`SELECT embedding <=> $1 FROM knowledge_chunks WHERE id = $2`,
		vec, id,
	).Scan(&distance)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return 0, fmt.Errorf("chunk %s: %w", id, ErrChunkNotFound)
	case err != nil:
		return 0, fmt.Errorf("computing distance for chunk %s: %w", id, err)
	}
	return distance, nil
}

// ErrChunkNotFound is returned by Distance when the chunk id does not exist.
var ErrChunkNotFound = errors.New("chunk not found")

// DeleteSource removes all chunks for sourceID and returns how many
// rows were deleted. Deleting an unknown source returns 0, nil.
func (s *Store) DeleteSource(ctx context.Context, sourceID string) (int64, error) {
	if sourceID == "" {
		return 0, fmt.Errorf("source ID is required")
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM knowledge_chunks WHERE source_id = $1`, sourceID)
	if err != nil {
		return 0, fmt.Errorf("deleting chunks for source %s: %w", sourceID, err)
	}
	return tag.RowsAffected(), nil
}

// HasSource reports whether any chunk exists for the sourceID and type.
func (s *Store) HasSource(ctx context.Context, sourceID string, sourceType SourceType) (bool, error) {
	if sourceID == "" {
		return false, fmt.Errorf("source ID is required")
	}
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM knowledge_chunks
		   WHERE source_id = $1 AND source_type = $2
		 )`,
		sourceID, string(sourceType),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking source %s: %w", sourceID, err)
	}
	return exists, nil
}

// CountByTenant returns the number of chunks stored for a tenant.
func (s *Store) CountByTenant(ctx context.Context, tenantID string) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM knowledge_chunks WHERE tenant_id = $1`, tenantID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting chunks for tenant %s: %w", tenantID, err)
	}
	return count, nil
}

// marshalMetadata serializes chunk metadata for the JSONB column.
// Nil maps become SQL NULL.
func marshalMetadata(m map[string]any) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	return json.Marshal(m)
}

// scanChunks reads Chunk structs from pgx.Rows (standard column set).
func scanChunks(rows pgx.Rows) ([]Chunk, error) {
	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		var sourceType string
		var meta []byte
		if err := rows.Scan(
			&c.ID, &c.TenantID, &sourceType, &c.SourceID, &c.SourceTitle,
			&c.Content, &c.Embedding, &meta, &c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		c.SourceType = SourceType(sourceType)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &c.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshaling metadata for chunk %s: %w", c.ID, err)
			}
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}
