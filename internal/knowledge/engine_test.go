package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// mockEmbedder returns deterministic vectors and records calls.
type mockEmbedder struct {
	dimension  int
	embedErr   error
	embedCalls int
	batchCalls int
	lastBatch  []string
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.embedCalls++
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return m.vectorFor(text), nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.batchCalls++
	m.lastBatch = texts
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = m.vectorFor(t)
	}
	return out, nil
}

func (m *mockEmbedder) vectorFor(text string) []float32 {
	dim := m.dimension
	if dim == 0 {
		dim = 768
	}
	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = float32(len(text)%7) / 7
	}
	return vec
}

// mockVectorStore keeps chunks in memory keyed by source ID.
type mockVectorStore struct {
	chunks       map[string][]Chunk
	distances    map[uuid.UUID]float64
	replaceErr   error
	searchErr    error
	searchResult []Chunk
	replaceCalls int
	deleteCalls  int
	searchLimit  int
}

func newMockVectorStore() *mockVectorStore {
	return &mockVectorStore{
		chunks:    make(map[string][]Chunk),
		distances: make(map[uuid.UUID]float64),
	}
}

func (m *mockVectorStore) ReplaceSource(_ context.Context, sourceID string, chunks []Chunk) error {
	m.replaceCalls++
	if m.replaceErr != nil {
		return m.replaceErr
	}
	m.chunks[sourceID] = chunks
	return nil
}

func (m *mockVectorStore) SearchSimilar(_ context.Context, tenantID string, _ pgvector.Vector, limit int) ([]Chunk, error) {
	m.searchLimit = limit
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if m.searchResult != nil {
		return m.searchResult, nil
	}
	var out []Chunk
	for _, cs := range m.chunks {
		for _, c := range cs {
			if c.TenantID == tenantID {
				out = append(out, c)
			}
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockVectorStore) Distance(_ context.Context, id uuid.UUID, _ pgvector.Vector) (float64, error) {
	d, ok := m.distances[id]
	if !ok {
		return 0, ErrChunkNotFound
	}
	return d, nil
}

func (m *mockVectorStore) DeleteSource(_ context.Context, sourceID string) (int64, error) {
	m.deleteCalls++
	n := int64(len(m.chunks[sourceID]))
	delete(m.chunks, sourceID)
	return n, nil
}

func (m *mockVectorStore) HasSource(_ context.Context, sourceID string, sourceType SourceType) (bool, error) {
	for _, c := range m.chunks[sourceID] {
		if c.SourceType == sourceType {
			return true, nil
		}
	}
	return false, nil
}

func newTestEngine(t *testing.T, store VectorStore, emb *mockEmbedder) *Engine {
	t.Helper()
	eng, err := NewEngine(store, emb, Config{}, nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return eng
}

func TestNewEngineValidation(t *testing.T) {
	if _, err := NewEngine(nil, &mockEmbedder{}, Config{}, nil); err == nil {
		t.Error("expected error for nil store")
	}
	if _, err := NewEngine(newMockVectorStore(), nil, Config{}, nil); err == nil {
		t.Error("expected error for nil embedder")
	}
}

func TestIngestStoresChunks(t *testing.T) {
	store := newMockVectorStore()
	emb := &mockEmbedder{}
	eng := newTestEngine(t, store, emb)

	err := eng.Ingest(context.Background(), IngestRequest{
		TenantID:    "ACME",
		SourceType:  SourceTypeTicket,
		SourceID:    "ACME-123",
		SourceTitle: "Login broken",
		Content:     "Users cannot log in after the maintenance window. Restarting the session service fixed it.",
		Metadata:    TicketMetadata{ProjectKey: "ACME", Status: "Resolved"}.Map(),
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	chunks := store.chunks["ACME-123"]
	if len(chunks) == 0 {
		t.Fatal("no chunks stored")
	}
	for _, c := range chunks {
		if c.TenantID != "acme" {
			t.Errorf("tenant not lowercased: %q", c.TenantID)
		}
		if c.Content == "" {
			t.Error("stored chunk has empty content")
		}
		if c.ID == uuid.Nil {
			t.Error("chunk has no ID")
		}
		if c.CreatedAt.IsZero() {
			t.Error("chunk has no creation timestamp")
		}
		if got := c.Metadata["project_key"]; got != "ACME" {
			t.Errorf("metadata project_key = %v", got)
		}
	}
	if emb.batchCalls != 1 {
		t.Errorf("EmbedBatch called %d times, want 1", emb.batchCalls)
	}
}

func TestIngestSplitsLongContent(t *testing.T) {
	store := newMockVectorStore()
	eng := newTestEngine(t, store, &mockEmbedder{})

	long := strings.Repeat("this sentence pads the document to force multiple chunks. ", 60)
	err := eng.Ingest(context.Background(), IngestRequest{
		TenantID:   "acme",
		SourceType: SourceTypeDocument,
		SourceID:   "page-1",
		Content:    long,
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(store.chunks["page-1"]) < 2 {
		t.Errorf("expected multiple chunks for long content, got %d", len(store.chunks["page-1"]))
	}
}

func TestIngestSkipsOutOfBoundsContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"too short", "hi"},
		{"empty after normalization", "<p></p>"},
		{"too long", strings.Repeat("x", 13000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMockVectorStore()
			emb := &mockEmbedder{}
			eng := newTestEngine(t, store, emb)

			err := eng.Ingest(context.Background(), IngestRequest{
				TenantID:   "acme",
				SourceType: SourceTypeTicket,
				SourceID:   "ACME-1",
				Content:    tt.content,
			})
			if err != nil {
				t.Fatalf("skip should not error, got %v", err)
			}
			if store.replaceCalls != 0 {
				t.Error("store touched for skipped content")
			}
			if emb.batchCalls != 0 {
				t.Error("embedder called for skipped content")
			}
		})
	}
}

func TestIngestValidation(t *testing.T) {
	eng := newTestEngine(t, newMockVectorStore(), &mockEmbedder{})

	tests := []struct {
		name string
		req  IngestRequest
	}{
		{"missing tenant", IngestRequest{SourceType: SourceTypeTicket, SourceID: "x", Content: "long enough content"}},
		{"missing source id", IngestRequest{TenantID: "t", SourceType: SourceTypeTicket, Content: "long enough content"}},
		{"bad source type", IngestRequest{TenantID: "t", SourceType: "email", SourceID: "x", Content: "long enough content"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := eng.Ingest(context.Background(), tt.req); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestIngestEmbedFailureLeavesStoreUntouched(t *testing.T) {
	store := newMockVectorStore()
	store.chunks["ACME-1"] = []Chunk{{ID: uuid.New(), TenantID: "acme", SourceID: "ACME-1", Content: "old"}}
	emb := &mockEmbedder{embedErr: fmt.Errorf("model offline")}
	eng := newTestEngine(t, store, emb)

	err := eng.Ingest(context.Background(), IngestRequest{
		TenantID:   "acme",
		SourceType: SourceTypeTicket,
		SourceID:   "ACME-1",
		Content:    "replacement content that is long enough to embed properly",
	})
	if err == nil {
		t.Fatal("expected error from embedder")
	}
	if store.replaceCalls != 0 {
		t.Error("store was modified despite embed failure")
	}
	if len(store.chunks["ACME-1"]) != 1 || store.chunks["ACME-1"][0].Content != "old" {
		t.Error("previous chunks were not preserved")
	}
}

func TestIngestIdempotent(t *testing.T) {
	store := newMockVectorStore()
	eng := newTestEngine(t, store, &mockEmbedder{})

	req := IngestRequest{
		TenantID:   "acme",
		SourceType: SourceTypeDocument,
		SourceID:   "page-9",
		Content:    strings.Repeat("stable content for repeat ingestion. ", 40),
	}
	if err := eng.Ingest(context.Background(), req); err != nil {
		t.Fatalf("first Ingest: %v", err)
	}
	first := len(store.chunks["page-9"])

	if err := eng.Ingest(context.Background(), req); err != nil {
		t.Fatalf("second Ingest: %v", err)
	}
	if got := len(store.chunks["page-9"]); got != first {
		t.Errorf("chunk count changed across re-ingest: %d -> %d", first, got)
	}
}

func TestRetrieveShortQueryReturnsEmpty(t *testing.T) {
	emb := &mockEmbedder{}
	eng := newTestEngine(t, newMockVectorStore(), emb)

	chunks, err := eng.Retrieve(context.Background(), "acme", "hi", 5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("expected empty result, got %d chunks", len(chunks))
	}
	if emb.embedCalls != 0 {
		t.Error("embedder called for too-short query")
	}
}

func TestRetrieveEmbedErrorPropagates(t *testing.T) {
	emb := &mockEmbedder{embedErr: fmt.Errorf("service down")}
	eng := newTestEngine(t, newMockVectorStore(), emb)

	_, err := eng.Retrieve(context.Background(), "acme", "a query long enough to embed", 5)
	if err == nil {
		t.Fatal("expected embedding error to propagate")
	}
}

func TestRetrievePassesLimitThrough(t *testing.T) {
	store := newMockVectorStore()
	eng := newTestEngine(t, store, &mockEmbedder{})

	for _, limit := range []int{3, 1, 0} {
		if _, err := eng.Retrieve(context.Background(), "acme", "a query long enough to embed", limit); err != nil {
			t.Fatalf("Retrieve(limit=%d): %v", limit, err)
		}
		if store.searchLimit != limit {
			t.Errorf("store received limit %d, want %d unchanged", store.searchLimit, limit)
		}
	}
}

func TestRetrieveStripsEmbeddings(t *testing.T) {
	store := newMockVectorStore()
	store.searchResult = []Chunk{{
		ID:        uuid.New(),
		TenantID:  "acme",
		SourceID:  "ACME-1",
		Content:   "restart the session service",
		Embedding: pgvector.NewVector(make([]float32, 768)),
	}}
	eng := newTestEngine(t, store, &mockEmbedder{})

	chunks, err := eng.Retrieve(context.Background(), "ACME", "how do i fix login problems", 5)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if len(chunks[0].Embedding.Slice()) != 0 {
		t.Error("retrieved chunk still carries its embedding vector")
	}
}

func TestRetrieveWithScoreFiltersAndClamps(t *testing.T) {
	idHigh, idLow, idNeg := uuid.New(), uuid.New(), uuid.New()
	store := newMockVectorStore()
	store.searchResult = []Chunk{
		{ID: idHigh, TenantID: "acme", Content: "close match"},
		{ID: idLow, TenantID: "acme", Content: "weak match"},
		{ID: idNeg, TenantID: "acme", Content: "anti match"},
	}
	store.distances[idHigh] = 0.1 // score 0.9
	store.distances[idLow] = 0.8  // score 0.2
	store.distances[idNeg] = 1.7  // raw score -0.7, clamps to 0

	eng := newTestEngine(t, store, &mockEmbedder{})

	results, err := eng.RetrieveWithScore(context.Background(), "acme", "a sufficiently long query", 5, 0.5)
	if err != nil {
		t.Fatalf("RetrieveWithScore: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Chunk.ID != idHigh {
		t.Errorf("wrong chunk survived the threshold: %s", results[0].Chunk.ID)
	}
	if results[0].Score < 0.89 || results[0].Score > 0.91 {
		t.Errorf("score = %f, want ~0.9", results[0].Score)
	}

	// Threshold 0 keeps everything, scores stay in [0, 1].
	results, err = eng.RetrieveWithScore(context.Background(), "acme", "a sufficiently long query", 5, 0)
	if err != nil {
		t.Fatalf("RetrieveWithScore: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for _, r := range results {
		if r.Score < 0 || r.Score > 1 {
			t.Errorf("score %f outside [0, 1]", r.Score)
		}
	}
}

func TestRetrieveWithScoreThresholdSubset(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New()}
	store := newMockVectorStore()
	for i, id := range ids {
		store.searchResult = append(store.searchResult, Chunk{ID: id, TenantID: "acme", Content: "c"})
		store.distances[id] = float64(i) * 0.3
	}
	eng := newTestEngine(t, store, &mockEmbedder{})

	loose, err := eng.RetrieveWithScore(context.Background(), "acme", "a sufficiently long query", 10, 0.2)
	if err != nil {
		t.Fatalf("RetrieveWithScore: %v", err)
	}
	strict, err := eng.RetrieveWithScore(context.Background(), "acme", "a sufficiently long query", 10, 0.6)
	if err != nil {
		t.Fatalf("RetrieveWithScore: %v", err)
	}
	if len(strict) >= len(loose) {
		t.Errorf("strict threshold returned %d results, loose %d", len(strict), len(loose))
	}
	strictIDs := make(map[uuid.UUID]bool)
	for _, r := range strict {
		strictIDs[r.Chunk.ID] = true
	}
	looseIDs := make(map[uuid.UUID]bool)
	for _, r := range loose {
		looseIDs[r.Chunk.ID] = true
	}
	for id := range strictIDs {
		if !looseIDs[id] {
			t.Errorf("strict result %s missing from loose results", id)
		}
	}
}

func TestRemove(t *testing.T) {
	store := newMockVectorStore()
	store.chunks["ACME-7"] = []Chunk{
		{ID: uuid.New(), SourceID: "ACME-7", Content: "a"},
		{ID: uuid.New(), SourceID: "ACME-7", Content: "b"},
	}
	eng := newTestEngine(t, store, &mockEmbedder{})

	count, err := eng.Remove(context.Background(), "ACME-7")
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if count != 2 {
		t.Errorf("removed %d chunks, want 2", count)
	}

	// Idempotent: removing again deletes nothing.
	count, err = eng.Remove(context.Background(), "ACME-7")
	if err != nil {
		t.Fatalf("second Remove: %v", err)
	}
	if count != 0 {
		t.Errorf("second remove deleted %d chunks, want 0", count)
	}
}

func TestRemoveRequiresSourceID(t *testing.T) {
	eng := newTestEngine(t, newMockVectorStore(), &mockEmbedder{})
	if _, err := eng.Remove(context.Background(), ""); err == nil {
		t.Error("expected error for empty source ID")
	}
}

func TestHasSource(t *testing.T) {
	store := newMockVectorStore()
	store.chunks["page-1"] = []Chunk{{ID: uuid.New(), SourceID: "page-1", SourceType: SourceTypeDocument, Content: "x"}}
	eng := newTestEngine(t, store, &mockEmbedder{})

	exists, err := eng.HasSource(context.Background(), "page-1", SourceTypeDocument)
	if err != nil {
		t.Fatalf("HasSource: %v", err)
	}
	if !exists {
		t.Error("expected source to exist")
	}

	exists, err = eng.HasSource(context.Background(), "page-1", SourceTypeTicket)
	if err != nil {
		t.Fatalf("HasSource: %v", err)
	}
	if exists {
		t.Error("source type mismatch should not match")
	}
}

func TestClampScore(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.42, 0.42},
		{1, 1},
		{1.3, 1},
	}
	for _, tt := range tests {
		if got := clampScore(tt.in); got != tt.want {
			t.Errorf("clampScore(%f) = %f, want %f", tt.in, got, tt.want)
		}
	}
}

func TestRetrieveSearchErrorPropagates(t *testing.T) {
	store := newMockVectorStore()
	store.searchErr = errors.New("connection reset")
	eng := newTestEngine(t, store, &mockEmbedder{})

	_, err := eng.Retrieve(context.Background(), "acme", "a sufficiently long query", 5)
	if err == nil {
		t.Fatal("expected store error to propagate")
	}
	if !strings.Contains(err.Error(), "connection reset") {
		t.Errorf("error does not wrap cause: %v", err)
	}
}
