package sync

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/knowbase/knowbase/internal/knowledge"
	"github.com/knowbase/knowbase/internal/log"
)

// mockDocumentSource serves pages by ID.
type mockDocumentSource struct {
	pages   map[string]*Document
	fetches int
}

func (m *mockDocumentSource) FetchPage(_ context.Context, pageID string) (*Document, error) {
	m.fetches++
	doc, ok := m.pages[pageID]
	if !ok {
		return nil, fmt.Errorf("page %s not found", pageID)
	}
	return doc, nil
}

func TestBuildDocumentContent(t *testing.T) {
	doc := &Document{Title: "Runbook", Body: "Restart the service."}
	got := BuildDocumentContent(doc)
	if got != "Title: Runbook\n\nRestart the service." {
		t.Errorf("content = %q", got)
	}

	untitled := &Document{Body: "Just a body."}
	if got := BuildDocumentContent(untitled); got != "Just a body." {
		t.Errorf("untitled content = %q", got)
	}
}

func TestDocumentSyncerSync(t *testing.T) {
	source := &mockDocumentSource{pages: map[string]*Document{
		"page-1": {
			PageID:   "page-1",
			Title:    "VPN setup",
			Body:     "How to configure the VPN client.",
			SpaceID:  "IT",
			AuthorID: "u-1",
			WebURL:   "https://docs.example.com/page-1",
		},
	}}
	ingestor := newMockIngestor()

	syncer, err := NewDocumentSyncer(source, ingestor, []Page{
		{PageID: "page-1", TenantID: "acme"},
	}, "default", log.NewNop())
	if err != nil {
		t.Fatalf("NewDocumentSyncer: %v", err)
	}

	result, err := syncer.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Synced != 1 {
		t.Errorf("result = %+v", result)
	}

	req := ingestor.requests[0]
	if req.SourceType != knowledge.SourceTypeDocument {
		t.Errorf("source type = %q", req.SourceType)
	}
	if req.TenantID != "acme" {
		t.Errorf("tenant = %q", req.TenantID)
	}
	if !strings.HasPrefix(req.Content, "Title: VPN setup\n\n") {
		t.Errorf("content missing title prefix: %q", req.Content)
	}
	if req.Metadata["space_id"] != "IT" {
		t.Errorf("space_id = %v", req.Metadata["space_id"])
	}
	if req.Metadata["web_url"] != "https://docs.example.com/page-1" {
		t.Errorf("web_url = %v", req.Metadata["web_url"])
	}
}

func TestDocumentSyncerSkipsIndexedPages(t *testing.T) {
	source := &mockDocumentSource{pages: map[string]*Document{
		"page-1": {PageID: "page-1", Title: "t", Body: "b"},
	}}
	ingestor := newMockIngestor()
	ingestor.existing["page-1"] = true

	syncer, err := NewDocumentSyncer(source, ingestor, []Page{
		{PageID: "page-1", TenantID: "acme"},
	}, "default", log.NewNop())
	if err != nil {
		t.Fatalf("NewDocumentSyncer: %v", err)
	}

	result, err := syncer.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Skipped != 1 || result.Synced != 0 {
		t.Errorf("result = %+v, want 1 skipped", result)
	}
	if source.fetches != 0 {
		t.Error("indexed page was fetched anyway")
	}
}

func TestDocumentSyncerDefaultTenant(t *testing.T) {
	source := &mockDocumentSource{pages: map[string]*Document{
		"page-2": {PageID: "page-2", Title: "t", Body: "b"},
	}}
	ingestor := newMockIngestor()

	syncer, err := NewDocumentSyncer(source, ingestor, []Page{
		{PageID: "page-2"},
	}, "support", log.NewNop())
	if err != nil {
		t.Fatalf("NewDocumentSyncer: %v", err)
	}
	if _, err := syncer.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if got := ingestor.requests[0].TenantID; got != "support" {
		t.Errorf("tenant = %q, want %q", got, "support")
	}
}

func TestDocumentSyncerContinuesOnFetchFailure(t *testing.T) {
	source := &mockDocumentSource{pages: map[string]*Document{
		"page-ok": {PageID: "page-ok", Title: "t", Body: "b"},
	}}
	ingestor := newMockIngestor()

	syncer, err := NewDocumentSyncer(source, ingestor, []Page{
		{PageID: "page-missing"},
		{PageID: "page-ok"},
	}, "default", log.NewNop())
	if err != nil {
		t.Fatalf("NewDocumentSyncer: %v", err)
	}

	result, err := syncer.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Failed != 1 || result.Synced != 1 {
		t.Errorf("result = %+v, want 1 failed 1 synced", result)
	}
}
