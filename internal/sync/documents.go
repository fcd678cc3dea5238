package sync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knowbase/knowbase/internal/knowledge"
)

// Document is a documentation page as delivered by the documentation
// system client.
type Document struct {
	PageID   string
	Title    string
	Body     string
	SpaceID  string
	AuthorID string
	WebURL   string
}

// DocumentSource fetches documentation pages by ID. Implemented by the
// external documentation system client.
type DocumentSource interface {
	FetchPage(ctx context.Context, pageID string) (*Document, error)
}

// Page names one documentation page to sync and the tenant its chunks
// belong to.
type Page struct {
	PageID   string
	TenantID string
}

// DocumentSyncer indexes configured documentation pages into the
// knowledge engine. Pages already indexed are skipped, so repeated runs
// only embed new pages.
type DocumentSyncer struct {
	source        DocumentSource
	engine        Ingestor
	pages         []Page
	defaultTenant string
	logger        *slog.Logger
}

// NewDocumentSyncer creates a document sync driver for the given page list.
func NewDocumentSyncer(source DocumentSource, engine Ingestor, pages []Page, defaultTenant string, logger *slog.Logger) (*DocumentSyncer, error) {
	if source == nil {
		return nil, fmt.Errorf("document source is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if defaultTenant == "" {
		defaultTenant = "default"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentSyncer{
		source:        source,
		engine:        engine,
		pages:         pages,
		defaultTenant: defaultTenant,
		logger:        logger,
	}, nil
}

// Sync indexes every configured page that is not yet in the store.
// Individual page failures are logged and counted but do not stop the
// run.
func (s *DocumentSyncer) Sync(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{}

	s.logger.Info("document sync started", "pages", len(s.pages))

	for _, page := range s.pages {
		exists, err := s.engine.HasSource(ctx, page.PageID, knowledge.SourceTypeDocument)
		if err != nil {
			s.logger.Warn("failed to check page, skipping",
				"page_id", page.PageID, "error", err)
			result.Failed++
			continue
		}
		if exists {
			result.Skipped++
			continue
		}

		doc, err := s.source.FetchPage(ctx, page.PageID)
		if err != nil {
			s.logger.Warn("failed to fetch page",
				"page_id", page.PageID, "error", err)
			result.Failed++
			continue
		}

		tenant := page.TenantID
		if tenant == "" {
			tenant = s.defaultTenant
		}

		req := knowledge.IngestRequest{
			TenantID:    tenant,
			SourceType:  knowledge.SourceTypeDocument,
			SourceID:    doc.PageID,
			SourceTitle: doc.Title,
			Content:     BuildDocumentContent(doc),
			Metadata: knowledge.DocumentMetadata{
				SpaceID:  doc.SpaceID,
				AuthorID: doc.AuthorID,
				WebURL:   doc.WebURL,
			}.Map(),
		}

		if err := s.engine.Ingest(ctx, req); err != nil {
			s.logger.Warn("failed to index page",
				"page_id", page.PageID, "error", err)
			result.Failed++
			continue
		}
		result.Synced++
	}

	result.Duration = time.Since(start)
	s.logger.Info("document sync completed",
		"synced", result.Synced,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"duration", result.Duration.String())
	return result, nil
}

// BuildDocumentContent assembles the embeddable text for a page. The
// title prefix keeps it retrievable by name.
func BuildDocumentContent(doc *Document) string {
	title := strings.TrimSpace(doc.Title)
	if title == "" {
		return doc.Body
	}
	return "Title: " + title + "\n\n" + doc.Body
}
