// Package sync feeds the knowledge engine from external sources:
// resolved support tickets and documentation pages. The REST clients
// behind TicketSource and DocumentSource live outside this module; the
// drivers here assemble content, derive tenants, and ingest.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knowbase/knowbase/internal/knowledge"
)

// Ingestor is the slice of the knowledge engine the sync drivers use.
type Ingestor interface {
	Ingest(ctx context.Context, req knowledge.IngestRequest) error
	HasSource(ctx context.Context, sourceID string, sourceType knowledge.SourceType) (bool, error)
}

// Ticket is a resolved support ticket as delivered by the ticketing
// system client.
type Ticket struct {
	Key         string // e.g. "ACME-123"
	Summary     string
	Description string
	Comments    []string
	RequestType string
	Priority    string
	Status      string
	Assignee    string
}

// TicketSource lists resolved tickets to index. Implemented by the
// external ticketing system client.
type TicketSource interface {
	FetchResolved(ctx context.Context) ([]Ticket, error)
}

// Result summarizes one sync run.
type Result struct {
	Synced   int
	Skipped  int
	Failed   int
	Duration time.Duration
}

// TicketSyncer indexes resolved tickets into the knowledge engine.
type TicketSyncer struct {
	source        TicketSource
	engine        Ingestor
	defaultTenant string
	logger        *slog.Logger
}

// NewTicketSyncer creates a ticket sync driver. defaultTenant is used
// when a ticket key carries no project prefix.
func NewTicketSyncer(source TicketSource, engine Ingestor, defaultTenant string, logger *slog.Logger) (*TicketSyncer, error) {
	if source == nil {
		return nil, fmt.Errorf("ticket source is required")
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
	return &TicketSyncer{
		source:        source,
		engine:        engine,
		defaultTenant: defaultTenant,
		logger:        logger,
	}, nil
}

// Sync fetches all resolved tickets and re-indexes each one. Individual
// ticket failures are logged and counted but do not stop the run.
func (s *TicketSyncer) Sync(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{}

	tickets, err := s.source.FetchResolved(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching resolved tickets: %w", err)
	}
	s.logger.Info("ticket sync started", "tickets", len(tickets))

	for _, ticket := range tickets {
		if ticket.Key == "" {
			s.logger.Warn("skipping ticket without key")
			result.Skipped++
			continue
		}

		req := knowledge.IngestRequest{
			TenantID:    s.tenantFor(ticket.Key),
			SourceType:  knowledge.SourceTypeTicket,
			SourceID:    ticket.Key,
			SourceTitle: ticket.Summary,
			Content:     BuildTicketContent(ticket),
			Metadata: knowledge.TicketMetadata{
				ProjectKey:  projectKey(ticket.Key),
				RequestType: ticket.RequestType,
				Priority:    ticket.Priority,
				Status:      ticket.Status,
				Assignee:    ticket.Assignee,
			}.Map(),
		}

		if err := s.engine.Ingest(ctx, req); err != nil {
			s.logger.Warn("failed to index ticket",
				"ticket", ticket.Key, "error", err)
			result.Failed++
			continue
		}
		result.Synced++
	}

	result.Duration = time.Since(start)
	s.logger.Info("ticket sync completed",
		"synced", result.Synced,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"duration", result.Duration.String())
	return result, nil
}

// BuildTicketContent assembles the embeddable text for a ticket. The
// section labels keep summary, description, and resolution context
// distinguishable after chunking.
func BuildTicketContent(t Ticket) string {
	var b strings.Builder
	b.WriteString("SUMMARY:\n")
	b.WriteString(t.Summary)
	b.WriteString("\n\n")
	b.WriteString("DESCRIPTION:\n")
	b.WriteString(t.Description)
	b.WriteString("\n\n")
	b.WriteString("COMMENTS AND RESOLUTION:\n")
	b.WriteString(strings.Join(t.Comments, "\n---\n"))
	return b.String()
}

// tenantFor derives the tenant from the ticket key's project prefix,
// lowercased. Keys without a prefix map to the default tenant.
func (s *TicketSyncer) tenantFor(key string) string {
	p := projectKey(key)
	if p == "" {
		return s.defaultTenant
	}
	return strings.ToLower(p)
}

// projectKey extracts the project portion of a ticket key ("ACME-123"
// yields "ACME"). Returns "" when the key has no dash-separated prefix.
func projectKey(key string) string {
	idx := strings.Index(key, "-")
	if idx <= 0 {
		return ""
	}
	return key[:idx]
}
