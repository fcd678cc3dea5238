package sync

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/knowbase/knowbase/internal/knowledge"
	"github.com/knowbase/knowbase/internal/log"
)

// mockIngestor records ingest requests and indexed sources.
type mockIngestor struct {
	requests  []knowledge.IngestRequest
	existing  map[string]bool
	ingestErr map[string]error
	hasErr    error
}

func newMockIngestor() *mockIngestor {
	return &mockIngestor{
		existing:  make(map[string]bool),
		ingestErr: make(map[string]error),
	}
}

func (m *mockIngestor) Ingest(_ context.Context, req knowledge.IngestRequest) error {
	if err := m.ingestErr[req.SourceID]; err != nil {
		return err
	}
	m.requests = append(m.requests, req)
	m.existing[req.SourceID] = true
	return nil
}

func (m *mockIngestor) HasSource(_ context.Context, sourceID string, _ knowledge.SourceType) (bool, error) {
	if m.hasErr != nil {
		return false, m.hasErr
	}
	return m.existing[sourceID], nil
}

// mockTicketSource serves a fixed ticket list.
type mockTicketSource struct {
	tickets []Ticket
	err     error
}

func (m *mockTicketSource) FetchResolved(_ context.Context) ([]Ticket, error) {
	return m.tickets, m.err
}

func TestBuildTicketContent(t *testing.T) {
	ticket := Ticket{
		Key:         "ACME-42",
		Summary:     "Login broken",
		Description: "Users cannot log in.",
		Comments:    []string{"Restarted the service.", "Confirmed fixed."},
	}

	content := BuildTicketContent(ticket)

	for _, want := range []string{
		"SUMMARY:\nLogin broken",
		"DESCRIPTION:\nUsers cannot log in.",
		"COMMENTS AND RESOLUTION:\nRestarted the service.\n---\nConfirmed fixed.",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("content missing %q:\n%s", want, content)
		}
	}
}

func TestBuildTicketContentNoComments(t *testing.T) {
	content := BuildTicketContent(Ticket{Summary: "s", Description: "d"})
	if !strings.HasSuffix(content, "COMMENTS AND RESOLUTION:\n") {
		t.Errorf("empty comment section malformed:\n%s", content)
	}
}

func TestTicketSyncerSync(t *testing.T) {
	ingestor := newMockIngestor()
	source := &mockTicketSource{tickets: []Ticket{
		{
			Key:         "ACME-1",
			Summary:     "Printer on fire",
			Description: "The office printer caught fire during a large print job.",
			Comments:    []string{"Extinguished. Replaced fuser unit."},
			RequestType: "Incident",
			Priority:    "High",
			Status:      "Resolved",
			Assignee:    "sam",
		},
		{
			Key:     "GLOBEX-9",
			Summary: "VPN timeout",
		},
	}}

	syncer, err := NewTicketSyncer(source, ingestor, "default", log.NewNop())
	if err != nil {
		t.Fatalf("NewTicketSyncer: %v", err)
	}

	result, err := syncer.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Synced != 2 || result.Failed != 0 || result.Skipped != 0 {
		t.Errorf("result = %+v", result)
	}
	if len(ingestor.requests) != 2 {
		t.Fatalf("got %d ingest requests, want 2", len(ingestor.requests))
	}

	first := ingestor.requests[0]
	if first.TenantID != "acme" {
		t.Errorf("tenant = %q, want %q", first.TenantID, "acme")
	}
	if first.SourceType != knowledge.SourceTypeTicket {
		t.Errorf("source type = %q", first.SourceType)
	}
	if first.SourceID != "ACME-1" {
		t.Errorf("source id = %q", first.SourceID)
	}
	if first.Metadata["project_key"] != "ACME" {
		t.Errorf("project_key = %v", first.Metadata["project_key"])
	}
	if first.Metadata["assignee"] != "sam" {
		t.Errorf("assignee = %v", first.Metadata["assignee"])
	}

	second := ingestor.requests[1]
	if second.TenantID != "globex" {
		t.Errorf("tenant = %q, want %q", second.TenantID, "globex")
	}
}

func TestTicketSyncerDefaultTenant(t *testing.T) {
	ingestor := newMockIngestor()
	source := &mockTicketSource{tickets: []Ticket{
		{Key: "NOPREFIX", Summary: "odd key"},
	}}

	syncer, err := NewTicketSyncer(source, ingestor, "support", log.NewNop())
	if err != nil {
		t.Fatalf("NewTicketSyncer: %v", err)
	}
	if _, err := syncer.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if got := ingestor.requests[0].TenantID; got != "support" {
		t.Errorf("tenant = %q, want fallback %q", got, "support")
	}
}

func TestTicketSyncerContinuesOnFailure(t *testing.T) {
	ingestor := newMockIngestor()
	ingestor.ingestErr["ACME-2"] = fmt.Errorf("embedding service down")
	source := &mockTicketSource{tickets: []Ticket{
		{Key: "ACME-1", Summary: "ok"},
		{Key: "ACME-2", Summary: "fails"},
		{Key: "ACME-3", Summary: "ok too"},
	}}

	syncer, err := NewTicketSyncer(source, ingestor, "", log.NewNop())
	if err != nil {
		t.Fatalf("NewTicketSyncer: %v", err)
	}
	result, err := syncer.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Synced != 2 || result.Failed != 1 {
		t.Errorf("result = %+v, want 2 synced 1 failed", result)
	}
}

func TestTicketSyncerFetchErrorAborts(t *testing.T) {
	source := &mockTicketSource{err: fmt.Errorf("ticket system unreachable")}
	syncer, err := NewTicketSyncer(source, newMockIngestor(), "", log.NewNop())
	if err != nil {
		t.Fatalf("NewTicketSyncer: %v", err)
	}
	if _, err := syncer.Sync(context.Background()); err == nil {
		t.Error("expected fetch error to abort the run")
	}
}

func TestProjectKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"ACME-123", "ACME"},
		{"AB-1-2", "AB"},
		{"NODASH", ""},
		{"-7", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := projectKey(tt.key); got != tt.want {
			t.Errorf("projectKey(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}
