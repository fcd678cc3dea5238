package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	knowsync "github.com/knowbase/knowbase/internal/sync"
)

// The sync command feeds the sync drivers from local export files. The
// ticketing and documentation systems themselves stay behind the
// TicketSource / DocumentSource interfaces; an export file is the
// simplest implementation of those.

type ticketRecord struct {
	Key         string   `json:"key"`
	Summary     string   `json:"summary"`
	Description string   `json:"description"`
	Comments    []string `json:"comments"`
	RequestType string   `json:"request_type"`
	Priority    string   `json:"priority"`
	Status      string   `json:"status"`
	Assignee    string   `json:"assignee"`
}

type documentRecord struct {
	PageID   string `json:"page_id"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	SpaceID  string `json:"space_id"`
	AuthorID string `json:"author_id"`
	WebURL   string `json:"web_url"`
}

// fileTicketSource serves resolved tickets from a JSON export file.
type fileTicketSource struct {
	tickets []knowsync.Ticket
}

func newFileTicketSource(path string) (*fileTicketSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading ticket export: %w", err)
	}
	var records []ticketRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing ticket export %s: %w", path, err)
	}

	tickets := make([]knowsync.Ticket, len(records))
	for i, r := range records {
		tickets[i] = knowsync.Ticket{
			Key:         r.Key,
			Summary:     r.Summary,
			Description: r.Description,
			Comments:    r.Comments,
			RequestType: r.RequestType,
			Priority:    r.Priority,
			Status:      r.Status,
			Assignee:    r.Assignee,
		}
	}
	return &fileTicketSource{tickets: tickets}, nil
}

func (s *fileTicketSource) FetchResolved(_ context.Context) ([]knowsync.Ticket, error) {
	return s.tickets, nil
}

// fileDocumentSource serves documentation pages from a JSON export file,
// keyed by page ID.
type fileDocumentSource struct {
	pages map[string]*knowsync.Document
}

func newFileDocumentSource(path string) (*fileDocumentSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading document export: %w", err)
	}
	var records []documentRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing document export %s: %w", path, err)
	}

	pages := make(map[string]*knowsync.Document, len(records))
	for _, r := range records {
		if r.PageID == "" {
			return nil, fmt.Errorf("document export %s: record without page_id", path)
		}
		pages[r.PageID] = &knowsync.Document{
			PageID:   r.PageID,
			Title:    r.Title,
			Body:     r.Body,
			SpaceID:  r.SpaceID,
			AuthorID: r.AuthorID,
			WebURL:   r.WebURL,
		}
	}
	return &fileDocumentSource{pages: pages}, nil
}

func (s *fileDocumentSource) FetchPage(_ context.Context, pageID string) (*knowsync.Document, error) {
	doc, ok := s.pages[pageID]
	if !ok {
		return nil, fmt.Errorf("page %s not in export", pageID)
	}
	return doc, nil
}
