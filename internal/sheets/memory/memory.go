package memory

import (
	"context"
	"sync"

	"finview/internal/analytics"
	"finview/internal/ports"
	"finview/internal/sheets"
)

var _ ports.HistoryExporter = (*Sink)(nil)

// Sink keeps exported rows in memory. It stands in for Google Sheets in
// development and dry runs.
type Sink struct {
	mu   sync.Mutex
	rows [][]any
}

func New() *Sink {
	return &Sink{}
}

// ExportHistory appends one row per entry.
func (s *Sink) ExportHistory(_ context.Context, entries []analytics.HistoryEntry) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, sheets.HistoryRows(entries)...)
	return len(entries), nil
}

// ReplaceHistory drops previous rows and stores a header plus entries.
func (s *Sink) ReplaceHistory(_ context.Context, entries []analytics.HistoryEntry) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = sheets.WithHeader(sheets.HistoryRows(entries))
	return len(entries), nil
}

// Rows returns a copy of everything written so far.
func (s *Sink) Rows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]any(nil), s.rows...)
}
