package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/custodia-labs/ingestor/internal/core/domain"
	"github.com/custodia-labs/ingestor/internal/core/ports/driven"
)

// Ensure ResultStore implements the interface.
var _ driven.RecordSink = (*ResultStore)(nil)

// ErrClosed is returned when writing to a closed store.
var ErrClosed = errors.New("result store closed")

// ResultStore is an in-memory implementation of driven.RecordSink.
// It keeps every result in write order.
type ResultStore struct {
	mu      sync.RWMutex
	results map[string]*domain.IngestionResult
	order   []string
	closed  bool
}

// NewResultStore creates a new in-memory result store.
func NewResultStore() *ResultStore {
	return &ResultStore{
		results: make(map[string]*domain.IngestionResult),
	}
}

// Write stores a result. A second write with the same run ID replaces the first.
func (s *ResultStore) Write(_ context.Context, result *domain.IngestionResult) error {
	if result == nil || result.RunID == "" {
		return domain.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.results[result.RunID]; !ok {
		s.order = append(s.order, result.RunID)
	}
	s.results[result.RunID] = result
	return nil
}

// Get retrieves a result by run ID.
func (s *ResultStore) Get(runID string) (*domain.IngestionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.results[runID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return result, nil
}

// List returns every result in write order.
func (s *ResultStore) List() []*domain.IngestionResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.IngestionResult, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.results[id])
	}
	return out
}

// Totals sums records and failed entries over every stored result.
func (s *ResultStore) Totals() (records, failed int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, result := range s.results {
		records += len(result.Records)
		failed += len(result.Failed())
	}
	return records, failed
}

// Close rejects further writes. Stored results stay readable.
func (s *ResultStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
