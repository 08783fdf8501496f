package driven

import (
	"context"

	"github.com/custodia-labs/ingestor/internal/core/domain"
)

// RecordSink receives an ingestion result at the engine's boundary.
// Structured storage, embedding pipelines and graph builders implement it;
// the engine does not depend on their success.
type RecordSink interface {
	// Write hands over one ingestion result.
	Write(ctx context.Context, result *domain.IngestionResult) error

	// Close releases resources.
	Close() error
}

// RunStore is a record sink that keeps results for later review.
type RunStore interface {
	RecordSink

	// GetRun returns a stored run with its reports and records.
	GetRun(ctx context.Context, id string) (*domain.IngestionResult, error)

	// ListRuns returns every stored run, newest first.
	ListRuns(ctx context.Context) ([]domain.RunSummary, error)

	// DeleteRun removes a run and everything stored with it.
	DeleteRun(ctx context.Context, id string) error
}
