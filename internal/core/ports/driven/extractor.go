package driven

import (
	"context"
	"io"

	"github.com/custodia-labs/ingestor/internal/core/domain"
)

// ExtractResult is the output of one extractor run.
type ExtractResult struct {
	// Records are the canonical records produced.
	Records []domain.Record

	// SkippedRows counts rows that could not be mapped.
	SkippedRows int
}

// RecordExtractor maps the rows of a detected table to canonical records.
// Each extractor handles exactly one record family.
type RecordExtractor interface {
	// Family returns the record family this extractor produces.
	Family() domain.RecordFamily

	// Extract streams the profiled table. Rows that cannot be mapped are
	// counted in SkippedRows, not returned as errors.
	Extract(ctx context.Context, db Database, profile domain.SchemaProfile, entryPath string) (*ExtractResult, error)
}

// ExtractorRegistry selects the extractor for a record family.
type ExtractorRegistry interface {
	// Get returns the extractor for a family.
	Get(family domain.RecordFamily) (RecordExtractor, bool)

	// Register adds an extractor, replacing any previous one for the family.
	Register(extractor RecordExtractor)
}

// MarkupExtractor parses markup reports into canonical records.
type MarkupExtractor interface {
	// Extract parses the stream. Returns an error wrapping
	// domain.ErrUnparseableMarkup when the markup is malformed; records read
	// before the error are still returned.
	Extract(ctx context.Context, r io.Reader, entryPath string) (*ExtractResult, error)
}
