package driven

import "github.com/custodia-labs/ingestor/internal/core/domain"

// RecordMerger combines records from every entry of one archive.
type RecordMerger interface {
	// Merge deduplicates near-identical records and returns the merged set
	// plus the number of records folded away.
	Merge(records []domain.Record) ([]domain.Record, int)
}
