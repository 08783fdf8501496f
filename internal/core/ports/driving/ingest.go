package driving

import (
	"context"
	"io"

	"github.com/custodia-labs/ingestor/internal/core/domain"
)

// IngestionService converts extraction containers into canonical records.
type IngestionService interface {
	// Ingest processes the container at path. Only a corrupt container or
	// caller cancellation returns an error; entry failures are reported in
	// the result. A result returned together with an error wrapping
	// domain.ErrSinkFailed is complete; only the sink rejected it.
	Ingest(ctx context.Context, path string) (*domain.IngestionResult, error)

	// IngestStream processes a container read from a non-seekable stream.
	IngestStream(ctx context.Context, name string, r io.Reader) (*domain.IngestionResult, error)

	// Inspect classifies every entry and runs schema detection on databases
	// without extracting records.
	Inspect(ctx context.Context, path string) ([]EntryInspection, error)

	// Status returns progress of the current ingestion.
	Status() IngestStatus
}

// EntryInspection is the classifier and detector view of one entry.
type EntryInspection struct {
	// Entry is the entry metadata including its classified kind.
	Entry domain.ArchiveEntry

	// Tables is the catalog of a database entry.
	Tables []domain.TableInfo

	// Profiles are the selected schema profiles of a database entry.
	Profiles []domain.SchemaProfile

	// Err is set when the entry could not be inspected.
	Err error
}

// IngestStatus represents the progress of an ingestion.
type IngestStatus struct {
	// ArchivePath is the container being processed.
	ArchivePath string

	// Running indicates if ingestion is in progress.
	Running bool

	// EntriesTotal is the number of entries in the container.
	EntriesTotal int

	// EntriesDone is the number of entries finished.
	EntriesDone int

	// RecordsExtracted is the number of records extracted before merging.
	RecordsExtracted int

	// FailedEntries is the number of entries marked failed.
	FailedEntries int
}
