package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent ingestion failures.
// Only ErrArchiveCorrupt aborts an ingestion; the rest are contained at the
// entry or row level and surface through IngestionReport.
var (
	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown record family or content kind.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// Container Errors.

	// ErrArchiveCorrupt indicates the container structure cannot be parsed.
	// This is fatal for the whole ingestion.
	ErrArchiveCorrupt = errors.New("archive corrupt")

	// ErrArchiveClosed indicates the archive has already been closed.
	ErrArchiveClosed = errors.New("archive closed")

	// ErrStreamConsumed indicates an entry stream was opened a second time.
	ErrStreamConsumed = errors.New("entry stream already consumed")

	// ErrEntryTooLarge indicates an entry exceeds the configured spool ceiling.
	ErrEntryTooLarge = errors.New("entry exceeds size limit")

	// Entry Errors.

	// ErrUnreadableDatabase indicates a database catalog could not be opened
	// (encryption, truncation, garbage header).
	ErrUnreadableDatabase = errors.New("unreadable database")

	// ErrUnparseableMarkup indicates a markup entry could not be parsed.
	ErrUnparseableMarkup = errors.New("unparseable markup")

	// ErrExtractionTimeout indicates an entry exceeded its time budget.
	ErrExtractionTimeout = errors.New("extraction timeout")

	// Row Errors.

	// ErrRowMapping indicates a row lacks the column that identifies it.
	// Rows failing this way are counted, never raised.
	ErrRowMapping = errors.New("row mapping failure")

	// Boundary Errors.

	// ErrSinkFailed indicates a downstream record sink rejected the result.
	ErrSinkFailed = errors.New("record sink failed")
)

// EntryError ties an entry-level failure to the entry that produced it.
type EntryError struct {
	// Path is the archive entry path.
	Path string

	// Err is the underlying error, normally wrapping a domain sentinel.
	Err error
}

// Error implements the error interface.
func (e *EntryError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *EntryError) Unwrap() error {
	return e.Err
}
