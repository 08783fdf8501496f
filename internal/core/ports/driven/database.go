package driven

import (
	"context"

	"github.com/custodia-labs/ingestor/internal/core/domain"
)

// DatabaseOpener opens embedded databases that have been spooled to disk.
type DatabaseOpener interface {
	// OpenDatabase opens a database read-only.
	// Returns an error wrapping domain.ErrUnreadableDatabase if the catalog
	// cannot be read (encryption, truncation, garbage header).
	OpenDatabase(ctx context.Context, path string) (Database, error)
}

// Database is an opened embedded database.
type Database interface {
	// Catalog lists user tables with their columns, foreign keys and a
	// row count capped at countLimit.
	Catalog(ctx context.Context, countLimit int64) ([]domain.TableInfo, error)

	// Rows streams the given columns of a table.
	Rows(ctx context.Context, table string, columns []string) (RowIterator, error)

	// Close releases the database handle.
	Close() error
}

// RowIterator streams rows from a table.
type RowIterator interface {
	// Next advances to the next row.
	Next() bool

	// Values returns the current row in the requested column order.
	// The slice is reused between calls.
	Values() []any

	// Err returns the error that stopped iteration, if any.
	Err() error

	// Close releases the iterator.
	Close() error
}
