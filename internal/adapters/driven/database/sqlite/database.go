package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/ingestor/internal/core/domain"
	"github.com/custodia-labs/ingestor/internal/core/ports/driven"
	"github.com/custodia-labs/ingestor/internal/logger"
)

// Verify interface compliance.
var (
	_ driven.DatabaseOpener = (*Opener)(nil)
	_ driven.Database       = (*Database)(nil)
	_ driven.RowIterator    = (*rowIterator)(nil)
)

// skippedTables are bookkeeping tables that never hold records.
var skippedTables = map[string]bool{
	"android_metadata": true,
	"room_master_table": true,
}

// Opener opens spooled database files.
type Opener struct{}

// NewOpener creates a database opener.
func NewOpener() *Opener {
	return &Opener{}
}

// OpenDatabase opens the file read-only and verifies that the catalog is readable.
func (o *Opener) OpenDatabase(ctx context.Context, path string) (driven.Database, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", domain.ErrUnreadableDatabase, path, err)
	}
	db.SetMaxOpenConns(1)

	// sql.Open is lazy; touching the catalog surfaces garbage headers,
	// encryption and truncation.
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master").Scan(&n); err != nil {
		db.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrUnreadableDatabase, path, err)
	}

	return &Database{db: db, path: path}, nil
}

// dsn builds a read-only, immutable URI for the file.
func dsn(path string) string {
	u := url.URL{Scheme: "file", Path: path, RawQuery: "mode=ro&immutable=1"}
	return u.String()
}

// Database is an opened SQLite file.
type Database struct {
	db   *sql.DB
	path string
}

// Path returns the file the database was opened from.
func (d *Database) Path() string {
	return d.path
}

// Catalog lists user tables and views with columns, foreign keys and a
// capped row count. Vendor databases often expose records only through views
// (view_data in contacts2.db). A table whose details cannot be read (for
// example a virtual table whose module is unavailable, or a view over a
// missing table) is skipped.
func (d *Database) Catalog(ctx context.Context, countLimit int64) ([]domain.TableInfo, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite\_%' ESCAPE '\'
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: listing tables: %v", domain.ErrUnreadableDatabase, err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%w: scanning table name: %v", domain.ErrUnreadableDatabase, err)
		}
		if !skippedTables[strings.ToLower(name)] {
			names = append(names, name)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("%w: listing tables: %v", domain.ErrUnreadableDatabase, err)
	}
	rows.Close()

	tables := make([]domain.TableInfo, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t, err := d.describe(ctx, name, countLimit)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Debug("Skipping table %s in %s: %v", name, d.path, err)
			continue
		}
		tables = append(tables, t)
	}
	return tables, nil
}

// describe reads one table's columns, foreign keys and row count.
func (d *Database) describe(ctx context.Context, name string, countLimit int64) (domain.TableInfo, error) {
	t := domain.TableInfo{Name: name}

	cols, err := d.db.QueryContext(ctx, "SELECT name, type FROM pragma_table_info(?) ORDER BY cid", name)
	if err != nil {
		return t, fmt.Errorf("reading columns: %w", err)
	}
	for cols.Next() {
		var c domain.ColumnInfo
		if err := cols.Scan(&c.Name, &c.DeclType); err != nil {
			cols.Close()
			return t, fmt.Errorf("scanning column: %w", err)
		}
		c.Affinity = domain.AffinityOf(c.DeclType)
		t.Columns = append(t.Columns, c)
	}
	err = cols.Err()
	cols.Close()
	if err != nil {
		return t, fmt.Errorf("reading columns: %w", err)
	}
	if len(t.Columns) == 0 {
		return t, fmt.Errorf("table has no columns")
	}

	fks, err := d.db.QueryContext(ctx, `SELECT "table", "from", COALESCE("to", '') FROM pragma_foreign_key_list(?)`, name)
	if err != nil {
		return t, fmt.Errorf("reading foreign keys: %w", err)
	}
	for fks.Next() {
		var fk domain.ForeignKey
		if err := fks.Scan(&fk.Table, &fk.From, &fk.To); err != nil {
			fks.Close()
			return t, fmt.Errorf("scanning foreign key: %w", err)
		}
		t.ForeignKeys = append(t.ForeignKeys, fk)
	}
	err = fks.Err()
	fks.Close()
	if err != nil {
		return t, fmt.Errorf("reading foreign keys: %w", err)
	}

	if countLimit <= 0 {
		countLimit = domain.DefaultRowCountLimit
	}
	query := "SELECT COUNT(*) FROM (SELECT 1 FROM " + quoteIdent(name) + " LIMIT ?)"
	if err := d.db.QueryRowContext(ctx, query, countLimit).Scan(&t.RowCount); err != nil {
		return t, fmt.Errorf("counting rows: %w", err)
	}

	return t, nil
}

// Rows streams the given columns of a table in rowid order where available.
func (d *Database) Rows(ctx context.Context, table string, columns []string) (driven.RowIterator, error) {
	if table == "" || len(columns) == 0 {
		return nil, fmt.Errorf("%w: table and columns required", domain.ErrInvalidInput)
	}

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
	}
	query := "SELECT " + strings.Join(quoted, ", ") + " FROM " + quoteIdent(table)

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", table, err)
	}

	it := &rowIterator{
		rows:   rows,
		values: make([]any, len(columns)),
		ptrs:   make([]any, len(columns)),
	}
	for i := range it.values {
		it.ptrs[i] = &it.values[i]
	}
	return it, nil
}

// Close closes the database handle.
func (d *Database) Close() error {
	return d.db.Close()
}

// rowIterator adapts sql.Rows to driven.RowIterator.
type rowIterator struct {
	rows   *sql.Rows
	values []any
	ptrs   []any
	err    error
}

func (it *rowIterator) Next() bool {
	if it.err != nil || !it.rows.Next() {
		return false
	}
	for i := range it.values {
		it.values[i] = nil
	}
	if err := it.rows.Scan(it.ptrs...); err != nil {
		it.err = fmt.Errorf("scanning row: %w", err)
		return false
	}
	return true
}

func (it *rowIterator) Values() []any {
	return it.values
}

func (it *rowIterator) Err() error {
	if it.err != nil {
		return it.err
	}
	return it.rows.Err()
}

func (it *rowIterator) Close() error {
	return it.rows.Close()
}

// quoteIdent quotes an SQL identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
