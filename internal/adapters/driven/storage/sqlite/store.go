package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/ingestor/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/ingestor/internal/core/domain"
	"github.com/custodia-labs/ingestor/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.RunStore = (*Store)(nil)

// timeLayout is used for every stored timestamp so values sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store is a SQLite-backed record sink that keeps every ingestion run.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.ingestor/data/results.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".ingestor", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "results.db")

	// WAL for concurrent readers; foreign keys on every pooled connection
	db, err := sql.Open("sqlite", dbPath+
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// Write stores a run with its reports and records in one transaction.
func (s *Store) Write(ctx context.Context, result *domain.IngestionResult) error {
	if result == nil || result.RunID == "" {
		return fmt.Errorf("%w: result without run id", domain.ErrInvalidInput)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, archive_path, started_at, finished_at, duplicates_removed, record_count)
		VALUES (?, ?, ?, ?, ?, ?)
	`, result.RunID, result.ArchivePath, formatTime(result.StartedAt), formatTime(result.FinishedAt),
		result.DuplicatesRemoved, len(result.Records))
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}

	for i, rep := range result.Reports {
		if err := insertReport(ctx, tx, result.RunID, i, rep); err != nil {
			return err
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (id, run_id, position, family, source_entry_path, source_table,
			participant, direction, body, duration_seconds, timestamp_utc, raw_timestamp,
			display_name, identifiers, merged_from)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing record insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range result.Records {
		args, err := recordArgs(rec)
		if err != nil {
			return err
		}
		args = append([]any{rec.ID, result.RunID, i}, args...)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("saving record %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing run: %w", err)
	}
	return nil
}

func insertReport(ctx context.Context, tx *sql.Tx, runID string, pos int, rep domain.IngestionReport) error {
	profiles := rep.Profiles
	if profiles == nil {
		profiles = []domain.SchemaProfile{}
	}
	profilesJSON, err := json.Marshal(profiles)
	if err != nil {
		return fmt.Errorf("marshalling profiles: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entry_reports (run_id, position, entry_path, kind, status, record_count,
			skipped_rows, error_detail, duration_ms, profiles)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, pos, rep.EntryPath, string(rep.Kind), string(rep.Status), rep.RecordCount,
		rep.SkippedRows, nullString(rep.ErrorDetail), rep.Duration.Milliseconds(), string(profilesJSON))
	if err != nil {
		return fmt.Errorf("saving report for %s: %w", rep.EntryPath, err)
	}
	return nil
}

// recordArgs returns the columns from family through merged_from.
func recordArgs(rec domain.Record) ([]any, error) {
	if !rec.Valid() {
		return nil, fmt.Errorf("%w: record %s has no valid payload", domain.ErrInvalidInput, rec.ID)
	}

	merged, err := jsonList(rec.MergedFrom)
	if err != nil {
		return nil, err
	}

	var (
		participant, direction, body, rawTS, name, identifiers sql.NullString
		duration                                               sql.NullInt64
		ts                                                     sql.NullString
	)

	switch rec.Family {
	case domain.FamilyChat:
		c := rec.Chat
		participant = nullString(c.ParticipantIdentifier)
		direction = nullString(string(c.Direction))
		body = sql.NullString{String: c.Body, Valid: true}
		ts = nullTime(c.TimestampUTC)
		rawTS = nullString(c.RawTimestampValue)
	case domain.FamilyCall:
		c := rec.Call
		participant = nullString(c.ParticipantIdentifier)
		direction = nullString(string(c.Direction))
		if c.DurationSeconds != nil {
			duration = sql.NullInt64{Int64: *c.DurationSeconds, Valid: true}
		}
		ts = nullTime(c.TimestampUTC)
		rawTS = nullString(c.RawTimestampValue)
	case domain.FamilyContact:
		c := rec.Contact
		name = nullString(c.DisplayName)
		ids, err := jsonList(c.Identifiers)
		if err != nil {
			return nil, err
		}
		identifiers = sql.NullString{String: ids, Valid: true}
	}

	return []any{
		string(rec.Family), rec.SourceEntryPath(), nullString(rec.SourceTable),
		participant, direction, body, duration, ts, rawTS, name, identifiers, merged,
	}, nil
}

// GetRun loads a stored run with its reports and records.
func (s *Store) GetRun(ctx context.Context, id string) (*domain.IngestionResult, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, archive_path, started_at, finished_at, duplicates_removed
		FROM runs WHERE id = ?
	`, id)

	var result domain.IngestionResult
	var started, finished string
	if err := row.Scan(&result.RunID, &result.ArchivePath, &started, &finished, &result.DuplicatesRemoved); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning run: %w", err)
	}
	result.StartedAt = parseTime(started)
	result.FinishedAt = parseTime(finished)

	var err error
	if result.Reports, err = s.reports(ctx, id); err != nil {
		return nil, err
	}
	if result.Records, err = s.records(ctx, id, ""); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListRuns returns every stored run, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]domain.RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, archive_path, started_at, finished_at, record_count, duplicates_removed
		FROM runs ORDER BY started_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.RunSummary //nolint:prealloc // size unknown from query
	for rows.Next() {
		var r domain.RunSummary
		var started, finished string
		if err := rows.Scan(&r.ID, &r.ArchivePath, &started, &finished, &r.RecordCount, &r.DuplicatesRemoved); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt = parseTime(started)
		r.FinishedAt = parseTime(finished)
		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// Records returns the stored records of a run, optionally limited to one family.
func (s *Store) Records(ctx context.Context, runID string, family domain.RecordFamily) ([]domain.Record, error) {
	return s.records(ctx, runID, family)
}

// DeleteRun removes a run and everything stored with it.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) reports(ctx context.Context, runID string) ([]domain.IngestionReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entry_path, kind, status, record_count, skipped_rows, error_detail, duration_ms, profiles
		FROM entry_reports WHERE run_id = ? ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying reports: %w", err)
	}
	defer rows.Close()

	var reports []domain.IngestionReport //nolint:prealloc // size unknown from query
	for rows.Next() {
		var rep domain.IngestionReport
		var kind, status, profiles string
		var detail sql.NullString
		var durationMS int64
		if err := rows.Scan(&rep.EntryPath, &kind, &status, &rep.RecordCount, &rep.SkippedRows,
			&detail, &durationMS, &profiles); err != nil {
			return nil, fmt.Errorf("scanning report: %w", err)
		}
		rep.Kind = domain.ContentKind(kind)
		rep.Status = domain.EntryStatus(status)
		rep.ErrorDetail = detail.String
		rep.Duration = time.Duration(durationMS) * time.Millisecond
		if err := json.Unmarshal([]byte(profiles), &rep.Profiles); err != nil {
			return nil, fmt.Errorf("unmarshaling profiles: %w", err)
		}
		if len(rep.Profiles) == 0 {
			rep.Profiles = nil
		}
		reports = append(reports, rep)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reports: %w", err)
	}
	return reports, nil
}

func (s *Store) records(ctx context.Context, runID string, family domain.RecordFamily) ([]domain.Record, error) {
	query := `
		SELECT id, family, source_entry_path, source_table, participant, direction, body,
			duration_seconds, timestamp_utc, raw_timestamp, display_name, identifiers, merged_from
		FROM records WHERE run_id = ?`
	args := []any{runID}
	if family != "" {
		query += " AND family = ?"
		args = append(args, string(family))
	}
	query += " ORDER BY position"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var records []domain.Record //nolint:prealloc // size unknown from query
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return records, nil
}

func scanRecord(rows *sql.Rows) (domain.Record, error) {
	var (
		id, family, path, merged                                       string
		table, participant, direction, body, ts, rawTS, name, idsJSON sql.NullString
		duration                                                       sql.NullInt64
	)
	if err := rows.Scan(&id, &family, &path, &table, &participant, &direction, &body,
		&duration, &ts, &rawTS, &name, &idsJSON, &merged); err != nil {
		return domain.Record{}, fmt.Errorf("scanning record: %w", err)
	}

	var rec domain.Record
	switch domain.RecordFamily(family) {
	case domain.FamilyChat:
		rec = domain.NewChatRecord(id, table.String, domain.ChatMessage{
			SourceEntryPath:       path,
			ParticipantIdentifier: participant.String,
			Direction:             domain.Direction(direction.String),
			Body:                  body.String,
			TimestampUTC:          timePtr(ts),
			RawTimestampValue:     rawTS.String,
		})
	case domain.FamilyCall:
		call := domain.CallRecord{
			SourceEntryPath:       path,
			ParticipantIdentifier: participant.String,
			Direction:             domain.Direction(direction.String),
			TimestampUTC:          timePtr(ts),
			RawTimestampValue:     rawTS.String,
		}
		if duration.Valid {
			d := duration.Int64
			call.DurationSeconds = &d
		}
		rec = domain.NewCallRecord(id, table.String, call)
	case domain.FamilyContact:
		contact := domain.ContactEntry{SourceEntryPath: path, DisplayName: name.String}
		if idsJSON.Valid {
			if err := json.Unmarshal([]byte(idsJSON.String), &contact.Identifiers); err != nil {
				return domain.Record{}, fmt.Errorf("unmarshaling identifiers: %w", err)
			}
			if len(contact.Identifiers) == 0 {
				contact.Identifiers = nil
			}
		}
		rec = domain.NewContactRecord(id, table.String, contact)
	default:
		return domain.Record{}, fmt.Errorf("%w: record family %q", domain.ErrUnsupportedType, family)
	}

	if err := json.Unmarshal([]byte(merged), &rec.MergedFrom); err != nil {
		return domain.Record{}, fmt.Errorf("unmarshaling merged_from: %w", err)
	}
	if len(rec.MergedFrom) == 0 {
		rec.MergedFrom = nil
	}
	return rec, nil
}

// nullString converts an empty string to NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func timePtr(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func jsonList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("marshalling list: %w", err)
	}
	return string(data), nil
}
