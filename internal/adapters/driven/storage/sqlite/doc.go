// Package sqlite provides a SQLite-backed record sink that keeps ingestion
// runs for later review.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. One database holds:
//
//   - runs: one row per ingested archive
//   - entry_reports: the per-entry outcome of each run, in archive order
//   - records: canonical chat, call and contact records
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.ingestor/data/results.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
