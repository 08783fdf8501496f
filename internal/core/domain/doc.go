// Package domain defines the core entities of the ingestion engine.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - ArchiveEntry: A file-like unit inside an extraction container
//   - SchemaProfile: A detected table and its canonical column mapping
//   - Record: A canonical chat message, call record or contact entry
//   - IngestionReport: The per-entry processing outcome
//   - IngestionResult: Records plus reports for one container
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
