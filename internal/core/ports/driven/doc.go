// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the engine to function:
//
//   - ArchiveOpener / Archive / Entry: Container access (ZIP)
//   - Classifier: Decides the content kind of an entry
//   - DatabaseOpener / Database: Embedded database access (SQLite)
//   - SchemaDetector: Locates chat, call and contact tables
//   - RecordExtractor: Maps table rows to canonical records
//   - MarkupExtractor: Maps markup reports to canonical records
//   - RecordMerger: Deduplicates records across entries
//
// # Optional Interfaces
//
// These can be nil - the engine degrades gracefully:
//
//   - RecordSink: Hands results to a downstream collaborator
//   - RunStore: A RecordSink that keeps runs for later review
//   - ConfigStore: Persisted configuration
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or extractor package
package driven
