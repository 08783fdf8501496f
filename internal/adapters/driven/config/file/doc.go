// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data to the local filesystem.
//
// Adapters:
//   - ConfigStore: TOML-based configuration storage with .env and
//     INGESTOR_* environment overrides
//   - LoadSettings: maps configuration keys onto ingestion settings
package file
