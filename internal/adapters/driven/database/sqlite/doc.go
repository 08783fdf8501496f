// Package sqlite opens embedded SQLite databases found inside extraction
// containers and exposes their catalog and rows through driven.Database.
//
// Databases are opened read-only and immutable through modernc.org/sqlite,
// a pure Go driver, so evidence files are never modified and no CGO is
// required. Every query is parameterised or uses quoted identifiers.
package sqlite
