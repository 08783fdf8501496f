// Package schema locates chat, call and contact tables in databases whose
// layout is not known in advance.
//
// Detection is a ranked-candidate search. Every table is scored against
// every signature of every record family by one generic matcher; a
// signature is a declarative descriptor (field aliases, expected kinds,
// weights, optional table-name globs), so vendor knowledge is data, not
// code. New signatures are added by building a new Registry, typically
// from a TOML file, without touching the matcher.
//
// Scoring combines:
//   - column-name matches (exact alias, containment, Levenshtein similarity)
//   - column type compatibility with the expected field kind
//   - row-count sanity (non-empty tables score higher)
//   - a small structural bonus for thread links on chat tables
//
// The default registry is built once and is read-only afterwards; it is
// shared by concurrent entry workers without locking.
package schema
