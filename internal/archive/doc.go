// Package archive reads extraction containers (ZIP) without extracting
// them to disk.
//
// Entries are listed from the central directory only. Content is
// decompressed lazily, one single-pass stream per entry, and the number of
// concurrently open streams is bounded by a weighted semaphore so peak
// memory and handle usage stay flat regardless of archive size.
//
// Embedded databases need random access; Spool copies such a stream into
// a temporary file that is removed when released or when the archive closes.
package archive
