package driven

import (
	"context"
	"io"

	"github.com/custodia-labs/ingestor/internal/core/domain"
)

// ArchiveOpener opens extraction containers.
type ArchiveOpener interface {
	// OpenFile opens a container on disk.
	// Returns an error wrapping domain.ErrArchiveCorrupt if the container
	// structure cannot be parsed.
	OpenFile(ctx context.Context, path string) (Archive, error)

	// OpenStream opens a container from a non-seekable stream.
	OpenStream(ctx context.Context, name string, r io.Reader) (Archive, error)
}

// Archive is an opened container.
type Archive interface {
	// Name returns the container's path or display name.
	Name() string

	// Entries lists the container's file entries in archive order.
	// Listing reads only the central directory; no content is decompressed.
	Entries() []Entry

	// Spool copies a stream into a temporary file for random access.
	// The returned release func removes the file; Close removes any left over.
	Spool(ctx context.Context, entry Entry, r io.Reader) (path string, release func(), err error)

	// Close releases every handle and temporary file held by the archive.
	Close() error
}

// Entry is one file-like unit inside a container.
type Entry interface {
	// Info returns the entry's descriptive metadata.
	Info() domain.ArchiveEntry

	// Open returns the entry's byte stream. It may be called once; the stream
	// holds a slot in the archive's open-stream budget until closed.
	Open(ctx context.Context) (io.ReadCloser, error)
}
