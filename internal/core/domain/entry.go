package domain

import "time"

// ContentKind is the classifier's verdict for an archive entry.
type ContentKind string

const (
	// ContentRelationalDB is an embedded relational database (SQLite).
	ContentRelationalDB ContentKind = "relational_db"

	// ContentMarkup is a textual markup report (XML and friends).
	ContentMarkup ContentKind = "markup"

	// ContentUnknown is anything the engine does not extract from.
	ContentUnknown ContentKind = "unknown"
)

// IsValid returns true if the content kind is recognised.
func (k ContentKind) IsValid() bool {
	switch k {
	case ContentRelationalDB, ContentMarkup, ContentUnknown:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (k ContentKind) String() string {
	return string(k)
}

// ArchiveEntry describes one file-like unit inside a container.
// The byte stream itself is owned by the archive reader; this is the
// descriptive half that travels into reports.
type ArchiveEntry struct {
	// Path is the entry's name inside the container, slash separated.
	Path string

	// Size is the uncompressed size in bytes.
	Size int64

	// CompressedSize is the stored size in bytes.
	CompressedSize int64

	// Modified is the entry's recorded modification time, if any.
	Modified time.Time

	// Kind is set once the classifier has seen the entry header.
	Kind ContentKind
}
