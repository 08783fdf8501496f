package driven

import "github.com/custodia-labs/ingestor/internal/core/domain"

// Classifier decides the content kind of an archive entry from its
// header bytes and path.
type Classifier interface {
	// Classify returns the content kind. It never fails: unrecognised
	// content is domain.ContentUnknown.
	Classify(path string, header []byte) domain.ContentKind

	// HeaderSize returns how many leading bytes Classify wants to see.
	HeaderSize() int
}
