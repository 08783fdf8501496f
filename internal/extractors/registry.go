package extractors

import (
	"sync"

	"github.com/custodia-labs/ingestor/internal/core/domain"
	"github.com/custodia-labs/ingestor/internal/core/ports/driven"
)

// Ensure Registry implements the interface.
var _ driven.ExtractorRegistry = (*Registry)(nil)

// Registry maps record families to their extractors.
// It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	extractors map[domain.RecordFamily]driven.RecordExtractor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		extractors: make(map[domain.RecordFamily]driven.RecordExtractor),
	}
}

// NewDefaultRegistry creates a registry holding the chat, call and contact
// extractors, sharing one decoder.
func NewDefaultRegistry(decoder *Decoder) *Registry {
	r := NewRegistry()
	r.Register(NewChatExtractor(decoder))
	r.Register(NewCallExtractor(decoder))
	r.Register(NewContactExtractor())
	return r
}

// Register adds an extractor, replacing any previous one for its family.
func (r *Registry) Register(extractor driven.RecordExtractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extractors[extractor.Family()] = extractor
}

// Get returns the extractor for a family.
func (r *Registry) Get(family domain.RecordFamily) (driven.RecordExtractor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.extractors[family]
	return e, ok
}

// Families returns the families with a registered extractor, in detection order.
func (r *Registry) Families() []domain.RecordFamily {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.RecordFamily
	for _, f := range domain.Families() {
		if _, ok := r.extractors[f]; ok {
			out = append(out, f)
		}
	}
	return out
}
