// Package classifier decides what kind of evidence an archive entry holds.
//
// Detection precedence:
//  1. Magic bytes of a known database file format
//  2. Glob path hints (extension conventions, configurable)
//  3. Text sniffing: text-decodable content is assumed to be markup
//
// Vendor tools rename files inconsistently, so content sniffing outranks names.
package classifier

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gobwas/glob"

	"github.com/custodia-labs/ingestor/internal/core/domain"
	"github.com/custodia-labs/ingestor/internal/core/ports/driven"
)

// Ensure Classifier implements the interface.
var _ driven.Classifier = (*Classifier)(nil)

// sqliteMagic is the 16-byte SQLite 3 file header.
var sqliteMagic = []byte("SQLite format 3\x00")

// Signature is a magic-byte prefix for a content kind.
type Signature struct {
	Name   string
	Offset int
	Magic  []byte
	Kind   domain.ContentKind
}

// DefaultSignatures returns the built-in magic-byte signatures.
func DefaultSignatures() []Signature {
	return []Signature{
		{Name: "sqlite3", Offset: 0, Magic: sqliteMagic, Kind: domain.ContentRelationalDB},
	}
}

// DefaultDatabasePatterns are path hints for embedded databases.
func DefaultDatabasePatterns() []string {
	return []string{"**.db", "**.sqlite", "**.sqlite3", "**.sqlitedb", "**.db3", "**.storedata"}
}

// DefaultMarkupPatterns are path hints for markup reports.
func DefaultMarkupPatterns() []string {
	return []string{"**.xml", "**.html", "**.htm"}
}

type pathHint struct {
	pattern string
	matcher glob.Glob
	kind    domain.ContentKind
}

// Classifier implements magic-byte, path-hint and text-sniffing classification.
// It is immutable after construction and safe for concurrent use.
type Classifier struct {
	signatures []Signature
	hints      []pathHint
	headerSize int
}

// Option configures a Classifier.
type Option func(*config)

type config struct {
	headerSize       int
	databasePatterns []string
	markupPatterns   []string
	signatures       []Signature
}

// WithHeaderSize sets how many leading bytes the classifier inspects.
func WithHeaderSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.headerSize = n
		}
	}
}

// WithDatabasePatterns adds glob path hints for databases.
func WithDatabasePatterns(patterns ...string) Option {
	return func(c *config) {
		c.databasePatterns = append(c.databasePatterns, patterns...)
	}
}

// WithMarkupPatterns adds glob path hints for markup.
func WithMarkupPatterns(patterns ...string) Option {
	return func(c *config) {
		c.markupPatterns = append(c.markupPatterns, patterns...)
	}
}

// WithSignatures adds magic-byte signatures.
func WithSignatures(sigs ...Signature) Option {
	return func(c *config) {
		c.signatures = append(c.signatures, sigs...)
	}
}

// New creates a classifier. Invalid glob patterns are reported as errors.
func New(opts ...Option) (*Classifier, error) {
	cfg := &config{
		headerSize:       domain.DefaultHeaderBytes,
		databasePatterns: DefaultDatabasePatterns(),
		markupPatterns:   DefaultMarkupPatterns(),
		signatures:       DefaultSignatures(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	c := &Classifier{
		signatures: cfg.signatures,
		headerSize: cfg.headerSize,
	}
	for _, sig := range cfg.signatures {
		if end := sig.Offset + len(sig.Magic); end > c.headerSize {
			c.headerSize = end
		}
	}

	if err := c.addHints(cfg.databasePatterns, domain.ContentRelationalDB); err != nil {
		return nil, err
	}
	if err := c.addHints(cfg.markupPatterns, domain.ContentMarkup); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Classifier) addHints(patterns []string, kind domain.ContentKind) error {
	for _, p := range patterns {
		m, err := glob.Compile(strings.ToLower(p), '/')
		if err != nil {
			return fmt.Errorf("%w: path pattern %q: %v", domain.ErrInvalidInput, p, err)
		}
		c.hints = append(c.hints, pathHint{pattern: p, matcher: m, kind: kind})
	}
	return nil
}

// HeaderSize returns how many leading bytes Classify wants to see.
func (c *Classifier) HeaderSize() int {
	return c.headerSize
}

// Classify returns the content kind of an entry. Empty entries are unknown
// whatever their name.
func (c *Classifier) Classify(path string, header []byte) domain.ContentKind {
	if len(header) == 0 {
		return domain.ContentUnknown
	}
	if kind, ok := c.byMagic(header); ok {
		return kind
	}
	if kind, ok := c.byPath(path); ok {
		return kind
	}
	if isText(header) {
		return domain.ContentMarkup
	}
	return domain.ContentUnknown
}

func (c *Classifier) byMagic(header []byte) (domain.ContentKind, bool) {
	for _, sig := range c.signatures {
		end := sig.Offset + len(sig.Magic)
		if len(header) >= end && bytes.Equal(header[sig.Offset:end], sig.Magic) {
			return sig.Kind, true
		}
	}
	return domain.ContentUnknown, false
}

func (c *Classifier) byPath(path string) (domain.ContentKind, bool) {
	lower := strings.ToLower(path)
	for _, h := range c.hints {
		if h.matcher.Match(lower) {
			return h.kind, true
		}
	}
	return domain.ContentUnknown, false
}

// isText reports whether the header sniffs as text of any flavour.
func isText(header []byte) bool {
	if len(bytes.TrimSpace(header)) == 0 {
		return false
	}
	for m := mimetype.Detect(header); m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}
