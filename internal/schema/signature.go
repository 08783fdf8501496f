package schema

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/gobwas/glob"

	"github.com/custodia-labs/ingestor/internal/core/domain"
)

// FieldKind is the value shape a canonical field expects.
type FieldKind string

// Field kinds.
const (
	// KindText is free text (message bodies, names).
	KindText FieldKind = "text"

	// KindIdentifier is a phone number or handle, text or integer.
	KindIdentifier FieldKind = "identifier"

	// KindInteger is a count or flag.
	KindInteger FieldKind = "integer"

	// KindTimestamp is an epoch number or a date string.
	KindTimestamp FieldKind = "timestamp"

	// KindEnum is a small code, numeric or textual.
	KindEnum FieldKind = "enum"

	// KindAny accepts every column type.
	KindAny FieldKind = "any"
)

// IsValid returns true if the kind is recognised.
func (k FieldKind) IsValid() bool {
	switch k {
	case KindText, KindIdentifier, KindInteger, KindTimestamp, KindEnum, KindAny:
		return true
	default:
		return false
	}
}

// FieldSpec describes one canonical field of a signature.
type FieldSpec struct {
	// Canonical is the canonical field name (domain.Field* constants).
	Canonical string `toml:"canonical"`

	// Aliases are column names that carry the field, matched case-insensitively
	// with underscores, dashes and spaces ignored.
	Aliases []string `toml:"aliases"`

	// Kind is the expected value shape.
	Kind FieldKind `toml:"kind"`

	// Required rejects a table that has no column for the field.
	Required bool `toml:"required"`

	// Weight is the field's share of the name score.
	Weight float64 `toml:"weight"`

	// Lookups name columns that hold a row reference instead of the value.
	// Such a column carries the field only when every hop resolves in the
	// same database.
	Lookups []Lookup `toml:"lookups"`
}

// Lookup resolves a row-reference column through one or more tables.
type Lookup struct {
	// Column is the referencing column, matched exactly after normalisation.
	Column string `toml:"column"`

	// Via lists the hops from the stored reference to the field value.
	Via []Hop `toml:"via"`
}

// Hop is one step of a lookup.
type Hop struct {
	Table string `toml:"table"`
	Key   string `toml:"key"`
	Value string `toml:"value"`
}

// lookupFor returns the hops declared for a normalised column name.
func (f *FieldSpec) lookupFor(col string) ([]Hop, bool) {
	for _, l := range f.Lookups {
		if normalizeName(l.Column) == col {
			return l.Via, true
		}
	}
	return nil, false
}

// Signature is a named description of a table shape for one record family.
type Signature struct {
	// Name identifies the signature in profiles and logs.
	Name string `toml:"name"`

	// Family is the record family the shape describes.
	Family domain.RecordFamily `toml:"family"`

	// Priority orders signatures for tie-breaking; vendor signatures use 50-100,
	// generic heuristics 1-49.
	Priority int `toml:"priority"`

	// TablePatterns restrict the signature to matching table names (glob,
	// case-insensitive). Empty means every table.
	TablePatterns []string `toml:"tables"`

	// Fields are the canonical fields the shape provides.
	Fields []FieldSpec `toml:"fields"`

	tableMatchers []glob.Glob
	normAliases   [][]string
}

// AppliesTo reports whether the signature considers the table at all.
func (s *Signature) AppliesTo(table string) bool {
	if len(s.tableMatchers) == 0 {
		return true
	}
	lower := strings.ToLower(table)
	for _, m := range s.tableMatchers {
		if m.Match(lower) {
			return true
		}
	}
	return false
}

// compile validates the signature and prepares matchers.
func (s *Signature) compile() error {
	if s.Name == "" {
		return fmt.Errorf("%w: signature without name", domain.ErrInvalidInput)
	}
	if !s.Family.IsValid() {
		return fmt.Errorf("%w: signature %s: unknown family %q", domain.ErrInvalidInput, s.Name, s.Family)
	}
	if len(s.Fields) == 0 {
		return fmt.Errorf("%w: signature %s has no fields", domain.ErrInvalidInput, s.Name)
	}

	s.tableMatchers = nil
	for _, p := range s.TablePatterns {
		m, err := glob.Compile(strings.ToLower(p))
		if err != nil {
			return fmt.Errorf("%w: signature %s: table pattern %q: %v", domain.ErrInvalidInput, s.Name, p, err)
		}
		s.tableMatchers = append(s.tableMatchers, m)
	}

	s.normAliases = make([][]string, len(s.Fields))
	seen := make(map[string]bool)
	for i := range s.Fields {
		f := &s.Fields[i]
		if f.Canonical == "" {
			return fmt.Errorf("%w: signature %s: field without canonical name", domain.ErrInvalidInput, s.Name)
		}
		if seen[f.Canonical] {
			return fmt.Errorf("%w: signature %s: duplicate field %s", domain.ErrInvalidInput, s.Name, f.Canonical)
		}
		seen[f.Canonical] = true
		if f.Kind == "" {
			f.Kind = KindAny
		}
		if !f.Kind.IsValid() {
			return fmt.Errorf("%w: signature %s: field %s: unknown kind %q", domain.ErrInvalidInput, s.Name, f.Canonical, f.Kind)
		}
		if f.Weight <= 0 {
			f.Weight = 1
		}
		aliases := f.Aliases
		if len(aliases) == 0 {
			aliases = []string{f.Canonical}
		}
		for _, a := range aliases {
			if n := normalizeName(a); n != "" {
				s.normAliases[i] = append(s.normAliases[i], n)
			}
		}
		for _, l := range f.Lookups {
			if err := l.validate(); err != nil {
				return fmt.Errorf("%w: signature %s: field %s: %v", domain.ErrInvalidInput, s.Name, f.Canonical, err)
			}
			if n := normalizeName(l.Column); !slices.Contains(s.normAliases[i], n) {
				s.normAliases[i] = append(s.normAliases[i], n)
			}
		}
	}
	return nil
}

func (l Lookup) validate() error {
	if normalizeName(l.Column) == "" {
		return errors.New("lookup without column")
	}
	if len(l.Via) == 0 {
		return fmt.Errorf("lookup %s has no hops", l.Column)
	}
	for _, h := range l.Via {
		if h.Table == "" || h.Key == "" || h.Value == "" {
			return fmt.Errorf("lookup %s: hop needs table, key and value", l.Column)
		}
	}
	return nil
}

// Registry is an immutable, priority-ordered set of signatures.
// It is safe for concurrent use.
type Registry struct {
	signatures []Signature
}

// NewRegistry validates and orders the given signatures.
func NewRegistry(sigs ...Signature) (*Registry, error) {
	r := &Registry{signatures: make([]Signature, 0, len(sigs))}
	names := make(map[string]bool)
	for _, s := range sigs {
		s.Fields = append([]FieldSpec(nil), s.Fields...)
		if err := s.compile(); err != nil {
			return nil, err
		}
		if names[s.Name] {
			return nil, fmt.Errorf("%w: duplicate signature %s", domain.ErrInvalidInput, s.Name)
		}
		names[s.Name] = true
		r.signatures = append(r.signatures, s)
	}
	sort.SliceStable(r.signatures, func(i, j int) bool {
		if r.signatures[i].Priority != r.signatures[j].Priority {
			return r.signatures[i].Priority > r.signatures[j].Priority
		}
		return r.signatures[i].Name < r.signatures[j].Name
	})
	return r, nil
}

// With returns a new registry holding the receiver's signatures plus extra.
// A signature in extra replaces a same-named one.
func (r *Registry) With(extra ...Signature) (*Registry, error) {
	replaced := make(map[string]bool, len(extra))
	for _, s := range extra {
		replaced[s.Name] = true
	}
	all := make([]Signature, 0, len(r.signatures)+len(extra))
	for _, s := range r.signatures {
		if !replaced[s.Name] {
			all = append(all, s)
		}
	}
	all = append(all, extra...)
	return NewRegistry(all...)
}

// Signatures returns every signature in priority order.
func (r *Registry) Signatures() []Signature {
	return append([]Signature(nil), r.signatures...)
}

// ForFamily returns the signatures of one family in priority order.
func (r *Registry) ForFamily(family domain.RecordFamily) []Signature {
	var out []Signature
	for _, s := range r.signatures {
		if s.Family == family {
			out = append(out, s)
		}
	}
	return out
}

// Len returns the number of signatures.
func (r *Registry) Len() int {
	return len(r.signatures)
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	r, err := NewRegistry(BuiltinSignatures()...)
	if err != nil {
		panic(fmt.Sprintf("schema: invalid built-in signatures: %v", err))
	}
	return r
})

// DefaultRegistry returns the process-wide registry of built-in signatures.
func DefaultRegistry() *Registry {
	return defaultRegistry()
}

// normalizeName lowercases a column name and drops separators.
func normalizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		switch r {
		case '_', '-', ' ', '.':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
