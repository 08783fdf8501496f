package schema

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/custodia-labs/ingestor/internal/core/domain"
	"github.com/custodia-labs/ingestor/internal/core/ports/driven"
	"github.com/custodia-labs/ingestor/internal/logger"
)

// Ensure Detector implements the interface.
var _ driven.SchemaDetector = (*Detector)(nil)

// scoreEpsilon is the difference below which two scores tie.
const scoreEpsilon = 1e-9

// Detector selects at most one table per record family.
type Detector struct {
	registry   *Registry
	matcher    *Matcher
	threshold  float64
	tieBreak   []domain.TieBreakRule
	countLimit int64
}

// Option configures a Detector.
type Option func(*Detector)

// WithRegistry sets the signature registry. Defaults to DefaultRegistry.
func WithRegistry(r *Registry) Option {
	return func(d *Detector) {
		if r != nil {
			d.registry = r
		}
	}
}

// WithThreshold sets the minimum confidence for selection.
func WithThreshold(t float64) Option {
	return func(d *Detector) {
		d.threshold = t
	}
}

// WithTieBreak sets the tie-break policy.
func WithTieBreak(rules []domain.TieBreakRule) Option {
	return func(d *Detector) {
		if len(rules) > 0 {
			d.tieBreak = append([]domain.TieBreakRule(nil), rules...)
		}
	}
}

// WithWeights overrides the scoring weights.
func WithWeights(w Weights) Option {
	return func(d *Detector) {
		d.matcher = NewMatcher(w)
	}
}

// WithRowCountLimit caps the row count per table.
func WithRowCountLimit(n int64) Option {
	return func(d *Detector) {
		if n > 0 {
			d.countLimit = n
		}
	}
}

// NewDetector creates a detector.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{
		registry:   DefaultRegistry(),
		matcher:    NewMatcher(DefaultWeights()),
		threshold:  domain.DefaultDetectionThreshold,
		tieBreak:   domain.DefaultTieBreak(),
		countLimit: domain.DefaultRowCountLimit,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry returns the detector's signature registry.
func (d *Detector) Registry() *Registry {
	return d.registry
}

// Matcher returns the detector's matcher.
func (d *Detector) Matcher() *Matcher {
	return d.matcher
}

// Detect reads the database catalog and selects tables.
func (d *Detector) Detect(ctx context.Context, db driven.Database) ([]domain.SchemaProfile, error) {
	tables, err := db.Catalog(ctx, d.countLimit)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, domain.ErrUnreadableDatabase) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrUnreadableDatabase, err)
	}
	return d.DetectTables(tables), nil
}

// DetectTables selects at most one table per family from a catalog.
func (d *Detector) DetectTables(tables []domain.TableInfo) []domain.SchemaProfile {
	var profiles []domain.SchemaProfile
	cands := d.Candidates(tables)
	for _, family := range domain.Families() {
		if c, ok := d.Select(cands, family); ok {
			logger.Debug("Detected %s table %s (signature %s, score %.2f)", family, c.Table, c.Signature, c.Score)
			profiles = append(profiles, c.Profile())
		}
	}
	return profiles
}

// Candidates scores every table against every signature and keeps, per
// table, the candidates of the family the table fits best. A table is
// never claimed by two families.
func (d *Detector) Candidates(tables []domain.TableInfo) []Candidate {
	var out []Candidate
	for _, t := range tables {
		var perFamily []Candidate
		for _, family := range domain.Families() {
			if c, ok := d.BestForFamily(t, family, tables...); ok {
				perFamily = append(perFamily, c)
			}
		}
		if len(perFamily) == 0 {
			continue
		}

		top := perFamily[0]
		for _, c := range perFamily[1:] {
			if c.Score > top.Score+scoreEpsilon || (math.Abs(c.Score-top.Score) <= scoreEpsilon && c.NameHint && !top.NameHint) {
				top = c
			}
		}
		out = append(out, top)
	}
	return out
}

// BestForFamily returns the best signature match of one table for one
// family, ignoring the threshold. catalog resolves lookup columns.
func (d *Detector) BestForFamily(
	t domain.TableInfo,
	family domain.RecordFamily,
	catalog ...domain.TableInfo,
) (Candidate, bool) {
	var best Candidate
	found := false
	for i := range d.registry.signatures {
		sig := &d.registry.signatures[i]
		if sig.Family != family {
			continue
		}
		c, ok := d.matcher.Match(sig, t, catalog...)
		if !ok {
			continue
		}
		// Signatures are priority ordered, so a tie keeps the earlier one.
		if !found || c.Score > best.Score+scoreEpsilon {
			best = c
			found = true
		}
	}
	return best, found
}

// Select picks the best candidate of a family above threshold.
func (d *Detector) Select(cands []Candidate, family domain.RecordFamily) (Candidate, bool) {
	var best Candidate
	found := false
	for _, c := range cands {
		if c.Family != family || c.Score < d.threshold {
			continue
		}
		if !found || d.better(c, best) {
			best = c
			found = true
		}
	}
	return best, found
}

// better reports whether a outranks b: higher score, then the tie-break policy.
func (d *Detector) better(a, b Candidate) bool {
	if math.Abs(a.Score-b.Score) > scoreEpsilon {
		return a.Score > b.Score
	}
	for _, rule := range d.tieBreak {
		switch rule {
		case domain.TieBreakNameHint:
			if a.NameHint != b.NameHint {
				return a.NameHint
			}
		case domain.TieBreakSignaturePriority:
			if a.Priority != b.Priority {
				return a.Priority > b.Priority
			}
		case domain.TieBreakRowCount:
			if a.RowCount != b.RowCount {
				return a.RowCount > b.RowCount
			}
		case domain.TieBreakTableName:
			if a.Table != b.Table {
				return a.Table < b.Table
			}
		}
	}
	return false
}
