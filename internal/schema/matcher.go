package schema

import (
	"sort"
	"strings"

	"github.com/agext/levenshtein"

	"github.com/custodia-labs/ingestor/internal/core/domain"
)

// Name match strengths.
const (
	exactMatch       = 1.0
	containmentMatch = 0.8
	fuzzyScale       = 0.7
	fuzzyMinimum     = 0.75
)

// Weights are the shares of each scoring component.
type Weights struct {
	// Names is the weight of column-name matching.
	Names float64

	// Types is the weight of column type compatibility.
	Types float64

	// Rows is the weight of the non-empty table check.
	Rows float64

	// Structure is the bonus for structural hints (thread links).
	Structure float64
}

// DefaultWeights returns the weights used by the default detector.
func DefaultWeights() Weights {
	return Weights{Names: 0.6, Types: 0.25, Rows: 0.15, Structure: 0.05}
}

// Candidate is one table scored against one signature.
type Candidate struct {
	Table     string
	Family    domain.RecordFamily
	Signature string
	Priority  int
	Score     float64
	Mapping   map[string]string
	NameHint  bool
	RowCount  int64
	Lookups   map[string][]domain.LookupHop
}

// Profile converts the candidate into a schema profile.
func (c Candidate) Profile() domain.SchemaProfile {
	mapping := make(map[string]string, len(c.Mapping))
	for k, v := range c.Mapping {
		mapping[k] = v
	}
	var lookups map[string][]domain.LookupHop
	if len(c.Lookups) > 0 {
		lookups = make(map[string][]domain.LookupHop, len(c.Lookups))
		for k, v := range c.Lookups {
			lookups[k] = append([]domain.LookupHop(nil), v...)
		}
	}
	return domain.SchemaProfile{
		Family:          c.Family,
		TableName:       c.Table,
		ColumnMapping:   mapping,
		ConfidenceScore: c.Score,
		SignatureName:   c.Signature,
		NameHint:        c.NameHint,
		RowCount:        c.RowCount,
		Lookups:         lookups,
	}
}

// Matcher scores tables against signatures. It holds no mutable state.
type Matcher struct {
	weights Weights
}

// NewMatcher creates a matcher with the given weights.
func NewMatcher(w Weights) *Matcher {
	return &Matcher{weights: w}
}

type fieldColumn struct {
	field  int
	column int
	name   float64
	typ    float64
	rank   float64
}

// Match scores a table against a signature. It returns false when the
// signature does not apply to the table or a required field has no column.
//
// catalog is the rest of the database. A lookup column only carries its
// field when every hop resolves in catalog, and an integer row-reference
// column never carries an identifier field on its own.
func (m *Matcher) Match(sig *Signature, table domain.TableInfo, catalog ...domain.TableInfo) (Candidate, bool) {
	if !sig.AppliesTo(table.Name) {
		return Candidate{}, false
	}

	normCols := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		normCols[i] = normalizeName(c.Name)
	}

	var pairs []fieldColumn
	var refs map[fieldColumnKey][]domain.LookupHop
	for fi, f := range sig.Fields {
		for ci, col := range table.Columns {
			nm := nameMatch(sig.normAliases[fi], normCols[ci])
			if nm == 0 {
				continue
			}
			if hops, isRef := f.lookupFor(normCols[ci]); isRef {
				resolved, ok := resolveHops(hops, catalog)
				if !ok {
					continue
				}
				if refs == nil {
					refs = make(map[fieldColumnKey][]domain.LookupHop)
				}
				refs[fieldColumnKey{fi, ci}] = resolved
			} else if f.Kind == KindIdentifier && isRowReference(col) {
				continue
			}
			tf := typeFactor(f.Kind, col.Affinity)
			pairs = append(pairs, fieldColumn{field: fi, column: ci, name: nm, typ: tf, rank: nm * (0.5 + 0.5*tf)})
		}
	}

	// Global greedy assignment: strongest pairs first, one column per field.
	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].rank != pairs[j].rank {
			return pairs[i].rank > pairs[j].rank
		}
		wi, wj := sig.Fields[pairs[i].field].Weight, sig.Fields[pairs[j].field].Weight
		if wi != wj {
			return wi > wj
		}
		if pairs[i].field != pairs[j].field {
			return pairs[i].field < pairs[j].field
		}
		return pairs[i].column < pairs[j].column
	})

	assigned := make(map[int]fieldColumn, len(sig.Fields))
	usedCols := make(map[int]bool, len(table.Columns))
	for _, p := range pairs {
		if _, done := assigned[p.field]; done || usedCols[p.column] {
			continue
		}
		assigned[p.field] = p
		usedCols[p.column] = true
	}

	var totalWeight, nameSum, matchedWeight, typeSum float64
	mapping := make(map[string]string, len(assigned))
	var lookups map[string][]domain.LookupHop
	for fi, f := range sig.Fields {
		totalWeight += f.Weight
		p, ok := assigned[fi]
		if !ok {
			if f.Required {
				return Candidate{}, false
			}
			continue
		}
		nameSum += f.Weight * p.name
		matchedWeight += f.Weight
		typeSum += f.Weight * p.typ
		mapping[f.Canonical] = table.Columns[p.column].Name
		if hops, ok := refs[fieldColumnKey{fi, p.column}]; ok {
			if lookups == nil {
				lookups = make(map[string][]domain.LookupHop)
			}
			lookups[f.Canonical] = hops
		}
	}
	if len(mapping) == 0 {
		return Candidate{}, false
	}

	nameScore := nameSum / totalWeight
	typeScore := typeSum / matchedWeight
	rowScore := 0.0
	if table.RowCount > 0 {
		rowScore = 1
	}

	score := m.weights.Names*nameScore + m.weights.Types*typeScore + m.weights.Rows*rowScore
	if sig.Family == domain.FamilyChat && hasThreadLink(table, mapping) {
		score += m.weights.Structure
	}
	if score > 1 {
		score = 1
	}

	return Candidate{
		Table:     table.Name,
		Family:    sig.Family,
		Signature: sig.Name,
		Priority:  sig.Priority,
		Score:     score,
		Mapping:   mapping,
		NameHint:  sig.Family.MatchesName(table.Name),
		RowCount:  table.RowCount,
		Lookups:   lookups,
	}, true
}

type fieldColumnKey struct {
	field  int
	column int
}

// resolveHops checks every hop against the catalog and returns them with
// the names as the catalog spells them.
func resolveHops(hops []Hop, catalog []domain.TableInfo) ([]domain.LookupHop, bool) {
	out := make([]domain.LookupHop, 0, len(hops))
	for _, h := range hops {
		t, ok := findTable(catalog, h.Table)
		if !ok {
			return nil, false
		}
		key, ok := findColumn(t, h.Key)
		if !ok {
			if !isRowIDAlias(h.Key) {
				return nil, false
			}
			key = h.Key
		}
		value, ok := findColumn(t, h.Value)
		if !ok {
			return nil, false
		}
		out = append(out, domain.LookupHop{Table: t.Name, Key: key, Value: value})
	}
	return out, true
}

func findTable(catalog []domain.TableInfo, name string) (domain.TableInfo, bool) {
	for _, t := range catalog {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return domain.TableInfo{}, false
}

func findColumn(t domain.TableInfo, name string) (string, bool) {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c.Name, true
		}
	}
	return "", false
}

// isRowIDAlias reports whether name addresses SQLite's implicit rowid.
func isRowIDAlias(name string) bool {
	switch strings.ToLower(name) {
	case "rowid", "_rowid_", "oid":
		return true
	}
	return false
}

// isRowReference reports whether an integer column looks like a reference
// to another table's row rather than a value.
func isRowReference(col domain.ColumnInfo) bool {
	if col.Affinity != domain.AffinityInteger {
		return false
	}
	name := strings.ToLower(col.Name)
	return name == "id" || strings.HasSuffix(name, "_id") || strings.HasSuffix(name, "rowid")
}

// nameMatch returns the strongest match of a normalised column name against
// a field's normalised aliases.
func nameMatch(aliases []string, col string) float64 {
	if col == "" {
		return 0
	}
	best := 0.0
	for _, a := range aliases {
		if col == a {
			return exactMatch
		}
		if (len(a) >= 3 && strings.Contains(col, a)) || (len(col) >= 4 && strings.Contains(a, col)) {
			best = max(best, containmentMatch)
			continue
		}
		if len(a) < 4 || len(col) < 4 {
			continue
		}
		dist := levenshtein.Distance(a, col, nil)
		maxLen := max(len(a), len(col))
		if sim := 1.0 - float64(dist)/float64(maxLen); sim >= fuzzyMinimum {
			best = max(best, sim*fuzzyScale)
		}
	}
	return best
}

// kindAffinity rates how well each declared affinity carries a field kind.
var kindAffinity = map[FieldKind]map[domain.ColumnAffinity]float64{
	KindText: {
		domain.AffinityText: 1, domain.AffinityNumeric: 0.5,
		domain.AffinityInteger: 0.3, domain.AffinityReal: 0.3,
	},
	KindIdentifier: {
		domain.AffinityText: 1, domain.AffinityInteger: 0.8,
		domain.AffinityNumeric: 0.8, domain.AffinityReal: 0.4,
	},
	KindInteger: {
		domain.AffinityInteger: 1, domain.AffinityNumeric: 0.8,
		domain.AffinityReal: 0.7, domain.AffinityText: 0.4,
	},
	KindTimestamp: {
		domain.AffinityInteger: 1, domain.AffinityReal: 0.9,
		domain.AffinityNumeric: 0.9, domain.AffinityText: 0.8,
	},
	KindEnum: {
		domain.AffinityInteger: 1, domain.AffinityNumeric: 1,
		domain.AffinityText: 0.9, domain.AffinityReal: 0.5,
	},
}

// typeFactor rates how well a column affinity carries a field kind.
func typeFactor(kind FieldKind, aff domain.ColumnAffinity) float64 {
	if kind == KindAny {
		return 1
	}
	if aff == domain.AffinityBlob {
		// Undeclared type: no evidence either way.
		return 0.6
	}
	if f, ok := kindAffinity[kind][aff]; ok {
		return f
	}
	return 0.6
}

// hasThreadLink reports whether a chat table references a conversation.
func hasThreadLink(table domain.TableInfo, mapping map[string]string) bool {
	if _, ok := mapping[domain.FieldThread]; ok {
		return true
	}
	for _, fk := range table.ForeignKeys {
		t := strings.ToLower(fk.Table)
		if strings.Contains(t, "thread") || strings.Contains(t, "conversation") || strings.Contains(t, "chat") {
			return true
		}
	}
	return false
}
