package extractors

import (
	"context"
	"fmt"

	"github.com/custodia-labs/ingestor/internal/core/domain"
	"github.com/custodia-labs/ingestor/internal/core/ports/driven"
)

// ctxCheckInterval is how many rows are read between cancellation checks.
const ctxCheckInterval = 256

// Values looks up the value of a canonical field. ok is false when the
// source does not carry the field at all.
type Values func(field string) (v any, ok bool)

// MapValues adapts a field map to Values.
func MapValues(m map[string]any) Values {
	return func(field string) (any, bool) {
		v, ok := m[field]
		return v, ok
	}
}

// value returns a field's value, nil when absent.
func (vals Values) value(field string) any {
	v, _ := vals(field)
	return v
}

// row gives access to the mapped fields of the current row.
type row struct {
	index  map[string]int
	refs   map[string]chain
	values []any
}

func (r row) lookup(field string) (any, bool) {
	i, ok := r.index[field]
	if !ok {
		return nil, false
	}
	if c, ok := r.refs[field]; ok {
		return c.resolve(r.values[i]), true
	}
	return r.values[i], true
}

// chain follows a stored row reference through preloaded tables.
type chain []map[string]any

// resolve returns nil when any hop has no matching row.
func (c chain) resolve(v any) any {
	for _, hop := range c {
		key := Raw(v)
		if key == "" {
			return nil
		}
		next, ok := hop[key]
		if !ok {
			return nil
		}
		v = next
	}
	return v
}

// loadChain reads the key and value columns of every hop. The first row
// wins when a key repeats.
func loadChain(ctx context.Context, db driven.Database, hops []domain.LookupHop) (chain, error) {
	c := make(chain, 0, len(hops))
	for _, hop := range hops {
		it, err := db.Rows(ctx, hop.Table, []string{hop.Key, hop.Value})
		if err != nil {
			return nil, fmt.Errorf("reading lookup %s: %w", hop.Table, err)
		}
		m := make(map[string]any)
		for it.Next() {
			vals := it.Values()
			key := Raw(vals[0])
			if _, seen := m[key]; key != "" && !seen {
				m[key] = vals[1]
			}
		}
		err = it.Err()
		it.Close()
		if err != nil {
			return nil, fmt.Errorf("reading lookup %s: %w", hop.Table, err)
		}
		c = append(c, m)
	}
	return c, nil
}

// streamRows reads the mapped columns of the profiled table and calls fn per
// row. Only fields present in the mapping are selected.
func streamRows(
	ctx context.Context,
	db driven.Database,
	profile domain.SchemaProfile,
	fields []string,
	fn func(vals Values),
) error {
	var columns []string
	index := make(map[string]int, len(fields))
	for _, f := range fields {
		col, ok := profile.Column(f)
		if !ok {
			continue
		}
		index[f] = len(columns)
		columns = append(columns, col)
	}
	if len(columns) == 0 {
		return fmt.Errorf("%w: profile for %s maps no columns", domain.ErrInvalidInput, profile.TableName)
	}

	var refs map[string]chain
	for f := range index {
		hops, ok := profile.Lookup(f)
		if !ok {
			continue
		}
		c, err := loadChain(ctx, db, hops)
		if err != nil {
			return err
		}
		if refs == nil {
			refs = make(map[string]chain)
		}
		refs[f] = c
	}

	it, err := db.Rows(ctx, profile.TableName, columns)
	if err != nil {
		return fmt.Errorf("reading %s: %w", profile.TableName, err)
	}
	defer it.Close()

	n := 0
	for it.Next() {
		n++
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		fn(row{index: index, refs: refs, values: it.Values()}.lookup)
	}
	if err := it.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("reading %s: %w", profile.TableName, err)
	}
	return ctx.Err()
}

// resolveDirection prefers an explicit direction column and falls back to a
// "from me" flag.
func resolveDirection(family domain.RecordFamily, vals Values) domain.Direction {
	if v, ok := vals(domain.FieldDirection); ok {
		if d := Direction(family, v); d != domain.DirectionUnknown {
			return d
		}
	}
	if v, ok := vals(domain.FieldFromMe); ok {
		return FromMe(v)
	}
	return domain.DirectionUnknown
}
