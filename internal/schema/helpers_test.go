package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ingestor/internal/core/domain"
)

// tbl builds a catalog table from "name TYPE" column specs.
func tbl(name string, rows int64, cols ...string) domain.TableInfo {
	t := domain.TableInfo{Name: name, RowCount: rows}
	for _, c := range cols {
		colName, decl, _ := strings.Cut(c, " ")
		t.Columns = append(t.Columns, domain.ColumnInfo{
			Name:     colName,
			DeclType: decl,
			Affinity: domain.AffinityOf(decl),
		})
	}
	return t
}

func profileFor(profiles []domain.SchemaProfile, family domain.RecordFamily) (domain.SchemaProfile, bool) {
	for _, p := range profiles {
		if p.Family == family {
			return p, true
		}
	}
	return domain.SchemaProfile{}, false
}

// assertColumn checks that field is mapped to want.
func assertColumn(t *testing.T, p domain.SchemaProfile, field, want string) {
	t.Helper()
	col, ok := p.Column(field)
	require.True(t, ok, "field %s is not mapped", field)
	assert.Equal(t, want, col)
}
