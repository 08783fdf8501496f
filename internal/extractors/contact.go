package extractors

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/ingestor/internal/core/domain"
	"github.com/custodia-labs/ingestor/internal/core/ports/driven"
)

// Ensure ContactExtractor implements the interface.
var _ driven.RecordExtractor = (*ContactExtractor)(nil)

var contactFields = []string{
	domain.FieldDisplayName,
	domain.FieldPhone,
	domain.FieldEmail,
	domain.FieldGroup,
}

// ContactExtractor produces ContactEntry records. Rows sharing a group
// value (a contact id) fold into one entry.
type ContactExtractor struct{}

// NewContactExtractor creates a contact extractor.
func NewContactExtractor() *ContactExtractor {
	return &ContactExtractor{}
}

// Family returns FamilyContact.
func (e *ContactExtractor) Family() domain.RecordFamily {
	return domain.FamilyContact
}

// Extract maps the profiled table. A row with neither a name nor an
// identifier is skipped.
func (e *ContactExtractor) Extract(
	ctx context.Context,
	db driven.Database,
	profile domain.SchemaProfile,
	entryPath string,
) (*driven.ExtractResult, error) {
	result := &driven.ExtractResult{}
	folder := NewContactFolder(entryPath, profile.TableName)
	err := streamRows(ctx, db, profile, contactFields, func(vals Values) {
		if !folder.Add(vals) {
			result.SkippedRows++
		}
	})
	result.Records = folder.Records()
	return result, err
}

// ContactFolder accumulates contact rows and folds those sharing a group.
type ContactFolder struct {
	entryPath string
	source    string
	order     []string
	groups    map[string]*contactGroup
	anon      int
}

type contactGroup struct {
	name        string
	identifiers map[string]bool
}

// NewContactFolder creates a folder for one entry and source table.
func NewContactFolder(entryPath, source string) *ContactFolder {
	return &ContactFolder{
		entryPath: entryPath,
		source:    source,
		groups:    make(map[string]*contactGroup),
	}
}

// Add folds one row. It returns false when the row carries nothing usable.
func (f *ContactFolder) Add(vals Values) bool {
	name := strings.TrimSpace(Text(vals.value(domain.FieldDisplayName)))
	var ids []string
	for _, field := range []string{domain.FieldPhone, domain.FieldEmail} {
		id := Identifier(vals.value(field))
		// Android data rows repeat the name in data1 for name rows.
		if id != "" && !strings.EqualFold(id, name) {
			ids = append(ids, id)
		}
	}
	if name == "" && len(ids) == 0 {
		return false
	}

	key := Identifier(vals.value(domain.FieldGroup))
	if key == "" {
		f.anon++
		key = "\x00" + strconv.Itoa(f.anon)
	}

	g, ok := f.groups[key]
	if !ok {
		g = &contactGroup{identifiers: make(map[string]bool)}
		f.groups[key] = g
		f.order = append(f.order, key)
	}
	if g.name == "" {
		g.name = name
	}
	for _, id := range ids {
		g.identifiers[id] = true
	}
	return true
}

// Records returns one contact record per group in first-seen order.
func (f *ContactFolder) Records() []domain.Record {
	records := make([]domain.Record, 0, len(f.order))
	for _, key := range f.order {
		g := f.groups[key]
		records = append(records, domain.NewContactRecord(uuid.NewString(), f.source, domain.ContactEntry{
			SourceEntryPath: f.entryPath,
			DisplayName:     g.name,
			Identifiers:     sortedKeys(g.identifiers),
		}))
	}
	return records
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
