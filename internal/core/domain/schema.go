package domain

import "strings"

// RecordFamily is one of the three canonical record kinds.
type RecordFamily string

const (
	// FamilyChat covers SMS, MMS and messenger messages.
	FamilyChat RecordFamily = "chat"

	// FamilyCall covers call-log entries.
	FamilyCall RecordFamily = "call"

	// FamilyContact covers address-book entries.
	FamilyContact RecordFamily = "contact"
)

// Families lists every record family in detection order.
func Families() []RecordFamily {
	return []RecordFamily{FamilyChat, FamilyCall, FamilyContact}
}

// IsValid returns true if the family is recognised.
func (f RecordFamily) IsValid() bool {
	switch f {
	case FamilyChat, FamilyCall, FamilyContact:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (f RecordFamily) String() string {
	return string(f)
}

// NameKeywords returns lowercase fragments that mark a table or element
// name as belonging to the family. Used for tie-breaking.
func (f RecordFamily) NameKeywords() []string {
	switch f {
	case FamilyChat:
		return []string{"sms", "mms", "message", "chat", "msg"}
	case FamilyCall:
		return []string{"call"}
	case FamilyContact:
		return []string{"contact", "people", "address", "phonebook", "person"}
	default:
		return nil
	}
}

// MatchesName reports whether a table or element name textually matches the family.
func (f RecordFamily) MatchesName(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range f.NameKeywords() {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Canonical field names used in column mappings.
const (
	FieldParticipant = "participant"
	FieldBody        = "body"
	FieldTimestamp   = "timestamp"
	FieldDirection   = "direction"
	FieldFromMe      = "from_me"
	FieldThread      = "thread"
	FieldDuration    = "duration"
	FieldDisplayName = "display_name"
	FieldPhone       = "phone"
	FieldEmail       = "email"
	FieldGroup       = "group"
	FieldCaller      = "caller"
	FieldCallee      = "callee"
)

// ColumnAffinity is the storage class family of a declared column type.
type ColumnAffinity string

// SQLite type affinities.
const (
	AffinityInteger ColumnAffinity = "integer"
	AffinityText    ColumnAffinity = "text"
	AffinityReal    ColumnAffinity = "real"
	AffinityBlob    ColumnAffinity = "blob"
	AffinityNumeric ColumnAffinity = "numeric"
)

// AffinityOf derives an affinity from a declared column type using the
// SQLite rules (INT, then CHAR/CLOB/TEXT, then BLOB or empty, then REAL/FLOA/DOUB).
func AffinityOf(declType string) ColumnAffinity {
	t := strings.ToUpper(declType)
	switch {
	case strings.Contains(t, "INT"):
		return AffinityInteger
	case strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"), strings.Contains(t, "TEXT"):
		return AffinityText
	case t == "", strings.Contains(t, "BLOB"):
		return AffinityBlob
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"):
		return AffinityReal
	default:
		return AffinityNumeric
	}
}

// ColumnInfo describes one column of a catalog table.
type ColumnInfo struct {
	// Name is the column name as declared.
	Name string

	// DeclType is the declared type, possibly empty.
	DeclType string

	// Affinity is derived from DeclType.
	Affinity ColumnAffinity
}

// ForeignKey is a declared reference from one table to another.
type ForeignKey struct {
	From  string
	Table string
	To    string
}

// TableInfo is a catalog table as seen by the schema detector.
type TableInfo struct {
	// Name is the table name.
	Name string

	// Columns in declaration order.
	Columns []ColumnInfo

	// ForeignKeys declared on the table.
	ForeignKeys []ForeignKey

	// RowCount is the row count, capped by the detector's row count limit.
	RowCount int64
}

// ColumnNames returns the table's column names in declaration order.
func (t TableInfo) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// LookupHop resolves a value through one table: the row whose Key column
// equals the value supplies the Value column.
type LookupHop struct {
	Table string `json:"table"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

// SchemaProfile is the detector's verdict for one table and one record family.
type SchemaProfile struct {
	// Family is the record family the table was matched to.
	Family RecordFamily `json:"family"`

	// TableName is the selected table.
	TableName string `json:"table_name"`

	// ColumnMapping maps canonical field names to actual column names.
	ColumnMapping map[string]string `json:"column_mapping,omitempty"`

	// ConfidenceScore is the heuristic match score in [0, 1].
	ConfidenceScore float64 `json:"confidence_score"`

	// SignatureName names the signature that produced the best match.
	SignatureName string `json:"signature_name"`

	// NameHint is true when the table name textually matches the family.
	NameHint bool `json:"name_hint"`

	// RowCount is the counted rows.
	RowCount int64 `json:"row_count"`

	// Lookups lists, per canonical field, the hops that turn a mapped
	// row-reference column into the field value.
	Lookups map[string][]LookupHop `json:"lookups,omitempty"`
}

// Column returns the mapped column for a canonical field.
func (p SchemaProfile) Column(field string) (string, bool) {
	col, ok := p.ColumnMapping[field]
	return col, ok && col != ""
}

// Lookup returns the hops for a field mapped through a row reference.
func (p SchemaProfile) Lookup(field string) ([]LookupHop, bool) {
	hops, ok := p.Lookups[field]
	return hops, ok && len(hops) > 0
}
