package schema

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ingestor/internal/core/domain"
	"github.com/custodia-labs/ingestor/internal/core/ports/driven"
)

func TestNewDetector_Defaults(t *testing.T) {
	d := NewDetector()
	require.NotNil(t, d)
	assert.Equal(t, DefaultRegistry(), d.Registry())
	assert.Equal(t, domain.DefaultDetectionThreshold, d.threshold)
	assert.Equal(t, domain.DefaultTieBreak(), d.tieBreak)
}

func TestDetectTables_AndroidMmssms(t *testing.T) {
	tables := []domain.TableInfo{
		tbl("threads", 1, "_id INTEGER", "recipient_ids TEXT", "snippet TEXT"),
		tbl("sms", 1,
			"_id INTEGER", "thread_id INTEGER", "address TEXT", "date INTEGER",
			"type INTEGER", "body TEXT", "read INTEGER"),
	}

	profiles := NewDetector().DetectTables(tables)

	require.Len(t, profiles, 1)
	p := profiles[0]
	assert.Equal(t, domain.FamilyChat, p.Family)
	assert.Equal(t, "sms", p.TableName)
	assert.Equal(t, "android-mmssms", p.SignatureName)
	assert.InDelta(t, 1.0, p.ConfidenceScore, 1e-9)
	assertColumn(t, p, domain.FieldParticipant, "address")
	assertColumn(t, p, domain.FieldBody, "body")
	assertColumn(t, p, domain.FieldTimestamp, "date")
	assertColumn(t, p, domain.FieldDirection, "type")
}

func TestDetectTables_CallLogIsNotContacts(t *testing.T) {
	tables := []domain.TableInfo{
		tbl("calls", 5,
			"_id INTEGER", "number TEXT", "date INTEGER", "duration INTEGER",
			"type INTEGER", "name TEXT"),
	}

	profiles := NewDetector().DetectTables(tables)

	require.Len(t, profiles, 1)
	assert.Equal(t, domain.FamilyCall, profiles[0].Family)
	assert.Equal(t, "android-calllog", profiles[0].SignatureName)
	assertColumn(t, profiles[0], domain.FieldDuration, "duration")
}

func TestDetectTables_RenamedColumns(t *testing.T) {
	tests := []struct {
		name    string
		table   domain.TableInfo
		mapping map[string]string
	}{
		{
			name:  "sender and msg_text",
			table: tbl("log_entries", 5, "sender TEXT", "msg_text TEXT", "sent_at INTEGER", "msg_box INTEGER"),
			mapping: map[string]string{
				domain.FieldParticipant: "sender",
				domain.FieldBody:        "msg_text",
				domain.FieldTimestamp:   "sent_at",
				domain.FieldDirection:   "msg_box",
			},
		},
		{
			name:  "handle and content",
			table: tbl("items", 5, "direction INTEGER", "created_at INTEGER", "content TEXT", "handle TEXT"),
			mapping: map[string]string{
				domain.FieldParticipant: "handle",
				domain.FieldBody:        "content",
				domain.FieldTimestamp:   "created_at",
				domain.FieldDirection:   "direction",
			},
		},
		{
			name:  "mixed case and dashes",
			table: tbl("Log", 5, "From-Number VARCHAR(32)", "Message_Body TEXT", "TimeStamp BIGINT"),
			mapping: map[string]string{
				domain.FieldParticipant: "From-Number",
				domain.FieldBody:        "Message_Body",
				domain.FieldTimestamp:   "TimeStamp",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profiles := NewDetector().DetectTables([]domain.TableInfo{tt.table})

			p, ok := profileFor(profiles, domain.FamilyChat)
			require.True(t, ok, "expected chat profile, got %+v", profiles)
			assert.Equal(t, tt.table.Name, p.TableName)
			assert.Equal(t, "generic-chat", p.SignatureName)
			assert.Equal(t, tt.mapping, p.ColumnMapping)
		})
	}
}

func TestDetectTables_IOSHandleLookup(t *testing.T) {
	tables := []domain.TableInfo{
		tbl("handle", 2, "ROWID INTEGER", "id TEXT", "service TEXT"),
		tbl("message", 4,
			"ROWID INTEGER", "guid TEXT", "text TEXT", "handle_id INTEGER",
			"date INTEGER", "is_from_me INTEGER"),
	}

	profiles := NewDetector().DetectTables(tables)

	p, ok := profileFor(profiles, domain.FamilyChat)
	require.True(t, ok)
	assert.Equal(t, "message", p.TableName)
	assert.Equal(t, "ios-sms", p.SignatureName)
	assertColumn(t, p, domain.FieldParticipant, "handle_id")
	hops, ok := p.Lookup(domain.FieldParticipant)
	require.True(t, ok)
	assert.Equal(t, []domain.LookupHop{{Table: "handle", Key: "ROWID", Value: "id"}}, hops)
}

func TestDetectTables_CallerAndCallee(t *testing.T) {
	tables := []domain.TableInfo{
		tbl("call_records", 3, "caller TEXT", "receiver TEXT", "duration INTEGER", "type INTEGER", "date INTEGER"),
	}

	profiles := NewDetector().DetectTables(tables)

	p, ok := profileFor(profiles, domain.FamilyCall)
	require.True(t, ok, "expected call profile, got %+v", profiles)
	assert.Equal(t, "generic-call-parties", p.SignatureName)
	assertColumn(t, p, domain.FieldCaller, "caller")
	assertColumn(t, p, domain.FieldCallee, "receiver")
	assertColumn(t, p, domain.FieldDirection, "type")
	_, ok = p.Column(domain.FieldParticipant)
	assert.False(t, ok)
}

func TestDetectTables_BelowThreshold(t *testing.T) {
	tables := []domain.TableInfo{
		tbl("notes", 0, "body TEXT"),
	}

	profiles := NewDetector().DetectTables(tables)
	assert.Empty(t, profiles)
}

func TestDetectTables_ThresholdOption(t *testing.T) {
	tables := []domain.TableInfo{
		tbl("notes", 0, "body TEXT"),
	}

	profiles := NewDetector(WithThreshold(0.1)).DetectTables(tables)
	require.Len(t, profiles, 1)
	assert.Equal(t, "notes", profiles[0].TableName)
}

func TestDetectTables_NoTables(t *testing.T) {
	assert.Empty(t, NewDetector().DetectTables(nil))
}

func TestDetectTables_TieBreak(t *testing.T) {
	alpha := tbl("alpha", 10, "address TEXT", "body TEXT", "date INTEGER")
	archive := tbl("sms_archive", 2, "address TEXT", "body TEXT", "date INTEGER")
	tables := []domain.TableInfo{alpha, archive}

	tests := []struct {
		name  string
		rules []domain.TieBreakRule
		want  string
	}{
		{name: "default prefers name hint", rules: nil, want: "sms_archive"},
		{name: "table name", rules: []domain.TieBreakRule{domain.TieBreakTableName}, want: "alpha"},
		{name: "row count", rules: []domain.TieBreakRule{domain.TieBreakRowCount}, want: "alpha"},
		{
			name:  "name hint before row count",
			rules: []domain.TieBreakRule{domain.TieBreakNameHint, domain.TieBreakRowCount},
			want:  "sms_archive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector(WithTieBreak(tt.rules))
			profiles := d.DetectTables(tables)

			p, ok := profileFor(profiles, domain.FamilyChat)
			require.True(t, ok)
			assert.Equal(t, tt.want, p.TableName)
		})
	}
}

func TestDetectTables_Deterministic(t *testing.T) {
	tables := []domain.TableInfo{
		tbl("b_messages", 3, "address TEXT", "body TEXT", "date INTEGER"),
		tbl("a_messages", 3, "address TEXT", "body TEXT", "date INTEGER"),
	}
	d := NewDetector()

	first := d.DetectTables(tables)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, d.DetectTables(tables))
	}
	require.Len(t, first, 1)
	assert.Equal(t, "a_messages", first[0].TableName)
}

func TestDetectTables_AllFamilies(t *testing.T) {
	tables := []domain.TableInfo{
		tbl("sms", 4, "address TEXT", "body TEXT", "date INTEGER", "type INTEGER"),
		tbl("calls", 4, "number TEXT", "date INTEGER", "duration INTEGER", "type INTEGER"),
		tbl("people", 4, "full_name TEXT", "mobile TEXT", "email TEXT"),
	}

	profiles := NewDetector().DetectTables(tables)

	require.Len(t, profiles, 3)
	assert.Equal(t, domain.FamilyChat, profiles[0].Family)
	assert.Equal(t, domain.FamilyCall, profiles[1].Family)
	assert.Equal(t, domain.FamilyContact, profiles[2].Family)
	assert.Equal(t, "people", profiles[2].TableName)
	assertColumn(t, profiles[2], domain.FieldPhone, "mobile")
	assertColumn(t, profiles[2], domain.FieldEmail, "email")
}

func TestCandidates_TableClaimedOnce(t *testing.T) {
	tables := []domain.TableInfo{
		tbl("calls", 5, "number TEXT", "date INTEGER", "duration INTEGER", "type INTEGER", "name TEXT"),
	}

	cands := NewDetector().Candidates(tables)
	require.Len(t, cands, 1)
	assert.Equal(t, domain.FamilyCall, cands[0].Family)
}

type fakeDatabase struct {
	tables []domain.TableInfo
	err    error
}

var _ driven.Database = (*fakeDatabase)(nil)

func (f *fakeDatabase) Catalog(_ context.Context, _ int64) ([]domain.TableInfo, error) {
	return f.tables, f.err
}

func (f *fakeDatabase) Rows(_ context.Context, _ string, _ []string) (driven.RowIterator, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeDatabase) Close() error { return nil }

func TestDetect(t *testing.T) {
	db := &fakeDatabase{tables: []domain.TableInfo{
		tbl("calls", 2, "number TEXT", "date INTEGER", "duration INTEGER"),
	}}

	profiles, err := NewDetector().Detect(context.Background(), db)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "calls", profiles[0].TableName)
}

func TestDetect_CatalogError(t *testing.T) {
	db := &fakeDatabase{err: errors.New("file is not a database")}

	profiles, err := NewDetector().Detect(context.Background(), db)
	assert.Nil(t, profiles)
	assert.ErrorIs(t, err, domain.ErrUnreadableDatabase)
	assert.Contains(t, err.Error(), "file is not a database")
}

func TestDetect_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	db := &fakeDatabase{err: errors.New("interrupted")}

	_, err := NewDetector().Detect(ctx, db)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, domain.ErrUnreadableDatabase)
}
