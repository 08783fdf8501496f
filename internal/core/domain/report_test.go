package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleResult() *IngestionResult {
	return &IngestionResult{
		RunID: "run-1",
		Records: []Record{
			NewChatRecord("1", "sms", ChatMessage{SourceEntryPath: "mmssms.db", Body: "hi"}),
			NewChatRecord("2", "sms", ChatMessage{SourceEntryPath: "mmssms.db", Body: "bye"}),
			NewCallRecord("3", "calls", CallRecord{SourceEntryPath: "calllog.db"}),
			NewContactRecord("4", "view_data", ContactEntry{SourceEntryPath: "contacts2.db", DisplayName: "Alice"}),
		},
		Reports: []IngestionReport{
			{EntryPath: "mmssms.db", Status: StatusProcessed, RecordCount: 2},
			{EntryPath: "calllog.db", Status: StatusProcessed, RecordCount: 1},
			{EntryPath: "broken.db", Status: StatusFailedCorrupt, ErrorDetail: "unreadable database"},
			{EntryPath: "photo.jpg", Status: StatusSkippedUnrecognized},
			{EntryPath: "contacts2.db", Status: StatusProcessed, RecordCount: 1},
		},
	}
}

// TestIngestionResult_Views tests the per-family accessors
func TestIngestionResult_Views(t *testing.T) {
	r := sampleResult()

	assert.Len(t, r.ByFamily(FamilyChat), 2)
	assert.Len(t, r.ByFamily(FamilyCall), 1)
	assert.Len(t, r.ByFamily(FamilyContact), 1)

	chats := r.Chats()
	assert.Len(t, chats, 2)
	assert.Equal(t, "hi", chats[0].Body)
	assert.Len(t, r.Calls(), 1)
	assert.Equal(t, "Alice", r.Contacts()[0].DisplayName)
}

// TestIngestionResult_Failed tests failure filtering and status counts
func TestIngestionResult_Failed(t *testing.T) {
	r := sampleResult()

	failed := r.Failed()
	assert.Len(t, failed, 1)
	assert.Equal(t, "broken.db", failed[0].EntryPath)
	assert.True(t, failed[0].Failed())

	counts := r.CountByStatus()
	assert.Equal(t, 3, counts[StatusProcessed])
	assert.Equal(t, 1, counts[StatusSkippedUnrecognized])
	assert.Equal(t, 1, counts[StatusFailedCorrupt])
}

// TestIngestionResult_Empty tests accessors on an empty result
func TestIngestionResult_Empty(t *testing.T) {
	r := &IngestionResult{}
	assert.Empty(t, r.Chats())
	assert.Empty(t, r.Failed())
	assert.Empty(t, r.CountByStatus())
}

// TestEntryStatus_String tests the string form
func TestEntryStatus_String(t *testing.T) {
	assert.Equal(t, "processed", StatusProcessed.String())
	assert.Equal(t, "skipped_unrecognized", StatusSkippedUnrecognized.String())
	assert.Equal(t, "failed_corrupt", StatusFailedCorrupt.String())
}
