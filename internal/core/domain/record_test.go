package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestDirection_IsValid tests all valid and invalid directions
func TestDirection_IsValid(t *testing.T) {
	tests := []struct {
		dir      Direction
		expected bool
	}{
		{DirectionIncoming, true},
		{DirectionOutgoing, true},
		{DirectionUnknown, true},
		{Direction(""), false},
		{Direction("missed"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.dir), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.dir.IsValid())
		})
	}
}

// TestRecord_Accessors tests the payload accessors for every family
func TestRecord_Accessors(t *testing.T) {
	ts := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	dur := int64(30)

	chat := NewChatRecord("1", "sms", ChatMessage{
		SourceEntryPath:   "mmssms.db",
		TimestampUTC:      &ts,
		RawTimestampValue: "1700000000000",
	})
	call := NewCallRecord("2", "calls", CallRecord{
		SourceEntryPath:   "calllog.db",
		DurationSeconds:   &dur,
		RawTimestampValue: "garbage",
	})
	contact := NewContactRecord("3", "view_data", ContactEntry{
		SourceEntryPath: "contacts2.db",
		DisplayName:     "Alice",
	})

	assert.Equal(t, FamilyChat, chat.Family)
	assert.Equal(t, "sms", chat.SourceTable)
	assert.Equal(t, "mmssms.db", chat.SourceEntryPath())
	assert.Equal(t, &ts, chat.Timestamp())
	assert.Equal(t, "1700000000000", chat.RawTimestamp())

	assert.Equal(t, FamilyCall, call.Family)
	assert.Equal(t, "calllog.db", call.SourceEntryPath())
	assert.Nil(t, call.Timestamp())
	assert.Equal(t, "garbage", call.RawTimestamp())

	assert.Equal(t, FamilyContact, contact.Family)
	assert.Equal(t, "contacts2.db", contact.SourceEntryPath())
	assert.Nil(t, contact.Timestamp())
	assert.Empty(t, contact.RawTimestamp())
}

// TestRecord_Valid tests payload and family consistency
func TestRecord_Valid(t *testing.T) {
	tests := []struct {
		name     string
		rec      Record
		expected bool
	}{
		{
			name:     "chat with path",
			rec:      NewChatRecord("1", "sms", ChatMessage{SourceEntryPath: "a.db"}),
			expected: true,
		},
		{
			name:     "missing source path",
			rec:      NewCallRecord("1", "calls", CallRecord{}),
			expected: false,
		},
		{
			name:     "no payload",
			rec:      Record{ID: "1", Family: FamilyChat},
			expected: false,
		},
		{
			name: "two payloads",
			rec: Record{
				ID:      "1",
				Family:  FamilyChat,
				Chat:    &ChatMessage{SourceEntryPath: "a.db"},
				Contact: &ContactEntry{SourceEntryPath: "a.db"},
			},
			expected: false,
		},
		{
			name: "payload does not match family",
			rec: Record{
				ID:     "1",
				Family: FamilyCall,
				Chat:   &ChatMessage{SourceEntryPath: "a.db"},
			},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.rec.Valid())
		})
	}
}

// TestNewChatRecord_CopiesPayload tests that the constructor does not alias the argument
func TestNewChatRecord_CopiesPayload(t *testing.T) {
	msg := ChatMessage{SourceEntryPath: "a.db", Body: "before"}
	rec := NewChatRecord("1", "sms", msg)
	msg.Body = "after"
	assert.Equal(t, "before", rec.Chat.Body)
}
