package domain

import "time"

// Direction is the direction of a message or call relative to the device owner.
type Direction string

const (
	// DirectionIncoming is received by the device.
	DirectionIncoming Direction = "incoming"

	// DirectionOutgoing is sent from the device.
	DirectionOutgoing Direction = "outgoing"

	// DirectionUnknown is used when the source carries no usable direction.
	DirectionUnknown Direction = "unknown"
)

// IsValid returns true if the direction is recognised.
func (d Direction) IsValid() bool {
	switch d {
	case DirectionIncoming, DirectionOutgoing, DirectionUnknown:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (d Direction) String() string {
	return string(d)
}

// ChatMessage is a canonical SMS/MMS/messenger message.
type ChatMessage struct {
	// SourceEntryPath is the archive entry the message came from.
	SourceEntryPath string `json:"source_entry_path"`

	// ParticipantIdentifier is the remote party as found in the source
	// (phone number or handle), not normalised.
	ParticipantIdentifier string `json:"participant_identifier"`

	// Direction relative to the device owner.
	Direction Direction `json:"direction"`

	// Body is the message text, empty for media-only messages.
	Body string `json:"body"`

	// TimestampUTC is nil when the source value could not be decoded.
	TimestampUTC *time.Time `json:"timestamp_utc,omitempty"`

	// RawTimestampValue preserves the source value for audit.
	RawTimestampValue string `json:"raw_timestamp_value"`
}

// CallRecord is a canonical call-log entry.
type CallRecord struct {
	// SourceEntryPath is the archive entry the call came from.
	SourceEntryPath string `json:"source_entry_path"`

	// ParticipantIdentifier is the remote party as found in the source.
	ParticipantIdentifier string `json:"participant_identifier"`

	// Direction relative to the device owner.
	Direction Direction `json:"direction"`

	// DurationSeconds is nil when absent; never negative.
	DurationSeconds *int64 `json:"duration_seconds,omitempty"`

	// TimestampUTC is nil when the source value could not be decoded.
	TimestampUTC *time.Time `json:"timestamp_utc,omitempty"`

	// RawTimestampValue preserves the source value for audit.
	RawTimestampValue string `json:"raw_timestamp_value"`
}

// ContactEntry is a canonical address-book entry.
type ContactEntry struct {
	// SourceEntryPath is the archive entry the contact came from.
	SourceEntryPath string `json:"source_entry_path"`

	// DisplayName is the contact's name as stored.
	DisplayName string `json:"display_name"`

	// Identifiers is the sorted, de-duplicated set of phone numbers and handles.
	Identifiers []string `json:"identifiers,omitempty"`
}

// Record is the variant over the three canonical record kinds.
// Exactly one of Chat, Call or Contact is set, matching Family.
type Record struct {
	// ID is a unique identifier assigned at extraction time.
	ID string `json:"id"`

	// Family selects the populated payload.
	Family RecordFamily `json:"family"`

	// SourceTable is the table or markup element the record was read from.
	SourceTable string `json:"source_table"`

	// MergedFrom lists other entries that carried a duplicate of this record.
	MergedFrom []string `json:"merged_from,omitempty"`

	Chat    *ChatMessage  `json:"chat,omitempty"`
	Call    *CallRecord   `json:"call,omitempty"`
	Contact *ContactEntry `json:"contact,omitempty"`
}

// SourceEntryPath returns the originating entry path of the payload.
func (r Record) SourceEntryPath() string {
	switch r.Family {
	case FamilyChat:
		if r.Chat != nil {
			return r.Chat.SourceEntryPath
		}
	case FamilyCall:
		if r.Call != nil {
			return r.Call.SourceEntryPath
		}
	case FamilyContact:
		if r.Contact != nil {
			return r.Contact.SourceEntryPath
		}
	}
	return ""
}

// Timestamp returns the decoded timestamp of a chat or call, nil otherwise.
func (r Record) Timestamp() *time.Time {
	switch {
	case r.Family == FamilyChat && r.Chat != nil:
		return r.Chat.TimestampUTC
	case r.Family == FamilyCall && r.Call != nil:
		return r.Call.TimestampUTC
	default:
		return nil
	}
}

// RawTimestamp returns the preserved source timestamp of a chat or call.
func (r Record) RawTimestamp() string {
	switch {
	case r.Family == FamilyChat && r.Chat != nil:
		return r.Chat.RawTimestampValue
	case r.Family == FamilyCall && r.Call != nil:
		return r.Call.RawTimestampValue
	default:
		return ""
	}
}

// Valid reports whether the payload matches Family and carries a source path.
func (r Record) Valid() bool {
	set := 0
	for _, ok := range []bool{r.Chat != nil, r.Call != nil, r.Contact != nil} {
		if ok {
			set++
		}
	}
	return set == 1 && r.SourceEntryPath() != ""
}

// NewChatRecord wraps a chat message.
func NewChatRecord(id, table string, msg ChatMessage) Record {
	return Record{ID: id, Family: FamilyChat, SourceTable: table, Chat: &msg}
}

// NewCallRecord wraps a call record.
func NewCallRecord(id, table string, call CallRecord) Record {
	return Record{ID: id, Family: FamilyCall, SourceTable: table, Call: &call}
}

// NewContactRecord wraps a contact entry.
func NewContactRecord(id, table string, contact ContactEntry) Record {
	return Record{ID: id, Family: FamilyContact, SourceTable: table, Contact: &contact}
}
