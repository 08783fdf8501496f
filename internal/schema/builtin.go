package schema

import "github.com/custodia-labs/ingestor/internal/core/domain"

// Shared alias sets for the generic heuristics.
var (
	timestampAliases = []string{
		"date", "time", "timestamp", "datetime", "date_sent", "sent_at", "sent_date",
		"created", "created_at", "received", "received_at", "ts", "msg_date", "message_date",
		"call_date", "start_time", "starttime", "date_time",
	}
	threadAliases = []string{
		"thread_id", "thread", "conversation_id", "conversation", "chat_id", "chat_row_id", "conv_id",
	}
	fromMeAliases = []string{
		"is_from_me", "from_me", "key_from_me", "outgoing", "is_outgoing", "is_sent", "originated",
	}
)

// BuiltinSignatures returns the signatures shipped with the engine: vendor
// shapes first, then generic heuristics that generalise to unseen layouts.
func BuiltinSignatures() []Signature {
	return []Signature{
		{
			Name:          "android-mmssms",
			Family:        domain.FamilyChat,
			Priority:      90,
			TablePatterns: []string{"sms"},
			Fields: []FieldSpec{
				{Canonical: domain.FieldParticipant, Aliases: []string{"address"}, Kind: KindIdentifier, Weight: 3},
				{Canonical: domain.FieldBody, Aliases: []string{"body"}, Kind: KindText, Required: true, Weight: 3},
				{Canonical: domain.FieldTimestamp, Aliases: []string{"date"}, Kind: KindTimestamp, Weight: 2},
				{Canonical: domain.FieldDirection, Aliases: []string{"type"}, Kind: KindEnum, Weight: 1},
				{Canonical: domain.FieldThread, Aliases: []string{"thread_id"}, Kind: KindInteger, Weight: 0.5},
			},
		},
		{
			Name:          "ios-sms",
			Family:        domain.FamilyChat,
			Priority:      90,
			TablePatterns: []string{"message"},
			Fields: []FieldSpec{
				{
					Canonical: domain.FieldParticipant,
					Aliases:   []string{"handle_id"},
					Kind:      KindIdentifier,
					Weight:    2,
					Lookups: []Lookup{
						{Column: "handle_id", Via: []Hop{{Table: "handle", Key: "ROWID", Value: "id"}}},
					},
				},
				{Canonical: domain.FieldBody, Aliases: []string{"text"}, Kind: KindText, Required: true, Weight: 3},
				{Canonical: domain.FieldTimestamp, Aliases: []string{"date"}, Kind: KindTimestamp, Weight: 2},
				{Canonical: domain.FieldFromMe, Aliases: []string{"is_from_me"}, Kind: KindInteger, Weight: 1},
				{Canonical: domain.FieldThread, Aliases: []string{"cache_roomnames", "group_title"}, Kind: KindAny, Weight: 0.5},
			},
		},
		{
			Name:          "whatsapp-msgstore",
			Family:        domain.FamilyChat,
			Priority:      85,
			TablePatterns: []string{"messages", "message"},
			Fields: []FieldSpec{
				{
					Canonical: domain.FieldParticipant,
					Aliases:   []string{"key_remote_jid", "remote_resource"},
					Kind:      KindIdentifier,
					Weight:    3,
					Lookups: []Lookup{
						{
							Column: "chat_row_id",
							Via: []Hop{
								{Table: "chat", Key: "_id", Value: "jid_row_id"},
								{Table: "jid", Key: "_id", Value: "raw_string"},
							},
						},
					},
				},
				{Canonical: domain.FieldBody, Aliases: []string{"data", "text_data"}, Kind: KindText, Required: true, Weight: 3},
				{Canonical: domain.FieldTimestamp, Aliases: []string{"timestamp", "received_timestamp"}, Kind: KindTimestamp, Weight: 2},
				{Canonical: domain.FieldFromMe, Aliases: []string{"key_from_me", "from_me"}, Kind: KindInteger, Weight: 1},
			},
		},
		{
			Name:          "android-calllog",
			Family:        domain.FamilyCall,
			Priority:      90,
			TablePatterns: []string{"calls"},
			Fields: []FieldSpec{
				{Canonical: domain.FieldParticipant, Aliases: []string{"number"}, Kind: KindIdentifier, Required: true, Weight: 3},
				{Canonical: domain.FieldTimestamp, Aliases: []string{"date"}, Kind: KindTimestamp, Weight: 2},
				{Canonical: domain.FieldDuration, Aliases: []string{"duration"}, Kind: KindInteger, Required: true, Weight: 2},
				{Canonical: domain.FieldDirection, Aliases: []string{"type"}, Kind: KindEnum, Weight: 1},
			},
		},
		{
			Name:          "ios-callhistory",
			Family:        domain.FamilyCall,
			Priority:      90,
			TablePatterns: []string{"zcallrecord"},
			Fields: []FieldSpec{
				{Canonical: domain.FieldParticipant, Aliases: []string{"zaddress"}, Kind: KindIdentifier, Required: true, Weight: 3},
				{Canonical: domain.FieldTimestamp, Aliases: []string{"zdate"}, Kind: KindTimestamp, Weight: 2},
				{Canonical: domain.FieldDuration, Aliases: []string{"zduration"}, Kind: KindInteger, Required: true, Weight: 2},
				{Canonical: domain.FieldFromMe, Aliases: []string{"zoriginated"}, Kind: KindInteger, Weight: 1},
			},
		},
		{
			Name:          "android-contacts",
			Family:        domain.FamilyContact,
			Priority:      90,
			TablePatterns: []string{"view_data", "data", "raw_contacts", "contacts", "phone_lookup"},
			Fields: []FieldSpec{
				{Canonical: domain.FieldDisplayName, Aliases: []string{"display_name", "display_name_primary"}, Kind: KindText, Required: true, Weight: 3},
				{Canonical: domain.FieldPhone, Aliases: []string{"data1", "number", "normalized_number"}, Kind: KindIdentifier, Weight: 2},
				{Canonical: domain.FieldGroup, Aliases: []string{"raw_contact_id", "contact_id"}, Kind: KindInteger, Weight: 0.5},
			},
		},
		{
			Name:     "generic-chat",
			Family:   domain.FamilyChat,
			Priority: 10,
			Fields: []FieldSpec{
				{
					Canonical: domain.FieldParticipant,
					Aliases: []string{
						"address", "sender", "sender_number", "from", "from_number", "handle", "number",
						"phone", "phone_number", "author", "remote", "recipient", "jid", "remote_jid",
						"participant", "contact", "src", "receiver", "to", "msisdn", "peer", "identifier",
					},
					Kind:   KindIdentifier,
					Weight: 3,
				},
				{
					Canonical: domain.FieldBody,
					Aliases: []string{
						"body", "text", "message", "msg", "content", "msg_text", "message_text",
						"message_body", "text_data", "message_content", "snippet",
					},
					Kind:     KindText,
					Required: true,
					Weight:   3,
				},
				{Canonical: domain.FieldTimestamp, Aliases: timestampAliases, Kind: KindTimestamp, Weight: 2},
				{
					Canonical: domain.FieldDirection,
					Aliases:   []string{"type", "direction", "msg_box", "box", "folder", "msg_type", "message_type"},
					Kind:      KindEnum,
					Weight:    1,
				},
				{Canonical: domain.FieldFromMe, Aliases: fromMeAliases, Kind: KindInteger, Weight: 0.5},
				{Canonical: domain.FieldThread, Aliases: threadAliases, Kind: KindAny, Weight: 0.5},
			},
		},
		{
			Name:     "generic-call",
			Family:   domain.FamilyCall,
			Priority: 10,
			Fields: []FieldSpec{
				{
					Canonical: domain.FieldParticipant,
					Aliases: []string{
						"number", "phone_number", "phone", "address", "remote", "contact", "handle",
						"msisdn", "remote_number", "peer", "identifier",
					},
					Kind:     KindIdentifier,
					Required: true,
					Weight:   3,
				},
				{Canonical: domain.FieldTimestamp, Aliases: timestampAliases, Kind: KindTimestamp, Weight: 2},
				{
					Canonical: domain.FieldDuration,
					Aliases:   []string{"duration", "duration_seconds", "dur", "call_duration", "length", "seconds"},
					Kind:      KindInteger,
					Required:  true,
					Weight:    2,
				},
				{Canonical: domain.FieldDirection, Aliases: []string{"type", "call_type", "direction", "kind"}, Kind: KindEnum, Weight: 1},
				{Canonical: domain.FieldFromMe, Aliases: fromMeAliases, Kind: KindInteger, Weight: 0.5},
			},
		},
		{
			Name:     "generic-call-parties",
			Family:   domain.FamilyCall,
			Priority: 10,
			Fields: []FieldSpec{
				{
					Canonical: domain.FieldCaller,
					Aliases:   []string{"caller", "caller_number", "from_number", "calling_number", "source_number", "originator"},
					Kind:      KindIdentifier,
					Required:  true,
					Weight:    3,
				},
				{
					Canonical: domain.FieldCallee,
					Aliases: []string{
						"callee", "callee_number", "receiver", "receiver_number", "to_number", "called_number",
						"destination", "recipient",
					},
					Kind:     KindIdentifier,
					Required: true,
					Weight:   3,
				},
				{Canonical: domain.FieldTimestamp, Aliases: timestampAliases, Kind: KindTimestamp, Weight: 2},
				{
					Canonical: domain.FieldDuration,
					Aliases:   []string{"duration", "duration_seconds", "dur", "call_duration", "length", "seconds"},
					Kind:      KindInteger,
					Required:  true,
					Weight:    2,
				},
				{Canonical: domain.FieldDirection, Aliases: []string{"type", "call_type", "direction", "kind"}, Kind: KindEnum, Weight: 1},
				{Canonical: domain.FieldFromMe, Aliases: fromMeAliases, Kind: KindInteger, Weight: 0.5},
			},
		},
		{
			Name:     "generic-contact",
			Family:   domain.FamilyContact,
			Priority: 10,
			Fields: []FieldSpec{
				{
					Canonical: domain.FieldDisplayName,
					Aliases: []string{
						"display_name", "name", "full_name", "contact_name", "nickname", "given_name",
						"first_name", "fullname",
					},
					Kind:     KindText,
					Required: true,
					Weight:   3,
				},
				{
					Canonical: domain.FieldPhone,
					Aliases: []string{
						"phone", "number", "phone_number", "mobile", "msisdn", "tel", "telephone", "cell",
						"home_phone", "work_phone", "mobile_number",
					},
					Kind:   KindIdentifier,
					Weight: 2,
				},
				{Canonical: domain.FieldEmail, Aliases: []string{"email", "mail", "email_address", "e_mail"}, Kind: KindText, Weight: 1},
				{Canonical: domain.FieldGroup, Aliases: []string{"contact_id", "raw_contact_id", "person_id"}, Kind: KindInteger, Weight: 0.5},
			},
		},
	}
}
