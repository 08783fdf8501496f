package extractors

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/ingestor/internal/core/domain"
	"github.com/custodia-labs/ingestor/internal/core/ports/driven"
)

// Ensure ChatExtractor implements the interface.
var _ driven.RecordExtractor = (*ChatExtractor)(nil)

var chatFields = []string{
	domain.FieldParticipant,
	domain.FieldBody,
	domain.FieldTimestamp,
	domain.FieldDirection,
	domain.FieldFromMe,
}

// ChatExtractor produces ChatMessage records.
type ChatExtractor struct {
	decoder *Decoder
}

// NewChatExtractor creates a chat extractor.
func NewChatExtractor(decoder *Decoder) *ChatExtractor {
	if decoder == nil {
		decoder = NewDecoder()
	}
	return &ChatExtractor{decoder: decoder}
}

// Family returns FamilyChat.
func (e *ChatExtractor) Family() domain.RecordFamily {
	return domain.FamilyChat
}

// Extract maps every row of the profiled table. A row with neither a
// participant nor a body is skipped.
func (e *ChatExtractor) Extract(
	ctx context.Context,
	db driven.Database,
	profile domain.SchemaProfile,
	entryPath string,
) (*driven.ExtractResult, error) {
	result := &driven.ExtractResult{}
	err := streamRows(ctx, db, profile, chatFields, func(vals Values) {
		rec, ok := e.Map(vals, entryPath, profile.TableName)
		if !ok {
			result.SkippedRows++
			return
		}
		result.Records = append(result.Records, rec)
	})
	return result, err
}

// Map builds a chat record from field values. It is shared with markup
// extraction, where values come from attributes instead of columns.
func (e *ChatExtractor) Map(vals Values, entryPath, source string) (domain.Record, bool) {
	participant := Identifier(vals.value(domain.FieldParticipant))
	body := Text(vals.value(domain.FieldBody))
	if participant == "" && strings.TrimSpace(body) == "" {
		return domain.Record{}, false
	}

	ts, raw := e.decoder.Timestamp(vals.value(domain.FieldTimestamp))
	return domain.NewChatRecord(uuid.NewString(), source, domain.ChatMessage{
		SourceEntryPath:       entryPath,
		ParticipantIdentifier: participant,
		Direction:             resolveDirection(domain.FamilyChat, vals),
		Body:                  body,
		TimestampUTC:          ts,
		RawTimestampValue:     raw,
	}), true
}
