package extractors

import (
	"context"

	"github.com/google/uuid"

	"github.com/custodia-labs/ingestor/internal/core/domain"
	"github.com/custodia-labs/ingestor/internal/core/ports/driven"
)

// Ensure CallExtractor implements the interface.
var _ driven.RecordExtractor = (*CallExtractor)(nil)

var callFields = []string{
	domain.FieldParticipant,
	domain.FieldTimestamp,
	domain.FieldDuration,
	domain.FieldDirection,
	domain.FieldFromMe,
	domain.FieldCaller,
	domain.FieldCallee,
}

// CallExtractor produces CallRecord records.
type CallExtractor struct {
	decoder *Decoder
}

// NewCallExtractor creates a call extractor.
func NewCallExtractor(decoder *Decoder) *CallExtractor {
	if decoder == nil {
		decoder = NewDecoder()
	}
	return &CallExtractor{decoder: decoder}
}

// Family returns FamilyCall.
func (e *CallExtractor) Family() domain.RecordFamily {
	return domain.FamilyCall
}

// Extract maps every row of the profiled table. A row without a participant
// is skipped.
func (e *CallExtractor) Extract(
	ctx context.Context,
	db driven.Database,
	profile domain.SchemaProfile,
	entryPath string,
) (*driven.ExtractResult, error) {
	result := &driven.ExtractResult{}
	err := streamRows(ctx, db, profile, callFields, func(vals Values) {
		rec, ok := e.Map(vals, entryPath, profile.TableName)
		if !ok {
			result.SkippedRows++
			return
		}
		result.Records = append(result.Records, rec)
	})
	return result, err
}

// Map builds a call record from field values.
func (e *CallExtractor) Map(vals Values, entryPath, source string) (domain.Record, bool) {
	direction := resolveDirection(domain.FamilyCall, vals)
	participant := Identifier(vals.value(domain.FieldParticipant))
	if participant == "" {
		participant = remoteParty(vals, direction)
	}
	if participant == "" {
		return domain.Record{}, false
	}

	ts, raw := e.decoder.Timestamp(vals.value(domain.FieldTimestamp))
	return domain.NewCallRecord(uuid.NewString(), source, domain.CallRecord{
		SourceEntryPath:       entryPath,
		ParticipantIdentifier: participant,
		Direction:             direction,
		DurationSeconds:       Duration(vals.value(domain.FieldDuration)),
		TimestampUTC:          ts,
		RawTimestampValue:     raw,
	}), true
}

// remoteParty picks the other side of a call from separate caller and
// callee columns: the callee of an outgoing call, otherwise the caller.
// The other column is used when the preferred one is empty.
func remoteParty(vals Values, direction domain.Direction) string {
	caller := Identifier(vals.value(domain.FieldCaller))
	callee := Identifier(vals.value(domain.FieldCallee))
	if direction == domain.DirectionOutgoing {
		caller, callee = callee, caller
	}
	if caller != "" {
		return caller
	}
	return callee
}
