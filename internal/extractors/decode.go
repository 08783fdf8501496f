package extractors

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/custodia-labs/ingestor/internal/core/domain"
)

// appleEpoch is the Core Data reference date used by iOS databases.
var appleEpoch = time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)

// earliestPlausible is the lower bound for decoded timestamps.
var earliestPlausible = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// futureSlack is how far past the clock a timestamp may lie.
const futureSlack = 24 * time.Hour

// maxDurationSeconds bounds second counts that fit in a time.Duration.
const maxDurationSeconds = math.MaxInt64 / int64(time.Second)

// Core Data readings are only considered above these magnitudes; smaller
// values would land in early 2001 and look plausible by accident.
const (
	minAppleSeconds = 1e8
	minAppleNanos   = 1e17
)

// isoLayouts are tried in order for textual timestamps.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Decoder turns raw column values into canonical field values.
// It is safe for concurrent use.
type Decoder struct {
	now func() time.Time
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithClock sets the clock used for the plausibility window.
func WithClock(now func() time.Time) DecoderOption {
	return func(d *Decoder) {
		if now != nil {
			d.now = now
		}
	}
}

// NewDecoder creates a decoder using the system clock.
func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Timestamp decodes v as Unix seconds, then Unix milliseconds, then
// ISO-8601, accepting the first reading that falls inside the plausible
// window. Core Data seconds and nanoseconds are tried last. The raw
// rendering of v is always returned; the time is nil when nothing fits.
func (d *Decoder) Timestamp(v any) (*time.Time, string) {
	raw := Raw(v)
	switch x := v.(type) {
	case nil:
		return nil, ""
	case int64:
		return d.fromInt(x), raw
	case int:
		return d.fromInt(int64(x)), raw
	case int32:
		return d.fromInt(int64(x)), raw
	case float64:
		return d.fromFloat(x), raw
	case time.Time:
		if d.plausible(x) {
			t := x.UTC()
			return &t, raw
		}
		return nil, raw
	default:
		return d.fromString(raw), raw
	}
}

func (d *Decoder) fromInt(n int64) *time.Time {
	readings := []time.Time{time.Unix(n, 0), time.UnixMilli(n)}
	if n >= minAppleSeconds && n < maxDurationSeconds {
		readings = append(readings, appleEpoch.Add(time.Duration(n)*time.Second))
	}
	if n >= minAppleNanos {
		readings = append(readings, appleEpoch.Add(time.Duration(n)))
	}
	return d.first(readings)
}

func (d *Decoder) fromFloat(f float64) *time.Time {
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) >= 9e18 {
		return nil
	}
	// Whole numbers and millisecond-scale values take the integer path.
	if f == math.Trunc(f) || math.Abs(f) > 1<<40 {
		return d.fromInt(int64(f))
	}
	sec, frac := math.Modf(f)
	readings := []time.Time{
		time.Unix(int64(sec), int64(frac*1e9)),
		time.UnixMilli(int64(f)),
	}
	if f >= minAppleSeconds {
		readings = append(readings, appleEpoch.Add(time.Duration(f*float64(time.Second))))
	}
	return d.first(readings)
}

// first returns the first plausible reading in UTC.
func (d *Decoder) first(readings []time.Time) *time.Time {
	for _, t := range readings {
		if d.plausible(t) {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func (d *Decoder) fromString(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return d.fromInt(n)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return d.fromFloat(f)
	}
	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			if d.plausible(t) {
				t = t.UTC()
				return &t
			}
			return nil
		}
	}
	return nil
}

// plausible reports whether t lies in [2000-01-01, now+24h].
func (d *Decoder) plausible(t time.Time) bool {
	return !t.Before(earliestPlausible) && !t.After(d.now().Add(futureSlack))
}

// Raw renders a column value as text for provenance.
func Raw(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		if utf8.Valid(x) {
			return string(x)
		}
		return ""
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	default:
		return ""
	}
}

// Text decodes a free-text value. Binary values that are not UTF-8 are empty.
func Text(v any) string {
	return Raw(v)
}

// Identifier decodes a phone number or handle. Integer phone numbers are
// rendered without exponent; strings are trimmed.
func Identifier(v any) string {
	switch x := v.(type) {
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			return strconv.FormatFloat(x, 'f', 0, 64)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return strings.TrimSpace(Raw(v))
	}
}

// Duration decodes a non-negative number of seconds. Returns nil for
// missing, negative or non-numeric values.
func Duration(v any) *int64 {
	var n int64
	switch x := v.(type) {
	case int64:
		n = x
	case int:
		n = int64(x)
	case int32:
		n = int64(x)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		n = int64(x)
	default:
		s := strings.TrimSpace(Raw(v))
		if s == "" {
			return nil
		}
		if strings.Contains(s, ":") {
			return clockDuration(s)
		}
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(s, 64)
			if ferr != nil {
				return nil
			}
			i = int64(f)
		}
		n = i
	}
	if n < 0 {
		return nil
	}
	return &n
}

// clockDuration parses "HH:MM:SS" and "MM:SS" forms used by report exports.
func clockDuration(s string) *int64 {
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return nil
	}
	var total int64
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 0 {
			return nil
		}
		total = total*60 + n
	}
	return &total
}

// Android message box codes: 1 inbox, 2 sent, 3 draft, 4 outbox, 5 failed, 6 queued.
var chatCodes = map[int64]domain.Direction{
	1: domain.DirectionIncoming,
	2: domain.DirectionOutgoing,
	3: domain.DirectionOutgoing,
	4: domain.DirectionOutgoing,
	5: domain.DirectionOutgoing,
	6: domain.DirectionOutgoing,
}

// Android call types: 1 incoming, 2 outgoing, 3 missed, 4 voicemail, 5 rejected, 6 blocked.
var callCodes = map[int64]domain.Direction{
	1: domain.DirectionIncoming,
	2: domain.DirectionOutgoing,
	3: domain.DirectionIncoming,
	4: domain.DirectionIncoming,
	5: domain.DirectionIncoming,
	6: domain.DirectionIncoming,
}

var directionWords = map[string]domain.Direction{
	"in":        domain.DirectionIncoming,
	"incoming":  domain.DirectionIncoming,
	"inbound":   domain.DirectionIncoming,
	"received":  domain.DirectionIncoming,
	"inbox":     domain.DirectionIncoming,
	"missed":    domain.DirectionIncoming,
	"rejected":  domain.DirectionIncoming,
	"blocked":   domain.DirectionIncoming,
	"voicemail": domain.DirectionIncoming,
	"out":       domain.DirectionOutgoing,
	"outgoing":  domain.DirectionOutgoing,
	"outbound":  domain.DirectionOutgoing,
	"sent":      domain.DirectionOutgoing,
	"outbox":    domain.DirectionOutgoing,
	"dialed":    domain.DirectionOutgoing,
	"dialled":   domain.DirectionOutgoing,
	"draft":     domain.DirectionOutgoing,
}

// Direction decodes a direction column for the given family. Numeric codes
// follow the Android conventions for messages and calls; textual forms are
// matched case-insensitively.
func Direction(family domain.RecordFamily, v any) domain.Direction {
	codes := chatCodes
	if family == domain.FamilyCall {
		codes = callCodes
	}

	if n, ok := integer(v); ok {
		if d, ok := codes[n]; ok {
			return d
		}
		return domain.DirectionUnknown
	}
	if d, ok := directionWords[strings.ToLower(strings.TrimSpace(Raw(v)))]; ok {
		return d
	}
	return domain.DirectionUnknown
}

// FromMe decodes a boolean "sent by the device owner" column.
func FromMe(v any) domain.Direction {
	if n, ok := integer(v); ok {
		switch n {
		case 0:
			return domain.DirectionIncoming
		case 1:
			return domain.DirectionOutgoing
		}
		return domain.DirectionUnknown
	}
	if b, ok := v.(bool); ok {
		if b {
			return domain.DirectionOutgoing
		}
		return domain.DirectionIncoming
	}
	switch strings.ToLower(strings.TrimSpace(Raw(v))) {
	case "true", "yes", "y", "t":
		return domain.DirectionOutgoing
	case "false", "no", "n", "f":
		return domain.DirectionIncoming
	}
	return domain.DirectionUnknown
}

// integer reads whole numbers from integer, float and numeric string values.
func integer(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			return int64(x), true
		}
		return 0, false
	case nil, bool:
		return 0, false
	default:
		n, err := strconv.ParseInt(strings.TrimSpace(Raw(v)), 10, 64)
		return n, err == nil
	}
}
