package domain

import (
	"fmt"
	"runtime"
	"time"
)

// TieBreakRule orders two equally scoring table candidates for one family.
type TieBreakRule string

// Available tie-break rules.
const (
	// TieBreakNameHint prefers a table whose name matches the family.
	TieBreakNameHint TieBreakRule = "name_hint"

	// TieBreakSignaturePriority prefers the candidate from the higher priority signature.
	TieBreakSignaturePriority TieBreakRule = "signature_priority"

	// TieBreakRowCount prefers the table with more rows.
	TieBreakRowCount TieBreakRule = "row_count"

	// TieBreakTableName prefers the lexically smaller table name.
	TieBreakTableName TieBreakRule = "table_name"
)

// IsValid returns true if the rule is recognised.
func (r TieBreakRule) IsValid() bool {
	switch r {
	case TieBreakNameHint, TieBreakSignaturePriority, TieBreakRowCount, TieBreakTableName:
		return true
	default:
		return false
	}
}

// DefaultTieBreak is the tie-break order used when none is configured.
func DefaultTieBreak() []TieBreakRule {
	return []TieBreakRule{
		TieBreakNameHint,
		TieBreakSignaturePriority,
		TieBreakRowCount,
		TieBreakTableName,
	}
}

// IngestSettings tunes one ingestion run.
type IngestSettings struct {
	// Workers bounds concurrent entry extraction.
	Workers int

	// MaxOpenStreams bounds concurrently open entry streams.
	MaxOpenStreams int

	// EntryTimeout aborts a single entry. Zero disables the timeout.
	EntryTimeout time.Duration

	// HeaderBytes is how much of each entry the classifier sees.
	HeaderBytes int

	// MaxSpoolBytes caps a database entry copied to disk. Zero means unlimited.
	MaxSpoolBytes int64

	// TempDir receives spooled databases. Empty uses the OS default.
	TempDir string

	// DetectionThreshold is the minimum confidence for a table to be selected.
	DetectionThreshold float64

	// TieBreak orders equally scoring candidates.
	TieBreak []TieBreakRule

	// RowCountLimit caps the row count per table.
	RowCountLimit int64

	// MergeTolerance is the timestamp window for duplicate detection.
	MergeTolerance time.Duration

	// DatabasePatterns are extra glob path hints for databases.
	DatabasePatterns []string

	// MarkupPatterns are extra glob path hints for markup.
	MarkupPatterns []string
}

// Default values for IngestSettings.
const (
	DefaultMaxOpenStreams     = 8
	DefaultEntryTimeout       = 2 * time.Minute
	DefaultHeaderBytes        = 512
	DefaultDetectionThreshold = 0.55
	DefaultRowCountLimit      = 100000
	DefaultMergeTolerance     = 2 * time.Second
)

// DefaultIngestSettings returns settings suitable for a workstation.
func DefaultIngestSettings() IngestSettings {
	return IngestSettings{
		Workers:            runtime.NumCPU(),
		MaxOpenStreams:     DefaultMaxOpenStreams,
		EntryTimeout:       DefaultEntryTimeout,
		HeaderBytes:        DefaultHeaderBytes,
		DetectionThreshold: DefaultDetectionThreshold,
		TieBreak:           DefaultTieBreak(),
		RowCountLimit:      DefaultRowCountLimit,
		MergeTolerance:     DefaultMergeTolerance,
	}
}

// Validate checks the settings for values the engine cannot run with.
func (s IngestSettings) Validate() error {
	if s.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1", ErrInvalidInput)
	}
	if s.MaxOpenStreams < 1 {
		return fmt.Errorf("%w: max open streams must be at least 1", ErrInvalidInput)
	}
	if s.EntryTimeout < 0 {
		return fmt.Errorf("%w: entry timeout must not be negative", ErrInvalidInput)
	}
	if s.HeaderBytes < 16 {
		return fmt.Errorf("%w: header bytes must be at least 16", ErrInvalidInput)
	}
	if s.MaxSpoolBytes < 0 {
		return fmt.Errorf("%w: max spool bytes must not be negative", ErrInvalidInput)
	}
	if s.DetectionThreshold < 0 || s.DetectionThreshold > 1 {
		return fmt.Errorf("%w: detection threshold must be within [0, 1]", ErrInvalidInput)
	}
	if s.MergeTolerance < 0 {
		return fmt.Errorf("%w: merge tolerance must not be negative", ErrInvalidInput)
	}
	for _, rule := range s.TieBreak {
		if !rule.IsValid() {
			return fmt.Errorf("%w: unknown tie-break rule %q", ErrInvalidInput, rule)
		}
	}
	return nil
}

// WithDefaults fills zero values from DefaultIngestSettings.
func (s IngestSettings) WithDefaults() IngestSettings {
	def := DefaultIngestSettings()
	if s.Workers == 0 {
		s.Workers = def.Workers
	}
	if s.MaxOpenStreams == 0 {
		s.MaxOpenStreams = def.MaxOpenStreams
	}
	if s.HeaderBytes == 0 {
		s.HeaderBytes = def.HeaderBytes
	}
	if s.DetectionThreshold == 0 {
		s.DetectionThreshold = def.DetectionThreshold
	}
	if len(s.TieBreak) == 0 {
		s.TieBreak = def.TieBreak
	}
	if s.RowCountLimit == 0 {
		s.RowCountLimit = def.RowCountLimit
	}
	return s
}
