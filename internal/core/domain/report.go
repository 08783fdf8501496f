package domain

import "time"

// EntryStatus is the processing outcome of one archive entry.
type EntryStatus string

const (
	// StatusProcessed means the entry was extracted (possibly with zero records).
	StatusProcessed EntryStatus = "processed"

	// StatusSkippedUnrecognized means the classifier did not recognise the content.
	StatusSkippedUnrecognized EntryStatus = "skipped_unrecognized"

	// StatusFailedCorrupt means extraction failed; ErrorDetail explains why.
	StatusFailedCorrupt EntryStatus = "failed_corrupt"
)

// String returns the string representation.
func (s EntryStatus) String() string {
	return string(s)
}

// IngestionReport records what happened to one archive entry.
type IngestionReport struct {
	// EntryPath is the archive entry path.
	EntryPath string `json:"entry_path"`

	// Kind is the classifier's verdict.
	Kind ContentKind `json:"kind"`

	// Status is the processing outcome.
	Status EntryStatus `json:"status"`

	// RecordCount is the number of records extracted from the entry before merging.
	RecordCount int `json:"record_count"`

	// SkippedRows counts rows that could not be mapped.
	SkippedRows int `json:"skipped_rows,omitempty"`

	// ErrorDetail is set only when Status is StatusFailedCorrupt.
	ErrorDetail string `json:"error_detail,omitempty"`

	// Profiles are the schema profiles selected for a database entry.
	Profiles []SchemaProfile `json:"profiles,omitempty"`

	// Duration is the wall time spent on the entry.
	Duration time.Duration `json:"duration"`
}

// Failed returns true if the entry failed.
func (r IngestionReport) Failed() bool {
	return r.Status == StatusFailedCorrupt
}

// IngestionResult is the engine's output for one container.
type IngestionResult struct {
	// RunID identifies this ingestion run.
	RunID string `json:"run_id"`

	// ArchivePath is the container that was ingested.
	ArchivePath string `json:"archive_path"`

	// Records are the merged canonical records. Order is unspecified.
	Records []Record `json:"records,omitempty"`

	// Reports has one entry per archive entry, in archive order.
	Reports []IngestionReport `json:"reports,omitempty"`

	// DuplicatesRemoved counts records folded away by the merge step.
	DuplicatesRemoved int `json:"duplicates_removed"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// ByFamily returns the records of one family.
func (r *IngestionResult) ByFamily(family RecordFamily) []Record {
	var out []Record
	for _, rec := range r.Records {
		if rec.Family == family {
			out = append(out, rec)
		}
	}
	return out
}

// Chats returns every chat message.
func (r *IngestionResult) Chats() []ChatMessage {
	var out []ChatMessage
	for _, rec := range r.Records {
		if rec.Family == FamilyChat && rec.Chat != nil {
			out = append(out, *rec.Chat)
		}
	}
	return out
}

// Calls returns every call record.
func (r *IngestionResult) Calls() []CallRecord {
	var out []CallRecord
	for _, rec := range r.Records {
		if rec.Family == FamilyCall && rec.Call != nil {
			out = append(out, *rec.Call)
		}
	}
	return out
}

// Contacts returns every contact entry.
func (r *IngestionResult) Contacts() []ContactEntry {
	var out []ContactEntry
	for _, rec := range r.Records {
		if rec.Family == FamilyContact && rec.Contact != nil {
			out = append(out, *rec.Contact)
		}
	}
	return out
}

// Failed returns the reports of failed entries.
func (r *IngestionResult) Failed() []IngestionReport {
	var out []IngestionReport
	for _, rep := range r.Reports {
		if rep.Failed() {
			out = append(out, rep)
		}
	}
	return out
}

// CountByStatus tallies reports per status.
func (r *IngestionResult) CountByStatus() map[EntryStatus]int {
	counts := make(map[EntryStatus]int)
	for _, rep := range r.Reports {
		counts[rep.Status]++
	}
	return counts
}

// RunSummary describes one stored ingestion run.
type RunSummary struct {
	ID                string    `json:"id"`
	ArchivePath       string    `json:"archive_path"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
	RecordCount       int       `json:"record_count"`
	DuplicatesRemoved int       `json:"duplicates_removed"`
}
