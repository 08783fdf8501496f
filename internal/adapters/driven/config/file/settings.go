package file

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/custodia-labs/ingestor/internal/core/domain"
	"github.com/custodia-labs/ingestor/internal/core/ports/driven"
)

// Configuration keys read by LoadSettings.
const (
	KeyWorkers          = "engine.workers"
	KeyMaxOpenStreams   = "engine.max_open_streams"
	KeyEntryTimeout     = "engine.entry_timeout"
	KeyHeaderBytes      = "engine.header_bytes"
	KeyMaxSpoolBytes    = "engine.max_spool_bytes"
	KeyTempDir          = "engine.temp_dir"
	KeyThreshold        = "detector.threshold"
	KeyTieBreak         = "detector.tie_break"
	KeyRowCountLimit    = "detector.row_count_limit"
	KeySignatureFiles   = "detector.signature_files"
	KeyMergeTolerance   = "merge.tolerance"
	KeyDatabasePatterns = "classifier.database_patterns"
	KeyMarkupPatterns   = "classifier.markup_patterns"
	KeyWatchInterval    = "watch.min_interval"
)

// SignaturesFileName is picked up from the config directory when present.
const SignaturesFileName = "signatures.toml"

// LoadSettings builds ingestion settings from the store, starting from
// the defaults. Keys that are absent keep their default.
func LoadSettings(store driven.ConfigStore) (domain.IngestSettings, error) {
	s := domain.DefaultIngestSettings()
	if store == nil {
		return s, nil
	}

	if _, ok := store.Get(KeyWorkers); ok {
		s.Workers = store.GetInt(KeyWorkers)
	}
	if _, ok := store.Get(KeyMaxOpenStreams); ok {
		s.MaxOpenStreams = store.GetInt(KeyMaxOpenStreams)
	}
	if _, ok := store.Get(KeyHeaderBytes); ok {
		s.HeaderBytes = store.GetInt(KeyHeaderBytes)
	}
	if _, ok := store.Get(KeyMaxSpoolBytes); ok {
		s.MaxSpoolBytes = int64(store.GetInt(KeyMaxSpoolBytes))
	}
	if dir := store.GetString(KeyTempDir); dir != "" {
		s.TempDir = dir
	}
	if _, ok := store.Get(KeyThreshold); ok {
		s.DetectionThreshold = store.GetFloat(KeyThreshold)
	}
	if _, ok := store.Get(KeyRowCountLimit); ok {
		s.RowCountLimit = int64(store.GetInt(KeyRowCountLimit))
	}
	if rules := store.GetStringSlice(KeyTieBreak); len(rules) > 0 {
		s.TieBreak = make([]domain.TieBreakRule, len(rules))
		for i, r := range rules {
			s.TieBreak[i] = domain.TieBreakRule(r)
		}
	}
	s.DatabasePatterns = store.GetStringSlice(KeyDatabasePatterns)
	s.MarkupPatterns = store.GetStringSlice(KeyMarkupPatterns)

	var err error
	if s.EntryTimeout, err = durationValue(store, KeyEntryTimeout, s.EntryTimeout); err != nil {
		return s, err
	}
	if s.MergeTolerance, err = durationValue(store, KeyMergeTolerance, s.MergeTolerance); err != nil {
		return s, err
	}

	return s, s.Validate()
}

// WatchInterval returns the minimum spacing between watch-mode ingestions.
func WatchInterval(store driven.ConfigStore, def time.Duration) (time.Duration, error) {
	if store == nil {
		return def, nil
	}
	return durationValue(store, KeyWatchInterval, def)
}

// SignatureFiles lists the signature files to load: the configured ones
// followed by signatures.toml in the config directory, if it exists.
func SignatureFiles(store driven.ConfigStore) []string {
	if store == nil {
		return nil
	}
	files := store.GetStringSlice(KeySignatureFiles)
	local := filepath.Join(filepath.Dir(store.Path()), SignaturesFileName)
	if _, err := os.Stat(local); err == nil {
		files = append(files, local)
	}
	return files
}

// durationValue accepts a Go duration string or a number of seconds.
func durationValue(store driven.ConfigStore, key string, def time.Duration) (time.Duration, error) {
	val, ok := store.Get(key)
	if !ok {
		return def, nil
	}

	switch v := val.(type) {
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return def, fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, key, err)
		}
		return d, nil
	case int64, int:
		return time.Duration(store.GetInt(key)) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	default:
		return def, fmt.Errorf("%w: %s must be a duration", domain.ErrInvalidInput, key)
	}
}
