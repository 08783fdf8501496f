package services

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/ingestor/internal/core/domain"
	"github.com/custodia-labs/ingestor/internal/core/ports/driven"
	"github.com/custodia-labs/ingestor/internal/core/ports/driving"
	"github.com/custodia-labs/ingestor/internal/logger"
)

// Ensure IngestionEngine implements the interface.
var _ driving.IngestionService = (*IngestionEngine)(nil)

// EngineOption configures an IngestionEngine.
type EngineOption func(*IngestionEngine)

// WithSettings replaces the engine settings. Zero values take defaults.
func WithSettings(s domain.IngestSettings) EngineOption {
	return func(e *IngestionEngine) {
		e.settings = s.WithDefaults()
	}
}

// WithSink hands every result to a downstream sink.
func WithSink(sink driven.RecordSink) EngineOption {
	return func(e *IngestionEngine) {
		e.sink = sink
	}
}

// WithEngineClock overrides the clock used for run timestamps.
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *IngestionEngine) {
		if now != nil {
			e.now = now
		}
	}
}

// IngestionEngine turns an extraction container into canonical records.
// Entries are processed by a bounded worker pool; each writes into its own
// result slot and the merge runs once every worker has returned.
type IngestionEngine struct {
	archives   driven.ArchiveOpener
	classifier driven.Classifier
	databases  driven.DatabaseOpener
	detector   driven.SchemaDetector
	extractors driven.ExtractorRegistry
	markup     driven.MarkupExtractor
	merger     driven.RecordMerger
	sink       driven.RecordSink
	settings   domain.IngestSettings
	now        func() time.Time

	// Status tracking
	mu     sync.RWMutex
	status driving.IngestStatus
}

// NewIngestionEngine creates an ingestion engine.
// The merger is optional - if nil, records are returned unmerged.
func NewIngestionEngine(
	archives driven.ArchiveOpener,
	classifier driven.Classifier,
	databases driven.DatabaseOpener,
	detector driven.SchemaDetector,
	extractors driven.ExtractorRegistry,
	markup driven.MarkupExtractor,
	merger driven.RecordMerger,
	opts ...EngineOption,
) *IngestionEngine {
	e := &IngestionEngine{
		archives:   archives,
		classifier: classifier,
		databases:  databases,
		detector:   detector,
		extractors: extractors,
		markup:     markup,
		merger:     merger,
		settings:   domain.DefaultIngestSettings(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Settings returns the effective settings.
func (e *IngestionEngine) Settings() domain.IngestSettings {
	return e.settings
}

// Ingest processes the container at path.
// A non-nil result accompanied by an error wrapping domain.ErrSinkFailed
// means extraction succeeded but the sink rejected the result.
func (e *IngestionEngine) Ingest(ctx context.Context, path string) (*domain.IngestionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := e.settings.Validate(); err != nil {
		return nil, err
	}

	archive, err := e.archives.OpenFile(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return e.run(ctx, archive)
}

// IngestStream processes a container read from a non-seekable stream.
func (e *IngestionEngine) IngestStream(ctx context.Context, name string, r io.Reader) (*domain.IngestionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := e.settings.Validate(); err != nil {
		return nil, err
	}

	archive, err := e.archives.OpenStream(ctx, name, r)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return e.run(ctx, archive)
}

// Status returns progress of the current or most recent ingestion.
func (e *IngestionEngine) Status() driving.IngestStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

//nolint:gocyclo // Orchestration function with necessary sequential steps
func (e *IngestionEngine) run(ctx context.Context, archive driven.Archive) (*domain.IngestionResult, error) {
	defer func() {
		if err := archive.Close(); err != nil {
			logger.Warn("Failed to close archive %s: %v", archive.Name(), err)
		}
	}()

	entries := archive.Entries()
	result := &domain.IngestionResult{
		RunID:       uuid.NewString(),
		ArchivePath: archive.Name(),
		StartedAt:   e.now().UTC(),
	}

	e.setStatus(driving.IngestStatus{
		ArchivePath:  archive.Name(),
		Running:      true,
		EntriesTotal: len(entries),
	})
	defer e.finishStatus()

	logger.Info("Ingesting %s (%d entries, %d workers)", archive.Name(), len(entries), e.settings.Workers)

	// 1. Fan out: one entry per worker, one slot per entry
	reports := make([]domain.IngestionReport, len(entries))
	slots := make([][]domain.Record, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.settings.Workers)
	for i, entry := range entries {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			report, records := e.processEntry(gctx, archive, entry)
			reports[i] = report
			slots[i] = records
			e.entryDone(report)
			return nil
		})
	}

	// 2. Barrier
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		logger.Warn("Ingestion of %s cancelled: %v", archive.Name(), err)
		return nil, err
	}

	// 3. Merge
	var records []domain.Record
	for _, recs := range slots {
		records = append(records, recs...)
	}
	if e.merger != nil {
		records, result.DuplicatesRemoved = e.merger.Merge(records)
	}
	result.Records = records
	result.Reports = reports
	result.FinishedAt = e.now().UTC()

	counts := result.CountByStatus()
	logger.Info("Ingested %s: %d records (%d duplicates removed), %d processed, %d skipped, %d failed",
		archive.Name(), len(records), result.DuplicatesRemoved,
		counts[domain.StatusProcessed], counts[domain.StatusSkippedUnrecognized], counts[domain.StatusFailedCorrupt])

	// 4. Hand over at the boundary
	if e.sink != nil {
		if err := e.sink.Write(ctx, result); err != nil {
			logger.Warn("Record sink rejected run %s: %v", result.RunID, err)
			return result, fmt.Errorf("%w: %w", domain.ErrSinkFailed, err)
		}
	}
	return result, nil
}

// processEntry runs one entry to completion and never fails: every error is
// folded into the returned report.
func (e *IngestionEngine) processEntry(
	ctx context.Context,
	archive driven.Archive,
	entry driven.Entry,
) (domain.IngestionReport, []domain.Record) {
	start := time.Now()
	info := entry.Info()
	report := domain.IngestionReport{
		EntryPath: info.Path,
		Kind:      domain.ContentUnknown,
	}

	entryCtx := ctx
	if e.settings.EntryTimeout > 0 {
		var cancel context.CancelFunc
		entryCtx, cancel = context.WithTimeout(ctx, e.settings.EntryTimeout)
		defer cancel()
	}

	logger.Debug("Processing entry %s (%d bytes)", info.Path, info.Size)
	records, err := e.extractEntry(entryCtx, archive, entry, &report)
	report.Duration = time.Since(start)

	switch {
	case err == nil:
	case ctx.Err() != nil:
		// Cancelled by the caller; the run is discarded.
		return report, nil
	case errors.Is(entryCtx.Err(), context.DeadlineExceeded):
		err = fmt.Errorf("%w after %s", domain.ErrExtractionTimeout, e.settings.EntryTimeout)
		fallthrough
	default:
		entryErr := &domain.EntryError{Path: info.Path, Err: err}
		logger.Warn("Entry failed: %v", entryErr)
		report.Status = domain.StatusFailedCorrupt
		report.ErrorDetail = err.Error()
	}
	report.RecordCount = len(records)
	return report, records
}

// extractEntry classifies an entry from its header and dispatches to the
// database or markup path. Skips set the report status and return nil.
func (e *IngestionEngine) extractEntry(
	ctx context.Context,
	archive driven.Archive,
	entry driven.Entry,
	report *domain.IngestionReport,
) ([]domain.Record, error) {
	rc, err := entry.Open(ctx)
	if err != nil {
		return nil, err
	}
	closeStream := sync.OnceValue(rc.Close)
	defer closeStream()

	// bufio never buffers fewer than 16 bytes.
	br := bufio.NewReaderSize(rc, e.classifier.HeaderSize())
	header, err := br.Peek(e.classifier.HeaderSize())
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("read header: %w", err)
	}

	report.Kind = e.classifier.Classify(report.EntryPath, header)
	switch report.Kind {
	case domain.ContentRelationalDB:
		report.Status = domain.StatusProcessed
		return e.extractDatabase(ctx, archive, entry, br, closeStream, report)
	case domain.ContentMarkup:
		report.Status = domain.StatusProcessed
		return e.extractMarkup(ctx, br, report)
	default:
		logger.Debug("Skipping unrecognised entry %s", report.EntryPath)
		report.Status = domain.StatusSkippedUnrecognized
		return nil, nil
	}
}

func (e *IngestionEngine) extractDatabase(
	ctx context.Context,
	archive driven.Archive,
	entry driven.Entry,
	r io.Reader,
	closeStream func() error,
	report *domain.IngestionReport,
) ([]domain.Record, error) {
	path, release, err := archive.Spool(ctx, entry, r)
	// Only the spooled copy is read from here on; free the stream slot.
	if cerr := closeStream(); cerr != nil {
		logger.Debug("Closing stream of %s: %v", report.EntryPath, cerr)
	}
	if err != nil {
		return nil, fmt.Errorf("spool database: %w", err)
	}
	defer release()

	db, err := e.databases.OpenDatabase(ctx, path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	profiles, err := e.detector.Detect(ctx, db)
	if err != nil {
		return nil, err
	}
	report.Profiles = profiles
	if len(profiles) == 0 {
		logger.Debug("No chat, call or contact tables in %s", report.EntryPath)
		return nil, nil
	}

	var records []domain.Record
	for _, profile := range profiles {
		extractor, ok := e.extractors.Get(profile.Family)
		if !ok {
			logger.Warn("No extractor for %s table %s in %s", profile.Family, profile.TableName, report.EntryPath)
			continue
		}

		res, err := extractor.Extract(ctx, db, profile, report.EntryPath)
		if res != nil {
			records = append(records, res.Records...)
			report.SkippedRows += res.SkippedRows
		}
		if err != nil {
			return records, fmt.Errorf("extract %s from %s: %w", profile.Family, profile.TableName, err)
		}
		logger.Debug("Extracted %s records from %s:%s", profile.Family, report.EntryPath, profile.TableName)
	}
	return records, nil
}

func (e *IngestionEngine) extractMarkup(
	ctx context.Context,
	r io.Reader,
	report *domain.IngestionReport,
) ([]domain.Record, error) {
	res, err := e.markup.Extract(ctx, r, report.EntryPath)
	var records []domain.Record
	if res != nil {
		records = res.Records
		report.SkippedRows = res.SkippedRows
	}

	if errors.Is(err, domain.ErrUnsupportedType) && ctx.Err() == nil {
		logger.Debug("Entry %s is text but not a markup report", report.EntryPath)
		report.Status = domain.StatusSkippedUnrecognized
		return nil, nil
	}
	return records, err
}

// Inspect classifies every entry and runs schema detection on databases
// without extracting records.
func (e *IngestionEngine) Inspect(ctx context.Context, path string) ([]driving.EntryInspection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	archive, err := e.archives.OpenFile(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer archive.Close()

	entries := archive.Entries()
	out := make([]driving.EntryInspection, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.settings.Workers)
	for i, entry := range entries {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			out[i] = e.inspectEntry(gctx, archive, entry)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *IngestionEngine) inspectEntry(ctx context.Context, archive driven.Archive, entry driven.Entry) driving.EntryInspection {
	ins := driving.EntryInspection{Entry: entry.Info()}
	ins.Entry.Kind = domain.ContentUnknown

	rc, err := entry.Open(ctx)
	if err != nil {
		ins.Err = err
		return ins
	}
	closeStream := sync.OnceValue(rc.Close)
	defer closeStream()

	br := bufio.NewReaderSize(rc, e.classifier.HeaderSize())
	header, err := br.Peek(e.classifier.HeaderSize())
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		ins.Err = fmt.Errorf("read header: %w", err)
		return ins
	}
	ins.Entry.Kind = e.classifier.Classify(ins.Entry.Path, header)
	if ins.Entry.Kind != domain.ContentRelationalDB {
		return ins
	}

	path, release, err := archive.Spool(ctx, entry, br)
	_ = closeStream()
	if err != nil {
		ins.Err = fmt.Errorf("spool database: %w", err)
		return ins
	}
	defer release()

	db, err := e.databases.OpenDatabase(ctx, path)
	if err != nil {
		ins.Err = err
		return ins
	}
	defer db.Close()

	ins.Tables, err = db.Catalog(ctx, e.settings.RowCountLimit)
	if err != nil {
		ins.Err = err
		return ins
	}
	ins.Profiles = e.detector.DetectTables(ins.Tables)
	return ins
}

func (e *IngestionEngine) setStatus(status driving.IngestStatus) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = status
}

func (e *IngestionEngine) entryDone(report domain.IngestionReport) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status.EntriesDone++
	e.status.RecordsExtracted += report.RecordCount
	if report.Failed() {
		e.status.FailedEntries++
	}
}

func (e *IngestionEngine) finishStatus() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status.Running = false
}
