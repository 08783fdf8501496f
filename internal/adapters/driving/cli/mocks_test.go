package cli

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/custodia-labs/ingestor/internal/adapters/driving/watch"
	"github.com/custodia-labs/ingestor/internal/core/domain"
	"github.com/custodia-labs/ingestor/internal/core/ports/driven"
	"github.com/custodia-labs/ingestor/internal/core/ports/driving"
	"github.com/custodia-labs/ingestor/internal/schema"
)

// mockIngestionService implements driving.IngestionService for testing.
type mockIngestionService struct {
	result      *domain.IngestionResult
	err         error
	inspections []driving.EntryInspection

	mu         sync.Mutex
	path       string
	streamName string
	streamData []byte
}

func (m *mockIngestionService) Ingest(_ context.Context, path string) (*domain.IngestionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.path = path
	return m.result, m.err
}

func (m *mockIngestionService) IngestStream(_ context.Context, name string, r io.Reader) (*domain.IngestionResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamName = name
	m.streamData = data
	return m.result, m.err
}

func (m *mockIngestionService) Inspect(_ context.Context, path string) ([]driving.EntryInspection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.path = path
	return m.inspections, m.err
}

func (m *mockIngestionService) Status() driving.IngestStatus {
	return driving.IngestStatus{}
}

// mockRunStore implements driven.RunStore for testing.
type mockRunStore struct {
	runs    map[string]*domain.IngestionResult
	written []*domain.IngestionResult
	closed  bool
}

func newMockRunStore(results ...*domain.IngestionResult) *mockRunStore {
	s := &mockRunStore{runs: make(map[string]*domain.IngestionResult)}
	for _, r := range results {
		s.runs[r.RunID] = r
	}
	return s
}

func (s *mockRunStore) Write(_ context.Context, result *domain.IngestionResult) error {
	s.written = append(s.written, result)
	s.runs[result.RunID] = result
	return nil
}

func (s *mockRunStore) GetRun(_ context.Context, id string) (*domain.IngestionResult, error) {
	r, ok := s.runs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r, nil
}

func (s *mockRunStore) ListRuns(_ context.Context) ([]domain.RunSummary, error) {
	out := make([]domain.RunSummary, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, domain.RunSummary{
			ID:                r.RunID,
			ArchivePath:       r.ArchivePath,
			StartedAt:         r.StartedAt,
			FinishedAt:        r.FinishedAt,
			RecordCount:       len(r.Records),
			DuplicatesRemoved: r.DuplicatesRemoved,
		})
	}
	return out, nil
}

func (s *mockRunStore) DeleteRun(_ context.Context, id string) error {
	if _, ok := s.runs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.runs, id)
	return nil
}

func (s *mockRunStore) Close() error {
	s.closed = true
	return nil
}

// testEnv captures what the engine factory was called with.
type testEnv struct {
	svc      *mockIngestionService
	store    *mockRunStore
	settings domain.IngestSettings
	sink     driven.RecordSink
}

// setupCLI installs mocks and restores the previous services on cleanup.
func setupCLI(t *testing.T, svc *mockIngestionService, store *mockRunStore) *testEnv {
	t.Helper()

	env := &testEnv{svc: svc, store: store}
	oldSettings, oldFactory, oldSigs, oldOpener, oldInterval :=
		settings, engineFactory, signatures, runStoreOpener, watchInterval

	cfg := Config{
		Settings:   domain.DefaultIngestSettings(),
		Signatures: schema.DefaultRegistry(),
		NewEngine: func(s domain.IngestSettings, sink driven.RecordSink) (driving.IngestionService, error) {
			env.settings = s
			env.sink = sink
			return svc, nil
		},
	}
	if store != nil {
		cfg.OpenRunStore = func() (driven.RunStore, error) { return store, nil }
	}
	Configure(cfg)

	t.Cleanup(func() {
		settings, engineFactory, signatures, runStoreOpener, watchInterval =
			oldSettings, oldFactory, oldSigs, oldOpener, oldInterval
		resetFlags()
	})
	return env
}

// resetFlags restores flag variables, which cobra keeps between executions.
func resetFlags() {
	verbose, quiet = false, false
	ingestJSON, ingestOut, ingestWorkers, ingestTimeout, ingestStore = false, "", 0, 0, false
	inspectJSON = false
	signaturesFamily, signaturesJSON = "", false
	runsJSON = false
	watchStore, watchExisting = false, false
	watchSettle, watchPatterns = watch.DefaultSettle, []string{watch.DefaultPattern}
}

// execute runs the root command and returns stdout and stderr.
func execute(args ...string) (string, string, error) {
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	}()

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

// sampleResult builds a small result with one failed entry.
func sampleResult() *domain.IngestionResult {
	ts := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	return &domain.IngestionResult{
		RunID:             "run-123",
		ArchivePath:       "/evidence/phone.zip",
		StartedAt:         ts,
		FinishedAt:        ts.Add(1500 * time.Millisecond),
		DuplicatesRemoved: 1,
		Records: []domain.Record{
			domain.NewChatRecord("c1", "sms", domain.ChatMessage{
				SourceEntryPath:       "databases/mmssms.db",
				ParticipantIdentifier: "+15551234567",
				Direction:             domain.DirectionIncoming,
				Body:                  "hello",
				TimestampUTC:          &ts,
				RawTimestampValue:     "1700000000000",
			}),
			domain.NewCallRecord("k1", "calls", domain.CallRecord{
				SourceEntryPath:       "databases/calllog.db",
				ParticipantIdentifier: "+15550000001",
				Direction:             domain.DirectionOutgoing,
				RawTimestampValue:     "garbage",
			}),
		},
		Reports: []domain.IngestionReport{
			{
				EntryPath:   "databases/mmssms.db",
				Kind:        domain.ContentRelationalDB,
				Status:      domain.StatusProcessed,
				RecordCount: 1,
				Profiles: []domain.SchemaProfile{{
					Family:          domain.FamilyChat,
					TableName:       "sms",
					ConfidenceScore: 1,
				}},
			},
			{
				EntryPath:   "databases/calllog.db",
				Kind:        domain.ContentRelationalDB,
				Status:      domain.StatusProcessed,
				RecordCount: 1,
				SkippedRows: 2,
			},
			{
				EntryPath:   "broken.db",
				Kind:        domain.ContentRelationalDB,
				Status:      domain.StatusFailedCorrupt,
				ErrorDetail: "unreadable database",
			},
			{
				EntryPath: "photo.bin",
				Kind:      domain.ContentUnknown,
				Status:    domain.StatusSkippedUnrecognized,
			},
		},
	}
}
