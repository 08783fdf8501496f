package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	storesqlite "github.com/custodia-labs/ingestor/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/ingestor/internal/core/domain"
	"github.com/custodia-labs/ingestor/internal/fixtures"
	"github.com/custodia-labs/ingestor/internal/schema"
)

func TestNewEngine_EndToEnd(t *testing.T) {
	path := fixtures.Zip(t, t.TempDir(), "phone.zip",
		fixtures.File{
			Name: "data/data/com.android.providers.telephony/databases/mmssms.db",
			Data: fixtures.SQLiteBytes(t, fixtures.MmssmsStatements()...),
		},
		fixtures.File{
			Name: "data/data/com.android.providers.contacts/databases/calllog.db",
			Data: fixtures.SQLiteBytes(t, fixtures.CallLogStatements()...),
		},
		fixtures.File{Name: "backup/calls.xml", Data: []byte(fixtures.CallsXML)},
	)

	store, err := storesqlite.NewStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	s := domain.DefaultIngestSettings()
	s.Workers = 2
	s.TempDir = t.TempDir()

	engine, err := newEngine(s, schema.DefaultRegistry(), store)
	require.NoError(t, err)

	result, err := engine.Ingest(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, result.Chats(), 1)
	assert.Len(t, result.Calls(), 5)
	assert.Empty(t, result.Failed())

	stored, err := store.GetRun(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.Len(t, stored.Records, len(result.Records))
	assert.Len(t, stored.Reports, 3)
}

func TestNewEngine_InvalidSettings(t *testing.T) {
	s := domain.DefaultIngestSettings()
	s.DetectionThreshold = 2

	_, err := newEngine(s, schema.DefaultRegistry(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNewEngine_ExtraPatterns(t *testing.T) {
	s := domain.DefaultIngestSettings()
	s.TempDir = t.TempDir()
	s.MarkupPatterns = []string{"**.report"}

	engine, err := newEngine(s, schema.DefaultRegistry(), nil)
	require.NoError(t, err)
	assert.Equal(t, s.MarkupPatterns, engine.Settings().MarkupPatterns)
}
