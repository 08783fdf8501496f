package archive

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ingestor/internal/core/domain"
	"github.com/custodia-labs/ingestor/internal/fixtures"
)

func sample(t *testing.T) string {
	t.Helper()
	return fixtures.Zip(t, t.TempDir(), "sample.zip",
		fixtures.File{Name: "databases/", Data: nil},
		fixtures.File{Name: "databases/mmssms.db", Data: []byte("0123456789")},
		fixtures.File{Name: "reports/calls.xml", Data: []byte("<calls/>")},
	)
}

func readAll(t *testing.T, ctx context.Context, a *Archive, i int) []byte {
	t.Helper()
	rc, err := a.Entries()[i].Open(ctx)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return data
}

func openSample(t *testing.T, opts ...Option) *Archive {
	t.Helper()
	opts = append([]Option{WithTempDir(t.TempDir())}, opts...)
	a, err := NewOpener(opts...).OpenFile(context.Background(), sample(t))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a.(*Archive)
}

func TestOpenFile_ListsFileEntries(t *testing.T) {
	a := openSample(t)

	entries := a.Entries()
	require.Len(t, entries, 2, "directories are not entries")

	info := entries[0].Info()
	assert.Equal(t, "databases/mmssms.db", info.Path)
	assert.Equal(t, int64(10), info.Size)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), info.Modified.UTC())
	assert.Empty(t, info.Kind, "kind is set by the classifier")
	assert.Equal(t, "reports/calls.xml", entries[1].Info().Path)
}

func TestOpenFile_Errors(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.zip")
	require.NoError(t, os.WriteFile(garbage, []byte("not a zip file at all"), 0o600))

	tests := []struct {
		name string
		path string
		want error
	}{
		{name: "corrupt", path: garbage, want: domain.ErrArchiveCorrupt},
		{name: "directory", path: dir, want: domain.ErrInvalidInput},
		{name: "missing", path: filepath.Join(dir, "absent.zip"), want: os.ErrNotExist},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewOpener().OpenFile(context.Background(), tt.path)
			assert.Nil(t, a)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOpenFile_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewOpener().OpenFile(ctx, sample(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEntry_SinglePass(t *testing.T) {
	a := openSample(t)

	assert.Equal(t, []byte("0123456789"), readAll(t, context.Background(), a, 0))

	_, err := a.Entries()[0].Open(context.Background())
	assert.ErrorIs(t, err, domain.ErrStreamConsumed)
}

func TestEntry_StreamBudget(t *testing.T) {
	a := openSample(t, WithMaxOpenStreams(1))
	entries := a.Entries()

	first, err := entries[0].Open(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = entries[1].Open(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, first.Close())
	require.NoError(t, first.Close(), "close is idempotent")

	assert.Equal(t, []byte("<calls/>"), readAll(t, context.Background(), a, 1), "a failed open can be retried")
}

func TestEntry_ReadStopsOnCancel(t *testing.T) {
	a := openSample(t)

	ctx, cancel := context.WithCancel(context.Background())
	rc, err := a.Entries()[0].Open(ctx)
	require.NoError(t, err)
	defer rc.Close()

	cancel()
	_, err = io.ReadAll(rc)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSpool(t *testing.T) {
	a := openSample(t)
	entry := a.Entries()[0]

	rc, err := entry.Open(context.Background())
	require.NoError(t, err)
	defer rc.Close()

	path, release, err := a.Spool(context.Background(), entry, rc)
	require.NoError(t, err)
	assert.Equal(t, ".db", filepath.Ext(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("0123456789"), data)
	assert.Equal(t, 1, a.SpooledCount())

	release()
	release()
	assert.NoFileExists(t, path)
	assert.Zero(t, a.SpooledCount())
}

func TestSpool_SizeLimit(t *testing.T) {
	tmp := t.TempDir()
	a, err := NewOpener(WithTempDir(tmp), WithMaxSpoolBytes(4)).OpenFile(context.Background(), sample(t))
	require.NoError(t, err)
	defer a.Close()

	entry := a.Entries()[0]
	_, _, err = a.Spool(context.Background(), entry, bytes.NewReader([]byte("0123456789")))
	assert.ErrorIs(t, err, domain.ErrEntryTooLarge)

	left, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, left, "oversized spool files are removed")
}

func TestClose_RemovesSpoolFiles(t *testing.T) {
	a := openSample(t)
	entry := a.Entries()[1]

	path, _, err := a.Spool(context.Background(), entry, bytes.NewReader([]byte("<calls/>")))
	require.NoError(t, err)
	assert.FileExists(t, path)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close(), "close is idempotent")
	assert.NoFileExists(t, path)

	_, err = entry.Open(context.Background())
	assert.ErrorIs(t, err, domain.ErrArchiveClosed)

	_, _, err = a.Spool(context.Background(), entry, bytes.NewReader(nil))
	assert.ErrorIs(t, err, domain.ErrArchiveClosed)
}

func TestOpenStream(t *testing.T) {
	tmp := t.TempDir()
	data := fixtures.ZipBytes(t, fixtures.File{Name: "calls.xml", Data: []byte("<calls/>")})

	a, err := NewOpener(WithTempDir(tmp)).OpenStream(context.Background(), "upload.zip", bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, "upload.zip", a.Name())
	require.Len(t, a.Entries(), 1)

	spooled, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Len(t, spooled, 1)

	require.NoError(t, a.Close())
	spooled, err = os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, spooled, "the stream spool is removed on close")
}

func TestOpenStream_Errors(t *testing.T) {
	tmp := t.TempDir()

	_, err := NewOpener(WithTempDir(tmp)).OpenStream(context.Background(), "nil", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = NewOpener(WithTempDir(tmp)).OpenStream(context.Background(), "bad.zip", bytes.NewReader([]byte("nope")))
	assert.ErrorIs(t, err, domain.ErrArchiveCorrupt)

	left, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestCleanEntryPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a/b.db", "a/b.db"},
		{`a\b\c.db`, "a/b/c.db"},
		{"/abs/x.xml", "abs/x.xml"},
		{"a/../b.db", "b.db"},
		{"./a//b.db", "a/b.db"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanEntryPath(tt.in))
		})
	}
}
