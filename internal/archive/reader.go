package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"sync"

	"github.com/klauspost/compress/zip"
	"golang.org/x/sync/semaphore"

	"github.com/custodia-labs/ingestor/internal/core/domain"
	"github.com/custodia-labs/ingestor/internal/core/ports/driven"
	"github.com/custodia-labs/ingestor/internal/logger"
)

// Ensure Opener implements the interface.
var _ driven.ArchiveOpener = (*Opener)(nil)

// Ensure Archive implements the interface.
var _ driven.Archive = (*Archive)(nil)

// Option configures an Opener.
type Option func(*Opener)

// WithMaxOpenStreams bounds concurrently open entry streams per archive.
func WithMaxOpenStreams(n int) Option {
	return func(o *Opener) {
		if n > 0 {
			o.maxOpenStreams = n
		}
	}
}

// WithMaxSpoolBytes caps how much of one entry may be spooled to disk.
// Zero means unlimited.
func WithMaxSpoolBytes(n int64) Option {
	return func(o *Opener) {
		if n >= 0 {
			o.maxSpoolBytes = n
		}
	}
}

// WithTempDir sets the directory for spooled entries.
func WithTempDir(dir string) Option {
	return func(o *Opener) {
		o.tempDir = dir
	}
}

// Opener opens ZIP containers.
type Opener struct {
	maxOpenStreams int
	maxSpoolBytes  int64
	tempDir        string
}

// NewOpener creates an Opener with the given options.
func NewOpener(opts ...Option) *Opener {
	o := &Opener{maxOpenStreams: domain.DefaultMaxOpenStreams}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// OpenFile opens a container on disk.
func (o *Opener) OpenFile(ctx context.Context, name string) (driven.Archive, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat archive: %w", err)
	}
	if st.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%w: %s is a directory", domain.ErrInvalidInput, name)
	}

	a, err := o.newArchive(name, f, st.Size())
	if err != nil {
		f.Close()
		return nil, err
	}
	a.closers = append(a.closers, f)
	return a, nil
}

// OpenStream spools a non-seekable stream to a temporary file and opens it.
// The temporary file is removed when the archive is closed.
func (o *Opener) OpenStream(ctx context.Context, name string, r io.Reader) (driven.Archive, error) {
	if r == nil {
		return nil, domain.ErrInvalidInput
	}

	tmp, err := os.CreateTemp(o.tempDir, "ingestor-archive-*.zip")
	if err != nil {
		return nil, fmt.Errorf("create archive spool: %w", err)
	}
	cleanup := func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}

	size, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r})
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("spool archive: %w", err)
	}

	a, err := o.newArchive(name, tmp, size)
	if err != nil {
		cleanup()
		return nil, err
	}
	a.closers = append(a.closers, tmp)
	a.removeOnClose = append(a.removeOnClose, tmp.Name())
	return a, nil
}

func (o *Opener) newArchive(name string, ra io.ReaderAt, size int64) (*Archive, error) {
	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrArchiveCorrupt, name, err)
	}

	a := &Archive{
		name:          name,
		budget:        semaphore.NewWeighted(int64(o.maxOpenStreams)),
		maxSpoolBytes: o.maxSpoolBytes,
		tempDir:       o.tempDir,
		spooled:       make(map[string]struct{}),
	}

	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		a.entries = append(a.entries, &entry{
			archive: a,
			file:    f,
			info: domain.ArchiveEntry{
				Path:           cleanEntryPath(f.Name),
				Size:           int64(f.UncompressedSize64),
				CompressedSize: int64(f.CompressedSize64),
				Modified:       f.Modified,
			},
		})
	}

	logger.Debug("Opened archive %s: %d entries", name, len(a.entries))
	return a, nil
}

// cleanEntryPath normalises separators written by Windows-based tools.
func cleanEntryPath(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	return strings.TrimPrefix(path.Clean("/"+name), "/")
}

// Archive is an opened ZIP container.
type Archive struct {
	name          string
	entries       []driven.Entry
	budget        *semaphore.Weighted
	maxSpoolBytes int64
	tempDir       string

	mu            sync.Mutex
	closed        bool
	closers       []io.Closer
	removeOnClose []string
	spooled       map[string]struct{}
}

// Name returns the container's path or display name.
func (a *Archive) Name() string {
	return a.name
}

// Entries lists file entries in archive order.
func (a *Archive) Entries() []driven.Entry {
	return a.entries
}

// Spool copies r into a temporary file and returns its path.
func (a *Archive) Spool(ctx context.Context, e driven.Entry, r io.Reader) (string, func(), error) {
	if a.isClosed() {
		return "", nil, domain.ErrArchiveClosed
	}

	tmp, err := os.CreateTemp(a.tempDir, "ingestor-entry-*"+path.Ext(e.Info().Path))
	if err != nil {
		return "", nil, fmt.Errorf("create spool file: %w", err)
	}
	name := tmp.Name()

	src := io.Reader(&ctxReader{ctx: ctx, r: r})
	if a.maxSpoolBytes > 0 {
		src = io.LimitReader(src, a.maxSpoolBytes+1)
	}

	n, err := io.Copy(tmp, src)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && a.maxSpoolBytes > 0 && n > a.maxSpoolBytes {
		err = fmt.Errorf("%w: %s is larger than %d bytes", domain.ErrEntryTooLarge, e.Info().Path, a.maxSpoolBytes)
	}
	if err != nil {
		os.Remove(name)
		return "", nil, err
	}

	a.mu.Lock()
	a.spooled[name] = struct{}{}
	a.mu.Unlock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			a.mu.Lock()
			delete(a.spooled, name)
			a.mu.Unlock()
			if err := os.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
				logger.Warn("Failed to remove spool file %s: %v", name, err)
			}
		})
	}
	return name, release, nil
}

// Close releases the container handle and every temporary file.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true

	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			errs = append(errs, err)
		}
	}
	for name := range a.spooled {
		if err := os.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	a.spooled = make(map[string]struct{})
	for _, name := range a.removeOnClose {
		if err := os.Remove(name); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *Archive) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// SpooledCount returns the number of spool files not yet released.
func (a *Archive) SpooledCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.spooled)
}
