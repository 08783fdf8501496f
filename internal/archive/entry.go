package archive

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/klauspost/compress/zip"

	"github.com/custodia-labs/ingestor/internal/core/domain"
	"github.com/custodia-labs/ingestor/internal/core/ports/driven"
)

// Ensure entry implements the interface.
var _ driven.Entry = (*entry)(nil)

type entry struct {
	archive *Archive
	file    *zip.File
	info    domain.ArchiveEntry
	opened  atomic.Bool
}

// Info returns the entry's metadata.
func (e *entry) Info() domain.ArchiveEntry {
	return e.info
}

// Open returns the entry's single-pass stream. It blocks while the
// archive's open-stream budget is exhausted.
func (e *entry) Open(ctx context.Context) (io.ReadCloser, error) {
	if e.archive.isClosed() {
		return nil, domain.ErrArchiveClosed
	}
	if !e.opened.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("%w: %s", domain.ErrStreamConsumed, e.info.Path)
	}

	if err := e.archive.budget.Acquire(ctx, 1); err != nil {
		e.opened.Store(false)
		return nil, err
	}

	rc, err := e.file.Open()
	if err != nil {
		e.archive.budget.Release(1)
		return nil, fmt.Errorf("open entry %s: %w", e.info.Path, err)
	}

	return &stream{
		ctxReader: ctxReader{ctx: ctx, r: rc},
		rc:        rc,
		release:   func() { e.archive.budget.Release(1) },
	}, nil
}

// stream returns its budget slot exactly once on Close.
type stream struct {
	ctxReader
	rc      io.ReadCloser
	release func()
	once    sync.Once
}

func (s *stream) Close() error {
	var err error
	s.once.Do(func() {
		err = s.rc.Close()
		s.release()
	})
	return err
}

// ctxReader stops reading once its context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
