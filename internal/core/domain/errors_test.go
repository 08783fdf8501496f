package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestErrors_Existence tests that all error variables exist and are not nil
func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrUnsupportedType", ErrUnsupportedType},
		{"ErrNotFound", ErrNotFound},
		{"ErrArchiveCorrupt", ErrArchiveCorrupt},
		{"ErrArchiveClosed", ErrArchiveClosed},
		{"ErrStreamConsumed", ErrStreamConsumed},
		{"ErrEntryTooLarge", ErrEntryTooLarge},
		{"ErrUnreadableDatabase", ErrUnreadableDatabase},
		{"ErrUnparseableMarkup", ErrUnparseableMarkup},
		{"ErrExtractionTimeout", ErrExtractionTimeout},
		{"ErrRowMapping", ErrRowMapping},
		{"ErrSinkFailed", ErrSinkFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

// TestErrors_Distinct tests that no two sentinels match each other
func TestErrors_Distinct(t *testing.T) {
	all := []error{
		ErrInvalidInput, ErrUnsupportedType, ErrNotFound, ErrArchiveCorrupt,
		ErrArchiveClosed, ErrStreamConsumed, ErrEntryTooLarge, ErrUnreadableDatabase,
		ErrUnparseableMarkup, ErrExtractionTimeout, ErrRowMapping, ErrSinkFailed,
	}
	for i, a := range all {
		for j, b := range all {
			if i != j {
				assert.False(t, errors.Is(a, b), "%v should not match %v", a, b)
			}
		}
	}
}

// TestEntryError tests message formatting and unwrapping
func TestEntryError(t *testing.T) {
	err := &EntryError{
		Path: "databases/broken.db",
		Err:  fmt.Errorf("%w: file is not a database", ErrUnreadableDatabase),
	}

	assert.Equal(t, "databases/broken.db: unreadable database: file is not a database", err.Error())
	assert.ErrorIs(t, err, ErrUnreadableDatabase)
	assert.NotErrorIs(t, err, ErrUnparseableMarkup)

	var entryErr *EntryError
	wrapped := fmt.Errorf("entry failed: %w", err)
	assert.True(t, errors.As(wrapped, &entryErr))
	assert.Equal(t, "databases/broken.db", entryErr.Path)
}
