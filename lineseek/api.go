// Package lineseek provides random access to individual lines of very large
// text blobs stored on a filesystem or in object storage.
//
// Lineseek scans a blob once and persists a compact table of line offsets
// next to it. Lookups then cost two small range reads: one against the
// offset table and one against the blob itself. It does not watch blobs for
// changes; an index describes the blob as it was when the index was built.
package lineseek

import (
	"context"
	"io"
)

// -----------------------------------------------------------------------------
// Core types
// -----------------------------------------------------------------------------

// LineIndexInfo describes the bytes of a single line, excluding its delimiter.
type LineIndexInfo struct {
	// Position is the absolute byte offset of the first byte of the line.
	Position int64

	// Length is the number of bytes in the line.
	Length int64
}

// -----------------------------------------------------------------------------
// Store interface
// -----------------------------------------------------------------------------

// Store abstracts a key/value style blob backend.
//
// Keys are absolute identifiers (absolute filesystem paths or absolute object
// keys). Every method rejects a relative key with ErrInvalidKey before any
// I/O is performed.
type Store interface {
	// ReadBytes returns exactly length bytes starting at start.
	// Returns ErrBlobNotFound if the blob does not exist and ErrShortRead if
	// fewer than length bytes are available.
	ReadBytes(ctx context.Context, key string, start, length int64) ([]byte, error)

	// OpenStream returns a fresh forward-only reader over the full blob.
	// Callers must close it.
	OpenStream(ctx context.Context, key string) (io.ReadCloser, error)

	// WriteStream consumes r fully and stores it under key, replacing any
	// existing content.
	WriteStream(ctx context.Context, key string, r io.Reader) error

	// IndexKey derives the key of the offset table for the blob at key.
	// It does not touch storage.
	IndexKey(key string) (string, error)
}

// -----------------------------------------------------------------------------
// Index interfaces
// -----------------------------------------------------------------------------

// IndexCreator builds the offset table for a blob.
type IndexCreator interface {
	// CreateIndex scans the blob at key and writes its offset table,
	// overwriting any previous table.
	CreateIndex(ctx context.Context, key string) error
}

// IndexReader resolves a line ordinal to its byte span.
type IndexReader interface {
	// LineIndexInfo returns the position and length of line lineIndex
	// (zero-based) of the blob at key.
	LineIndexInfo(ctx context.Context, key string, lineIndex int64) (LineIndexInfo, error)
}

// LineCounter reports how many lines a blob's offset table records.
type LineCounter interface {
	LineCount(ctx context.Context, key string) (int64, error)
}

// Index both builds and reads offset tables.
type Index interface {
	IndexCreator
	IndexReader
}

// -----------------------------------------------------------------------------
// LineReader interface
// -----------------------------------------------------------------------------

// LineReader returns the text of a single line of a blob.
type LineReader interface {
	// GetLine returns line lineIndex (zero-based) of the blob at key,
	// without its delimiter.
	GetLine(ctx context.Context, key string, lineIndex int64) (string, error)
}
