package lineseek

import (
	"context"
	"errors"
)

// IndexedLineReader reads single lines by resolving their span through an
// IndexReader and fetching exactly those bytes from the source Store.
// Nothing is cached between calls.
type IndexedLineReader struct {
	source Store
	reader IndexReader
	opts   options
}

// NewIndexedLineReader creates a line reader over blobs in source.
// Pass a GracefulReader as reader to build missing tables on demand.
func NewIndexedLineReader(source Store, reader IndexReader, opts ...Option) (*IndexedLineReader, error) {
	if source == nil {
		return nil, errors.New("lineseek: source store is required")
	}
	if reader == nil {
		return nil, errors.New("lineseek: index reader is required")
	}
	return &IndexedLineReader{
		source: source,
		reader: reader,
		opts:   applyOptions(opts),
	}, nil
}

// GetLine returns line lineIndex of the blob at key, decoded as UTF-8.
func (r *IndexedLineReader) GetLine(ctx context.Context, key string, lineIndex int64) (string, error) {
	info, err := r.reader.LineIndexInfo(ctx, key, lineIndex)
	if err != nil {
		return "", err
	}

	data, err := r.source.ReadBytes(ctx, key, info.Position, info.Length)
	if err != nil {
		return "", err
	}

	r.opts.logger.DebugContext(ctx, "line read",
		"key", key,
		"line", lineIndex,
		"bytes", len(data),
	)
	return string(data), nil
}

// Ensure IndexedLineReader implements LineReader
var _ LineReader = (*IndexedLineReader)(nil)
