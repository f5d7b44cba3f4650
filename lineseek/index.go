package lineseek

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"golang.org/x/sync/errgroup"
)

// maxLineIndex is the largest line index whose two table entries can be
// addressed with int64 offsets.
const maxLineIndex = (math.MaxInt64 - 2*entrySize) / entrySize

// BinaryIndex builds and reads flat offset tables.
//
// The table for a blob with N lines holds N+1 big-endian uint64 offsets:
// the start of every line followed by the end of the last line plus the
// delimiter length. It has no header.
//
// Source blobs are read from one Store and tables are kept in another,
// which may be the same Store.
type BinaryIndex struct {
	source    Store
	index     Store
	delimiter []byte
	opts      options
}

// NewBinaryIndex creates an index over blobs in source, keeping tables in index.
// The delimiter is an arbitrary non-empty byte sequence.
func NewBinaryIndex(source, index Store, delimiter []byte, opts ...Option) (*BinaryIndex, error) {
	if source == nil {
		return nil, errors.New("lineseek: source store is required")
	}
	if index == nil {
		return nil, errors.New("lineseek: index store is required")
	}
	if len(delimiter) == 0 {
		return nil, errors.New("lineseek: delimiter must not be empty")
	}
	return &BinaryIndex{
		source:    source,
		index:     index,
		delimiter: append([]byte(nil), delimiter...),
		opts:      applyOptions(opts),
	}, nil
}

// Delimiter returns a copy of the line delimiter.
func (b *BinaryIndex) Delimiter() []byte {
	return append([]byte(nil), b.delimiter...)
}

// CreateIndex scans the blob at key once and writes its offset table,
// replacing any existing table.
//
// Entries are streamed to the index store while the source is still being
// read; memory use is one chunk regardless of blob size.
func (b *BinaryIndex) CreateIndex(ctx context.Context, key string) error {
	indexKey, err := b.index.IndexKey(key)
	if err != nil {
		return err
	}

	src, err := b.source.OpenStream(ctx, key)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	began := time.Now()
	pr, pw := io.Pipe()

	var stats scanStats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var scanErr error
		stats, scanErr = b.scan(gctx, src, pw)
		_ = pw.CloseWithError(scanErr)
		return scanErr
	})
	g.Go(func() error {
		writeErr := b.index.WriteStream(gctx, indexKey, pr)
		if writeErr != nil {
			_ = pr.CloseWithError(writeErr)
		} else {
			_ = pr.Close()
		}
		return writeErr
	})
	if err := g.Wait(); err != nil {
		b.opts.logger.ErrorContext(ctx, "index build failed",
			"key", key,
			"index_key", indexKey,
			"error", err,
		)
		return fmt.Errorf("lineseek: create index for %q: %w", key, err)
	}

	b.opts.logger.InfoContext(ctx, "index built",
		"key", key,
		"index_key", indexKey,
		"lines", stats.lines,
		"bytes", stats.bytes,
		"duration", time.Since(began),
	)
	return nil
}

// scanStats summarizes a completed scan.
type scanStats struct {
	lines uint64
	bytes uint64
}

// scan reads src chunk by chunk and writes encoded table entries to w.
func (b *BinaryIndex) scan(ctx context.Context, src io.Reader, w io.Writer) (scanStats, error) {
	buf := make([]byte, b.opts.chunkSize)
	out := make([]byte, 0, entrySize*16)

	var st scanState
	var entries uint64
	for {
		if err := ctx.Err(); err != nil {
			return scanStats{}, err
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			st, out = scanChunk(st, buf[:n], b.delimiter, out[:0])
			if len(out) > 0 {
				if _, err := w.Write(out); err != nil {
					return scanStats{}, err
				}
				entries += uint64(len(out) / entrySize)
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return scanStats{}, readErr
		}
	}

	out = finishScan(st, b.delimiter, out[:0])
	if _, err := w.Write(out); err != nil {
		return scanStats{}, err
	}

	return scanStats{lines: entries + 1, bytes: st.cursor + st.carry}, nil
}

// LineIndexInfo returns the span of line lineIndex of the blob at key.
//
// Returns ErrOutOfRange for a negative line index without touching storage,
// ErrIndexNotFound if the table does not exist and ErrLineIndexOutOfBound if
// the blob has no such line.
func (b *BinaryIndex) LineIndexInfo(ctx context.Context, key string, lineIndex int64) (LineIndexInfo, error) {
	if lineIndex < 0 || lineIndex > maxLineIndex {
		return LineIndexInfo{}, OutOfRangeError("line index", lineIndex)
	}

	indexKey, err := b.index.IndexKey(key)
	if err != nil {
		return LineIndexInfo{}, err
	}

	// Two consecutive entries: the start of the line and the start of the next
	// line (or the synthetic end offset).
	buf, err := b.index.ReadBytes(ctx, indexKey, lineIndex*entrySize, 2*entrySize)
	if err != nil {
		switch KindOf(err) {
		case KindBlobNotFound:
			return LineIndexInfo{}, IndexNotFoundError(key, err)
		case KindShortRead:
			return LineIndexInfo{}, LineIndexOutOfBoundError(lineIndex, err)
		default:
			return LineIndexInfo{}, err
		}
	}
	if len(buf) < 2*entrySize {
		return LineIndexInfo{}, LineIndexOutOfBoundError(lineIndex, ShortReadError(2*entrySize, int64(len(buf))))
	}

	position := binary.BigEndian.Uint64(buf)
	next := binary.BigEndian.Uint64(buf[entrySize:])

	if position > math.MaxInt64 {
		return LineIndexInfo{}, OutOfRangeError("position", position)
	}
	if next > math.MaxInt64 {
		return LineIndexInfo{}, OutOfRangeError("next position", next)
	}
	delimLen := uint64(len(b.delimiter))
	if next < position || next-position < delimLen {
		return LineIndexInfo{}, OutOfRangeError("line length", fmt.Sprintf("next position %d before position %d plus delimiter", next, position))
	}

	b.opts.logger.DebugContext(ctx, "line resolved",
		"key", key,
		"line", lineIndex,
		"position", position,
	)

	return LineIndexInfo{
		Position: int64(position),
		Length:   int64(next - position - delimLen),
	}, nil
}

// LineCount returns the number of lines recorded in the table for key,
// derived from the table size. Returns ErrIndexNotFound if there is no table.
func (b *BinaryIndex) LineCount(ctx context.Context, key string) (int64, error) {
	indexKey, err := b.index.IndexKey(key)
	if err != nil {
		return 0, err
	}

	rc, err := b.index.OpenStream(ctx, indexKey)
	if err != nil {
		if KindOf(err) == KindBlobNotFound {
			return 0, IndexNotFoundError(key, err)
		}
		return 0, err
	}
	defer func() { _ = rc.Close() }()

	size, err := io.Copy(io.Discard, rc)
	if err != nil {
		return 0, fmt.Errorf("lineseek: read index for %q: %w", key, err)
	}
	if size < 2*entrySize || size%entrySize != 0 {
		return 0, OutOfRangeError("index size", size)
	}
	return size/entrySize - 1, nil
}

// Ensure BinaryIndex implements Index and LineCounter
var (
	_ Index       = (*BinaryIndex)(nil)
	_ LineCounter = (*BinaryIndex)(nil)
)
