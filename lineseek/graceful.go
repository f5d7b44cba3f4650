package lineseek

import (
	"context"
	"errors"

	"golang.org/x/sync/singleflight"
)

// GracefulReader wraps an Index and builds a missing table on first use.
//
// A lookup that fails with ErrIndexNotFound triggers exactly one CreateIndex
// followed by exactly one retry, whose outcome is returned as is. Any other
// failure is returned without building anything.
//
// Concurrent misses for the same key share a single CreateIndex call.
// GracefulReader is safe for concurrent use.
type GracefulReader struct {
	index  Index
	opts   options
	builds singleflight.Group
}

// NewGracefulReader creates a GracefulReader around index.
func NewGracefulReader(index Index, opts ...Option) (*GracefulReader, error) {
	if index == nil {
		return nil, errors.New("lineseek: index is required")
	}
	return &GracefulReader{
		index: index,
		opts:  applyOptions(opts),
	}, nil
}

// LineIndexInfo resolves lineIndex, building the table for key if it is missing.
func (g *GracefulReader) LineIndexInfo(ctx context.Context, key string, lineIndex int64) (LineIndexInfo, error) {
	var info LineIndexInfo
	err := g.withIndex(ctx, key, func() error {
		var err error
		info, err = g.index.LineIndexInfo(ctx, key, lineIndex)
		return err
	})
	return info, err
}

// LineCount returns the line count for key, building the table if it is
// missing. The wrapped Index must implement LineCounter.
func (g *GracefulReader) LineCount(ctx context.Context, key string) (int64, error) {
	counter, ok := g.index.(LineCounter)
	if !ok {
		return 0, errors.New("lineseek: index does not support line counts")
	}
	var n int64
	err := g.withIndex(ctx, key, func() error {
		var err error
		n, err = counter.LineCount(ctx, key)
		return err
	})
	return n, err
}

// withIndex runs op; on ErrIndexNotFound it builds the table once and runs
// op one more time.
func (g *GracefulReader) withIndex(ctx context.Context, key string, op func() error) error {
	err := op()
	if KindOf(err) != KindIndexNotFound {
		return err
	}

	g.opts.logger.InfoContext(ctx, "index missing, building", "key", key)
	if err := g.create(ctx, key); err != nil {
		return err
	}
	return op()
}

// create runs CreateIndex for key, sharing the call with concurrent callers.
func (g *GracefulReader) create(ctx context.Context, key string) error {
	ch := g.builds.DoChan(key, func() (any, error) {
		return nil, g.index.CreateIndex(context.WithoutCancel(ctx), key)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ensure GracefulReader implements IndexReader and LineCounter
var (
	_ IndexReader = (*GracefulReader)(nil)
	_ LineCounter = (*GracefulReader)(nil)
)
