package lineseek

import (
	"log/slog"
)

// DefaultChunkSize is the read size used while scanning a blob.
const DefaultChunkSize = 64 * 1024

// options holds configuration shared by the index, readers and facade.
type options struct {
	logger    *slog.Logger
	chunkSize int
}

// Option configures a BinaryIndex, GracefulReader or IndexedLineReader.
type Option func(*options)

// WithLogger sets the logger. By default nothing is logged.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithChunkSize sets the number of bytes read from the source per scan step.
// Chunk size affects memory use and throughput, never the resulting table.
// Values <= 0 select DefaultChunkSize.
func WithChunkSize(n int) Option {
	return func(o *options) {
		o.chunkSize = n
	}
}

func applyOptions(opts []Option) options {
	o := options{chunkSize: DefaultChunkSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.chunkSize <= 0 {
		o.chunkSize = DefaultChunkSize
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return o
}
