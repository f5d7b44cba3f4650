package lineseek

import (
	"context"
	"io"
	"strings"
	"sync"
)

// -----------------------------------------------------------------------------
// Fault-Injection Store Wrapper (test-only)
// -----------------------------------------------------------------------------
//
// faultStore wraps a Store and enables deterministic fault injection for
// build and lookup failure paths. It provides:
//   - Error injection on specific operations
//   - Call observation/recording
//   - A blocking point inside WriteStream

// faultStore wraps a Store with fault injection capabilities.
type faultStore struct {
	inner Store

	mu sync.Mutex

	readErr       error
	openErr       error
	writeErr      error
	writeErrMatch string // if set, only inject writeErr on keys containing this substring

	// streamErr is returned from Read on streams after streamAfter bytes.
	streamErr   error
	streamAfter int

	readCalls  []string
	openCalls  []string
	writeCalls []string

	// writeBlock, if non-nil, makes WriteStream wait until it is closed.
	writeBlock chan struct{}
	// beforeWrite is called after recording but before blocking.
	beforeWrite func(key string)
}

func newFaultStore(inner Store) *faultStore {
	return &faultStore{inner: inner}
}

// --- Fault injection setters ---

func (f *faultStore) SetReadError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readErr = err
}

func (f *faultStore) SetOpenError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openErr = err
}

// SetWriteError sets an error to be returned by WriteStream calls.
// If match is non-empty, error is only returned for keys containing match.
func (f *faultStore) SetWriteError(err error, match ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErr = err
	f.writeErrMatch = ""
	if len(match) > 0 {
		f.writeErrMatch = match[0]
	}
}

// SetStreamError makes streams from OpenStream fail with err once after
// bytes have been delivered.
func (f *faultStore) SetStreamError(err error, after int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.streamErr = err
	f.streamAfter = after
}

func (f *faultStore) SetWriteBlock(ch chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeBlock = ch
}

func (f *faultStore) SetBeforeWrite(hook func(key string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beforeWrite = hook
}

// --- Call observation ---

func (f *faultStore) WriteCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writeCalls...)
}

func (f *faultStore) ReadCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.readCalls...)
}

func (f *faultStore) OpenCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.openCalls...)
}

// --- Store implementation ---

func (f *faultStore) ReadBytes(ctx context.Context, key string, start, length int64) ([]byte, error) {
	f.mu.Lock()
	f.readCalls = append(f.readCalls, key)
	err := f.readErr
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return f.inner.ReadBytes(ctx, key, start, length)
}

func (f *faultStore) OpenStream(ctx context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	f.openCalls = append(f.openCalls, key)
	err := f.openErr
	streamErr, after := f.streamErr, f.streamAfter
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	rc, err := f.inner.OpenStream(ctx, key)
	if err != nil || streamErr == nil {
		return rc, err
	}
	return &failingReader{ReadCloser: rc, err: streamErr, remaining: after}, nil
}

func (f *faultStore) WriteStream(ctx context.Context, key string, r io.Reader) error {
	f.mu.Lock()
	f.writeCalls = append(f.writeCalls, key)
	err := f.writeErr
	if f.writeErrMatch != "" && !strings.Contains(key, f.writeErrMatch) {
		err = nil
	}
	block := f.writeBlock
	hook := f.beforeWrite
	f.mu.Unlock()

	if hook != nil {
		hook(key)
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}
	return f.inner.WriteStream(ctx, key, r)
}

func (f *faultStore) IndexKey(key string) (string, error) {
	return f.inner.IndexKey(key)
}

// failingReader delivers remaining bytes from the wrapped stream, then fails.
type failingReader struct {
	io.ReadCloser
	err       error
	remaining int
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.remaining <= 0 {
		return 0, r.err
	}
	if len(p) > r.remaining {
		p = p[:r.remaining]
	}
	n, err := r.ReadCloser.Read(p)
	r.remaining -= n
	return n, err
}

var _ Store = (*faultStore)(nil)
