package lineseek

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sync"
)

// -----------------------------------------------------------------------------
// Filesystem Store
// -----------------------------------------------------------------------------

// fsStore implements Store using the local filesystem.
// Blob keys are absolute file paths; offset tables live under indexDir.
type fsStore struct {
	indexDir string
}

// NewFS creates a filesystem-backed Store that keeps offset tables under
// indexDir. The directory must exist.
//
// The index key mirrors the full source path below indexDir, so
// /var/log/a/app.log and /var/log/b/app.log get distinct tables.
//
// Consistency: Immediate read-after-write on local filesystems.
func NewFS(indexDir string) (Store, error) {
	abs, err := filepath.Abs(indexDir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("lineseek: index dir %q: %w", abs, os.ErrNotExist)
	}
	return &fsStore{indexDir: abs}, nil
}

func (f *fsStore) ReadBytes(_ context.Context, key string, start, length int64) ([]byte, error) {
	if err := checkFileKey(key); err != nil {
		return nil, err
	}
	if err := CheckRange(start, length); err != nil {
		return nil, err
	}

	file, err := os.Open(key)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, BlobNotFoundError(key, err)
		}
		return nil, err
	}
	defer func() { _ = file.Close() }()

	// Refuse to allocate for a span the file cannot hold.
	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	if available := info.Size() - start; available < length {
		return nil, ShortReadError(length, max(available, 0))
	}

	buf := make([]byte, length)
	n, err := file.ReadAt(buf, start)
	if n < len(buf) {
		if err == nil || errors.Is(err, io.EOF) {
			return nil, ShortReadError(length, int64(n))
		}
		return nil, err
	}
	return buf, nil
}

func (f *fsStore) OpenStream(_ context.Context, key string) (io.ReadCloser, error) {
	if err := checkFileKey(key); err != nil {
		return nil, err
	}
	file, err := os.Open(key)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, BlobNotFoundError(key, err)
		}
		return nil, err
	}
	return file, nil
}

// WriteStream writes to a temp file next to key and renames it into place,
// so concurrent readers see either the previous content or the new one.
func (f *fsStore) WriteStream(_ context.Context, key string, r io.Reader) error {
	if err := checkFileKey(key); err != nil {
		return err
	}

	dir := filepath.Dir(key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".lineseek-*")
	if err != nil {
		return fmt.Errorf("lineseek: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, key); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

func (f *fsStore) IndexKey(key string) (string, error) {
	if err := checkFileKey(key); err != nil {
		return "", err
	}
	return filepath.Join(f.indexDir, filepath.Clean(key)+IndexSuffix), nil
}

// -----------------------------------------------------------------------------
// Memory Store
// -----------------------------------------------------------------------------

// DefaultIndexPrefix is the key prefix under which object-style stores keep
// offset tables unless configured otherwise.
const DefaultIndexPrefix = "/.lineseek"

// memoryStore implements Store using an in-memory map.
// Stored slices are never mutated; writes replace them.
type memoryStore struct {
	mu          sync.RWMutex
	data        map[string][]byte
	indexPrefix string
}

// NewMemory creates an in-memory Store. Keys are absolute slash-separated
// paths; offset tables are kept under DefaultIndexPrefix.
//
// Consistency: Immediate.
// Memory is safe for concurrent use.
func NewMemory() Store {
	return &memoryStore{
		data:        make(map[string][]byte),
		indexPrefix: DefaultIndexPrefix,
	}
}

func (m *memoryStore) ReadBytes(_ context.Context, key string, start, length int64) ([]byte, error) {
	if err := CheckObjectKey(key); err != nil {
		return nil, err
	}
	if err := CheckRange(start, length); err != nil {
		return nil, err
	}

	m.mu.RLock()
	data, exists := m.data[path.Clean(key)]
	m.mu.RUnlock()

	if !exists {
		return nil, BlobNotFoundError(key, nil)
	}

	size := int64(len(data))
	if start >= size {
		if length == 0 && start == size {
			return []byte{}, nil
		}
		return nil, ShortReadError(length, 0)
	}
	if available := size - start; available < length {
		return nil, ShortReadError(length, available)
	}

	out := make([]byte, length)
	copy(out, data[start:start+length])
	return out, nil
}

func (m *memoryStore) OpenStream(_ context.Context, key string) (io.ReadCloser, error) {
	if err := CheckObjectKey(key); err != nil {
		return nil, err
	}

	m.mu.RLock()
	data, exists := m.data[path.Clean(key)]
	m.mu.RUnlock()

	if !exists {
		return nil, BlobNotFoundError(key, nil)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryStore) WriteStream(_ context.Context, key string, r io.Reader) error {
	if err := CheckObjectKey(key); err != nil {
		return err
	}

	// Read before locking to keep the critical section short.
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.data[path.Clean(key)] = data
	m.mu.Unlock()

	return nil
}

func (m *memoryStore) IndexKey(key string) (string, error) {
	return ObjectIndexKey(m.indexPrefix, key)
}

// delete removes key. Test helper for simulating a vanished table.
func (m *memoryStore) delete(key string) {
	m.mu.Lock()
	delete(m.data, path.Clean(key))
	m.mu.Unlock()
}
