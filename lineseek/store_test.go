package lineseek

import (
	"bytes"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestFS returns an FS store with its index directory under t.TempDir,
// plus a separate directory for source blobs.
func newTestFS(t *testing.T) (Store, string) {
	t.Helper()
	root := t.TempDir()
	indexDir := filepath.Join(root, "indices")
	require.NoError(t, os.Mkdir(indexDir, 0o755))
	dataDir := filepath.Join(root, "data")
	require.NoError(t, os.Mkdir(dataDir, 0o755))

	store, err := NewFS(indexDir)
	require.NoError(t, err)
	return store, dataDir
}

// storeCase describes a Store under test and how to name a blob in it.
type storeCase struct {
	name  string
	store Store
	key   func(name string) string
}

func storeCases(t *testing.T) []storeCase {
	t.Helper()
	fs, dataDir := newTestFS(t)
	return []storeCase{
		{"FS", fs, func(name string) string { return filepath.Join(dataDir, name) }},
		{"Memory", NewMemory(), func(name string) string { return "/data/" + name }},
	}
}

// -----------------------------------------------------------------------------
// Construction
// -----------------------------------------------------------------------------

func TestNewFS_RequiresExistingDirectory(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = NewFS(file)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// -----------------------------------------------------------------------------
// ReadBytes
// -----------------------------------------------------------------------------

func TestStore_ReadBytes(t *testing.T) {
	for _, sc := range storeCases(t) {
		t.Run(sc.name, func(t *testing.T) {
			ctx := t.Context()
			key := sc.key("read.txt")
			content := "abcdefghijklmnopqrstuvwxyz0123"
			require.NoError(t, sc.store.WriteStream(ctx, key, bytes.NewReader([]byte(content))))

			data, err := sc.store.ReadBytes(ctx, key, 10, 20)
			require.NoError(t, err)
			assert.Equal(t, content[10:30], string(data))

			data, err = sc.store.ReadBytes(ctx, key, 5, 0)
			require.NoError(t, err)
			assert.Empty(t, data)

			data, err = sc.store.ReadBytes(ctx, key, int64(len(content)), 0)
			require.NoError(t, err, "zero-length read at EOF")
			assert.Empty(t, data)
		})
	}
}

func TestStore_ReadBytes_ShortRead(t *testing.T) {
	for _, sc := range storeCases(t) {
		t.Run(sc.name, func(t *testing.T) {
			ctx := t.Context()
			key := sc.key("short.txt")
			require.NoError(t, sc.store.WriteStream(ctx, key, bytes.NewReader([]byte("hello"))))

			_, err := sc.store.ReadBytes(ctx, key, 3, 10)
			var lerr *Error
			require.ErrorAs(t, err, &lerr)
			assert.Equal(t, KindShortRead, lerr.Kind)
			assert.Equal(t, int64(10), lerr.Expected)
			assert.Equal(t, int64(2), lerr.Actual)

			_, err = sc.store.ReadBytes(ctx, key, 100, 16)
			require.ErrorAs(t, err, &lerr)
			assert.Equal(t, KindShortRead, lerr.Kind)
			assert.Equal(t, int64(0), lerr.Actual)
		})
	}
}

func TestStore_ReadBytes_NotFound(t *testing.T) {
	for _, sc := range storeCases(t) {
		t.Run(sc.name, func(t *testing.T) {
			key := sc.key("missing.txt")
			_, err := sc.store.ReadBytes(t.Context(), key, 0, 10)
			assert.ErrorIs(t, err, ErrBlobNotFound)

			var lerr *Error
			require.ErrorAs(t, err, &lerr)
			assert.Equal(t, key, lerr.Key)
		})
	}
}

func TestStore_ReadBytes_InvalidKey(t *testing.T) {
	for _, sc := range storeCases(t) {
		t.Run(sc.name, func(t *testing.T) {
			_, err := sc.store.ReadBytes(t.Context(), "path/to/file.txt", 0, 10)
			assert.ErrorIs(t, err, ErrInvalidKey)
			assert.EqualError(t, err, `invalid key "path/to/file.txt": must be absolute`)
		})
	}
}

func TestStore_ReadBytes_InvalidRange(t *testing.T) {
	tests := []struct {
		name          string
		start, length int64
	}{
		{"negative start", -1, 10},
		{"negative length", 0, -1},
		{"overflow", math.MaxInt64 - 4, 10},
	}

	for _, sc := range storeCases(t) {
		for _, tt := range tests {
			t.Run(sc.name+"/"+tt.name, func(t *testing.T) {
				// The blob does not exist; validation must fail before I/O.
				_, err := sc.store.ReadBytes(t.Context(), sc.key("nope.txt"), tt.start, tt.length)
				assert.ErrorIs(t, err, ErrOutOfRange)
			})
		}
	}
}

// -----------------------------------------------------------------------------
// OpenStream / WriteStream
// -----------------------------------------------------------------------------

func TestStore_WriteStream_Overwrites(t *testing.T) {
	for _, sc := range storeCases(t) {
		t.Run(sc.name, func(t *testing.T) {
			ctx := t.Context()
			key := sc.key("nested/dir/blob.txt")

			require.NoError(t, sc.store.WriteStream(ctx, key, bytes.NewReader([]byte("first version"))))
			require.NoError(t, sc.store.WriteStream(ctx, key, bytes.NewReader([]byte("second"))))

			rc, err := sc.store.OpenStream(ctx, key)
			require.NoError(t, err)
			defer func() { _ = rc.Close() }()

			data, err := io.ReadAll(rc)
			require.NoError(t, err)
			assert.Equal(t, "second", string(data))
		})
	}
}

func TestStore_OpenStream_Errors(t *testing.T) {
	for _, sc := range storeCases(t) {
		t.Run(sc.name, func(t *testing.T) {
			_, err := sc.store.OpenStream(t.Context(), sc.key("missing.txt"))
			assert.ErrorIs(t, err, ErrBlobNotFound)

			_, err = sc.store.OpenStream(t.Context(), "relative.txt")
			assert.ErrorIs(t, err, ErrInvalidKey)

			err = sc.store.WriteStream(t.Context(), "relative.txt", bytes.NewReader(nil))
			assert.ErrorIs(t, err, ErrInvalidKey)
		})
	}
}

func TestFSStore_WriteStream_LeavesNoTempFiles(t *testing.T) {
	store, dataDir := newTestFS(t)
	key := filepath.Join(dataDir, "blob.txt")

	require.NoError(t, store.WriteStream(t.Context(), key, bytes.NewReader([]byte("x"))))

	entries, err := os.ReadDir(dataDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "blob.txt", entries[0].Name())
}

func TestFSStore_WriteStream_FailedSourceKeepsPrevious(t *testing.T) {
	store, dataDir := newTestFS(t)
	key := filepath.Join(dataDir, "blob.txt")
	ctx := t.Context()

	require.NoError(t, store.WriteStream(ctx, key, bytes.NewReader([]byte("keep me"))))

	err := store.WriteStream(ctx, key, io.MultiReader(bytes.NewReader([]byte("partial")), errReader{io.ErrUnexpectedEOF}))
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)

	data, err := os.ReadFile(key)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(data))
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

// -----------------------------------------------------------------------------
// IndexKey
// -----------------------------------------------------------------------------

func TestFSStore_IndexKey_MirrorsSourcePath(t *testing.T) {
	indexDir := t.TempDir()
	store, err := NewFS(indexDir)
	require.NoError(t, err)

	a, err := store.IndexKey("/var/log/a/app.log")
	require.NoError(t, err)
	b, err := store.IndexKey("/var/log/b/app.log")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(indexDir, "var", "log", "a", "app.log.idx"), a)
	assert.NotEqual(t, a, b, "same basename in different directories must not collide")

	again, err := store.IndexKey("/var/log/a/../a/app.log")
	require.NoError(t, err)
	assert.Equal(t, a, again, "derivation is deterministic over the cleaned path")

	_, err = store.IndexKey("app.log")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestMemoryStore_IndexKey(t *testing.T) {
	store := NewMemory()

	key, err := store.IndexKey("/logs/app.log")
	require.NoError(t, err)
	assert.Equal(t, "/.lineseek/logs/app.log.idx", key)

	_, err = store.IndexKey("logs/app.log")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestObjectIndexKey(t *testing.T) {
	tests := []struct {
		prefix, key, want string
	}{
		{"", "/a/b.log", "/a/b.log.idx"},
		{"indices", "/a/b.log", "/indices/a/b.log.idx"},
		{"/indices/", "/a/b.log", "/indices/a/b.log.idx"},
		{"indices", "/a/./c/../b.log", "/indices/a/b.log.idx"},
	}

	for _, tt := range tests {
		got, err := ObjectIndexKey(tt.prefix, tt.key)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "prefix %q key %q", tt.prefix, tt.key)
	}
}
