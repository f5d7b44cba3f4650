package lineseek

import (
	"math"
	"path"
	"path/filepath"
)

// IndexSuffix is appended to a blob key to form its offset table key.
const IndexSuffix = ".idx"

// maxReadLength bounds a single ReadBytes so the result fits in a []byte on
// every platform.
const maxReadLength = int64(math.MaxInt)

// CheckRange validates the start and length arguments of ReadBytes.
// Backends call it before any I/O.
func CheckRange(start, length int64) error {
	if start < 0 {
		return OutOfRangeError("start", start)
	}
	if length < 0 || length > maxReadLength {
		return OutOfRangeError("length", length)
	}
	if start > math.MaxInt64-length {
		return OutOfRangeError("start+length", uint64(start)+uint64(length))
	}
	return nil
}

// CheckObjectKey validates a slash-separated object key.
func CheckObjectKey(key string) error {
	if !path.IsAbs(key) {
		return InvalidKeyError(key)
	}
	return nil
}

// checkFileKey validates a filesystem key.
func checkFileKey(key string) error {
	if !filepath.IsAbs(key) {
		return InvalidKeyError(key)
	}
	return nil
}

// ObjectIndexKey derives the absolute index key for an object key under the
// given index prefix. The full source key is kept so distinct blobs never
// share a table.
func ObjectIndexKey(indexPrefix, key string) (string, error) {
	if err := CheckObjectKey(key); err != nil {
		return "", err
	}
	return path.Join("/", indexPrefix, path.Clean(key)+IndexSuffix), nil
}
