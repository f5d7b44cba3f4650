package lineseek

import (
	"errors"
	"fmt"
)

// Kind classifies a lineseek error. The set is closed; callers may switch on
// it exhaustively.
type Kind int

const (
	// KindUnknown is reported by KindOf for errors not produced by lineseek.
	KindUnknown Kind = iota

	// KindInvalidKey indicates a key that is not absolute.
	KindInvalidKey

	// KindBlobNotFound indicates the backend has no blob under the key.
	KindBlobNotFound

	// KindShortRead indicates fewer bytes were available than requested.
	KindShortRead

	// KindIndexNotFound indicates the offset table for a blob does not exist.
	KindIndexNotFound

	// KindLineIndexOutOfBound indicates a line ordinal at or beyond the
	// blob's line count.
	KindLineIndexOutOfBound

	// KindOutOfRange indicates a number outside the supported domain:
	// a negative offset, length or line index, or a corrupt table entry.
	KindOutOfRange
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindInvalidKey:
		return "invalid key"
	case KindBlobNotFound:
		return "blob not found"
	case KindShortRead:
		return "short read"
	case KindIndexNotFound:
		return "index not found"
	case KindLineIndexOutOfBound:
		return "line index out of bound"
	case KindOutOfRange:
		return "out of range"
	default:
		return "unknown"
	}
}

// Error is the error type returned by lineseek stores and indexes.
// Only the fields relevant to Kind are set.
type Error struct {
	Kind Kind

	// Key is set for KindInvalidKey, KindBlobNotFound and KindIndexNotFound.
	Key string

	// LineIndex is set for KindLineIndexOutOfBound.
	LineIndex int64

	// Expected and Actual are set for KindShortRead.
	Expected int64
	Actual   int64

	// Field and Value are set for KindOutOfRange.
	Field string
	Value string

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindInvalidKey:
		return fmt.Sprintf("invalid key %q: must be absolute", e.Key)
	case KindBlobNotFound:
		return fmt.Sprintf("blob %q not found", e.Key)
	case KindShortRead:
		return fmt.Sprintf("short read: expected %d bytes, got %d", e.Expected, e.Actual)
	case KindIndexNotFound:
		return fmt.Sprintf("index for %q not found", e.Key)
	case KindLineIndexOutOfBound:
		return fmt.Sprintf("line index %d is out of bound", e.LineIndex)
	case KindOutOfRange:
		return fmt.Sprintf("%s out of range: %s", e.Field, e.Value)
	default:
		if e.Err != nil {
			return e.Err.Error()
		}
		return "lineseek: unknown error"
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a lineseek error of the same kind.
// This lets the sentinel values below match any error of their kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinel values for errors.Is matching by kind.
var (
	ErrInvalidKey          = &Error{Kind: KindInvalidKey}
	ErrBlobNotFound        = &Error{Kind: KindBlobNotFound}
	ErrShortRead           = &Error{Kind: KindShortRead}
	ErrIndexNotFound       = &Error{Kind: KindIndexNotFound}
	ErrLineIndexOutOfBound = &Error{Kind: KindLineIndexOutOfBound}
	ErrOutOfRange          = &Error{Kind: KindOutOfRange}
)

// KindOf returns the kind of the outermost lineseek error in err's chain,
// or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// InvalidKeyError returns a KindInvalidKey error.
func InvalidKeyError(key string) error {
	return &Error{Kind: KindInvalidKey, Key: key}
}

// BlobNotFoundError returns a KindBlobNotFound error wrapping cause.
func BlobNotFoundError(key string, cause error) error {
	return &Error{Kind: KindBlobNotFound, Key: key, Err: cause}
}

// ShortReadError returns a KindShortRead error.
func ShortReadError(expected, actual int64) error {
	return &Error{Kind: KindShortRead, Expected: expected, Actual: actual}
}

// IndexNotFoundError returns a KindIndexNotFound error for the source key.
func IndexNotFoundError(key string, cause error) error {
	return &Error{Kind: KindIndexNotFound, Key: key, Err: cause}
}

// LineIndexOutOfBoundError returns a KindLineIndexOutOfBound error.
func LineIndexOutOfBoundError(lineIndex int64, cause error) error {
	return &Error{Kind: KindLineIndexOutOfBound, LineIndex: lineIndex, Err: cause}
}

// OutOfRangeError returns a KindOutOfRange error for the named field.
func OutOfRangeError(field string, value any) error {
	return &Error{Kind: KindOutOfRange, Field: field, Value: fmt.Sprint(value)}
}
