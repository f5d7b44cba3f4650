package lineseek

import (
	"bytes"
	"encoding/binary"
)

// entrySize is the width of one offset table entry.
const entrySize = 8

// scanState is the state carried between chunks while building a table.
type scanState struct {
	// cursor is the absolute offset where the unterminated line began.
	cursor uint64

	// carry is the number of bytes of that line seen so far.
	carry uint64

	// tail holds up to len(delimiter)-1 trailing bytes of the unterminated
	// line. A delimiter that straddles two chunks starts inside it.
	tail []byte
}

// scanChunk finds every delimiter in chunk, appends the start offset of each
// line it terminates to dst as a big-endian uint64, and returns the updated
// state. Matching is byte-wise and left to right without overlap, exactly as
// if the whole blob were scanned at once.
func scanChunk(st scanState, chunk, delim, dst []byte) (scanState, []byte) {
	pos := 0

	if len(st.tail) > 0 && len(chunk) > 0 {
		// Only a match beginning inside the tail can be found here: the tail
		// itself was searched already and the chunk prefix is shorter than
		// the delimiter.
		head := chunk[:min(len(chunk), len(delim)-1)]
		probe := make([]byte, 0, len(st.tail)+len(head))
		probe = append(append(probe, st.tail...), head...)
		if i := bytes.Index(probe, delim); i >= 0 {
			end := i + len(delim) - len(st.tail)
			dst = binary.BigEndian.AppendUint64(dst, st.cursor)
			st.cursor += st.carry + uint64(end)
			st.carry = 0
			pos = end
		}
	}

	for {
		i := bytes.Index(chunk[pos:], delim)
		if i < 0 {
			break
		}
		next := pos + i + len(delim)
		dst = binary.BigEndian.AppendUint64(dst, st.cursor)
		st.cursor += st.carry + uint64(next-pos)
		st.carry = 0
		pos = next
	}

	rest := chunk[pos:]
	st.carry += uint64(len(rest))

	prev := st.tail
	if pos > 0 {
		prev = nil
	}
	st.tail = keepTail(prev, rest, len(delim)-1)

	return st, dst
}

// finishScan appends the start of the last line and the synthetic end offset,
// computed as if the last line were delimiter-terminated.
func finishScan(st scanState, delim, dst []byte) []byte {
	dst = binary.BigEndian.AppendUint64(dst, st.cursor)
	return binary.BigEndian.AppendUint64(dst, st.cursor+st.carry+uint64(len(delim)))
}

// keepTail returns the last n bytes of prev followed by rest, in a fresh slice.
func keepTail(prev, rest []byte, n int) []byte {
	if n <= 0 {
		return nil
	}
	if len(rest) >= n {
		return append([]byte(nil), rest[len(rest)-n:]...)
	}
	joined := make([]byte, 0, len(prev)+len(rest))
	joined = append(append(joined, prev...), rest...)
	if len(joined) > n {
		joined = joined[len(joined)-n:]
	}
	return joined
}
