package testutil

import (
	"bufio"
	"bytes"
	"math/rand/v2"
	"os"
	"strings"
)

var words = []string{
	"lorem", "ipsum", "dolor", "sit", "amet", "consectetur", "adipiscing",
	"elit", "sed", "do", "eiusmod", "tempor", "incididunt", "ut", "labore",
	"et", "dolore", "magna", "aliqua", "żółw", "naïve", "café", "日本語", "🙂",
}

// Sentences returns n pseudo-random sentences. The same seed always yields
// the same sentences. Some words are multi-byte UTF-8 so that chunk
// boundaries regularly fall inside a character.
func Sentences(n int, seed uint64) []string {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := make([]string, n)
	for i := range out {
		count := 3 + rng.IntN(8)
		parts := make([]string, count)
		for j := range parts {
			parts[j] = words[rng.IntN(len(words))]
		}
		out[i] = strings.Join(parts, " ") + "."
	}
	return out
}

// Join concatenates lines with delim, appending a final delim if trailing is set.
func Join(lines []string, delim string, trailing bool) []byte {
	var buf bytes.Buffer
	for i, line := range lines {
		if i > 0 {
			buf.WriteString(delim)
		}
		buf.WriteString(line)
	}
	if trailing {
		buf.WriteString(delim)
	}
	return buf.Bytes()
}

// Offsets returns the offset table expected for lines joined by delim:
// the start of every line followed by the end of the last line plus the
// delimiter length. A trailing delimiter adds an empty final line.
func Offsets(lines []string, delim string, trailing bool) []uint64 {
	if len(lines) == 0 {
		lines = []string{""}
	}
	if trailing {
		lines = append(lines[:len(lines):len(lines)], "")
	}
	out := make([]uint64, 0, len(lines)+1)
	var pos uint64
	for _, line := range lines {
		out = append(out, pos)
		pos += uint64(len(line) + len(delim))
	}
	return append(out, pos)
}

// WriteLinesFile streams lines to path, each followed by delim.
func WriteLinesFile(path string, lines []string, delim string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, line := range lines {
		if _, err := w.WriteString(line); err != nil {
			_ = f.Close()
			return err
		}
		if _, err := w.WriteString(delim); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
