package main

import (
	"context"
	"fmt"
	"io"
)

// lineResponse is the JSON form of a single line.
type lineResponse struct {
	Key      string `json:"key"`
	Line     int64  `json:"line"`
	Position int64  `json:"position"`
	Length   int64  `json:"length"`
	Text     string `json:"text"`
}

func runGet(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, common := newFlagSet("get", "-key PATH -line N [-json]", stderr)
	key := fs.String("key", "", "Blob key: a file path (fs) or an object key")
	line := fs.Int64("line", -1, "Zero-based line number")
	asJSON := fs.Bool("json", false, "Print a JSON object with key, line, position, length and text")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *key == "" {
		return usagef("get: -key is required")
	}
	if *line < 0 {
		return usagef("get: -line must be a non-negative integer")
	}

	a, err := setup(ctx, fs, common, stderr, nil)
	if err != nil {
		return err
	}
	k, err := a.resolveKey(*key)
	if err != nil {
		return err
	}

	if *asJSON {
		resp, err := a.lookup(ctx, k, *line)
		if err != nil {
			return err
		}
		return json.NewEncoder(stdout).Encode(resp)
	}

	text, err := a.reader.GetLine(ctx, k, *line)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, text)
	return err
}

func runIndex(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, common := newFlagSet("index", "-key PATH", stderr)
	key := fs.String("key", "", "Blob key: a file path (fs) or an object key")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *key == "" {
		return usagef("index: -key is required")
	}

	a, err := setup(ctx, fs, common, stderr, nil)
	if err != nil {
		return err
	}
	k, err := a.resolveKey(*key)
	if err != nil {
		return err
	}
	if err := a.index.CreateIndex(ctx, k); err != nil {
		return err
	}
	indexKey, err := a.store.IndexKey(k)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, indexKey)
	return err
}

func runCount(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, common := newFlagSet("count", "-key PATH", stderr)
	key := fs.String("key", "", "Blob key: a file path (fs) or an object key")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *key == "" {
		return usagef("count: -key is required")
	}

	a, err := setup(ctx, fs, common, stderr, nil)
	if err != nil {
		return err
	}
	k, err := a.resolveKey(*key)
	if err != nil {
		return err
	}
	n, err := a.graceful.LineCount(ctx, k)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, n)
	return err
}
