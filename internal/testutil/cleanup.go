// Package testutil provides helpers for examples and tests.
package testutil

import "os"

// RemoveAll removes the path and any children. Errors are ignored.
// Use for defer cleanup of generated blobs and index directories.
//
// Usage:
//
//	defer testutil.RemoveAll(indexDir)
func RemoveAll(path string) { _ = os.RemoveAll(path) }
