//go:build integration

// Package integration runs the object-store backends against a real MinIO
// server.
//
// These tests require Docker and start a MinIO container using testcontainers.
// Run with: go test -tags=integration ./integration/...
package integration
