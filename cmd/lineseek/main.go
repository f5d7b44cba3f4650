// Command lineseek reads single lines of large text blobs through a
// persisted line-offset index.
//
// Usage:
//
//	lineseek get   -key PATH -line N [-json]
//	lineseek index -key PATH
//	lineseek count -key PATH
//	lineseek serve [-addr :8080]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	jsoniter "github.com/json-iterator/go"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "lineseek"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return exitUsage
	}

	var err error
	switch args[0] {
	case "get":
		err = runGet(ctx, args[1:], stdout, stderr)
	case "index":
		err = runIndex(ctx, args[1:], stdout, stderr)
	case "count":
		err = runCount(ctx, args[1:], stdout, stderr)
	case "serve":
		err = runServe(ctx, args[1:], stderr)
	case "version", "-version", "--version":
		_, _ = fmt.Fprintf(stdout, "%s %s\n", appName, Version)
		return exitOK
	case "help", "-h", "-help", "--help":
		printUsage(stdout)
		return exitOK
	default:
		_, _ = fmt.Fprintf(stderr, "%s: unknown command %q\n\n", appName, args[0])
		printUsage(stderr)
		return exitUsage
	}
	return exitCode(err, stderr)
}

func exitCode(err error, stderr io.Writer) int {
	if err == nil || errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	_, _ = fmt.Fprintf(stderr, "%s: %v\n", appName, err)

	var uerr *usageError
	if errors.As(err, &uerr) {
		return exitUsage
	}
	return exitFailure
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintf(w, `%s - random access to lines of large text blobs

Usage:
  %s <command> [flags]

Commands:
  get     Print one line:            get -key PATH -line N [-json]
  index   (Re)build the offset table: index -key PATH
  count   Print the number of lines: count -key PATH
  serve   Serve lookups over HTTP:   serve [-addr :8080]
  version Print the version

Every command accepts -config, -log-level, -log-format, -backend,
-delimiter, -index-dir, -chunk-size, -bucket and -prefix.
Run '%s <command> -h' for details.

Environment:
  LINESEEK_CONFIG, LINESEEK_LOG_LEVEL, LINESEEK_LOG_FORMAT and the
  LINESEEK_* settings documented in the configuration file.

Exit codes: 0 success, 1 failure, 2 invalid arguments.
`, appName, appName, appName)
}
