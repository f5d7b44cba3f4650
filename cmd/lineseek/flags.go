package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/pithecene-io/lineseek/internal/config"
)

// commonFlags are accepted by every subcommand. Backend settings override
// the config file and the environment only when given explicitly.
type commonFlags struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string

	Backend   string
	Delimiter string
	IndexDir  string
	ChunkSize int
	Bucket    string
	Prefix    string
}

// usageError marks invalid or missing arguments.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

func newFlagSet(name, synopsis string, stderr io.Writer) (*flag.FlagSet, *commonFlags) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)

	c := &commonFlags{}
	fs.StringVar(&c.ConfigPath, "config", getEnv("LINESEEK_CONFIG", ""),
		"Path to a YAML configuration file (env: LINESEEK_CONFIG)")
	fs.StringVar(&c.LogLevel, "log-level", getEnv("LINESEEK_LOG_LEVEL", "warn"),
		"Log level: debug, info, warn, error (env: LINESEEK_LOG_LEVEL)")
	fs.StringVar(&c.LogFormat, "log-format", getEnv("LINESEEK_LOG_FORMAT", "text"),
		"Log format: text, json (env: LINESEEK_LOG_FORMAT)")

	fs.StringVar(&c.Backend, "backend", "", "Storage backend: fs, s3, minio")
	fs.StringVar(&c.Delimiter, "delimiter", "", `Line delimiter; escapes such as \n and \r\n are interpreted`)
	fs.StringVar(&c.IndexDir, "index-dir", "", "Offset table directory (fs backend)")
	fs.IntVar(&c.ChunkSize, "chunk-size", 0, "Scan read size in bytes")
	fs.StringVar(&c.Bucket, "bucket", "", "Bucket name (s3 and minio backends)")
	fs.StringVar(&c.Prefix, "prefix", "", "Object key prefix (s3 and minio backends)")

	fs.Usage = func() {
		_, _ = fmt.Fprintf(fs.Output(), "Usage: %s %s %s\n\nFlags:\n", appName, name, synopsis)
		fs.PrintDefaults()
	}
	return fs, c
}

// parseFlags parses args and rejects positional arguments.
func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return &usageError{err: err}
	}
	if fs.NArg() > 0 {
		return usagef("%s: unexpected argument %q", fs.Name(), fs.Arg(0))
	}
	return nil
}

func validateFlags(c *commonFlags) error {
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.LogLevel) {
		return usagef("invalid log level: %s", c.LogLevel)
	}
	if !slices.Contains([]string{"text", "json"}, c.LogFormat) {
		return usagef("invalid log format: %s", c.LogFormat)
	}
	if c.ChunkSize < 0 {
		return usagef("invalid chunk size: %d", c.ChunkSize)
	}
	return nil
}

// overrides returns a config override applying the flags set on fs.
func (c *commonFlags) overrides(fs *flag.FlagSet) func(*config.Config) {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	return func(cfg *config.Config) {
		if set["backend"] {
			cfg.Backend = c.Backend
		}
		if set["delimiter"] {
			cfg.Delimiter = c.Delimiter
		}
		if set["index-dir"] {
			cfg.IndexDir = c.IndexDir
		}
		if set["chunk-size"] {
			cfg.ChunkSize = c.ChunkSize
		}
		if set["bucket"] {
			cfg.S3.Bucket = c.Bucket
			cfg.MinIO.Bucket = c.Bucket
		}
		if set["prefix"] {
			cfg.S3.Prefix = c.Prefix
			cfg.MinIO.Prefix = c.Prefix
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
