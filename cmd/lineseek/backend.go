package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pithecene-io/lineseek/internal/config"
	"github.com/pithecene-io/lineseek/internal/metrics"
	s3client "github.com/pithecene-io/lineseek/internal/s3"
	"github.com/pithecene-io/lineseek/lineseek"
	miniostore "github.com/pithecene-io/lineseek/lineseek/minio"
	s3store "github.com/pithecene-io/lineseek/lineseek/s3"
)

// app is the lookup pipeline shared by all subcommands:
// BinaryIndex, then GracefulReader, then IndexedLineReader.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    lineseek.Store
	index    metrics.Index
	graceful *lineseek.GracefulReader
	reader   lineseek.LineReader
}

// setup validates the common flags, loads the configuration and opens the
// backend. m may be nil; when set, the index and reader are instrumented.
func setup(ctx context.Context, fs *flag.FlagSet, c *commonFlags, stderr io.Writer, m *metrics.Metrics) (*app, error) {
	if err := validateFlags(c); err != nil {
		return nil, err
	}
	cfg, err := config.Load(c.ConfigPath, c.overrides(fs))
	if err != nil {
		return nil, err
	}
	logger := setupLogger(stderr, c.LogLevel, c.LogFormat)
	return newApp(ctx, cfg, logger, m)
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*app, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	opts := []lineseek.Option{
		lineseek.WithLogger(logger),
		lineseek.WithChunkSize(cfg.ChunkSize),
	}
	binary, err := lineseek.NewBinaryIndex(store, store, cfg.DelimiterBytes(), opts...)
	if err != nil {
		return nil, err
	}

	var index metrics.Index = binary
	if m != nil {
		index = m.WrapIndex(binary)
	}
	graceful, err := lineseek.NewGracefulReader(index, opts...)
	if err != nil {
		return nil, err
	}
	reader, err := lineseek.NewIndexedLineReader(store, graceful, opts...)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		index:    index,
		graceful: graceful,
		reader:   reader,
	}
	if m != nil {
		a.reader = m.WrapLineReader(reader)
	}
	logger.Debug("backend ready", "backend", cfg.Backend, "delimiter", fmt.Sprintf("%q", cfg.DelimiterBytes()))
	return a, nil
}

// openStore builds the Store selected by cfg.Backend.
func openStore(ctx context.Context, cfg *config.Config) (lineseek.Store, error) {
	switch cfg.Backend {
	case config.BackendFS:
		if err := os.MkdirAll(cfg.IndexDir, 0o755); err != nil {
			return nil, fmt.Errorf("create index dir: %w", err)
		}
		return lineseek.NewFS(cfg.IndexDir)

	case config.BackendS3:
		clientCfg, err := s3client.Preset(cfg.S3.Provider)
		if err != nil {
			return nil, err
		}
		if cfg.S3.R2AccountID != "" {
			clientCfg = clientCfg.WithR2Account(cfg.S3.R2AccountID)
		}
		if cfg.S3.Region != "" {
			clientCfg.Region = cfg.S3.Region
		}
		if cfg.S3.Endpoint != "" {
			clientCfg.Endpoint = cfg.S3.Endpoint
		}
		if cfg.S3.UsePathStyle != nil {
			clientCfg.UsePathStyle = *cfg.S3.UsePathStyle
		}
		if creds := s3client.StaticCredentials(cfg.S3.AccessKeyID, cfg.S3.SecretAccessKey); creds != nil {
			clientCfg.Credentials = creds
		}

		client, err := s3client.NewClient(ctx, clientCfg)
		if err != nil {
			return nil, err
		}
		store, err := s3store.New(client, s3store.Config{
			Bucket:      cfg.S3.Bucket,
			Prefix:      cfg.S3.Prefix,
			IndexPrefix: cfg.S3.IndexPrefix,
		})
		if err != nil {
			return nil, err
		}
		return store, nil

	case config.BackendMinIO:
		client, err := miniostore.NewClient(miniostore.ClientConfig{
			Endpoint:        cfg.MinIO.Endpoint,
			AccessKeyID:     cfg.MinIO.AccessKeyID,
			SecretAccessKey: cfg.MinIO.SecretAccessKey,
			Secure:          cfg.MinIO.Secure,
			Region:          cfg.MinIO.Region,
		})
		if err != nil {
			return nil, err
		}
		store, err := miniostore.New(client, miniostore.Config{
			Bucket:      cfg.MinIO.Bucket,
			Prefix:      cfg.MinIO.Prefix,
			IndexPrefix: cfg.MinIO.IndexPrefix,
		})
		if err != nil {
			return nil, err
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// resolveKey turns a command-line key into a store key. File paths are
// made absolute; object keys get a leading slash.
func (a *app) resolveKey(key string) (string, error) {
	if a.cfg.Backend == config.BackendFS {
		return filepath.Abs(key)
	}
	if !strings.HasPrefix(key, "/") {
		key = "/" + key
	}
	return key, nil
}

// lookup resolves line lineIndex of key and reads its bytes.
func (a *app) lookup(ctx context.Context, key string, lineIndex int64) (lineResponse, error) {
	info, err := a.graceful.LineIndexInfo(ctx, key, lineIndex)
	if err != nil {
		return lineResponse{}, err
	}
	data, err := a.store.ReadBytes(ctx, key, info.Position, info.Length)
	if err != nil {
		return lineResponse{}, err
	}
	return lineResponse{
		Key:      key,
		Line:     lineIndex,
		Position: info.Position,
		Length:   info.Length,
		Text:     string(data),
	}, nil
}
