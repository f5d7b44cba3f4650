// Package config loads lineseek command configuration from a YAML file and
// LINESEEK_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "LINESEEK"

// Backend names.
const (
	BackendFS    = "fs"
	BackendS3    = "s3"
	BackendMinIO = "minio"
)

// Config is the full command configuration.
type Config struct {
	// Backend selects where blobs and tables live: fs, s3 or minio.
	Backend string `yaml:"backend"`

	// Delimiter is the line delimiter. Go escape sequences such as \n and
	// \r\n are interpreted.
	Delimiter string `yaml:"delimiter"`

	// ChunkSize is the scan read size in bytes; 0 selects the default.
	ChunkSize int `yaml:"chunk_size"`

	// IndexDir is the table directory for the fs backend.
	IndexDir string `yaml:"index_dir"`

	S3    S3Config    `yaml:"s3"`
	MinIO MinIOConfig `yaml:"minio"`
	Serve ServeConfig `yaml:"serve"`
}

// S3Config configures the S3 backend.
type S3Config struct {
	// Provider selects client defaults: aws, localstack, minio or r2.
	Provider        string `yaml:"provider"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	IndexPrefix     string `yaml:"index_prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	UsePathStyle    *bool  `yaml:"use_path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	// R2AccountID sets the Cloudflare endpoint when Provider is r2.
	R2AccountID string `yaml:"r2_account_id"`
}

// MinIOConfig configures the MinIO backend.
type MinIOConfig struct {
	Endpoint        string `yaml:"endpoint"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	IndexPrefix     string `yaml:"index_prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Secure          bool   `yaml:"secure"`
	Region          string `yaml:"region"`
}

// ServeConfig configures the HTTP server.
type ServeConfig struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`

	// RateLimit caps line lookups per second across all clients; 0 disables
	// the limit. RateBurst defaults to the limit rounded up.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Backend:   BackendFS,
		Delimiter: `\n`,
		IndexDir:  ".lineseek",
		Serve: ServeConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (if non-empty),
// the environment and finally overrides, in that order, then validates it.
func Load(path string, overrides ...func(*Config)) (*Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		defer func() { _ = f.Close() }()
		if err := cfg.Decode(f); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	for _, override := range overrides {
		override(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode merges YAML from r into c. Unknown fields are rejected.
func (c *Config) Decode(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(c)
}

// ApplyEnv overrides fields from LINESEEK_* variables found through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + "_" + name); ok && v != "" {
			*dst = v
		}
	}

	str("BACKEND", &c.Backend)
	str("DELIMITER", &c.Delimiter)
	str("INDEX_DIR", &c.IndexDir)

	str("S3_PROVIDER", &c.S3.Provider)
	str("S3_BUCKET", &c.S3.Bucket)
	str("S3_PREFIX", &c.S3.Prefix)
	str("S3_INDEX_PREFIX", &c.S3.IndexPrefix)
	str("S3_REGION", &c.S3.Region)
	str("S3_ENDPOINT", &c.S3.Endpoint)
	str("S3_ACCESS_KEY_ID", &c.S3.AccessKeyID)
	str("S3_SECRET_ACCESS_KEY", &c.S3.SecretAccessKey)
	str("S3_R2_ACCOUNT_ID", &c.S3.R2AccountID)

	str("MINIO_ENDPOINT", &c.MinIO.Endpoint)
	str("MINIO_BUCKET", &c.MinIO.Bucket)
	str("MINIO_PREFIX", &c.MinIO.Prefix)
	str("MINIO_INDEX_PREFIX", &c.MinIO.IndexPrefix)
	str("MINIO_ACCESS_KEY_ID", &c.MinIO.AccessKeyID)
	str("MINIO_SECRET_ACCESS_KEY", &c.MinIO.SecretAccessKey)
	str("MINIO_REGION", &c.MinIO.Region)

	str("SERVE_ADDR", &c.Serve.Addr)

	var errs []error
	if v, ok := lookup(EnvPrefix + "_CHUNK_SIZE"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: %s_CHUNK_SIZE: %w", EnvPrefix, err))
		} else {
			c.ChunkSize = n
		}
	}
	if v, ok := lookup(EnvPrefix + "_SERVE_RATE_LIMIT"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: %s_SERVE_RATE_LIMIT: %w", EnvPrefix, err))
		} else {
			c.Serve.RateLimit = f
		}
	}
	if v, ok := lookup(EnvPrefix + "_S3_USE_PATH_STYLE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: %s_S3_USE_PATH_STYLE: %w", EnvPrefix, err))
		} else {
			c.S3.UsePathStyle = &b
		}
	}
	if v, ok := lookup(EnvPrefix + "_MINIO_SECURE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: %s_MINIO_SECURE: %w", EnvPrefix, err))
		} else {
			c.MinIO.Secure = b
		}
	}
	return errors.Join(errs...)
}

// DelimiterBytes returns the delimiter with escape sequences interpreted.
// A value that is not a valid escaped string is used verbatim.
func (c *Config) DelimiterBytes() []byte {
	if strings.Contains(c.Delimiter, `\`) {
		if s, err := strconv.Unquote(`"` + c.Delimiter + `"`); err == nil {
			return []byte(s)
		}
	}
	return []byte(c.Delimiter)
}

// Validate checks that the selected backend has everything it needs.
func (c *Config) Validate() error {
	var errs []error

	if len(c.DelimiterBytes()) == 0 {
		errs = append(errs, errors.New("config: delimiter must not be empty"))
	}
	if c.ChunkSize < 0 {
		errs = append(errs, fmt.Errorf("config: chunk_size must not be negative, got %d", c.ChunkSize))
	}
	if c.Serve.RateLimit < 0 || c.Serve.RateBurst < 0 {
		errs = append(errs, errors.New("config: serve.rate_limit and serve.rate_burst must not be negative"))
	}

	switch c.Backend {
	case BackendFS:
		if c.IndexDir == "" {
			errs = append(errs, errors.New("config: index_dir is required for the fs backend"))
		}
	case BackendS3:
		if c.S3.Bucket == "" {
			errs = append(errs, errors.New("config: s3.bucket is required for the s3 backend"))
		}
		switch strings.ToLower(c.S3.Provider) {
		case "", "aws", "localstack", "minio":
		case "r2":
			if c.S3.R2AccountID == "" && c.S3.Endpoint == "" {
				errs = append(errs, errors.New("config: s3.r2_account_id or s3.endpoint is required for provider r2"))
			}
		default:
			errs = append(errs, fmt.Errorf("config: unknown s3.provider %q", c.S3.Provider))
		}
	case BackendMinIO:
		if c.MinIO.Endpoint == "" {
			errs = append(errs, errors.New("config: minio.endpoint is required for the minio backend"))
		}
		if c.MinIO.Bucket == "" {
			errs = append(errs, errors.New("config: minio.bucket is required for the minio backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown backend %q (want fs, s3 or minio)", c.Backend))
	}

	return errors.Join(errs...)
}
