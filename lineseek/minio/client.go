package minio

import (
	"errors"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ClientConfig holds connection settings for a MinIO client.
type ClientConfig struct {
	// Endpoint is host:port without scheme, e.g. "localhost:9000". Required.
	Endpoint string

	AccessKeyID     string
	SecretAccessKey string

	// Secure selects HTTPS.
	Secure bool

	// Region is optional; MinIO ignores it.
	Region string
}

// NewClient creates a MinIO client with static V4 credentials.
func NewClient(cfg ClientConfig) (*minio.Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("minio: endpoint is required")
	}
	return minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
}
