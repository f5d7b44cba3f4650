// Package s3 builds AWS SDK clients for the S3-compatible backends lineseek
// reads blobs from.
package s3

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ClientConfig describes how to reach one S3-compatible endpoint.
type ClientConfig struct {
	// Region is required; R2 uses "auto".
	Region string

	// Endpoint overrides the AWS endpoint, e.g. http://localhost:4566.
	Endpoint string

	// UsePathStyle puts the bucket in the URL path. LocalStack and MinIO
	// need it unless DNS is set up for virtual hosts.
	UsePathStyle bool

	// Credentials, when nil, fall back to the SDK default chain.
	Credentials aws.CredentialsProvider
}

// Provider names accepted by Preset.
const (
	ProviderAWS        = "aws"
	ProviderLocalStack = "localstack"
	ProviderMinIO      = "minio"
	ProviderR2         = "r2"
)

// NewClient loads the SDK configuration for cfg and returns a client.
//
//	cfg, _ := s3.Preset(s3.ProviderMinIO)
//	cfg.Endpoint = "http://minio:9000"
//	client, err := s3.NewClient(ctx, cfg)
func NewClient(ctx context.Context, cfg ClientConfig) (*s3.Client, error) {
	if cfg.Region == "" {
		return nil, errors.New("s3: region is required")
	}

	load := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.Credentials != nil {
		load = append(load, config.WithCredentialsProvider(cfg.Credentials))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, load...)
	if err != nil {
		return nil, fmt.Errorf("s3: load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// Preset returns the default client configuration for a provider.
//
//   - aws: region us-east-1, default credential chain.
//   - localstack: http://localhost:4566, path style, test/test.
//   - minio: http://localhost:9000, path style, minioadmin/minioadmin.
//   - r2: region auto; endpoint and credentials must be supplied via
//     WithR2Account and StaticCredentials.
//
// Fields set on the returned value may be overridden freely.
func Preset(provider string) (ClientConfig, error) {
	switch strings.ToLower(provider) {
	case "", ProviderAWS:
		return ClientConfig{Region: "us-east-1"}, nil
	case ProviderLocalStack:
		return ClientConfig{
			Region:       "us-east-1",
			Endpoint:     "http://localhost:4566",
			UsePathStyle: true,
			Credentials:  StaticCredentials("test", "test"),
		}, nil
	case ProviderMinIO:
		return ClientConfig{
			Region:       "us-east-1",
			Endpoint:     "http://localhost:9000",
			UsePathStyle: true,
			Credentials:  StaticCredentials("minioadmin", "minioadmin"),
		}, nil
	case ProviderR2:
		return ClientConfig{Region: "auto"}, nil
	default:
		return ClientConfig{}, fmt.Errorf("s3: unknown provider %q", provider)
	}
}

// WithR2Account sets the Cloudflare R2 endpoint for accountID.
func (c ClientConfig) WithR2Account(accountID string) ClientConfig {
	c.Endpoint = "https://" + accountID + ".r2.cloudflarestorage.com"
	return c
}

// StaticCredentials returns a provider for fixed keys.
// It returns nil if accessKeyID is empty, selecting the default chain.
func StaticCredentials(accessKeyID, secretAccessKey string) aws.CredentialsProvider {
	if accessKeyID == "" {
		return nil
	}
	return credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")
}
