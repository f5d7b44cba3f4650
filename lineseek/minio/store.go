// Package minio provides a lineseek Store using the MinIO client.
//
// It works with MinIO and other S3-compatible systems (Ceph, Garage,
// SeaweedFS) without pulling in the AWS SDK at runtime.
//
// # Basic Usage
//
//	client, err := minio.NewClient(minio.ClientConfig{
//	    Endpoint:        "localhost:9000",
//	    AccessKeyID:     "minioadmin",
//	    SecretAccessKey: "minioadmin",
//	})
//	store, err := minio.New(client, minio.Config{Bucket: "logs"})
//
// Uploads stream with unknown size; MinIO buffers them into multipart parts.
package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"

	"github.com/pithecene-io/lineseek/lineseek"
)

// Config holds configuration for the MinIO store.
type Config struct {
	// Bucket is the bucket name. Required.
	Bucket string

	// Prefix is an optional object key prefix for all operations.
	Prefix string

	// IndexPrefix is the key prefix under which offset tables are kept.
	// Defaults to lineseek.DefaultIndexPrefix.
	IndexPrefix string
}

// objectAPI is the slice of object operations the store needs.
// end < 0 requests the whole object.
type objectAPI interface {
	stat(ctx context.Context, key string) (int64, error)
	get(ctx context.Context, key string, start, end int64) (io.ReadCloser, error)
	put(ctx context.Context, key string, r io.Reader) error
}

// Store implements lineseek.Store for MinIO and S3-compatible storage.
type Store struct {
	api         objectAPI
	prefix      string
	indexPrefix string
}

// New creates a MinIO-backed store.
func New(client *minio.Client, cfg Config) (*Store, error) {
	if client == nil {
		return nil, errors.New("minio: client is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("minio: bucket is required")
	}
	return newStore(&clientAPI{client: client, bucket: cfg.Bucket}, cfg), nil
}

func newStore(api objectAPI, cfg Config) *Store {
	prefix := cfg.Prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	indexPrefix := cfg.IndexPrefix
	if indexPrefix == "" {
		indexPrefix = lineseek.DefaultIndexPrefix
	}
	return &Store{api: api, prefix: prefix, indexPrefix: indexPrefix}
}

func (s *Store) ReadBytes(ctx context.Context, key string, start, length int64) ([]byte, error) {
	fullKey, err := s.objectKey(key)
	if err != nil {
		return nil, err
	}
	if err := lineseek.CheckRange(start, length); err != nil {
		return nil, err
	}

	if length == 0 {
		size, err := s.api.stat(ctx, fullKey)
		if err != nil {
			return nil, s.mapError(key, "stat object", length, err)
		}
		if start > size {
			return nil, lineseek.ShortReadError(0, 0)
		}
		return []byte{}, nil
	}

	rc, err := s.api.get(ctx, fullKey, start, start+length-1)
	if err != nil {
		return nil, s.mapError(key, "range read", length, err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(io.LimitReader(rc, length))
	if err != nil {
		return nil, s.mapError(key, "reading range body", length, err)
	}
	if int64(len(data)) < length {
		return nil, lineseek.ShortReadError(length, int64(len(data)))
	}
	return data, nil
}

func (s *Store) OpenStream(ctx context.Context, key string) (io.ReadCloser, error) {
	fullKey, err := s.objectKey(key)
	if err != nil {
		return nil, err
	}
	rc, err := s.api.get(ctx, fullKey, 0, -1)
	if err != nil {
		return nil, s.mapError(key, "get object", 0, err)
	}
	return rc, nil
}

// WriteStream streams r to key with unknown size, replacing any existing
// object. A failing reader aborts the upload.
func (s *Store) WriteStream(ctx context.Context, key string, r io.Reader) error {
	fullKey, err := s.objectKey(key)
	if err != nil {
		return err
	}
	if err := s.api.put(ctx, fullKey, r); err != nil {
		return fmt.Errorf("minio: put object: %w", err)
	}
	return nil
}

func (s *Store) IndexKey(key string) (string, error) {
	return lineseek.ObjectIndexKey(s.indexPrefix, key)
}

func (s *Store) objectKey(key string) (string, error) {
	if err := lineseek.CheckObjectKey(key); err != nil {
		return "", err
	}
	cleaned := strings.TrimPrefix(path.Clean(key), "/")
	if cleaned == "" {
		return "", lineseek.InvalidKeyError(key)
	}
	return s.prefix + cleaned, nil
}

// mapError translates MinIO error responses into lineseek errors.
func (s *Store) mapError(key, op string, length int64, err error) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" || resp.Code == "NotFound" ||
		resp.StatusCode == http.StatusNotFound:
		return lineseek.BlobNotFoundError(key, err)
	case resp.Code == "InvalidRange" || resp.StatusCode == http.StatusRequestedRangeNotSatisfiable:
		return lineseek.ShortReadError(length, 0)
	}
	return fmt.Errorf("minio: %s: %w", op, err)
}

// -----------------------------------------------------------------------------
// minio-go adapter
// -----------------------------------------------------------------------------

// clientAPI implements objectAPI over *minio.Client.
type clientAPI struct {
	client *minio.Client
	bucket string
}

func (c *clientAPI) stat(ctx context.Context, key string) (int64, error) {
	info, err := c.client.StatObject(ctx, c.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return 0, err
	}
	return info.Size, nil
}

// get opens the object. GetObject is lazy, so the first response is forced
// through Stat to surface missing objects and bad ranges here.
func (c *clientAPI) get(ctx context.Context, key string, start, end int64) (io.ReadCloser, error) {
	opts := minio.GetObjectOptions{}
	if end >= 0 {
		if err := opts.SetRange(start, end); err != nil {
			return nil, err
		}
	}

	obj, err := c.client.GetObject(ctx, c.bucket, key, opts)
	if err != nil {
		return nil, err
	}
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, err
	}
	return obj, nil
}

func (c *clientAPI) put(ctx context.Context, key string, r io.Reader) error {
	_, err := c.client.PutObject(ctx, c.bucket, key, r, -1, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	return err
}

// Ensure Store implements lineseek.Store
var _ lineseek.Store = (*Store)(nil)
