// Package s3 stores blobs and offset tables in an S3-compatible bucket.
//
// AWS S3, MinIO, LocalStack and Cloudflare R2 are supported through the
// same client interface.
//
// # Store Semantics
//
//   - ReadBytes issues one ranged GetObject. A missing object is
//     ErrBlobNotFound; a range running past the end is ErrShortRead.
//   - OpenStream streams a plain GetObject.
//   - WriteStream spools to a temp file and uploads with a known length,
//     replacing any existing object. Payloads over 5GB go multipart.
//   - IndexKey places tables under Config.IndexPrefix in the same bucket.
//
// # Consistency
//
// AWS S3 is strongly consistent for read-after-write. Other backends may
// not be, so a lookup issued right after CreateIndex can still see
// ErrIndexNotFound there.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/pithecene-io/lineseek/lineseek"
)

// Upload limits imposed by S3.
const (
	mib = 1 << 20

	singlePutLimit = 5 << 30 // largest PutObject body
	objectLimit    = 5 << 40 // largest object
	minPart        = 5 * mib // smallest non-final part
	partLimit      = 10000   // parts per upload

	abortTimeout = 30 * time.Second
)

// API is the part of *s3.Client the store calls.
type API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
}

// Config configures a Store.
type Config struct {
	// Bucket is required.
	Bucket string

	// Prefix is prepended to every object key. A trailing slash is added
	// when missing.
	Prefix string

	// IndexPrefix is where offset tables are kept, relative to the key
	// namespace. Defaults to lineseek.DefaultIndexPrefix.
	IndexPrefix string
}

// Store is a lineseek.Store backed by one bucket.
type Store struct {
	client      API
	bucket      string
	prefix      string
	indexPrefix string

	// spool creates the temp file WriteStream buffers into.
	spool func() (*os.File, error)
}

// New returns a Store over an already configured client. internal/s3
// builds one from provider presets.
//
//	client := s3.NewFromConfig(awsCfg)
//	store, err := s3store.New(client, s3store.Config{Bucket: "logs"})
func New(client API, cfg Config) (*Store, error) {
	switch {
	case client == nil:
		return nil, errors.New("s3: client is required")
	case cfg.Bucket == "":
		return nil, errors.New("s3: bucket is required")
	}

	s := &Store{
		client:      client,
		bucket:      cfg.Bucket,
		prefix:      cfg.Prefix,
		indexPrefix: cfg.IndexPrefix,
		spool:       func() (*os.File, error) { return os.CreateTemp("", "lineseek-s3-*") },
	}
	if s.prefix != "" && !strings.HasSuffix(s.prefix, "/") {
		s.prefix += "/"
	}
	if s.indexPrefix == "" {
		s.indexPrefix = lineseek.DefaultIndexPrefix
	}
	return s, nil
}

// ReadBytes returns exactly length bytes of key starting at start.
//
// Zero-length reads cost a HeadObject so a missing blob is still reported.
func (s *Store) ReadBytes(ctx context.Context, key string, start, length int64) ([]byte, error) {
	objKey, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	if err := lineseek.CheckRange(start, length); err != nil {
		return nil, err
	}
	if length == 0 {
		return s.emptyRead(ctx, key, objKey, start)
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &objKey,
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", start, start+length-1)),
	})
	switch {
	case err == nil:
	case isNotFound(err):
		return nil, lineseek.BlobNotFoundError(key, err)
	case hasCode(err, "InvalidRange"):
		// start is at or past the end of the object
		return nil, lineseek.ShortReadError(length, 0)
	default:
		return nil, fmt.Errorf("s3: get %s range %d+%d: %w", objKey, start, length, err)
	}
	defer func() { _ = out.Body.Close() }()

	// A server that ignores Range would otherwise stream the whole object.
	buf, err := io.ReadAll(io.LimitReader(out.Body, length))
	if err != nil {
		return nil, fmt.Errorf("s3: read %s: %w", objKey, err)
	}
	if n := int64(len(buf)); n < length {
		return nil, lineseek.ShortReadError(length, n)
	}
	return buf, nil
}

func (s *Store) emptyRead(ctx context.Context, key, objKey string, start int64) ([]byte, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: &objKey})
	if err != nil {
		if isNotFound(err) {
			return nil, lineseek.BlobNotFoundError(key, err)
		}
		return nil, fmt.Errorf("s3: head %s: %w", objKey, err)
	}
	if start > aws.ToInt64(out.ContentLength) {
		return nil, lineseek.ShortReadError(0, 0)
	}
	return []byte{}, nil
}

// OpenStream returns the object body; the caller closes it.
func (s *Store) OpenStream(ctx context.Context, key string) (io.ReadCloser, error) {
	objKey, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &objKey})
	if err != nil {
		if isNotFound(err) {
			return nil, lineseek.BlobNotFoundError(key, err)
		}
		return nil, fmt.Errorf("s3: get %s: %w", objKey, err)
	}
	return out.Body, nil
}

// WriteStream drains r into a temp file and uploads it as key. If r fails
// nothing is uploaded and any previous object stays in place.
func (s *Store) WriteStream(ctx context.Context, key string, r io.Reader) error {
	objKey, err := s.resolve(key)
	if err != nil {
		return err
	}

	f, err := s.spool()
	if err != nil {
		return fmt.Errorf("s3: spool: %w", err)
	}
	defer func() {
		_ = f.Close()
		_ = os.Remove(f.Name())
	}()

	size, err := io.Copy(f, r)
	if err != nil {
		return fmt.Errorf("s3: spool %s: %w", objKey, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("s3: rewind spool: %w", err)
	}

	if fitsSinglePut(size) {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        &s.bucket,
			Key:           &objKey,
			Body:          f,
			ContentLength: aws.Int64(size),
		})
		if err != nil {
			return fmt.Errorf("s3: put %s: %w", objKey, err)
		}
		return nil
	}
	return s.uploadMultipart(ctx, objKey, f, size)
}

// IndexKey returns the absolute key of the offset table for key.
func (s *Store) IndexKey(key string) (string, error) {
	return lineseek.ObjectIndexKey(s.indexPrefix, key)
}

func fitsSinglePut(size int64) bool { return size <= singlePutLimit }

// partSize grows past minPart only when the object would need more than
// partLimit parts.
func partSize(size int64) int64 {
	if per := (size + partLimit - 1) / partLimit; per > minPart {
		return per
	}
	return minPart
}

// uploadMultipart sends src in sections and aborts the upload on failure.
func (s *Store) uploadMultipart(ctx context.Context, objKey string, src io.ReaderAt, size int64) error {
	if size > objectLimit {
		return fmt.Errorf("s3: %s: size %d exceeds the 5TB object limit", objKey, size)
	}

	created, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{Bucket: &s.bucket, Key: &objKey})
	if err != nil {
		return fmt.Errorf("s3: start upload %s: %w", objKey, err)
	}
	uploadID := created.UploadId

	parts, err := s.uploadParts(ctx, objKey, uploadID, src, size)
	if err == nil {
		_, err = s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
			Bucket:          &s.bucket,
			Key:             &objKey,
			UploadId:        uploadID,
			MultipartUpload: &types.CompletedMultipartUpload{Parts: parts},
		})
		if err != nil {
			err = fmt.Errorf("s3: complete upload %s: %w", objKey, err)
		}
	}
	if err != nil {
		//nolint:contextcheck // the abort must run after the caller gives up
		s.abort(objKey, uploadID)
		return err
	}
	return nil
}

func (s *Store) uploadParts(ctx context.Context, objKey string, uploadID *string, src io.ReaderAt, size int64) ([]types.CompletedPart, error) {
	step := partSize(size)
	parts := make([]types.CompletedPart, 0, (size+step-1)/step)
	for off := int64(0); off < size; off += step {
		n := min(step, size-off)
		num := aws.Int32(int32(len(parts) + 1))
		out, err := s.client.UploadPart(ctx, &s3.UploadPartInput{
			Bucket:        &s.bucket,
			Key:           &objKey,
			UploadId:      uploadID,
			PartNumber:    num,
			Body:          io.NewSectionReader(src, off, n),
			ContentLength: aws.Int64(n),
		})
		if err != nil {
			return nil, fmt.Errorf("s3: upload %s part %d: %w", objKey, *num, err)
		}
		parts = append(parts, types.CompletedPart{ETag: out.ETag, PartNumber: num})
	}
	return parts, nil
}

func (s *Store) abort(objKey string, uploadID *string) {
	ctx, cancel := context.WithTimeout(context.Background(), abortTimeout)
	defer cancel()
	_, _ = s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   &s.bucket,
		Key:      &objKey,
		UploadId: uploadID,
	})
}

// resolve validates key and maps it into the bucket namespace.
func (s *Store) resolve(key string) (string, error) {
	if err := lineseek.CheckObjectKey(key); err != nil {
		return "", err
	}
	rel := strings.TrimPrefix(path.Clean(key), "/")
	if rel == "" {
		return "", lineseek.InvalidKeyError(key)
	}
	return s.prefix + rel, nil
}

func isNotFound(err error) bool {
	var (
		noKey    *types.NoSuchKey
		noBucket *types.NoSuchBucket
	)
	if errors.As(err, &noKey) || errors.As(err, &noBucket) {
		return true
	}
	return hasCode(err, "NotFound", "NoSuchKey", "404")
}

// hasCode reports whether err carries one of the given API error codes.
func hasCode(err error, codes ...string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	code := apiErr.ErrorCode()
	for _, c := range codes {
		if code == c {
			return true
		}
	}
	return false
}

var _ lineseek.Store = (*Store)(nil)
