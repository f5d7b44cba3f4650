package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// fakeS3 is an in-memory bucket implementing API. Errors mimic the codes a
// real endpoint returns.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	parts   map[string]map[int32][]byte // upload ID -> part number -> data
	nextID  int
	calls   map[string]int
	ranges  []string

	// getErr, if set, is returned by every GetObject.
	getErr error

	// failPartOn makes the Nth and later UploadPart calls fail; 0 disables.
	failPartOn int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		objects: make(map[string][]byte),
		parts:   make(map[string]map[int32][]byte),
		calls:   make(map[string]int),
	}
}

func apiError(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: code, Fault: smithy.FaultClient}
}

// count returns how many times op was called.
func (f *fakeS3) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeS3) object(key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	return bytes.Clone(data), ok
}

func (f *fakeS3) objectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

func (f *fakeS3) requestedRanges() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ranges...)
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["PutObject"]++
	if in.ContentLength != nil && *in.ContentLength != int64(len(data)) {
		return nil, apiError("IncompleteBody")
	}
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	f.calls["GetObject"]++
	data, ok := f.objects[aws.ToString(in.Key)]
	if in.Range != nil {
		f.ranges = append(f.ranges, aws.ToString(in.Range))
	}
	getErr := f.getErr
	f.mu.Unlock()

	if getErr != nil {
		return nil, getErr
	}
	if !ok {
		return nil, &types.NoSuchKey{}
	}

	if in.Range != nil {
		start, end, err := parseRange(aws.ToString(in.Range))
		if err != nil {
			return nil, err
		}
		size := int64(len(data))
		if start >= size {
			return nil, apiError("InvalidRange")
		}
		data = data[start : min(end, size-1)+1]
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: aws.Int64(int64(len(data))),
	}, nil
}

// parseRange parses an HTTP "bytes=start-end" header.
func parseRange(h string) (int64, int64, error) {
	rng, ok := strings.CutPrefix(h, "bytes=")
	if !ok {
		return 0, 0, fmt.Errorf("fake s3: bad range %q", h)
	}
	first, last, ok := strings.Cut(rng, "-")
	if !ok {
		return 0, 0, fmt.Errorf("fake s3: bad range %q", h)
	}
	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil {
		return 0, 0, err
	}
	end, err := strconv.ParseInt(last, 10, 64)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["HeadObject"]++
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, apiError("NotFound")
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

func (f *fakeS3) CreateMultipartUpload(_ context.Context, in *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["CreateMultipartUpload"]++
	f.nextID++
	id := "upload-" + strconv.Itoa(f.nextID)
	f.parts[id] = make(map[int32][]byte)
	return &s3.CreateMultipartUploadOutput{Bucket: in.Bucket, Key: in.Key, UploadId: aws.String(id)}, nil
}

func (f *fakeS3) UploadPart(_ context.Context, in *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["UploadPart"]++
	if f.failPartOn > 0 && f.calls["UploadPart"] >= f.failPartOn {
		return nil, apiError("InternalError")
	}
	parts, ok := f.parts[aws.ToString(in.UploadId)]
	if !ok {
		return nil, apiError("NoSuchUpload")
	}
	n := aws.ToInt32(in.PartNumber)
	parts[n] = data
	return &s3.UploadPartOutput{ETag: aws.String(fmt.Sprintf("%q", strconv.Itoa(int(n))))}, nil
}

func (f *fakeS3) CompleteMultipartUpload(_ context.Context, in *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := aws.ToString(in.UploadId)
	parts, ok := f.parts[id]
	if !ok {
		return nil, apiError("NoSuchUpload")
	}

	var whole []byte
	for _, p := range in.MultipartUpload.Parts {
		whole = append(whole, parts[aws.ToInt32(p.PartNumber)]...)
	}
	f.objects[aws.ToString(in.Key)] = whole
	delete(f.parts, id)
	return &s3.CompleteMultipartUploadOutput{}, nil
}

func (f *fakeS3) AbortMultipartUpload(_ context.Context, in *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["AbortMultipartUpload"]++
	delete(f.parts, aws.ToString(in.UploadId))
	return &s3.AbortMultipartUploadOutput{}, nil
}

var _ API = (*fakeS3)(nil)
