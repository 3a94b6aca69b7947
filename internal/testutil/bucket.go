package testutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"io"
	"math/rand"
	"sort"
	"sync"
)

// ErrBodyReset is the error returned by injected body failures.
var ErrBodyReset = errors.New("connection reset by peer")

// FakeBucket is an in-memory S3 that honours Range headers and multipart
// uploads. The zero value is not usable; call NewFakeBucket.
type FakeBucket struct {
	mu sync.Mutex

	objects  map[string][]byte
	requests []string
	uploads  map[string]*fakeUpload
	aborted  []string
	nextID   int

	// BodyFailures is the number of upcoming GetObject bodies that fail
	// after delivering FailAfter bytes.
	BodyFailures int
	FailAfter    int

	// FailWithData makes the failing Read return its bytes together with
	// the error instead of failing on the following Read.
	FailWithData bool

	// ReadSize caps the bytes returned by a single body Read. Zero means
	// no cap.
	ReadSize int

	// OmitLength makes HeadObject report no ContentLength.
	OmitLength bool

	// IgnoreRange makes GetObject return the whole object without a
	// Content-Range header.
	IgnoreRange bool

	// GetObjectHook runs before every GetObject; a non-nil error is
	// returned to the caller instead of a body.
	GetObjectHook func(*s3.GetObjectInput) error

	// UploadPartHook runs before every UploadPart.
	UploadPartHook func(*s3.UploadPartInput) error
}

type fakeUpload struct {
	bucket string
	key    string
	parts  map[int32][]byte
}

func NewFakeBucket() *FakeBucket {
	return &FakeBucket{
		objects: map[string][]byte{},
		uploads: map[string]*fakeUpload{},
	}
}

func objectKey(bucket, key string) string {
	return bucket + "/" + key
}

// Put stores data under bucket/key.
func (f *FakeBucket) Put(bucket, key string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[objectKey(bucket, key)] = append([]byte(nil), data...)
}

// Object returns a copy of the data stored under bucket/key.
func (f *FakeBucket) Object(bucket, key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[objectKey(bucket, key)]
	return append([]byte(nil), data...), ok
}

// Requests returns the Range headers of every GetObject call, in order.
func (f *FakeBucket) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

// Aborted returns the ids of aborted multipart uploads.
func (f *FakeBucket) Aborted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.aborted...)
}

func (f *FakeBucket) HeadObject(
	_ context.Context,
	params *s3.HeadObjectInput,
	_ ...func(*s3.Options),
) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.objects[objectKey(aws.ToString(params.Bucket), aws.ToString(params.Key))]
	if !ok {
		return nil, operationError("HeadObject", &types.NotFound{Message: aws.String("Not Found")})
	}
	out := &s3.HeadObjectOutput{ETag: aws.String(fmt.Sprintf("%q", fmt.Sprint(len(data))))}
	if !f.OmitLength {
		out.ContentLength = aws.Int64(int64(len(data)))
	}
	return out, nil
}

func (f *FakeBucket) GetObject(
	_ context.Context,
	params *s3.GetObjectInput,
	_ ...func(*s3.Options),
) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rangeHeader := aws.ToString(params.Range)
	f.requests = append(f.requests, rangeHeader)

	if f.GetObjectHook != nil {
		if err := f.GetObjectHook(params); err != nil {
			return nil, err
		}
	}

	data, ok := f.objects[objectKey(aws.ToString(params.Bucket), aws.ToString(params.Key))]
	if !ok {
		return nil, operationError("GetObject", &types.NoSuchKey{Message: aws.String("The specified key does not exist.")})
	}

	body := data
	var contentRange *string
	if rangeHeader != "" && !f.IgnoreRange {
		var start, end int64
		if _, err := fmt.Sscanf(rangeHeader, "bytes=%d-%d", &start, &end); err != nil {
			return nil, operationError("GetObject", &smithy.GenericAPIError{Code: "InvalidArgument", Message: err.Error()})
		}
		if start >= int64(len(data)) || start > end {
			return nil, operationError("GetObject", &smithy.GenericAPIError{
				Code:    "InvalidRange",
				Message: "The requested range is not satisfiable",
			})
		}
		end = min(end, int64(len(data))-1)
		body = data[start : end+1]
		contentRange = aws.String(fmt.Sprintf("bytes %d-%d/%d", start, end, len(data)))
	}

	r := &fakeBody{data: append([]byte(nil), body...), readSize: f.ReadSize, failAt: -1}
	if f.BodyFailures > 0 {
		f.BodyFailures--
		r.failAt = f.FailAfter
		r.failWithData = f.FailWithData
	}
	return &s3.GetObjectOutput{
		Body:          r,
		ContentLength: aws.Int64(int64(len(body))),
		ContentRange:  contentRange,
	}, nil
}

func (f *FakeBucket) CreateMultipartUpload(
	_ context.Context,
	params *s3.CreateMultipartUploadInput,
	_ ...func(*s3.Options),
) (*s3.CreateMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	id := fmt.Sprintf("upload-%d", f.nextID)
	f.uploads[id] = &fakeUpload{
		bucket: aws.ToString(params.Bucket),
		key:    aws.ToString(params.Key),
		parts:  map[int32][]byte{},
	}
	return &s3.CreateMultipartUploadOutput{
		Bucket:   params.Bucket,
		Key:      params.Key,
		UploadId: aws.String(id),
	}, nil
}

func (f *FakeBucket) UploadPart(
	_ context.Context,
	params *s3.UploadPartInput,
	_ ...func(*s3.Options),
) (*s3.UploadPartOutput, error) {
	if f.UploadPartHook != nil {
		if err := f.UploadPartHook(params); err != nil {
			return nil, err
		}
	}

	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	upload, ok := f.uploads[aws.ToString(params.UploadId)]
	if !ok {
		return nil, operationError("UploadPart", &types.NoSuchUpload{Message: aws.String("no such upload")})
	}
	number := aws.ToInt32(params.PartNumber)
	upload.parts[number] = data
	return &s3.UploadPartOutput{ETag: aws.String(fmt.Sprintf("\"etag-%d\"", number))}, nil
}

func (f *FakeBucket) CompleteMultipartUpload(
	_ context.Context,
	params *s3.CompleteMultipartUploadInput,
	_ ...func(*s3.Options),
) (*s3.CompleteMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := aws.ToString(params.UploadId)
	upload, ok := f.uploads[id]
	if !ok {
		return nil, operationError("CompleteMultipartUpload", &types.NoSuchUpload{Message: aws.String("no such upload")})
	}
	if params.MultipartUpload == nil || len(params.MultipartUpload.Parts) == 0 {
		return nil, operationError("CompleteMultipartUpload", &smithy.GenericAPIError{
			Code:    "MalformedXML",
			Message: "The XML you provided was not well-formed",
		})
	}

	parts := params.MultipartUpload.Parts
	if !sort.SliceIsSorted(parts, func(i, j int) bool {
		return aws.ToInt32(parts[i].PartNumber) < aws.ToInt32(parts[j].PartNumber)
	}) {
		return nil, operationError("CompleteMultipartUpload", &smithy.GenericAPIError{Code: "InvalidPartOrder"})
	}

	var buf bytes.Buffer
	for _, part := range parts {
		data, ok := upload.parts[aws.ToInt32(part.PartNumber)]
		if !ok {
			return nil, operationError("CompleteMultipartUpload", &smithy.GenericAPIError{Code: "InvalidPart"})
		}
		buf.Write(data)
	}
	f.objects[objectKey(upload.bucket, upload.key)] = buf.Bytes()
	delete(f.uploads, id)

	return &s3.CompleteMultipartUploadOutput{
		Bucket: aws.String(upload.bucket),
		Key:    aws.String(upload.key),
		ETag:   aws.String(fmt.Sprintf("\"complete-%d\"", len(parts))),
	}, nil
}

func (f *FakeBucket) AbortMultipartUpload(
	_ context.Context,
	params *s3.AbortMultipartUploadInput,
	_ ...func(*s3.Options),
) (*s3.AbortMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := aws.ToString(params.UploadId)
	delete(f.uploads, id)
	f.aborted = append(f.aborted, id)
	return &s3.AbortMultipartUploadOutput{}, nil
}

func operationError(op string, err error) error {
	return &smithy.OperationError{ServiceID: "S3", OperationName: op, Err: err}
}

// fakeBody serves data and optionally fails once failAt bytes were read.
type fakeBody struct {
	data     []byte
	off      int
	readSize     int
	failAt       int
	failWithData bool
	closed       bool
}

func (b *fakeBody) Read(p []byte) (int, error) {
	if b.closed {
		return 0, errors.New("read on closed body")
	}
	if b.failAt >= 0 && b.off >= b.failAt {
		return 0, ErrBodyReset
	}
	if b.off >= len(b.data) {
		return 0, io.EOF
	}
	end := len(b.data)
	if b.readSize > 0 {
		end = min(end, b.off+b.readSize)
	}
	if b.failAt >= 0 {
		end = min(end, b.failAt)
	}
	n := copy(p, b.data[b.off:end])
	b.off += n
	if b.failWithData && b.failAt >= 0 && b.off >= b.failAt {
		return n, ErrBodyReset
	}
	return n, nil
}

func (b *fakeBody) Close() error {
	b.closed = true
	return nil
}

// RandomData returns size pseudo-random bytes from a fixed seed.
func RandomData(size int) []byte {
	rng := rand.New(rand.NewSource(int64(size)))
	data := make([]byte, size)
	rng.Read(data)
	return data
}
