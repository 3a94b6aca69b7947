package stream

import (
	"context"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectAPI is the part of the S3 client a Reader needs.
type ObjectAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

var _ ObjectAPI = (*s3.Client)(nil)

// Puller is the consumer contract: Pull fills buf with the next bytes of the
// stream and returns (0, nil) once the stream is exhausted.
type Puller interface {
	Pull(ctx context.Context, buf []byte) (int, error)
}

// Object identifies a remote object and its size.
type Object struct {
	Bucket string
	Key    string
	Size   int64
}
