package stream

import (
	"context"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Prober learns the size of an object before it is streamed.
type Prober interface {
	Size(ctx context.Context, bucket, key string) (int64, error)
}

// HeadProber asks S3 for the object size with a HeadObject request.
type HeadProber struct {
	API ObjectAPI
}

var _ Prober = HeadProber{}

// Size returns the content length of bucket/key. Failures are not retried.
func (p HeadProber) Size(ctx context.Context, bucket, key string) (int64, error) {
	obj := Object{Bucket: bucket, Key: key}
	out, err := p.API.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if IsNotFound(err) {
			return 0, newError("head", obj, ErrNotFound, err)
		}
		return 0, newError("head", obj, ErrTransport, err)
	}
	if out.ContentLength == nil || *out.ContentLength < 0 {
		return 0, newError("head", obj, ErrSizeUnavailable, nil)
	}
	return *out.ContentLength, nil
}

// Probe returns the size of bucket/key using a HeadObject request.
func Probe(ctx context.Context, api ObjectAPI, bucket, key string) (int64, error) {
	return HeadProber{API: api}.Size(ctx, bucket, key)
}
