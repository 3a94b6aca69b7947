package main

import (
	"context"
	"s3stream/stream"
)

// Provider opens objects of the configured bucket as streams.
type Provider interface {
	Open(ctx context.Context, key string) (*stream.Reader, error)
	OpenBucket(ctx context.Context, bucket, key string) (*stream.Reader, error)
}
