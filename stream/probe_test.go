package stream

import (
	"context"
	"errors"
	"github.com/allegro/bigcache/v3"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/marshaler"
	bigCacheStore "github.com/eko/gocache/store/bigcache/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"s3stream/internal/testutil"
	"testing"
	"time"
)

func TestProbe(t *testing.T) {
	bucket := testutil.NewFakeBucket()
	bucket.Put(testBucket, testKey, []byte("hello"))

	size, err := Probe(context.Background(), bucket, testBucket, testKey)
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)

	_, err = Probe(context.Background(), bucket, testBucket, "absent")
	assert.ErrorIs(t, err, ErrNotFound)

	bucket.OmitLength = true
	_, err = Probe(context.Background(), bucket, testBucket, testKey)
	assert.ErrorIs(t, err, ErrSizeUnavailable)
}

func TestProbe_NegativeLength(t *testing.T) {
	api := &testutil.MockS3Client{
		HeadObjectFunc: func(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
			return &s3.HeadObjectOutput{ContentLength: aws.Int64(-1)}, nil
		},
	}

	_, err := Probe(context.Background(), api, testBucket, testKey)
	assert.ErrorIs(t, err, ErrSizeUnavailable)
}

type countingProber struct {
	calls int
	size  int64
	err   error
}

func (p *countingProber) Size(context.Context, string, string) (int64, error) {
	p.calls++
	return p.size, p.err
}

func newTestCache(t *testing.T) *marshaler.Marshaler {
	t.Helper()
	client, err := bigcache.New(context.Background(), bigcache.DefaultConfig(time.Minute))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return marshaler.New(cache.New[any](bigCacheStore.NewBigcache(client)))
}

func TestCachedProber(t *testing.T) {
	inner := &countingProber{size: 42}
	p := NewCachedProber(inner, newTestCache(t), time.Minute)

	for i := 0; i < 3; i++ {
		size, err := p.Size(context.Background(), testBucket, testKey)
		require.NoError(t, err)
		assert.Equal(t, int64(42), size)
	}
	assert.Equal(t, 1, inner.calls)

	_, err := p.Size(context.Background(), testBucket, "other")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachedProber_ErrorsAreNotCached(t *testing.T) {
	inner := &countingProber{err: newError("head", Object{Bucket: testBucket, Key: testKey}, ErrNotFound, errors.New("404"))}
	p := NewCachedProber(inner, newTestCache(t), 0)

	for i := 0; i < 2; i++ {
		_, err := p.Size(context.Background(), testBucket, testKey)
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, 2, inner.calls)
}

func TestReader_WithCachedProber(t *testing.T) {
	bucket := testutil.NewFakeBucket()
	bucket.Put(testBucket, testKey, []byte("cached object"))
	p := NewCachedProber(HeadProber{API: bucket}, newTestCache(t), time.Minute)

	for i := 0; i < 2; i++ {
		r, err := New(context.Background(), bucket, Config{Bucket: testBucket, Key: testKey, ChunkSize: 4}, WithProber(p))
		require.NoError(t, err)
		got, _ := pullAll(t, r, 16)
		assert.Equal(t, "cached object", string(got))
		require.NoError(t, r.Close())
	}
}
