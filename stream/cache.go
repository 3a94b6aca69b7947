package stream

import (
	"context"
	"github.com/eko/gocache/lib/v4/marshaler"
	"github.com/eko/gocache/lib/v4/store"
	"github.com/sirupsen/logrus"
	"time"
)

// CachedProber remembers object sizes returned by another Prober. Only
// successful probes are cached.
type CachedProber struct {
	Prober Prober
	cache  *marshaler.Marshaler
	ttl    time.Duration
}

type sizeCache struct {
	Size int64
}

var _ Prober = &CachedProber{}

// NewCachedProber wraps p with cache. A ttl <= 0 keeps entries for the
// lifetime of the underlying store.
func NewCachedProber(p Prober, cache *marshaler.Marshaler, ttl time.Duration) *CachedProber {
	return &CachedProber{
		Prober: p,
		cache:  cache,
		ttl:    ttl,
	}
}

func (c *CachedProber) Size(ctx context.Context, bucket, key string) (int64, error) {
	cacheKey := "size_" + bucket + "/" + key

	var entry sizeCache
	if _, err := c.cache.Get(ctx, cacheKey, &entry); err == nil {
		return entry.Size, nil
	}

	size, err := c.Prober.Size(ctx, bucket, key)
	if err != nil {
		return 0, err
	}

	var opts []store.Option
	if c.ttl > 0 {
		opts = append(opts, store.WithExpiration(c.ttl))
	}
	if err := c.cache.Set(ctx, cacheKey, &sizeCache{Size: size}, opts...); err != nil {
		logrus.Errorln("Error setting cache", err)
	}
	return size, nil
}
