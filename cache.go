package main

import (
	"context"
	"github.com/allegro/bigcache/v3"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/marshaler"
	bigCacheStore "github.com/eko/gocache/store/bigcache/v4"
	"s3stream/config"
	"time"
)

// newSizeCache returns the object size cache, or nil when caching is off.
func newSizeCache(ctx context.Context, cfg config.Cache) (*marshaler.Marshaler, error) {
	if !cfg.Activated {
		return nil, nil
	}
	cacheClient, err := bigcache.New(ctx, bigcache.DefaultConfig(time.Duration(cfg.Time)*time.Second))
	if err != nil {
		return nil, err
	}
	cacheStore := bigCacheStore.NewBigcache(cacheClient)
	return marshaler.New(cache.New[any](cacheStore)), nil
}
