package cachemanager

import (
	"context"
	"time"
)

// ReadThroughCache computes a value with fn on a miss and stores it.
// A nil cache or a zero ttl disables caching and always calls fn.
type ReadThroughCache[K ~string, V any, I any] struct {
	cache CacheManager[K, V]
	fn    func(ctx context.Context, input I) (V, error)
	ttl   time.Duration
}

// NewReadThroughCache wraps cache with the loader fn.
func NewReadThroughCache[K ~string, V any, I any](
	cache CacheManager[K, V],
	fn func(ctx context.Context, input I) (V, error),
	ttl time.Duration,
) *ReadThroughCache[K, V, I] {
	return &ReadThroughCache[K, V, I]{
		cache: cache,
		fn:    fn,
		ttl:   ttl,
	}
}

// Get returns the cached value for key, computing it from input on a miss.
// hit reports whether the value came from the cache. Errors from fn are
// returned and nothing is stored.
func (r *ReadThroughCache[K, V, I]) Get(ctx context.Context, key K, input I) (value V, hit bool, err error) {
	if r.cache == nil || r.ttl <= 0 {
		value, err = r.fn(ctx, input)
		return value, false, err
	}

	if value, ok := r.cache.Get(ctx, key); ok {
		return value, true, nil
	}

	value, err = r.fn(ctx, input)
	if err != nil {
		return value, false, err
	}

	r.cache.Set(ctx, key, value, r.ttl)
	return value, false, nil
}
