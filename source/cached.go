// Package source provides cross-source plumbing shared by the per-source
// clients, currently the caching decorator the composition root wraps every
// repository in.
package source

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tempohq/teamtempo/cache"
	"github.com/tempohq/teamtempo/metrics"
)

// CachedRepository wraps a source repository with the TTL cache: explicit
// composition, no runtime metaprogramming.
//
// A cache hit returns immediately with no progress callbacks and no upstream
// call. Only fully successful fetches are cached; failures are never stored.
type CachedRepository struct {
	inner metrics.SourceRepository
	cache *cache.Cache[*metrics.FetchResult]
	ttl   time.Duration
	log   *zap.SugaredLogger
}

// NewCachedRepository wraps inner with result caching under the given TTL
func NewCachedRepository(inner metrics.SourceRepository, c *cache.Cache[*metrics.FetchResult], ttl time.Duration, log *zap.SugaredLogger) *CachedRepository {
	return &CachedRepository{
		inner: inner,
		cache: c,
		ttl:   ttl,
		log:   log.With("source", inner.Name()),
	}
}

// Name implements metrics.SourceRepository
func (r *CachedRepository) Name() string {
	return r.inner.Name()
}

// Fetch implements metrics.SourceRepository
func (r *CachedRepository) Fetch(ctx context.Context, timePeriodDays int, progress metrics.ProgressFunc) (*metrics.FetchResult, error) {
	key := r.cacheKey(timePeriodDays)

	if cached, ok := r.cache.Get(key); ok {
		r.log.Debugw("Source cache hit", "key", key)
		return cached, nil
	}

	result, err := r.inner.Fetch(ctx, timePeriodDays, progress)
	if err != nil {
		return nil, err
	}

	r.cache.Set(key, result, r.ttl)
	r.log.Debugw("Source cache store", "key", key, "ttl", r.ttl)
	return result, nil
}

func (r *CachedRepository) cacheKey(timePeriodDays int) string {
	return fmt.Sprintf("%s:%d", r.inner.Name(), timePeriodDays)
}
