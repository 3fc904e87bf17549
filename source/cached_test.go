package source

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tempohq/teamtempo/cache"
	"github.com/tempohq/teamtempo/errors"
	"github.com/tempohq/teamtempo/metrics"
)

type countingRepo struct {
	calls int
	err   error
}

func (r *countingRepo) Name() string { return "Counting" }

func (r *countingRepo) Fetch(_ context.Context, timePeriodDays int, progress metrics.ProgressFunc) (*metrics.FetchResult, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	if progress != nil {
		progress(5, 5, "Fetched 5 of 5 items")
	}
	return &metrics.FetchResult{
		Metrics:        []metrics.Metric{{ID: "counting-items", Source: "Counting", Value: 5}},
		TotalAvailable: 5,
		FetchedCount:   5,
		TimePeriodDays: timePeriodDays,
	}, nil
}

func TestCachedRepositoryShortCircuits(t *testing.T) {
	inner := &countingRepo{}
	repo := NewCachedRepository(inner,
		cache.New[*metrics.FetchResult](), time.Hour, zap.NewNop().Sugar())

	first, err := repo.Fetch(context.Background(), 90, nil)
	require.NoError(t, err)

	var progressCalls int
	second, err := repo.Fetch(context.Background(), 90,
		func(int, float64, string) { progressCalls++ })
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls, "second fetch must not touch the upstream")
	assert.Equal(t, first, second)
	assert.Zero(t, progressCalls, "cache hits emit no progress")
}

func TestCachedRepositoryKeyIncludesWindow(t *testing.T) {
	inner := &countingRepo{}
	repo := NewCachedRepository(inner,
		cache.New[*metrics.FetchResult](), time.Hour, zap.NewNop().Sugar())

	_, err := repo.Fetch(context.Background(), 30, nil)
	require.NoError(t, err)
	_, err = repo.Fetch(context.Background(), 90, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls, "different windows are different cache entries")
}

func TestCachedRepositoryDoesNotCacheFailures(t *testing.T) {
	inner := &countingRepo{err: errors.WithStack(errors.ErrSourceFetch)}
	repo := NewCachedRepository(inner,
		cache.New[*metrics.FetchResult](), time.Hour, zap.NewNop().Sugar())

	_, err := repo.Fetch(context.Background(), 90, nil)
	require.Error(t, err)

	inner.err = nil
	result, err := repo.Fetch(context.Background(), 90, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, 5, result.FetchedCount)
}

func TestCachedRepositoryExpiry(t *testing.T) {
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	c := cache.NewWithClock[*metrics.FetchResult](func() time.Time { return clock() })

	inner := &countingRepo{}
	repo := NewCachedRepository(inner, c, time.Hour, zap.NewNop().Sugar())

	_, err := repo.Fetch(context.Background(), 90, nil)
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = repo.Fetch(context.Background(), 90, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, inner.calls, "expired entry refetches")
}
