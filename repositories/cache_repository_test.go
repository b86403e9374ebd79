package repositories

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"listings-api/dto"
)

func TestCacheRepository_LocalOnly(t *testing.T) {
	cache := NewCacheRepository(CacheOptions{}, zap.NewNop())

	_, ok := cache.Get(CachePrefix + "a")
	assert.False(t, ok)

	cache.Set(CachePrefix+"a", cache.Stamp(), &dto.SearchResponse{TotalResults: 3, Page: 1})
	got, ok := cache.Get(CachePrefix + "a")
	require.True(t, ok)
	assert.EqualValues(t, 3, got.TotalResults)

	require.NoError(t, cache.Invalidate())
	_, ok = cache.Get(CachePrefix + "a")
	assert.False(t, ok)
}

func TestCacheRepository_InvalidateLocal(t *testing.T) {
	cache := NewCacheRepository(CacheOptions{}, zap.NewNop())
	cache.Set(CachePrefix+"a", cache.Stamp(), &dto.SearchResponse{Page: 1})
	cache.Set(CachePrefix+"b", cache.Stamp(), &dto.SearchResponse{Page: 2})

	assert.Equal(t, 2, cache.InvalidateLocal())
	assert.Zero(t, cache.InvalidateLocal())
}

func TestCacheRepository_StaleStampIsNotStored(t *testing.T) {
	cache := NewCacheRepository(CacheOptions{}, zap.NewNop())

	stamp := cache.Stamp()
	cache.InvalidateLocal()
	cache.Set(CachePrefix+"a", stamp, &dto.SearchResponse{TotalResults: 1})
	_, ok := cache.Get(CachePrefix + "a")
	assert.False(t, ok)

	stamp = cache.Stamp()
	require.NoError(t, cache.Invalidate())
	cache.Set(CachePrefix+"a", stamp, &dto.SearchResponse{TotalResults: 1})
	_, ok = cache.Get(CachePrefix + "a")
	assert.False(t, ok)

	cache.Set(CachePrefix+"a", cache.Stamp(), &dto.SearchResponse{TotalResults: 2})
	got, ok := cache.Get(CachePrefix + "a")
	require.True(t, ok)
	assert.EqualValues(t, 2, got.TotalResults)
}
