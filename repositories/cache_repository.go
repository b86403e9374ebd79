package repositories

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/karlseguin/ccache/v3"
	"go.uber.org/zap"

	"listings-api/dto"
)

// CachePrefix starts every search cache key.
const CachePrefix = "search:"

const generationKey = "search-generation"

// CacheRepository is the cache-aside store for search results: a local
// ccache in front of an optional shared memcached.
type CacheRepository interface {
	Get(key string) (*dto.SearchResponse, bool)
	// Stamp records the current generations. Take it before reading the
	// database and hand it to Set.
	Stamp() CacheStamp
	// Set stores a result unless the cache was invalidated after stamp.
	Set(key string, stamp CacheStamp, response *dto.SearchResponse)
	// Invalidate drops every cached search result.
	Invalidate() error
	// InvalidateLocal drops only this process's entries.
	InvalidateLocal() int
}

// CacheOptions configures the two tiers. An empty MemcachedHost keeps the
// cache local only.
type CacheOptions struct {
	LocalTTL      time.Duration
	LocalMaxSize  int64
	MemcachedHost string
	MemcachedTTL  time.Duration
}

// CacheStamp is the pair of cache generations seen by a reader.
type CacheStamp struct {
	local     uint64
	shared    uint64
	hasShared bool
}

// cacheRepository implements CacheRepository with two levels.
type cacheRepository struct {
	mu              sync.Mutex
	localGen        uint64
	localCache      *ccache.Cache[*dto.SearchResponse]
	memcachedClient *memcache.Client
	localTTL        time.Duration
	memcachedTTL    time.Duration
	logger          *zap.Logger
}

func NewCacheRepository(opts CacheOptions, logger *zap.Logger) CacheRepository {
	if opts.LocalTTL <= 0 {
		opts.LocalTTL = 5 * time.Minute
	}
	if opts.LocalMaxSize <= 0 {
		opts.LocalMaxSize = 1000
	}
	if opts.MemcachedTTL <= 0 {
		opts.MemcachedTTL = 15 * time.Minute
	}

	r := &cacheRepository{
		localCache:   ccache.New(ccache.Configure[*dto.SearchResponse]().MaxSize(opts.LocalMaxSize)),
		localTTL:     opts.LocalTTL,
		memcachedTTL: opts.MemcachedTTL,
		logger:       logger,
	}
	if opts.MemcachedHost != "" {
		r.memcachedClient = memcache.New(opts.MemcachedHost)
		logger.Info("search cache uses memcached", zap.String("host", opts.MemcachedHost))
	}
	return r
}

// Get looks in the local cache first, then memcached.
func (r *cacheRepository) Get(key string) (*dto.SearchResponse, bool) {
	if item := r.localCache.Get(key); item != nil && !item.Expired() {
		r.logger.Debug("cache hit", zap.String("tier", "local"), zap.String("key", key))
		return item.Value(), true
	}
	if r.memcachedClient == nil {
		return nil, false
	}

	r.mu.Lock()
	localGen := r.localGen
	r.mu.Unlock()

	generation, err := r.generation()
	if err != nil {
		r.logger.Warn("memcached generation lookup failed", zap.Error(err))
		return nil, false
	}
	item, err := r.memcachedClient.Get(sharedKey(key, generation))
	if err != nil {
		if !errors.Is(err, memcache.ErrCacheMiss) {
			r.logger.Warn("memcached get failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}

	var response dto.SearchResponse
	if err := json.Unmarshal(item.Value, &response); err != nil {
		r.logger.Warn("corrupt memcached entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	r.mu.Lock()
	if r.localGen == localGen {
		r.localCache.Set(key, &response, r.localTTL)
	}
	r.mu.Unlock()
	r.logger.Debug("cache hit", zap.String("tier", "memcached"), zap.String("key", key))
	return &response, true
}

func (r *cacheRepository) Stamp() CacheStamp {
	r.mu.Lock()
	stamp := CacheStamp{local: r.localGen}
	r.mu.Unlock()
	if r.memcachedClient == nil {
		return stamp
	}
	generation, err := r.generation()
	if err != nil {
		r.logger.Warn("memcached generation lookup failed", zap.Error(err))
		return stamp
	}
	stamp.shared, stamp.hasShared = generation, true
	return stamp
}

// Set stores a result in both tiers. The shared entry is written under the
// stamped generation, so a result computed before an invalidation is never
// read back.
func (r *cacheRepository) Set(key string, stamp CacheStamp, response *dto.SearchResponse) {
	r.mu.Lock()
	stale := stamp.local != r.localGen
	if !stale {
		r.localCache.Set(key, response, r.localTTL)
	}
	r.mu.Unlock()
	if stale {
		r.logger.Debug("stale search result not cached", zap.String("key", key))
		return
	}
	if r.memcachedClient == nil || !stamp.hasShared {
		return
	}

	data, err := json.Marshal(response)
	if err != nil {
		r.logger.Warn("marshal cache entry failed", zap.String("key", key), zap.Error(err))
		return
	}
	err = r.memcachedClient.Set(&memcache.Item{
		Key:        sharedKey(key, stamp.shared),
		Value:      data,
		Expiration: int32(r.memcachedTTL / time.Second),
	})
	if err != nil {
		r.logger.Warn("memcached set failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate clears the local tier and bumps the memcached generation so
// every instance stops reading the old shared entries.
func (r *cacheRepository) Invalidate() error {
	r.InvalidateLocal()
	if r.memcachedClient == nil {
		return nil
	}
	_, err := r.memcachedClient.Increment(generationKey, 1)
	if errors.Is(err, memcache.ErrCacheMiss) {
		err = r.memcachedClient.Add(&memcache.Item{Key: generationKey, Value: []byte("1")})
		if errors.Is(err, memcache.ErrNotStored) {
			// another instance created it first
			_, err = r.memcachedClient.Increment(generationKey, 1)
		}
	}
	if err != nil {
		return fmt.Errorf("bump cache generation: %w", err)
	}
	return nil
}

func (r *cacheRepository) InvalidateLocal() int {
	r.mu.Lock()
	r.localGen++
	dropped := r.localCache.DeletePrefix(CachePrefix)
	r.mu.Unlock()
	r.logger.Debug("search cache invalidated", zap.Int("local_entries", dropped))
	return dropped
}

func (r *cacheRepository) generation() (uint64, error) {
	item, err := r.memcachedClient.Get(generationKey)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(string(item.Value), 10, 64)
}

func sharedKey(key string, generation uint64) string {
	return fmt.Sprintf("%s|g%d", key, generation)
}
