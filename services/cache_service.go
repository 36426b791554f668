package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fenilmodi00/ipo-tracker/models"
	"github.com/fenilmodi00/ipo-tracker/shared"
	"github.com/fenilmodi00/ipo-tracker/store"
	"github.com/sirupsen/logrus"
)

// CacheEntry represents a cached item with expiration
type CacheEntry struct {
	Data      interface{}
	ExpiresAt time.Time
}

func (ce *CacheEntry) isExpired(now time.Time) bool {
	return now.After(ce.ExpiresAt)
}

// CacheService is a TTL map with oldest-expiry eviction once maxSize is reached.
// Expired entries are swept by CleanupExpired, which the cache cleanup job calls.
type CacheService struct {
	cache      map[string]*CacheEntry
	mutex      sync.RWMutex
	defaultTTL time.Duration
	maxSize    int
	metrics    *shared.ServiceMetrics
	now        func() time.Time
}

// NewCacheService creates a cache with the default 5 minute TTL
func NewCacheService() *CacheService {
	return NewCacheServiceWithConfig(shared.CacheConfig{DefaultTTL: 5 * time.Minute, MaxSize: 1000}, nil)
}

// NewCacheServiceWithConfig creates a cache service with custom configuration
func NewCacheServiceWithConfig(cfg shared.CacheConfig, metrics *shared.ServiceMetrics) *CacheService {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 5 * time.Minute
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 1000
	}
	return &CacheService{
		cache:      make(map[string]*CacheEntry),
		defaultTTL: cfg.DefaultTTL,
		maxSize:    cfg.MaxSize,
		metrics:    metrics,
		now:        time.Now,
	}
}

// Get retrieves a value from cache
func (cs *CacheService) Get(key string) (interface{}, bool) {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	entry, exists := cs.cache[key]
	if !exists || entry.isExpired(cs.now()) {
		cs.metrics.RecordCacheLookup(false)
		return nil, false
	}

	cs.metrics.RecordCacheLookup(true)
	return entry.Data, true
}

// Set stores a value in cache with default TTL
func (cs *CacheService) Set(key string, value interface{}) {
	cs.SetWithTTL(key, value, cs.defaultTTL)
}

// SetWithTTL stores a value in cache with custom TTL
func (cs *CacheService) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	if _, exists := cs.cache[key]; !exists && len(cs.cache) >= cs.maxSize {
		cs.evictOldest()
	}

	cs.cache[key] = &CacheEntry{
		Data:      value,
		ExpiresAt: cs.now().Add(ttl),
	}
}

// evictOldest removes the entry closest to expiry
func (cs *CacheService) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, entry := range cs.cache {
		if oldestKey == "" || entry.ExpiresAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.ExpiresAt
		}
	}

	if oldestKey != "" {
		delete(cs.cache, oldestKey)
	}
}

// Delete removes a value from cache
func (cs *CacheService) Delete(key string) {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	delete(cs.cache, key)
}

// Clear removes all values from cache
func (cs *CacheService) Clear() {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	cs.cache = make(map[string]*CacheEntry)
}

// Size returns the number of items in cache
func (cs *CacheService) Size() int {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	return len(cs.cache)
}

// CleanupExpired removes expired entries and reports how many were dropped
func (cs *CacheService) CleanupExpired() int {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	now := cs.now()
	removed := 0
	for key, entry := range cs.cache {
		if entry.isExpired(now) {
			delete(cs.cache, key)
			removed++
		}
	}
	return removed
}

const ipoListCacheKey = "ipos:all"

func ipoCacheKey(id int64) string {
	return fmt.Sprintf("ipo:%d", id)
}

// CachedIPOStore wraps an IPOStore with read-through caching. Cached values are the
// stored records; callers always receive copies. Writes invalidate the affected keys.
type CachedIPOStore struct {
	store.IPOStore
	cache *CacheService
}

func NewCachedIPOStore(ipos store.IPOStore, cache *CacheService) *CachedIPOStore {
	return &CachedIPOStore{IPOStore: ipos, cache: cache}
}

func (c *CachedIPOStore) GetByID(ctx context.Context, id int64) (*models.IPO, error) {
	key := ipoCacheKey(id)
	if cached, found := c.cache.Get(key); found {
		if ipo, ok := cached.(*models.IPO); ok {
			return ipo.Clone(), nil
		}
	}

	ipo, err := c.IPOStore.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, ipo.Clone())
	return ipo, nil
}

func (c *CachedIPOStore) List(ctx context.Context) ([]models.IPO, error) {
	if cached, found := c.cache.Get(ipoListCacheKey); found {
		if ipos, ok := cached.([]models.IPO); ok {
			return cloneIPOs(ipos), nil
		}
	}

	ipos, err := c.IPOStore.List(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.Set(ipoListCacheKey, cloneIPOs(ipos))
	return ipos, nil
}

func (c *CachedIPOStore) Create(ctx context.Context, ipo *models.IPO) error {
	defer c.invalidate(0)
	return c.IPOStore.Create(ctx, ipo)
}

func (c *CachedIPOStore) Update(ctx context.Context, id int64, mutate func(*models.IPO) error) (*models.IPO, error) {
	defer c.invalidate(id)
	return c.IPOStore.Update(ctx, id, mutate)
}

func (c *CachedIPOStore) Delete(ctx context.Context, id int64) (*models.IPO, error) {
	defer c.invalidate(id)
	return c.IPOStore.Delete(ctx, id)
}

// invalidate drops the list and, for id > 0, the single-record entry
func (c *CachedIPOStore) invalidate(id int64) {
	c.cache.Delete(ipoListCacheKey)
	if id > 0 {
		c.cache.Delete(ipoCacheKey(id))
	}
	logrus.WithFields(logrus.Fields{
		"component": "CachedIPOStore",
		"ipo_id":    id,
	}).Debug("Invalidated catalog cache")
}

func cloneIPOs(ipos []models.IPO) []models.IPO {
	out := make([]models.IPO, len(ipos))
	for i := range ipos {
		out[i] = *ipos[i].Clone()
	}
	return out
}
