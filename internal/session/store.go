package session

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// Store holds live sessions.
type Store interface {
	// Put inserts or refreshes s.
	Put(s *Session)
	Get(id string) (*Session, bool)
	// Each calls fn for every live session until fn returns false.
	Each(fn func(*Session) bool)
	Count() int
}

// CacheStore is an in-memory Store whose entries expire after a period
// without Put. Expired entries are purged every cleanup interval.
type CacheStore struct {
	cache *cache.Cache
}

// NewCacheStore creates a CacheStore. onEvict, if not nil, is called with
// each session removed by expiry.
func NewCacheStore(idleTTL, cleanupInterval time.Duration, onEvict func(*Session)) *CacheStore {
	c := cache.New(idleTTL, cleanupInterval)
	if onEvict != nil {
		c.OnEvicted(func(_ string, v interface{}) {
			if s, ok := v.(*Session); ok {
				onEvict(s)
			}
		})
	}
	return &CacheStore{cache: c}
}

func (c *CacheStore) Put(s *Session) {
	c.cache.Set(s.ID, s, cache.DefaultExpiration)
}

func (c *CacheStore) Get(id string) (*Session, bool) {
	if x, found := c.cache.Get(id); found {
		return x.(*Session), true
	}
	return nil, false
}

func (c *CacheStore) Each(fn func(*Session) bool) {
	for _, item := range c.cache.Items() {
		s, ok := item.Object.(*Session)
		if !ok {
			continue
		}
		if !fn(s) {
			return
		}
	}
}

func (c *CacheStore) Count() int {
	return c.cache.ItemCount()
}
