package velo

import (
	"container/list"
	"sync"
	"time"
)

// CacheConfig contains the tunables of the template cache.
type CacheConfig struct {
	// MaxSize is the maximum number of templates to cache. 0 disables
	// caching.
	MaxSize int
	// TTL is the time-to-live for cached templates. 0 means no
	// expiration.
	TTL time.Duration
}

// TemplateCache keeps parsed templates keyed by resource name, with LRU
// eviction and optional expiry. Parsed templates are immutable, so a
// cached *Template may be handed to any number of goroutines.
type TemplateCache struct {
	mu     sync.Mutex
	cache  map[string]*cacheEntry
	lru    *list.List
	config CacheConfig
}

type cacheEntry struct {
	key      string
	template *Template
	expiry   time.Time
	element  *list.Element
}

// NewTemplateCache creates a cache sized from the global configuration.
func NewTemplateCache() *TemplateCache {
	config := GetGlobalConfig()
	return NewTemplateCacheWithConfig(CacheConfig{
		MaxSize: config.CacheMaxSize,
		TTL:     config.CacheTTL,
	})
}

// NewTemplateCacheWithConfig creates a cache with the given configuration.
func NewTemplateCacheWithConfig(config CacheConfig) *TemplateCache {
	return &TemplateCache{
		cache:  make(map[string]*cacheEntry),
		lru:    list.New(),
		config: config,
	}
}

// GetOrParse returns the cached template for key, calling load to parse
// it on a miss or after expiry. With caching disabled every call loads.
func (tc *TemplateCache) GetOrParse(key string, load func() (*Template, error)) (*Template, error) {
	if tc.config.MaxSize == 0 {
		return load()
	}

	if t, ok := tc.Get(key); ok {
		return t, nil
	}

	t, err := load()
	if err != nil {
		return nil, err
	}
	tc.Set(key, t)
	return t, nil
}

// Get returns the cached template for key, refreshing its LRU position.
func (tc *TemplateCache) Get(key string) (*Template, bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	entry, ok := tc.cache[key]
	if !ok {
		return nil, false
	}
	if tc.config.TTL > 0 && time.Now().After(entry.expiry) {
		tc.removeLocked(entry)
		return nil, false
	}
	tc.lru.MoveToFront(entry.element)
	return entry.template, true
}

// Set stores a template under key, evicting the least recently used
// entry when the cache is full.
func (tc *TemplateCache) Set(key string, template *Template) {
	if tc.config.MaxSize == 0 {
		return
	}

	tc.mu.Lock()
	defer tc.mu.Unlock()

	if entry, ok := tc.cache[key]; ok {
		entry.template = template
		if tc.config.TTL > 0 {
			entry.expiry = time.Now().Add(tc.config.TTL)
		}
		tc.lru.MoveToFront(entry.element)
		return
	}

	for tc.lru.Len() >= tc.config.MaxSize {
		oldest := tc.lru.Back()
		if oldest == nil {
			break
		}
		tc.removeLocked(oldest.Value.(*cacheEntry))
	}

	entry := &cacheEntry{key: key, template: template}
	if tc.config.TTL > 0 {
		entry.expiry = time.Now().Add(tc.config.TTL)
	}
	entry.element = tc.lru.PushFront(entry)
	tc.cache[key] = entry
}

// Remove drops the entry for key, if present.
func (tc *TemplateCache) Remove(key string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if entry, ok := tc.cache[key]; ok {
		tc.removeLocked(entry)
	}
}

// Clear drops all cached templates.
func (tc *TemplateCache) Clear() {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	tc.cache = make(map[string]*cacheEntry)
	tc.lru.Init()
}

// Size reports the number of cached templates.
func (tc *TemplateCache) Size() int {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.lru.Len()
}

func (tc *TemplateCache) removeLocked(entry *cacheEntry) {
	delete(tc.cache, entry.key)
	tc.lru.Remove(entry.element)
}
