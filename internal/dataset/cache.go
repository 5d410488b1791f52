package dataset

import (
	"fmt"
	"strings"
	"sync"
)

// Cache shares dataset handles by construction key for the life of the
// process. The key must fully determine iterator behavior: two logical
// datasets colliding on one key is a caller bug the cache cannot detect.
// Entries are never evicted; the number of distinct dataset configurations
// is bounded by family diversity, not by sampled instance count.
type Cache struct {
	mu      sync.Mutex
	handles map[string]*Handle
}

func NewCache() *Cache {
	return &Cache{handles: make(map[string]*Handle)}
}

// Handle returns the cached handle for key, building it on first use. All
// later calls with an equal key return the same handle and therefore the
// same underlying iterator objects.
func (c *Cache) Handle(key string, build SplitBuilder) (*Handle, error) {
	if strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("cache key is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if handle, ok := c.handles[key]; ok {
		return handle, nil
	}
	handle, err := Build(build)
	if err != nil {
		return nil, fmt.Errorf("build dataset %s: %w", key, err)
	}
	c.handles[key] = handle
	return handle, nil
}

// Len reports the number of cached handles.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handles)
}

// CacheKey formats a constructor name and its arguments into a cache key.
// Arguments must fully determine the dataset's behavior.
func CacheKey(name string, args ...any) string {
	if len(args) == 0 {
		return name
	}
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		parts = append(parts, fmt.Sprintf("%v", arg))
	}
	return name + "(" + strings.Join(parts, ",") + ")"
}

var sharedCache = struct {
	mu sync.Mutex
	c  *Cache
}{
	c: NewCache(),
}

// SharedHandle builds or returns a handle from the process-wide cache.
func SharedHandle(key string, build SplitBuilder) (*Handle, error) {
	sharedCache.mu.Lock()
	cache := sharedCache.c
	sharedCache.mu.Unlock()
	return cache.Handle(key, build)
}

// SharedCache returns the process-wide cache for injection into components
// that take an explicit cache.
func SharedCache() *Cache {
	sharedCache.mu.Lock()
	defer sharedCache.mu.Unlock()
	return sharedCache.c
}

func ResetSharedCacheForTests() {
	sharedCache.mu.Lock()
	defer sharedCache.mu.Unlock()
	sharedCache.c = NewCache()
}
