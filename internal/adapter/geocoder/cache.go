package geocoder

import (
	"container/list"
	"context"
	"strings"
	"sync"

	"github.com/saferoute/service-navigation/internal/domain/route"
)

// defaultCacheCapacity is the number of resolved places kept in memory.
const defaultCacheCapacity = 1024

type cacheEntry struct {
	key   string
	coord route.Coordinate
}

// CachingGeocoder is a bounded LRU in front of another Geocoder. Only
// successful lookups are cached. It's safe for concurrent use.
type CachingGeocoder struct {
	next     Geocoder
	mu       sync.Mutex
	m        map[string]*list.Element
	ll       *list.List
	capacity int
	// stats
	gets int
	hits int
}

// NewCachingGeocoder wraps next with an LRU of the given capacity.
func NewCachingGeocoder(next Geocoder, capacity int) *CachingGeocoder {
	if capacity <= 0 {
		capacity = defaultCacheCapacity
	}
	return &CachingGeocoder{
		next:     next,
		m:        make(map[string]*list.Element, capacity),
		ll:       list.New(),
		capacity: capacity,
	}
}

func cacheKey(placeText string) string {
	return strings.ToLower(strings.Join(strings.Fields(placeText), " "))
}

// Resolve serves from cache on hit, otherwise delegates and remembers the result.
func (c *CachingGeocoder) Resolve(ctx context.Context, placeText string) (route.Coordinate, error) {
	key := cacheKey(placeText)
	if coord, ok := c.get(key); ok {
		return coord, nil
	}

	coord, err := c.next.Resolve(ctx, placeText)
	if err != nil {
		return route.Coordinate{}, err
	}
	c.put(key, coord)
	return coord, nil
}

func (c *CachingGeocoder) get(key string) (route.Coordinate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gets++
	if el, ok := c.m[key]; ok {
		c.hits++
		c.ll.MoveToFront(el)
		return el.Value.(cacheEntry).coord, true
	}
	return route.Coordinate{}, false
}

func (c *CachingGeocoder) put(key string, coord route.Coordinate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.m[key]; ok {
		el.Value = cacheEntry{key: key, coord: coord}
		c.ll.MoveToFront(el)
		return
	}

	c.m[key] = c.ll.PushFront(cacheEntry{key: key, coord: coord})
	if c.ll.Len() > c.capacity {
		tail := c.ll.Back()
		delete(c.m, tail.Value.(cacheEntry).key)
		c.ll.Remove(tail)
	}
}

// Stats returns (gets, hits, size) snapshot under lock.
func (c *CachingGeocoder) Stats() (gets, hits, size int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gets, c.hits, c.ll.Len()
}
