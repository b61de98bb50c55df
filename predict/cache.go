package predict

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheKey struct {
	generation uint64
	geoCode    string
	year       int
}

type cacheEntry struct {
	view *View
	err  error
}

// Cache memoizes prediction outcomes per snapshot generation. Views and
// advisory errors are cached; inference failures are not.
type Cache struct {
	entries *lru.Cache[cacheKey, cacheEntry]
	observe func(hit bool)

	mu         sync.Mutex
	generation uint64
}

// NewCache creates a cache holding up to size outcomes. observe, when not
// nil, is called once per lookup.
func NewCache(size int, observe func(hit bool)) (*Cache, error) {
	entries, err := lru.New[cacheKey, cacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("create prediction cache: %w", err)
	}
	return &Cache{entries: entries, observe: observe}, nil
}

// PredictFor answers from the cache or from p. generation identifies the
// dataset/model pair p runs on; moving to a new generation drops every
// entry of the previous ones.
func (c *Cache) PredictFor(generation uint64, p Predictor, geoCode string, year int) (*View, error) {
	c.advance(generation)

	key := cacheKey{generation: generation, geoCode: geoCode, year: year}
	if entry, ok := c.entries.Get(key); ok {
		c.record(true)
		return entry.view.Clone(), entry.err
	}
	c.record(false)

	view, err := p.PredictFor(geoCode, year)
	switch {
	case err == nil:
		c.entries.Add(key, cacheEntry{view: view.Clone()})
	case IsAdvisory(err):
		c.entries.Add(key, cacheEntry{err: err})
	}
	return view, err
}

// Len returns the number of cached outcomes.
func (c *Cache) Len() int {
	return c.entries.Len()
}

func (c *Cache) advance(generation uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation > c.generation {
		c.generation = generation
		c.entries.Purge()
	}
}

func (c *Cache) record(hit bool) {
	if c.observe != nil {
		c.observe(hit)
	}
}
