// Package fieldcache builds dense arrays of typed field values, indexed by
// document number, for scoring over stored field values.
package fieldcache

import (
	"fmt"
	"strconv"
	"sync"

	"sift/internal/segment"
)

// Reader is the read surface the cache fills arrays from. Sealed segment
// snapshots and builder views both satisfy it.
type Reader interface {
	Key() string
	MaxDoc() uint64
	Terms(field string) ([]string, error)
	Postings(term, field string) ([]segment.Posting, error)
}

type cacheKey struct {
	reader string
	field  string
	kind   string
}

// Cache memoizes value arrays per (reader, field, kind). Readers with an
// empty key are mutable and are rebuilt on every call instead of cached.
type Cache struct {
	mu      sync.RWMutex
	entries map[cacheKey]any
}

func New() *Cache {
	return &Cache{entries: make(map[cacheKey]any)}
}

// Floats returns the field's values parsed as float64. Documents without a
// parsable value hold zero. A nil parse uses strconv.ParseFloat.
func (c *Cache) Floats(r Reader, field string, parse func(string) (float64, error)) ([]float64, error) {
	if parse == nil {
		parse = func(s string) (float64, error) { return strconv.ParseFloat(s, 64) }
	}
	return cached(c, r, field, "floats", parse)
}

// Ints returns the field's values parsed as int64. Documents without a
// parsable value hold zero. A nil parse uses strconv.ParseInt base 10.
func (c *Cache) Ints(r Reader, field string, parse func(string) (int64, error)) ([]int64, error) {
	if parse == nil {
		parse = func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) }
	}
	return cached(c, r, field, "ints", parse)
}

// Strings returns the field's values as-is. Documents without a value hold
// the empty string. A nil parse keeps terms unchanged.
func (c *Cache) Strings(r Reader, field string, parse func(string) (string, error)) ([]string, error) {
	if parse == nil {
		parse = func(s string) (string, error) { return s, nil }
	}
	return cached(c, r, field, "strings", parse)
}

// Evict drops every cached array for the given reader key. Called when a
// segment is retired so its arrays do not outlive it.
func (c *Cache) Evict(readerKey string) {
	if readerKey == "" {
		return
	}
	c.mu.Lock()
	for key := range c.entries {
		if key.reader == readerKey {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}

// cached wraps buildValues with the memo lookup. On a racing double build
// the first stored entry wins.
func cached[T any](c *Cache, r Reader, field, kind string, parse func(string) (T, error)) ([]T, error) {
	key := cacheKey{reader: r.Key(), field: field, kind: kind}
	if key.reader == "" {
		return buildValues(r, field, parse)
	}

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return entry.([]T), nil
	}

	values, err := buildValues(r, field, parse)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if entry, ok := c.entries[key]; ok {
		values = entry.([]T)
	} else {
		c.entries[key] = values
	}
	c.mu.Unlock()
	return values, nil
}

// buildValues walks the field's term dictionary and writes each term's
// parsed value at every document carrying it. Terms the parser rejects are
// skipped, leaving the zero value in place.
func buildValues[T any](r Reader, field string, parse func(string) (T, error)) ([]T, error) {
	values := make([]T, r.MaxDoc())
	terms, err := r.Terms(field)
	if err != nil {
		return nil, fmt.Errorf("terms of %q: %w", field, err)
	}
	for _, term := range terms {
		v, err := parse(term)
		if err != nil {
			continue
		}
		postings, err := r.Postings(term, field)
		if err != nil {
			return nil, fmt.Errorf("postings of %q: %w", term, err)
		}
		for _, p := range postings {
			values[p.DocNum] = v
		}
	}
	return values, nil
}
