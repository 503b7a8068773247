// Package cache holds resolved lookups so repeated row evaluations against
// the same data never rescan a file, including lookups that resolved to
// "not found", which are the expensive ones to repeat.
package cache

import (
	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	"github.com/lblanes25/smartlookup/internal/types"
)

// pruneFraction of the oldest entries is dropped when the cache fills.
const pruneFraction = 0.1

// Key identifies one resolved lookup. File is kept in the clear so every
// entry for an unloaded file can be purged; the rest of the composite
// (columns and value) is collapsed into an xxhash digest. Smart-mode keys
// use an empty File plus a namespace tag inside the digest, so they can
// never collide with column-pair keys for the same value.
type Key struct {
	File   string
	Digest uint64
}

func valueToken(v types.Value) string {
	key, ok := v.Key()
	if !ok {
		return "null"
	}
	return key
}

// PairKey builds the key for an exact (file, search, return, value) lookup.
func PairKey(file, searchCol, returnCol string, value types.Value) Key {
	d := xxhash.New()
	d.WriteString("pair\x00")
	d.WriteString(searchCol)
	d.WriteString("\x00")
	d.WriteString(returnCol)
	d.WriteString("\x00")
	d.WriteString(valueToken(value))
	return Key{File: file, Digest: d.Sum64()}
}

// SmartKey builds the key for a single-column smart lookup. The source file
// is not part of the key because smart resolution spans files.
func SmartKey(returnCol string, value types.Value) Key {
	d := xxhash.New()
	d.WriteString("smart\x00")
	d.WriteString(returnCol)
	d.WriteString("\x00")
	d.WriteString(valueToken(value))
	return Key{Digest: d.Sum64()}
}

// ResultCache is a bounded insertion-ordered cache. Eviction is FIFO with
// periodic pruning: when an insert would exceed the bound, the oldest 10%
// of entries go first. Hits do not reorder entries; this is not an LRU.
// Row-batch validation repeats the same small key set within a batch, so
// recency tracking would buy nothing.
//
// A stored null value means "checked, absent". The miss case (never
// checked) is the second return of Get.
type ResultCache struct {
	maxSize int
	entries map[Key]types.Value
	order   []Key

	hits   int64
	misses int64

	log zerolog.Logger
}

// New creates a cache bounded at maxSize entries.
func New(maxSize int, log zerolog.Logger) *ResultCache {
	if maxSize < 1 {
		maxSize = 1
	}
	return &ResultCache{
		maxSize: maxSize,
		entries: make(map[Key]types.Value),
		log:     log,
	}
}

// Get returns the cached result and whether the lookup was ever resolved.
// A (null, true) return is a confirmed absence.
func (c *ResultCache) Get(k Key) (types.Value, bool) {
	v, ok := c.entries[k]
	if ok {
		c.hits++
		return v, true
	}
	c.misses++
	return types.Null(), false
}

// Peek is Get without touching the hit/miss counters.
func (c *ResultCache) Peek(k Key) (types.Value, bool) {
	v, ok := c.entries[k]
	return v, ok
}

// Put stores a resolved lookup, pruning the oldest entries first when the
// cache is full. Re-putting an existing key updates the value in place and
// keeps its insertion position.
func (c *ResultCache) Put(k Key, v types.Value) {
	if _, exists := c.entries[k]; exists {
		c.entries[k] = v
		return
	}
	if len(c.entries) >= c.maxSize {
		c.prune()
	}
	c.entries[k] = v
	c.order = append(c.order, k)
}

// prune drops the oldest ~10% of live entries.
func (c *ResultCache) prune() {
	target := int(float64(c.maxSize) * pruneFraction)
	if target < 1 {
		target = 1
	}
	removed := 0
	i := 0
	for ; i < len(c.order) && removed < target; i++ {
		if _, live := c.entries[c.order[i]]; live {
			delete(c.entries, c.order[i])
			removed++
		}
	}
	c.order = c.order[i:]
	c.log.Debug().Int("removed", removed).Msg("cache pruned")
}

// PurgeFile removes every entry tied to path. Smart-mode entries do not
// identify their source file, so they are dropped wholesale; stale smart
// results after an unload would be wrong answers.
func (c *ResultCache) PurgeFile(path string) {
	survivors := c.order[:0]
	for _, k := range c.order {
		if _, live := c.entries[k]; !live {
			continue
		}
		if k.File == path || k.File == "" {
			delete(c.entries, k)
			continue
		}
		survivors = append(survivors, k)
	}
	c.order = survivors
}

// Clear empties the cache and resets the statistics.
func (c *ResultCache) Clear() {
	c.entries = make(map[Key]types.Value)
	c.order = nil
	c.hits = 0
	c.misses = 0
}

// Len returns the number of live entries.
func (c *ResultCache) Len() int { return len(c.entries) }

// Hits returns the running hit counter.
func (c *ResultCache) Hits() int64 { return c.hits }

// Misses returns the running miss counter.
func (c *ResultCache) Misses() int64 { return c.misses }

// HitRate returns hits/(hits+misses), or 0 before any lookup.
func (c *ResultCache) HitRate() float64 {
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total)
}
