// Package cache implements the bounded file-content LRU described in
// spec.md §4.9: a process-wide map from absolute path to cached bytes,
// validated by comparing the file's current mtime against the mtime
// stored at put time, with entry-count (not byte-count) eviction.
//
// The recency list is grounded directly on the teacher's
// capacitor/pkg/cache/memory/lru.go doubly-linked-list LRU, adapted from
// a generic comparable-key list into one keyed by a file path plus a
// revalidating Get — the part a generic LRU (e.g. hashicorp/golang-lru)
// can't express without being wrapped into uselessness (see DESIGN.md).
package cache

import (
	"sync"
	"time"
)

// DefaultMaxEntries is used when Cache is constructed with a
// non-positive capacity (spec.md §4.9 "initialize(max)").
const DefaultMaxEntries = 100

// Entry is a cached file's content and the mtime it was read at.
type Entry struct {
	Content []byte
	ModTime time.Time
}

type node struct {
	path    string
	entry   Entry
	size    int
	prev    *node
	next    *node
}

// Cache is a bounded LRU over (path, mtime) -> content, guarded by a
// single mutex (spec.md §4.9, §5 "one mutex; all operations critical
// section").
type Cache struct {
	mu         sync.Mutex
	maxEntries int
	nodes      map[string]*node
	head, tail *node // head = most recently used, tail = least
	totalBytes int
}

// New creates a Cache with the given entry-count ceiling. Values <= 0
// fall back to DefaultMaxEntries (spec.md §4.9 initialize semantics).
func New(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Cache{
		maxEntries: maxEntries,
		nodes:      make(map[string]*node),
	}
}

// Get returns the cached entry for path if one exists and its stored
// mtime equals modTime exactly. A hit moves the entry to the front of
// the recency list. A stale or absent entry is a miss — the cache never
// serves content for a path whose on-disk mtime has changed (spec.md §3
// invariant).
func (c *Cache) Get(path string, modTime time.Time) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.nodes[path]
	if !ok || !n.entry.ModTime.Equal(modTime) {
		return Entry{}, false
	}
	c.moveToFront(n)
	return n.entry, true
}

// Put inserts or replaces the entry for path, evicting the
// least-recently-used entries while the map exceeds maxEntries
// (spec.md §4.9).
func (c *Cache) Put(path string, content []byte, modTime time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.nodes[path]; ok {
		c.remove(existing)
	}

	n := &node{path: path, entry: Entry{Content: content, ModTime: modTime}, size: len(content)}
	c.pushFront(n)
	c.nodes[path] = n
	c.totalBytes += n.size

	for len(c.nodes) > c.maxEntries {
		lru := c.tail
		if lru == nil {
			break
		}
		c.remove(lru)
		delete(c.nodes, lru.path)
		c.totalBytes -= lru.size
	}
}

// Len returns the number of entries currently cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.nodes)
}

// TotalBytes returns the sum of cached content sizes — tracked as a
// diagnostic only; eviction is driven by entry count (spec.md §4.9
// rationale).
func (c *Cache) TotalBytes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalBytes
}

func (c *Cache) pushFront(n *node) {
	n.prev = nil
	n.next = c.head
	if c.head != nil {
		c.head.prev = n
	}
	c.head = n
	if c.tail == nil {
		c.tail = n
	}
}

func (c *Cache) remove(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		c.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		c.tail = n.prev
	}
	n.prev, n.next = nil, nil
}

func (c *Cache) moveToFront(n *node) {
	if n == c.head {
		return
	}
	c.remove(n)
	c.pushFront(n)
}
