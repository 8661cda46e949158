package app

import (
	"sync"

	"github.com/sigil-labs/prophet/internal/domain/model"
	"github.com/sigil-labs/prophet/pkg/metrics"
)

// cacheNode is a single entry in the eviction list.
type cacheNode struct {
	marketID string
	opp      *model.Opportunity
	next     *cacheNode
}

// resultCache keeps the most recent finished runs keyed by market id.
// Bounded: once full, the oldest entry is evicted. A new run for a market
// already present replaces the cached opportunity in place.
type resultCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheNode
	head    *cacheNode // most recently inserted
	maxSize int
}

func newResultCache(maxSize int) *resultCache {
	if maxSize <= 0 {
		maxSize = 10_000
	}
	return &resultCache{
		entries: make(map[string]*cacheNode),
		maxSize: maxSize,
	}
}

// Put stores a finished opportunity under its market id.
func (c *resultCache) Put(opp *model.Opportunity) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.entries[opp.Signal.MarketID]; ok {
		n.opp = opp
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	n := &cacheNode{marketID: opp.Signal.MarketID, opp: opp, next: c.head}
	c.head = n
	c.entries[n.marketID] = n
	metrics.UpdateCacheSize(len(c.entries))
}

// Get returns the cached opportunity for a market id, if present.
func (c *resultCache) Get(marketID string) (*model.Opportunity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n, ok := c.entries[marketID]
	if !ok {
		return nil, false
	}
	return n.opp, true
}

// Len returns the current number of cached runs.
func (c *resultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// evictOldest removes the tail of the insertion list.
// Must be called with c.mu held.
func (c *resultCache) evictOldest() {
	if c.head == nil {
		return
	}

	if c.head.next == nil {
		delete(c.entries, c.head.marketID)
		c.head = nil
		return
	}

	prev := c.head
	for prev.next.next != nil {
		prev = prev.next
	}
	delete(c.entries, prev.next.marketID)
	prev.next = nil
}
