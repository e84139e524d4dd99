// Package snapshot holds the per-pool last-known price snapshot and
// the single-writer cache the price monitor keeps them in.
package snapshot

import (
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/arbitragedex/arbitragedex/pool"
)

// Price is the value captured per successful fetch of a pool's price,
// per spec.md §3. Raw per-protocol fields are optional and only one
// of Reserves/SqrtPriceX96/ActiveID is populated, matching the
// protocol the snapshot came from.
type Price struct {
	Pool          pool.Config
	Price         float64
	InversePrice  float64
	BlockNumber   uint64
	TimestampMs   int64
	Reserve0      *big.Int
	Reserve1      *big.Int
	Liquidity     *big.Int
	SqrtPriceX96  *big.Int
	ActiveID      *uint32
}

// entry is a cache slot: the latest snapshot (if any), the
// consecutive-error streak, and whether the pool currently sits past
// max_retries, per spec.md §4.D.
type entry struct {
	latest          *Price
	consecutiveErrs int
	stale           bool
	lastBlock       uint64
}

// Cache is the snapshot cache owned by the price monitor. Only the
// monitor's poll cycle writes to it (spec.md §4.D / §5); any other
// caller only reads.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*entry)}
}

func key(addr string) string {
	return strings.ToLower(addr)
}

// Upsert records a successful fetch, resetting the pool's
// consecutive-error counter to zero per spec.md §4.D. It reports
// whether the pool transitioned out of staleness (i.e. was stale
// before this call), so the caller can decide whether to clear a
// detector-side stale marker.
func (c *Cache) Upsert(addr string, price Price) (recovered bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key(addr)
	e, ok := c.entries[k]
	if !ok {
		e = &entry{}
		c.entries[k] = e
	}
	recovered = e.stale
	e.latest = &price
	e.consecutiveErrs = 0
	e.stale = false
	e.lastBlock = price.BlockNumber
	return recovered
}

// IncrementError bumps the pool's consecutive-error streak and
// reports whether this call is the crossing into staleness (the
// streak just reached maxRetries for the first time), per spec.md
// §4.D / §8 ("a stale event has been emitted exactly once").
func (c *Cache) IncrementError(addr string, maxRetries int) (crossedToStale bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key(addr)
	e, ok := c.entries[k]
	if !ok {
		e = &entry{}
		c.entries[k] = e
	}
	e.consecutiveErrs++
	if !e.stale && e.consecutiveErrs >= maxRetries {
		e.stale = true
		return true
	}
	return false
}

// MarkStale forces a pool into the stale state outside the normal
// error-counting path. Within this module only the tests call it.
func (c *Cache) MarkStale(addr string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key(addr)
	e, ok := c.entries[k]
	if !ok {
		e = &entry{}
		c.entries[k] = e
	}
	e.stale = true
}

// ResetError clears a pool's consecutive-error streak without
// recording a new snapshot.
func (c *Cache) ResetError(addr string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key(addr)]; ok {
		e.consecutiveErrs = 0
		e.stale = false
	}
}

// Get returns the latest snapshot for a pool, if any.
func (c *Cache) Get(addr string) (Price, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key(addr)]
	if !ok || e.latest == nil {
		return Price{}, false
	}
	return *e.latest, true
}

// IsStale reports whether the cache currently considers this pool
// stale (its error streak reached max_retries and no successful fetch
// has happened since).
func (c *Cache) IsStale(addr string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key(addr)]
	return ok && e.stale
}

// ErrorCount returns the pool's current consecutive-error streak.
func (c *Cache) ErrorCount(addr string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key(addr)]
	if !ok {
		return 0
	}
	return e.consecutiveErrs
}

// All returns every pool address currently tracked with a live
// snapshot, keyed by lowercased address.
func (c *Cache) All() map[string]Price {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]Price, len(c.entries))
	for k, e := range c.entries {
		if e.latest != nil {
			out[k] = *e.latest
		}
	}
	return out
}

// Fresh returns the snapshots captured on the most recent poll cycle:
// every pool whose latest snapshot's block number equals the cycle's
// block number, whose entry is not stale, and whose error streak is
// zero (a fetch that failed this cycle leaves it nonzero, so an older
// snapshot from the same block is not reused). The monitor computes
// this right after a poll so delta grouping only ever sees prices
// from the same cycle (spec.md §4.E step 3).
func Fresh(c *Cache, cycleBlock uint64) map[string]Price {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]Price)
	for k, e := range c.entries {
		if e.latest != nil && !e.stale && e.consecutiveErrs == 0 && e.lastBlock == cycleBlock {
			out[k] = *e.latest
		}
	}
	return out
}

// NowMs is a small seam so callers can stamp TimestampMs without this
// package reaching for time.Now() directly in more than one place.
func NowMs() int64 {
	return time.Now().UnixMilli()
}
