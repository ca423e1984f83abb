package summary

import (
	"context"
	"sync"
	"time"

	"vaultbot/internal/obs"
	"vaultbot/pkg/logx"
)

// FallbackText is what users see when there is no cached value to fall
// back on. The cache never surfaces a hard error to its callers.
const FallbackText = "⚠️ Metrics are temporarily unavailable. Please try again in a minute."

const defaultTTL = 60 * time.Second

// FetchFunc produces the formatted summary text from upstream.
type FetchFunc func(ctx context.Context) (string, error)

// Cache is the single-slot, single-flight TTL cache.
//
// state guards the slot; gate serializes upstream fetches. Callers that
// find the slot stale queue on the gate, re-check the slot after
// acquiring it, and share the outcome of whichever fetch ran while they
// waited instead of issuing their own.
type Cache struct {
	fetch FetchFunc
	ttl   time.Duration
	log   logx.Logger

	// now is a test hook; defaults to time.Now.
	now func() time.Time

	state      sync.RWMutex
	value      string
	computedAt time.Time
	has        bool
	gen        uint64
	lastErr    error

	gate sync.Mutex
}

func NewCache(fetch FetchFunc, ttl time.Duration, log logx.Logger) *Cache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache{fetch: fetch, ttl: ttl, log: log, now: time.Now}
}

// Get returns the summary text. The returned error reports what happened
// on the fetch path and may be ignored: the text is always renderable
// (fresh, stale, or FallbackText).
func (c *Cache) Get(ctx context.Context) (string, error) {
	if v, ok := c.freshValue(); ok {
		obs.CacheHits.Inc()
		return v, nil
	}

	c.state.RLock()
	startGen := c.gen
	c.state.RUnlock()

	c.gate.Lock()
	defer c.gate.Unlock()

	// Re-check after acquiring the gate: the caller that held it may have
	// refreshed the slot while we waited.
	if v, ok := c.freshValue(); ok {
		obs.CacheHits.Inc()
		return v, nil
	}
	c.state.RLock()
	fetchedWhileWaiting := c.gen != startGen
	stale, has, lastErr := c.value, c.has, c.lastErr
	c.state.RUnlock()
	if fetchedWhileWaiting {
		// That fetch failed (a success would have been fresh above).
		// Share its fallback rather than hammering the upstream again.
		return c.fallback(stale, has, lastErr)
	}

	obs.CacheFetches.Inc()
	v, err := c.fetch(ctx)

	c.state.Lock()
	c.gen++
	c.lastErr = err
	if err == nil {
		c.value = v
		c.computedAt = c.now()
		c.has = true
	}
	stale, has = c.value, c.has
	c.state.Unlock()

	if err != nil {
		c.log.Warn("summary fetch failed", logx.Err(err), logx.Bool("stale_available", has))
		return c.fallback(stale, has, err)
	}
	return v, nil
}

// Prime fetches once to warm the slot. Failures are not fatal; the first
// user request will retry.
func (c *Cache) Prime(ctx context.Context) {
	if _, err := c.Get(ctx); err != nil {
		c.log.Debug("summary prime skipped", logx.Err(err))
	}
}

func (c *Cache) freshValue() (string, bool) {
	c.state.RLock()
	defer c.state.RUnlock()
	if c.has && c.now().Sub(c.computedAt) < c.ttl {
		return c.value, true
	}
	return "", false
}

func (c *Cache) fallback(stale string, has bool, cause error) (string, error) {
	if has {
		obs.CacheStale.Inc()
		return stale, cause
	}
	return FallbackText, cause
}
