// Copyright (c) Strands Labs & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package secrets

import (
	"context"
	"expvar"
	"sync"
	"time"

	"github.com/creachadair/mds/mapset"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultTTL is how long cached secrets are served before the next
// refresh check clears the cache wholesale.
const DefaultTTL = 300 * time.Second

// CacheConfig is the configuration for a Cache.
type CacheConfig struct {
	// Fetcher retrieves secrets from the store on cache misses.
	// It must be non-nil.
	Fetcher *Fetcher

	// TTL is the interval after which the refresh check clears the
	// cache. If zero or negative, DefaultTTL is used.
	TTL time.Duration

	// Prewarm lists secret ids re-fetched after a scheduled clear, so
	// that frequently used secrets are warm before the next request
	// needs them. Duplicates are ignored.
	Prewarm []string

	// Log is where cache activity is reported. If nil, logs are
	// discarded.
	Log *zerolog.Logger

	// Now is used to read the current time. If nil, time.Now is used.
	// It is intended for testing the refresh schedule.
	Now func() time.Time
}

func (c CacheConfig) ttl() time.Duration {
	if c.TTL <= 0 {
		return DefaultTTL
	}
	return c.TTL
}

func (c CacheConfig) log() zerolog.Logger {
	if c.Log == nil {
		return zerolog.Nop()
	}
	return *c.Log
}

func (c CacheConfig) now() func() time.Time {
	if c.Now == nil {
		return time.Now
	}
	return c.Now
}

// A Cache serves named secrets out of memory, delegating to a Fetcher
// on misses. Only successful fetches populate the cache, so an absent
// secret is retried at the store on every request. Entries never expire
// individually; the whole cache is cleared at once, either explicitly
// via Clear or on schedule via RefreshIfNeeded. A secret rotated in the
// store is therefore not observed until the next wholesale clear.
//
// A Cache is safe for concurrent use by multiple goroutines.
type Cache struct {
	fetcher *Fetcher
	ttl     time.Duration
	prewarm mapset.Set[string]
	log     zerolog.Logger
	now     func() time.Time

	mu          sync.Mutex
	m           map[string]Value
	lastRefresh time.Time

	// Metrics
	countHits      expvar.Int    // cache hits served
	countFetches   expvar.Int    // store fetches attempted
	countRefreshes expvar.Int    // scheduled cache clears
	latestRefresh  expvar.String // RFC3339Nano, in UTC
}

// NewCache constructs a cache with the given configuration.
// The Fetcher of the configuration must be set.
func NewCache(cfg CacheConfig) *Cache {
	if cfg.Fetcher == nil {
		panic("secrets: no fetcher is set")
	}
	return &Cache{
		fetcher: cfg.Fetcher,
		ttl:     cfg.ttl(),
		prewarm: mapset.New(cfg.Prewarm...),
		log:     cfg.log(),
		now:     cfg.now(),
		m:       make(map[string]Value),
	}
}

// Metrics returns a map of metrics for c. The caller is responsible for
// publishing the map to the metrics exporter.
func (c *Cache) Metrics() *expvar.Map {
	m := new(expvar.Map)
	m.Set("counter_cache_hit", &c.countHits)
	m.Set("counter_store_fetch", &c.countFetches)
	m.Set("counter_cache_refresh", &c.countRefreshes)
	m.Set("timestamp_latest_refresh", &c.latestRefresh)
	return m
}

// Get returns the named secret, serving it from the cache when present
// and otherwise fetching it from the store. A successful fetch is
// installed in the cache; an absent result is not, so the next call
// retries the store.
func (c *Cache) Get(ctx context.Context, id string) (Value, bool) {
	c.mu.Lock()
	if v, ok := c.m[id]; ok {
		c.mu.Unlock()
		c.countHits.Add(1)
		return v, true
	}
	c.mu.Unlock()

	c.countFetches.Add(1)
	v, ok := c.fetcher.Fetch(ctx, id)
	if !ok {
		return nil, false
	}
	c.mu.Lock()
	c.m[id] = v
	c.mu.Unlock()
	return v, true
}

// GetFresh returns the named secret directly from the store, bypassing
// the cache in both directions: cached entries are ignored and the
// result is not installed.
func (c *Cache) GetFresh(ctx context.Context, id string) (Value, bool) {
	c.countFetches.Add(1)
	return c.fetcher.Fetch(ctx, id)
}

// Lookup returns the value stored under key in the named secret, or def
// if the secret is absent or lacks the key. An empty key returns the
// whole mapping (or def if the secret is absent).
func (c *Cache) Lookup(ctx context.Context, id, key string, def any) any {
	v, ok := c.Get(ctx, id)
	if !ok {
		return def
	}
	if key == "" {
		return v
	}
	if fv, ok := v[key]; ok {
		return fv
	}
	return def
}

// Clear empties the cache unconditionally. It is safe to call at any
// time, including on an already-empty cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.m)
	c.log.Debug().Msg("secrets cache cleared")
}

// RefreshIfNeeded clears the cache when the refresh interval has
// elapsed since the last clear, then pre-warms the configured secrets.
// It is meant to be invoked once per inbound request; outside of Lambda
// it does nothing. Pre-warm failures are logged by the fetcher and
// never propagate.
//
// The check is best effort: requests racing with the clear may still
// observe values fetched just before it.
func (c *Cache) RefreshIfNeeded(ctx context.Context) {
	if !IsLambdaEnvironment() {
		return
	}

	c.mu.Lock()
	now := c.now()
	if now.Sub(c.lastRefresh) <= c.ttl {
		c.mu.Unlock()
		return
	}
	clear(c.m)
	c.lastRefresh = now
	c.mu.Unlock()

	c.countRefreshes.Add(1)
	c.latestRefresh.Set(now.UTC().Format(time.RFC3339Nano))
	c.log.Debug().Msg("refreshing secrets cache")

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for id := range c.prewarm {
		g.Go(func() error {
			c.Get(ctx, id)
			return nil
		})
	}
	g.Wait()
}
