package roles

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultFetchTimeout bounds a single source fetch.
const DefaultFetchTimeout = 10 * time.Second

// Cache is a Source that remembers another Source's answers.
//
// Concurrent lookups for the same uncached name share one fetch. The fetch
// is detached from any single caller's cancellation so one caller giving up
// does not fail the others; it is bounded by the fetch timeout instead.
// Failed fetches are not stored.
type Cache struct {
	source       Source
	store        Store
	flights      singleflight.Group
	fetchTimeout time.Duration
	observer     CacheObserver
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithStore sets the backing store (default: an in-memory store with no expiry).
func WithStore(store Store) CacheOption {
	return func(c *Cache) {
		c.store = store
	}
}

// WithFetchTimeout bounds each source fetch.
func WithFetchTimeout(d time.Duration) CacheOption {
	return func(c *Cache) {
		c.fetchTimeout = d
	}
}

// WithCacheObserver sets the lookup observer.
func WithCacheObserver(observer CacheObserver) CacheOption {
	return func(c *Cache) {
		c.observer = observer
	}
}

// NewCache wraps source with a cache.
func NewCache(source Source, opts ...CacheOption) *Cache {
	c := &Cache{
		source:       source,
		fetchTimeout: DefaultFetchTimeout,
		observer:     &NoOpCacheObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.store == nil {
		c.store = NewMemoryStore(0, 0)
	}
	return c
}

// Roles returns the cached roles for name, fetching them on a miss.
func (c *Cache) Roles(ctx context.Context, name string) ([]string, error) {
	ctx, probe := c.observer.LookupStarted(ctx, name)
	defer probe.End()

	roles, ok, err := c.store.Get(ctx, name)
	if err != nil {
		probe.StoreFailed(err)
	} else if ok {
		probe.Hit(len(roles))
		return roles, nil
	}

	probe.Miss()

	ch := c.flights.DoChan(name, func() (any, error) {
		return c.fetch(context.WithoutCancel(ctx), name, probe)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			probe.FetchFailed(res.Err)
			return nil, res.Err
		}
		fetched := res.Val.([]string)
		probe.Fetched(len(fetched), res.Shared)
		return append([]string(nil), fetched...), nil
	}
}

// fetch runs inside the flight for name. The store is checked again because
// a previous flight may have finished between the caller's miss and now.
func (c *Cache) fetch(ctx context.Context, name string, probe CacheProbe) ([]string, error) {
	if c.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.fetchTimeout)
		defer cancel()
	}

	if roles, ok, err := c.store.Get(ctx, name); err == nil && ok {
		return roles, nil
	}

	roles, err := c.source.Roles(ctx, name)
	if err != nil {
		return nil, err
	}
	roles = clean(roles)

	if err := c.store.Set(ctx, name, roles); err != nil {
		probe.StoreFailed(err)
	}
	return roles, nil
}
