package roles

import "context"

// CacheObserver creates probes for role cache lookups.
type CacheObserver interface {
	LookupStarted(ctx context.Context, name string) (context.Context, CacheProbe)
}

// CacheProbe reports the progress of one role lookup.
type CacheProbe interface {
	// Hit is called when the store already held the name.
	Hit(count int)

	// Miss is called when the name must be fetched.
	Miss()

	// Fetched is called after the source answered. shared is true when
	// the result came from another caller's in-flight fetch.
	Fetched(count int, shared bool)

	// FetchFailed is called when the source failed. Nothing is stored.
	FetchFailed(err error)

	// StoreFailed is called when the store could not be read or written.
	// The lookup continues as if the store were empty.
	StoreFailed(err error)

	End()
}

type compositeCacheObserver struct {
	observers []CacheObserver
}

// NewCompositeCacheObserver creates an observer that delegates to multiple
// observers in order.
func NewCompositeCacheObserver(observers ...CacheObserver) CacheObserver {
	return &compositeCacheObserver{observers: observers}
}

func (c *compositeCacheObserver) LookupStarted(ctx context.Context, name string) (context.Context, CacheProbe) {
	probes := make([]CacheProbe, len(c.observers))
	for i, obs := range c.observers {
		ctx, probes[i] = obs.LookupStarted(ctx, name)
	}
	return ctx, &compositeCacheProbe{probes: probes}
}

type compositeCacheProbe struct {
	probes []CacheProbe
}

func (c *compositeCacheProbe) Hit(count int) {
	for _, p := range c.probes {
		p.Hit(count)
	}
}

func (c *compositeCacheProbe) Miss() {
	for _, p := range c.probes {
		p.Miss()
	}
}

func (c *compositeCacheProbe) Fetched(count int, shared bool) {
	for _, p := range c.probes {
		p.Fetched(count, shared)
	}
}

func (c *compositeCacheProbe) FetchFailed(err error) {
	for _, p := range c.probes {
		p.FetchFailed(err)
	}
}

func (c *compositeCacheProbe) StoreFailed(err error) {
	for _, p := range c.probes {
		p.StoreFailed(err)
	}
}

func (c *compositeCacheProbe) End() {
	for _, p := range c.probes {
		p.End()
	}
}

// NoOpCacheProbe can be embedded to get default no-op behavior.
type NoOpCacheProbe struct{}

func (n *NoOpCacheProbe) Hit(count int)                  {}
func (n *NoOpCacheProbe) Miss()                          {}
func (n *NoOpCacheProbe) Fetched(count int, shared bool) {}
func (n *NoOpCacheProbe) FetchFailed(err error)          {}
func (n *NoOpCacheProbe) StoreFailed(err error)          {}
func (n *NoOpCacheProbe) End()                           {}

// NoOpCacheObserver implements CacheObserver with no-op behavior.
type NoOpCacheObserver struct{}

func (n *NoOpCacheObserver) LookupStarted(ctx context.Context, name string) (context.Context, CacheProbe) {
	return ctx, &NoOpCacheProbe{}
}
