package probe

import (
	"context"

	"github.com/project-kessel/edgeid/internal/engine"
	"github.com/project-kessel/edgeid/internal/request"
	"github.com/project-kessel/edgeid/internal/roles"
)

type compositeObserver struct {
	resolution engine.ResolutionObserver
	cache      roles.CacheObserver
}

// NewCompositeObserver creates an observer that delegates to multiple
// observers in the order provided. Useful for combining logging and metrics.
func NewCompositeObserver(observers ...Observer) Observer {
	resolution := make([]engine.ResolutionObserver, len(observers))
	cache := make([]roles.CacheObserver, len(observers))
	for i, o := range observers {
		resolution[i] = o
		cache[i] = o
	}
	return &compositeObserver{
		resolution: engine.NewCompositeObserver(resolution...),
		cache:      roles.NewCompositeCacheObserver(cache...),
	}
}

func (c *compositeObserver) ResolutionStarted(ctx context.Context, resolutionID string, attrs *request.RequestAttributes) (context.Context, engine.ResolutionProbe) {
	return c.resolution.ResolutionStarted(ctx, resolutionID, attrs)
}

func (c *compositeObserver) LookupStarted(ctx context.Context, name string) (context.Context, roles.CacheProbe) {
	return c.cache.LookupStarted(ctx, name)
}

// NoOpObserver returns an observer that does nothing.
func NoOpObserver() Observer {
	return &noOpObserver{}
}

type noOpObserver struct {
	engine.NoOpResolutionObserver
	roles.NoOpCacheObserver
}
