package roles

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang/groupcache"

	"github.com/project-kessel/edgeid/internal/clock"
)

// GroupCache is a Source cached in a groupcache group, so replicas in a
// groupcache peer pool share one copy of each name's roles.
//
// groupcache never expires entries. With a TTL, the key carries the current
// TTL window, so a name is fetched again once per window.
type GroupCache struct {
	group *groupcache.Group
	ttl   time.Duration
	clock clock.Clock
}

// GroupCacheConfig configures a GroupCache.
type GroupCacheConfig struct {
	// GroupName must be unique in the process (default: "edgeid-roles").
	GroupName string

	// CacheSizeBytes bounds the group (default: 64MB).
	CacheSizeBytes int64

	TTL   time.Duration
	Clock clock.Clock
}

const ttlMarker = ":ttl:"

// NewGroupCache registers a groupcache group over source. Peers, if any,
// must be configured by the caller before the first lookup.
func NewGroupCache(source Source, cfg GroupCacheConfig) *GroupCache {
	if cfg.GroupName == "" {
		cfg.GroupName = "edgeid-roles"
	}
	if cfg.CacheSizeBytes == 0 {
		cfg.CacheSizeBytes = 64 << 20
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewSystemClock()
	}

	getter := groupcache.GetterFunc(func(ctx context.Context, key string, dest groupcache.Sink) error {
		name := key
		if idx := strings.LastIndex(key, ttlMarker); idx >= 0 {
			name = key[:idx]
		}

		roles, err := source.Roles(ctx, name)
		if err != nil {
			return err
		}

		data, err := json.Marshal(clean(roles))
		if err != nil {
			return fmt.Errorf("failed to marshal roles: %w", err)
		}
		return dest.SetBytes(data)
	})

	return &GroupCache{
		group: groupcache.NewGroup(cfg.GroupName, cfg.CacheSizeBytes, getter),
		ttl:   cfg.TTL,
		clock: cfg.Clock,
	}
}

func (g *GroupCache) Roles(ctx context.Context, name string) ([]string, error) {
	var data []byte
	if err := g.group.Get(ctx, g.key(name), groupcache.AllocatingByteSliceSink(&data)); err != nil {
		return nil, fmt.Errorf("groupcache fetch failed: %w", err)
	}

	var roles []string
	if err := json.Unmarshal(data, &roles); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached roles: %w", err)
	}
	return roles, nil
}

func (g *GroupCache) key(name string) string {
	if g.ttl <= 0 {
		return name
	}
	window := g.clock.Now().UnixNano() / g.ttl.Nanoseconds()
	return fmt.Sprintf("%s%s%d", name, ttlMarker, window)
}

// Stats returns the group's counters.
func (g *GroupCache) Stats() groupcache.Stats {
	return g.group.Stats
}
