package roles

import (
	"context"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
	gocache "github.com/patrickmn/go-cache"

	"github.com/project-kessel/edgeid/internal/clock"
)

// Store remembers the roles fetched for a name.
//
// A zero TTL means entries never expire.
type Store interface {
	Get(ctx context.Context, name string) ([]string, bool, error)
	Set(ctx context.Context, name string, roles []string) error
}

// MemoryStore is an in-process store backed by go-cache.
type MemoryStore struct {
	c *gocache.Cache
}

// NewMemoryStore creates an in-memory store. Expired entries are swept every
// cleanupInterval; zero disables sweeping.
func NewMemoryStore(ttl, cleanupInterval time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &MemoryStore{c: gocache.New(ttl, cleanupInterval)}
}

func (m *MemoryStore) Get(_ context.Context, name string) ([]string, bool, error) {
	v, ok := m.c.Get(name)
	if !ok {
		return nil, false, nil
	}
	roles, _ := v.([]string)
	return append([]string(nil), roles...), true, nil
}

func (m *MemoryStore) Set(_ context.Context, name string, roles []string) error {
	m.c.SetDefault(name, append([]string(nil), roles...))
	return nil
}

// Len returns the number of entries, expired ones included until swept.
func (m *MemoryStore) Len() int {
	return m.c.ItemCount()
}

// LRUStore is an in-process store holding at most a fixed number of names.
type LRUStore struct {
	mu    sync.Mutex
	cache *lru.Cache
	ttl   time.Duration
	clock clock.Clock
}

type lruEntry struct {
	roles     []string
	expiresAt time.Time
}

// LRUStoreOption configures an LRUStore.
type LRUStoreOption func(*LRUStore)

// WithLRUClock sets the clock used for expiry.
func WithLRUClock(clk clock.Clock) LRUStoreOption {
	return func(s *LRUStore) {
		s.clock = clk
	}
}

// NewLRUStore creates a store holding up to capacity names. Zero capacity
// means no limit.
func NewLRUStore(capacity int, ttl time.Duration, opts ...LRUStoreOption) *LRUStore {
	s := &LRUStore{
		cache: lru.New(capacity),
		ttl:   ttl,
		clock: clock.NewSystemClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *LRUStore) Get(_ context.Context, name string) ([]string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.cache.Get(name)
	if !ok {
		return nil, false, nil
	}
	entry := v.(lruEntry)
	if !entry.expiresAt.IsZero() && !s.clock.Now().Before(entry.expiresAt) {
		s.cache.Remove(name)
		return nil, false, nil
	}
	return append([]string(nil), entry.roles...), true, nil
}

func (s *LRUStore) Set(_ context.Context, name string, roles []string) error {
	entry := lruEntry{roles: append([]string(nil), roles...)}
	if s.ttl > 0 {
		entry.expiresAt = s.clock.Now().Add(s.ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Add(name, entry)
	return nil
}

// Len returns the number of entries.
func (s *LRUStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Len()
}
