package config

import (
	"fmt"
	"net/http"
	"os"

	luaservices "github.com/project-kessel/edgeid/internal/lua"
	"github.com/project-kessel/edgeid/internal/roles"
)

// NewRoleSource creates the role source from configuration
func NewRoleSource(cfg RoleSourceConfig, transport http.RoundTripper) (roles.Source, error) {
	switch cfg.Type {
	case "static", "":
		byName := make(map[string][]string, len(cfg.Assignments))
		for _, a := range cfg.Assignments {
			if a.Name == "" {
				return nil, fmt.Errorf("static role assignment without a name")
			}
			byName[a.Name] = append(byName[a.Name], a.Roles...)
		}
		return roles.NewStaticSource(byName, cfg.Defaults), nil

	case "http":
		return roles.NewHTTPSource(roles.HTTPSourceConfig{
			URL:       cfg.URL,
			Headers:   cfg.Headers,
			Timeout:   cfg.Timeout,
			Transport: transport,
		})

	case "lua":
		return newLuaRoleSource(cfg, transport)

	default:
		return nil, fmt.Errorf("unknown role source type: %s (supported: static, http, lua)", cfg.Type)
	}
}

// newLuaRoleSource creates a Lua role source from an inline script or a script file
func newLuaRoleSource(cfg RoleSourceConfig, transport http.RoundTripper) (roles.Source, error) {
	script := cfg.Script
	if cfg.ScriptFile != "" {
		content, err := os.ReadFile(cfg.ScriptFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read script file %s: %w", cfg.ScriptFile, err)
		}
		script = string(content)
	}

	if script == "" {
		return nil, fmt.Errorf("lua role source requires either script or script_file")
	}

	return roles.NewLuaSource(roles.LuaSourceConfig{
		Script: script,
		Config: cfg.Config,
		HTTPConfig: luaservices.HTTPServiceConfig{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
	})
}

// NewRoleStore creates the store behind a roles.Cache. It returns nil for
// cache types that do not use a store.
func NewRoleStore(cfg RoleCacheConfig) (roles.Store, error) {
	switch cfg.Type {
	case "memory", "":
		return roles.NewMemoryStore(cfg.TTL, cfg.CleanupInterval), nil
	case "lru":
		if cfg.Capacity <= 0 {
			return nil, fmt.Errorf("lru role cache requires a positive capacity")
		}
		return roles.NewLRUStore(cfg.Capacity, cfg.TTL), nil
	case "redis":
		return roles.NewRedisStore(roles.RedisStoreConfig{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
			TTL:      cfg.TTL,
		})
	case "distributed", "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown role cache type: %s (supported: memory, lru, redis, distributed, none)", cfg.Type)
	}
}

// NewRoleAugmenter wraps source with the configured caching layer and
// returns the augmenter used by the engine.
func NewRoleAugmenter(cfg RolesConfig, source roles.Source, observer roles.CacheObserver) (*roles.Augmenter, error) {
	switch cfg.Cache.Type {
	case "none":
		return roles.NewAugmenter(source), nil

	case "distributed":
		return roles.NewAugmenter(roles.NewGroupCache(source, roles.GroupCacheConfig{
			GroupName:      cfg.Cache.Group.Name,
			CacheSizeBytes: cfg.Cache.Group.SizeBytes,
			TTL:            cfg.Cache.TTL,
		})), nil
	}

	store, err := NewRoleStore(cfg.Cache)
	if err != nil {
		return nil, err
	}

	opts := []roles.CacheOption{roles.WithStore(store)}
	if cfg.Cache.FetchTimeout > 0 {
		opts = append(opts, roles.WithFetchTimeout(cfg.Cache.FetchTimeout))
	}
	if observer != nil {
		opts = append(opts, roles.WithCacheObserver(observer))
	}
	return roles.NewAugmenter(roles.NewCache(source, opts...)), nil
}
