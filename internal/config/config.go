package config

import (
	"time"

	"github.com/project-kessel/edgeid/internal/httpfixture"
	"github.com/project-kessel/edgeid/internal/identity"
)

// Config is the root configuration of an edgeid instance
type Config struct {
	Server        ServerConfig         `koanf:"server"`
	Auth          AuthConfig           `koanf:"auth"`
	Roles         RolesConfig          `koanf:"roles"`
	Observability *ObservabilityConfig `koanf:"observability"`

	// Fixtures replace outbound HTTP with canned responses (hermetic mode)
	Fixtures []FixtureConfig `koanf:"fixtures"`
}

// ServerConfig configures the listeners
type ServerConfig struct {
	GRPCPort        int           `koanf:"grpc_port"`
	HTTPPort        int           `koanf:"http_port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// AuthConfig configures identity resolution
type AuthConfig struct {
	// Endpoint is the remote auth document location, absolute or relative
	// to the inbound request's host.
	Endpoint string `koanf:"endpoint"`

	// ForwardHeaderPrefix selects inbound headers copied to the remote fetch.
	ForwardHeaderPrefix string `koanf:"forward_header_prefix"`

	RemoteTimeout time.Duration `koanf:"remote_timeout"`

	// Scheme is the authentication scheme tag carried by identities.
	Scheme string `koanf:"scheme"`

	// Providers overrides the options of the built-in strategies.
	// Strategy order is fixed; listing a provider here does not reorder it.
	Providers []ProviderConfig `koanf:"providers"`

	Filter       FilterConfig       `koanf:"filter"`
	ClaimsFilter ClaimsFilterConfig `koanf:"claims_filter"`
}

// ProviderConfig overrides the options of one strategy
type ProviderConfig struct {
	Name          string `koanf:"name"`
	NameClaimType string `koanf:"name_claim_type"`
	RoleClaimType string `koanf:"role_claim_type"`

	// Enabled defaults to true when omitted
	Enabled *bool `koanf:"enabled"`
}

// Options converts the entry into identity.ProviderOptions.
func (p ProviderConfig) Options() identity.ProviderOptions {
	enabled := true
	if p.Enabled != nil {
		enabled = *p.Enabled
	}
	return identity.ProviderOptions{
		ProviderName:  p.Name,
		NameClaimType: p.NameClaimType,
		RoleClaimType: p.RoleClaimType,
		Enabled:       enabled,
	}
}

// FilterConfig configures the CEL provider filter
type FilterConfig struct {
	// Script is a CEL expression over provider_name and request.
	// Empty disables filtering.
	Script string `koanf:"script"`
}

// ClaimsFilterConfig restricts which raw claims reach an identity
type ClaimsFilterConfig struct {
	// Type is one of: passthrough (default), allow_list, deny_list
	Type       string   `koanf:"type"`
	ClaimTypes []string `koanf:"claim_types"`
}

// RolesConfig configures role augmentation
type RolesConfig struct {
	Enabled bool             `koanf:"enabled"`
	Source  RoleSourceConfig `koanf:"source"`
	Cache   RoleCacheConfig  `koanf:"cache"`
}

// RoleSourceConfig selects and configures the role source
type RoleSourceConfig struct {
	// Type is one of: static, http, lua
	Type string `koanf:"type"`

	// Static source
	Defaults    []string         `koanf:"defaults"`
	Assignments []RoleAssignment `koanf:"assignments"`

	// HTTP source
	URL     string            `koanf:"url"`
	Headers map[string]string `koanf:"headers"`
	Timeout time.Duration     `koanf:"timeout"`

	// Lua source
	Script     string         `koanf:"script"`
	ScriptFile string         `koanf:"script_file"`
	Config     map[string]any `koanf:"config"`
}

// RoleAssignment grants roles to one name
type RoleAssignment struct {
	Name  string   `koanf:"name"`
	Roles []string `koanf:"roles"`
}

// RoleCacheConfig configures role caching
type RoleCacheConfig struct {
	// Type is one of: memory (default), lru, redis, distributed, none
	Type string `koanf:"type"`

	// TTL of cached entries; 0 means entries never expire
	TTL             time.Duration `koanf:"ttl"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
	FetchTimeout    time.Duration `koanf:"fetch_timeout"`

	// Capacity bounds the lru cache
	Capacity int `koanf:"capacity"`

	Redis RedisConfig `koanf:"redis"`
	Group GroupConfig `koanf:"group"`
}

// RedisConfig configures the redis role store
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Prefix   string `koanf:"prefix"`
}

// GroupConfig configures the distributed (groupcache) role cache
type GroupConfig struct {
	Name      string `koanf:"name"`
	SizeBytes int64  `koanf:"size_bytes"`
}

// ObservabilityConfig configures logging and metrics
type ObservabilityConfig struct {
	// Type is one of: logging, metrics, noop, composite
	Type string `koanf:"type"`

	// LogLevel is the default level (debug, info, warn, error)
	LogLevel string `koanf:"log_level"`

	// LogFormat is json (default) or text
	LogFormat string `koanf:"log_format"`

	// Per-event overrides, keyed by the "event" log attribute
	IdentityResolution *EventLoggingConfig `koanf:"identity_resolution"`
	RoleAugmentation   *EventLoggingConfig `koanf:"role_augmentation"`

	// Observers are the children of a composite observer
	Observers []ObservabilityConfig `koanf:"observers"`
}

// EventLoggingConfig overrides logging for one event
type EventLoggingConfig struct {
	Enabled  *bool  `koanf:"enabled"`
	LogLevel string `koanf:"log_level"`
}

// FixtureConfig is a hermetic HTTP fixture
type FixtureConfig struct {
	// Type is http_rule
	Type     string                     `koanf:"type"`
	Request  httpfixture.FixtureRequest `koanf:"request"`
	Response httpfixture.Fixture        `koanf:"response"`
}
