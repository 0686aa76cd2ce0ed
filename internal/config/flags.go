package config

import (
	"time"

	"github.com/spf13/pflag"
)

// flagDef binds a command-line flag to a config key
type flagDef struct {
	name      string
	configKey string
	usage     string
	register  func(fs *pflag.FlagSet, name, usage string)
}

func intFlag(fs *pflag.FlagSet, name, usage string)      { fs.Int(name, 0, usage) }
func stringFlag(fs *pflag.FlagSet, name, usage string)   { fs.String(name, "", usage) }
func boolFlag(fs *pflag.FlagSet, name, usage string)     { fs.Bool(name, false, usage) }
func durationFlag(fs *pflag.FlagSet, name, usage string) { fs.Duration(name, time.Duration(0), usage) }

var flagDefs = []flagDef{
	{"server-grpc-port", "server.grpc_port", "gRPC (ext_authz) listen port", intFlag},
	{"server-http-port", "server.http_port", "HTTP listen port", intFlag},
	{"auth-endpoint", "auth.endpoint", "remote auth document endpoint (absolute URL or path)", stringFlag},
	{"auth-forward-header-prefix", "auth.forward_header_prefix", "prefix of headers forwarded to the auth endpoint", stringFlag},
	{"auth-remote-timeout", "auth.remote_timeout", "timeout of a remote auth document fetch", durationFlag},
	{"auth-filter-script", "auth.filter.script", "CEL expression selecting eligible providers", stringFlag},
	{"roles-enabled", "roles.enabled", "augment identities with roles from the role source", boolFlag},
	{"roles-source-type", "roles.source.type", "role source type (static, http, lua)", stringFlag},
	{"roles-source-url", "roles.source.url", "HTTP role source URL template", stringFlag},
	{"roles-source-script-file", "roles.source.script_file", "Lua role source script file", stringFlag},
	{"roles-cache-type", "roles.cache.type", "role cache type (memory, lru, redis, distributed, none)", stringFlag},
	{"roles-cache-ttl", "roles.cache.ttl", "role cache entry lifetime (0 never expires)", durationFlag},
	{"roles-cache-redis-addr", "roles.cache.redis.addr", "redis address of the redis role cache", stringFlag},
	{"observability-type", "observability.type", "observer type (logging, metrics, noop, composite)", stringFlag},
	{"log-level", "observability.log_level", "log level (debug, info, warn, error)", stringFlag},
	{"log-format", "observability.log_format", "log format (json, text)", stringFlag},
}

// RegisterFlags adds every config flag to fs. Flag defaults are zero
// values; only flags set explicitly override the loaded configuration.
func RegisterFlags(fs *pflag.FlagSet) {
	for _, def := range flagDefs {
		def.register(fs, def.name, def.usage)
	}
}

// GetFlagMapping returns the mapping from flag names to config keys
func GetFlagMapping() map[string]string {
	mapping := make(map[string]string, len(flagDefs))
	for _, def := range flagDefs {
		mapping[def.name] = def.configKey
	}
	return mapping
}
