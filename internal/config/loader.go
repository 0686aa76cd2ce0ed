package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/project-kessel/edgeid/internal/identity"
	"github.com/project-kessel/edgeid/internal/strategy"
)

// EnvPrefix prefixes every environment variable read by the loader
const EnvPrefix = "EDGEID_"

// Loader layers configuration from, lowest precedence first:
//  1. Built-in defaults
//  2. The configuration file, if any (YAML, JSON or TOML by extension)
//  3. EDGEID_* environment variables; "__" separates levels, so
//     EDGEID_ROLES__CACHE__TTL sets roles.cache.ttl
//  4. Command-line flags that were set explicitly
type Loader struct {
	configPath string
	flags      *pflag.FlagSet

	mu sync.RWMutex
	k  *koanf.Koanf
}

// NewLoader creates a loader without command-line flags. An empty
// configPath loads defaults and the environment only.
func NewLoader(configPath string) (*Loader, error) {
	return NewLoaderWithFlags(configPath, nil)
}

// NewLoaderWithFlags creates a loader whose top layer is flags.
// Only flags registered by RegisterFlags are considered.
func NewLoaderWithFlags(configPath string, flags *pflag.FlagSet) (*Loader, error) {
	l := &Loader{configPath: configPath, flags: flags}

	k, err := l.load(nil)
	if err != nil {
		return nil, err
	}
	l.k = k
	return l, nil
}

// getDefaults returns the default configuration values
func getDefaults() map[string]interface{} {
	return map[string]interface{}{
		"server.grpc_port":           9090,
		"server.http_port":           8080,
		"server.shutdown_timeout":    "15s",
		"auth.endpoint":              strategy.DefaultAuthEndpoint,
		"auth.forward_header_prefix": strategy.ForwardHeaderPrefix,
		"auth.remote_timeout":        "10s",
		"auth.scheme":                identity.DefaultScheme,
		"roles.enabled":              false,
		"roles.source.type":          "static",
		"roles.cache.type":           "memory",
		"roles.cache.ttl":            "0s",
		"roles.cache.fetch_timeout":  "10s",
		"roles.cache.capacity":       10000,
		"observability.type":         "logging",
		"observability.log_level":    "info",
		"observability.log_format":   "json",
	}
}

// load builds a fresh koanf instance from every layer. fileProvider, when
// set, replaces the file provider (Watch passes its watching provider).
func (l *Loader) load(fileProvider *file.File) (*koanf.Koanf, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(getDefaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if l.configPath != "" {
		parser, err := getParserForFile(l.configPath)
		if err != nil {
			return nil, err
		}
		if fileProvider == nil {
			fileProvider = file.Provider(l.configPath)
		}
		if err := k.Load(fileProvider, parser); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", l.configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if l.flags != nil {
		mapping := GetFlagMapping()
		cb := func(f *pflag.Flag) (string, any) {
			key, ok := mapping[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(l.flags, f)
		}
		if err := k.Load(posflag.ProviderWithFlag(l.flags, ".", k, cb), nil); err != nil {
			return nil, fmt.Errorf("failed to load command-line flags: %w", err)
		}
	}

	return k, nil
}

// Get unmarshals the current configuration
func (l *Loader) Get() (*Config, error) {
	l.mu.RLock()
	k := l.k
	l.mu.RUnlock()

	return unmarshal(k)
}

func unmarshal(k *koanf.Koanf) (*Config, error) {
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Watch reloads every layer when the config file changes and passes the
// result to onChange. A reload that fails to load or unmarshal is logged and
// the previous configuration stays current. Watch blocks until ctx is done;
// without a config file it only waits.
//
// Components built from the previous configuration are not rebuilt.
func (l *Loader) Watch(ctx context.Context, onChange func(*Config) error) error {
	if l.configPath == "" {
		<-ctx.Done()
		return ctx.Err()
	}

	fp := file.Provider(l.configPath)
	logger := slog.Default().With("path", l.configPath)

	if err := fp.Watch(func(_ interface{}, err error) {
		if err != nil {
			logger.Warn("Config watch failed", "error", err)
			return
		}

		k, err := l.load(fp)
		if err != nil {
			logger.Warn("Config reload failed", "error", err)
			return
		}
		cfg, err := unmarshal(k)
		if err != nil {
			logger.Warn("Config reload failed", "error", err)
			return
		}

		l.mu.Lock()
		l.k = k
		l.mu.Unlock()

		if err := onChange(cfg); err != nil {
			logger.Warn("Config change rejected", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to watch config file: %w", err)
	}

	<-ctx.Done()
	return ctx.Err()
}

// getParserForFile returns the appropriate koanf parser based on file extension
func getParserForFile(path string) (koanf.Parser, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	case ".toml":
		return toml.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json, .toml)", ext)
	}
}

// envTransform maps EDGEID_ROLES__CACHE__REDIS__ADDR to roles.cache.redis.addr
func envTransform(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}
