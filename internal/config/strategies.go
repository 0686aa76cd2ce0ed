package config

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/project-kessel/edgeid/internal/claims"
	"github.com/project-kessel/edgeid/internal/engine"
	"github.com/project-kessel/edgeid/internal/identity"
	"github.com/project-kessel/edgeid/internal/strategy"
)

// NewClaimsFilter creates the raw claims filter applied by the identity builder
func NewClaimsFilter(cfg ClaimsFilterConfig) (claims.ClaimsFilter, error) {
	switch cfg.Type {
	case "passthrough", "":
		return &claims.PassthroughClaimsFilter{}, nil
	case "allow_list":
		return claims.NewAllowListClaimsFilter(cfg.ClaimTypes), nil
	case "deny_list":
		return claims.NewDenyListClaimsFilter(cfg.ClaimTypes), nil
	default:
		return nil, fmt.Errorf("%w: unknown claims filter type: %s (supported: passthrough, allow_list, deny_list)",
			identity.ErrConfiguration, cfg.Type)
	}
}

// NewIdentityBuilder creates the identity builder shared by every strategy
func NewIdentityBuilder(cfg AuthConfig) (*identity.Builder, error) {
	filter, err := NewClaimsFilter(cfg.ClaimsFilter)
	if err != nil {
		return nil, err
	}

	opts := []identity.BuilderOption{identity.WithClaimsFilter(filter)}
	if cfg.Scheme != "" {
		opts = append(opts, identity.WithScheme(cfg.Scheme))
	}
	return identity.NewBuilder(opts...), nil
}

// NewRegistry builds the strategy registry. Strategies are registered in
// their fixed order: application, bearer, facebook, microsoftaccount,
// twitter, header; the remote document strategy is the fallback.
// Configured provider entries override options of the strategy with the
// same name. An entry naming no strategy is a configuration error.
func NewRegistry(cfg AuthConfig, transport http.RoundTripper) (*engine.Registry, error) {
	builder, err := NewIdentityBuilder(cfg)
	if err != nil {
		return nil, err
	}

	overrides := make(map[string]*identity.ProviderOptions, len(cfg.Providers))
	for _, p := range cfg.Providers {
		name := strings.ToLower(strings.TrimSpace(p.Name))
		if name == "" {
			return nil, fmt.Errorf("%w: provider entry without a name", identity.ErrConfiguration)
		}
		if _, dup := overrides[name]; dup {
			return nil, fmt.Errorf("%w: provider %q configured twice", identity.ErrConfiguration, name)
		}
		opts := p.Options()
		opts.ProviderName = name
		overrides[name] = &opts
	}

	var registryOpts []engine.RegistryOption
	if strings.TrimSpace(cfg.Filter.Script) != "" {
		filter, err := engine.NewCELProviderFilter(cfg.Filter.Script)
		if err != nil {
			return nil, fmt.Errorf("%w: provider filter: %w", identity.ErrConfiguration, err)
		}
		registryOpts = append(registryOpts, engine.WithProviderFilter(filter))
	}
	registry := engine.NewRegistry(registryOpts...)

	ordered := []strategy.Strategy{
		strategy.NewApplication(builder),
		strategy.NewBearer(builder),
		strategy.NewFacebook(builder),
		strategy.NewMicrosoftAccount(builder),
		strategy.NewTwitter(builder),
		strategy.NewHeader(builder),
	}
	for _, s := range ordered {
		if err := registry.Register(s, overrides[s.Name()]); err != nil {
			return nil, err
		}
		delete(overrides, s.Name())
	}

	remoteOpts := []strategy.RemoteOption{}
	if transport != nil {
		remoteOpts = append(remoteOpts, strategy.WithTransport(transport))
	}
	if cfg.ForwardHeaderPrefix != "" {
		remoteOpts = append(remoteOpts, strategy.WithForwardPrefix(cfg.ForwardHeaderPrefix))
	}
	if cfg.RemoteTimeout > 0 {
		remoteOpts = append(remoteOpts, strategy.WithTimeout(cfg.RemoteTimeout))
	}
	remote, err := strategy.NewRemote(builder, cfg.Endpoint, remoteOpts...)
	if err != nil {
		return nil, err
	}
	if err := registry.SetFallback(remote, overrides[remote.Name()]); err != nil {
		return nil, err
	}
	delete(overrides, remote.Name())

	for _, p := range cfg.Providers {
		name := strings.ToLower(strings.TrimSpace(p.Name))
		if _, unused := overrides[name]; unused {
			return nil, fmt.Errorf("%w: unknown provider %q", identity.ErrConfiguration, p.Name)
		}
	}

	return registry, nil
}
