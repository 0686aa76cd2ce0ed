package config

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/project-kessel/edgeid/internal/engine"
	"github.com/project-kessel/edgeid/internal/httpfixture"
	"github.com/project-kessel/edgeid/internal/probe"
	"github.com/project-kessel/edgeid/internal/server"
)

// Provider constructs all application components from configuration
// This is the main entry point for building a configured edgeid instance
type Provider struct {
	config *Config

	// Lazily constructed components (cached after first call)
	logger              *slog.Logger
	observer            probe.Observer
	metricsRegistry     *prometheus.Registry
	registry            *engine.Registry
	engine              *engine.Engine
	httpFixtureProvider httpfixture.FixtureProvider
	httpFixtureBuilt    bool
}

// NewProvider creates a new provider from configuration
func NewProvider(config *Config) *Provider {
	return &Provider{
		config: config,
	}
}

// Config returns the configuration the provider builds from
func (p *Provider) Config() *Config {
	return p.config
}

// SetLogger sets the logger shared by components built by this provider.
func (p *Provider) SetLogger(logger *slog.Logger) {
	p.logger = logger
}

// Logger returns the configured logger, building it from config when
// SetLogger was not called.
func (p *Provider) Logger() *slog.Logger {
	if p.logger == nil {
		p.logger = NewLogger(p.config.Observability)
	}
	return p.logger
}

// SetObserver sets the observer for all components built by this provider.
// Must be called before Engine() or any method that depends on the observer.
func (p *Provider) SetObserver(observer probe.Observer) {
	p.observer = observer
}

// Observer returns the configured observer.
// If SetObserver was called, returns that observer.
// Otherwise, creates a default observer from config.
func (p *Provider) Observer() (probe.Observer, error) {
	if p.observer != nil {
		return p.observer, nil
	}

	observer, err := NewObserverWithLogger(p.config.Observability, p.Logger(), p.MetricsRegistry())
	if err != nil {
		return nil, fmt.Errorf("failed to create observer: %w", err)
	}

	p.observer = observer
	return observer, nil
}

// MetricsRegistry returns the registry served on /metrics. It carries the
// Go runtime and process collectors plus every edgeid metric.
func (p *Provider) MetricsRegistry() *prometheus.Registry {
	if p.metricsRegistry != nil {
		return p.metricsRegistry
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	p.metricsRegistry = reg
	return reg
}

// Registry returns the configured strategy registry
func (p *Provider) Registry() (*engine.Registry, error) {
	if p.registry != nil {
		return p.registry, nil
	}

	registry, err := NewRegistry(p.config.Auth, p.HTTPTransport())
	if err != nil {
		return nil, fmt.Errorf("failed to create strategy registry: %w", err)
	}

	p.registry = registry
	return registry, nil
}

// Engine returns the identity resolution engine, with role augmentation
// when roles are enabled.
func (p *Provider) Engine() (*engine.Engine, error) {
	if p.engine != nil {
		return p.engine, nil
	}

	registry, err := p.Registry()
	if err != nil {
		return nil, err
	}

	observer, err := p.Observer()
	if err != nil {
		return nil, err
	}

	opts := []engine.Option{engine.WithObserver(observer)}
	if p.config.Roles.Enabled {
		source, err := NewRoleSource(p.config.Roles.Source, p.HTTPTransport())
		if err != nil {
			return nil, fmt.Errorf("failed to create role source: %w", err)
		}
		augmenter, err := NewRoleAugmenter(p.config.Roles, source, observer)
		if err != nil {
			return nil, fmt.Errorf("failed to create role cache: %w", err)
		}
		opts = append(opts, engine.WithRoleAugmenter(augmenter))
	}

	p.engine = engine.New(registry, opts...)
	return p.engine, nil
}

// ServerConfig returns the server configuration
func (p *Provider) ServerConfig() server.Config {
	return server.Config{
		GRPCPort: p.config.Server.GRPCPort,
		HTTPPort: p.config.Server.HTTPPort,
		Logger:   p.Logger(),
	}
}

// HTTPTransport returns an HTTP RoundTripper configured with fixtures if available
// Returns nil if no special transport is needed (caller should use http.DefaultTransport)
func (p *Provider) HTTPTransport() http.RoundTripper {
	fixtureProvider := p.HTTPFixtureProvider()
	if fixtureProvider == nil {
		return nil
	}
	return httpfixture.NewTransport(httpfixture.TransportConfig{
		Provider: fixtureProvider,
		Strict:   true,
	})
}

// HTTPFixtureProvider returns the fixture provider for hermetic testing
// Returns nil if no fixtures are configured (normal production mode)
func (p *Provider) HTTPFixtureProvider() httpfixture.FixtureProvider {
	if p.httpFixtureBuilt {
		return p.httpFixtureProvider
	}

	provider, err := BuildHTTPFixtureProvider(p.config.Fixtures)
	if err != nil {
		// Fixture errors are configuration errors; fail fast
		panic(fmt.Sprintf("failed to build HTTP fixture provider: %v", err))
	}

	p.httpFixtureProvider = provider
	p.httpFixtureBuilt = true
	return p.httpFixtureProvider
}
