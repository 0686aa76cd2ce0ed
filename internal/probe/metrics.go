package probe

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/project-kessel/edgeid/internal/clock"
	"github.com/project-kessel/edgeid/internal/engine"
	"github.com/project-kessel/edgeid/internal/identity"
	"github.com/project-kessel/edgeid/internal/request"
	"github.com/project-kessel/edgeid/internal/roles"
	"github.com/project-kessel/edgeid/internal/strategy"
)

// Resolution outcomes used as the "outcome" label.
const (
	outcomeSuccess              = "success"
	outcomeFail                 = "fail"
	outcomeNoResult             = "no_result"
	outcomeAlreadyAuthenticated = "already_authenticated"
)

// MetricsObserver records Prometheus metrics for resolutions and role
// lookups. All metrics use the "edgeid_" prefix.
type MetricsObserver struct {
	clock clock.Clock

	// Resolutions counts finished resolutions.
	// Labels: provider, outcome=[success, fail, no_result, already_authenticated]
	Resolutions *prometheus.CounterVec

	// ResolutionFailures counts failed resolutions by reason.
	// Labels: provider, reason
	ResolutionFailures *prometheus.CounterVec

	// ResolutionDuration tracks time spent resolving.
	// Labels: outcome
	ResolutionDuration *prometheus.HistogramVec

	// StrategiesFiltered counts candidates rejected by the provider filter.
	// Labels: provider
	StrategiesFiltered *prometheus.CounterVec

	// AugmentationFailures counts resolutions that kept their token roles only.
	AugmentationFailures prometheus.Counter

	// RoleLookups counts role cache lookups.
	// Labels: result=[hit, miss]
	RoleLookups *prometheus.CounterVec

	// RoleFetches counts role source fetches seen by callers.
	// Labels: result=[success, shared, failure]
	RoleFetches *prometheus.CounterVec

	// RoleStoreErrors counts role store read or write failures.
	RoleStoreErrors prometheus.Counter
}

// MetricsOption configures a MetricsObserver.
type MetricsOption func(*MetricsObserver)

// WithMetricsClock sets the clock used to time resolutions.
func WithMetricsClock(clk clock.Clock) MetricsOption {
	return func(m *MetricsObserver) {
		m.clock = clk
	}
}

// NewMetricsObserver creates and registers the metrics with registerer.
// If registerer is nil, prometheus.DefaultRegisterer is used. Metrics that
// are already registered are reused.
func NewMetricsObserver(registerer prometheus.Registerer, opts ...MetricsOption) *MetricsObserver {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &MetricsObserver{
		clock: clock.NewSystemClock(),
		Resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgeid_resolutions_total",
				Help: "Total identity resolutions by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		ResolutionFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgeid_resolution_failures_total",
				Help: "Total failed identity resolutions by provider and reason",
			},
			[]string{"provider", "reason"},
		),
		ResolutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "edgeid_resolution_duration_seconds",
				Help:    "Identity resolution duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		StrategiesFiltered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgeid_strategies_filtered_total",
				Help: "Total candidate strategies rejected by the provider filter",
			},
			[]string{"provider"},
		),
		AugmentationFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "edgeid_role_augmentation_failures_total",
				Help: "Total resolutions whose role augmentation failed",
			},
		),
		RoleLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgeid_role_cache_lookups_total",
				Help: "Total role cache lookups by result",
			},
			[]string{"result"},
		),
		RoleFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgeid_role_fetches_total",
				Help: "Total role source fetches by result",
			},
			[]string{"result"},
		),
		RoleStoreErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "edgeid_role_store_errors_total",
				Help: "Total role store read or write failures",
			},
		),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.Resolutions = registerOrReuse(registerer, m.Resolutions).(*prometheus.CounterVec)
	m.ResolutionFailures = registerOrReuse(registerer, m.ResolutionFailures).(*prometheus.CounterVec)
	m.ResolutionDuration = registerOrReuse(registerer, m.ResolutionDuration).(*prometheus.HistogramVec)
	m.StrategiesFiltered = registerOrReuse(registerer, m.StrategiesFiltered).(*prometheus.CounterVec)
	m.AugmentationFailures = registerOrReuse(registerer, m.AugmentationFailures).(prometheus.Counter)
	m.RoleLookups = registerOrReuse(registerer, m.RoleLookups).(*prometheus.CounterVec)
	m.RoleFetches = registerOrReuse(registerer, m.RoleFetches).(*prometheus.CounterVec)
	m.RoleStoreErrors = registerOrReuse(registerer, m.RoleStoreErrors).(prometheus.Counter)

	return m
}

// registerOrReuse registers c, returning the existing collector when an
// identical one is already registered.
func registerOrReuse(reg prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector
		}
		panic(err)
	}
	return c
}

// ResolutionStarted implements engine.ResolutionObserver
func (m *MetricsObserver) ResolutionStarted(ctx context.Context, _ string, _ *request.RequestAttributes) (context.Context, engine.ResolutionProbe) {
	return ctx, &metricsResolutionProbe{
		metrics: m,
		start:   m.clock.Now(),
		outcome: outcomeNoResult,
	}
}

type metricsResolutionProbe struct {
	engine.NoOpResolutionProbe
	metrics  *MetricsObserver
	start    time.Time
	provider string
	outcome  string
}

func (p *metricsResolutionProbe) AlreadyAuthenticated() {
	p.outcome = outcomeAlreadyAuthenticated
}

func (p *metricsResolutionProbe) StrategyFiltered(provider string, _ error) {
	p.metrics.StrategiesFiltered.WithLabelValues(provider).Inc()
}

func (p *metricsResolutionProbe) StrategySelected(provider string, _ bool) {
	p.provider = provider
}

func (p *metricsResolutionProbe) ResolutionSucceeded(provider string, _ *identity.Identity) {
	p.provider = provider
	p.outcome = outcomeSuccess
}

func (p *metricsResolutionProbe) ResolutionFailed(provider string, reason strategy.FailureReason, _ error) {
	p.provider = provider
	p.outcome = outcomeFail
	p.metrics.ResolutionFailures.WithLabelValues(provider, string(reason)).Inc()
}

func (p *metricsResolutionProbe) RoleAugmentationFailed(string, error) {
	p.metrics.AugmentationFailures.Inc()
}

func (p *metricsResolutionProbe) End() {
	p.metrics.Resolutions.WithLabelValues(p.provider, p.outcome).Inc()
	p.metrics.ResolutionDuration.WithLabelValues(p.outcome).Observe(p.metrics.clock.Now().Sub(p.start).Seconds())
}

// LookupStarted implements roles.CacheObserver
func (m *MetricsObserver) LookupStarted(ctx context.Context, _ string) (context.Context, roles.CacheProbe) {
	return ctx, &metricsCacheProbe{metrics: m}
}

type metricsCacheProbe struct {
	roles.NoOpCacheProbe
	metrics *MetricsObserver
}

func (p *metricsCacheProbe) Hit(int) {
	p.metrics.RoleLookups.WithLabelValues("hit").Inc()
}

func (p *metricsCacheProbe) Miss() {
	p.metrics.RoleLookups.WithLabelValues("miss").Inc()
}

func (p *metricsCacheProbe) Fetched(_ int, shared bool) {
	result := "success"
	if shared {
		result = "shared"
	}
	p.metrics.RoleFetches.WithLabelValues(result).Inc()
}

func (p *metricsCacheProbe) FetchFailed(error) {
	p.metrics.RoleFetches.WithLabelValues("failure").Inc()
}

func (p *metricsCacheProbe) StoreFailed(error) {
	p.metrics.RoleStoreErrors.Inc()
}
