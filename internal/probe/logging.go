// Package probe provides the logging and metrics implementations of the
// engine and role cache observers.
package probe

import (
	"context"
	"log/slog"

	"github.com/project-kessel/edgeid/internal/engine"
	"github.com/project-kessel/edgeid/internal/identity"
	"github.com/project-kessel/edgeid/internal/request"
	"github.com/project-kessel/edgeid/internal/roles"
	"github.com/project-kessel/edgeid/internal/strategy"
)

// Event names carried in the "event" attribute of every record.
const (
	EventIdentityResolution = "identity_resolution"
	EventRoleAugmentation   = "role_augmentation"
)

// Observer observes both identity resolution and role cache lookups.
type Observer interface {
	engine.ResolutionObserver
	roles.CacheObserver
}

// LoggingObserver creates request-scoped logging probes
type LoggingObserver struct {
	logger *slog.Logger
}

// NewLoggingObserver creates an observer that logs all observability events
// using structured logging with slog. If logger is nil, uses slog.Default()
func NewLoggingObserver(logger *slog.Logger) *LoggingObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{logger: logger}
}

// ResolutionStarted implements engine.ResolutionObserver
func (o *LoggingObserver) ResolutionStarted(
	ctx context.Context,
	resolutionID string,
	attrs *request.RequestAttributes,
) (context.Context, engine.ResolutionProbe) {
	probeLogger := o.logger.With(
		"event", EventIdentityResolution,
		"resolution_id", resolutionID,
	)

	logAttrs := []slog.Attr{}
	if attrs != nil {
		logAttrs = append(logAttrs,
			slog.String("method", attrs.Method),
			slog.String("path", attrs.Path),
		)
	}
	probeLogger.LogAttrs(ctx, slog.LevelDebug, "Starting identity resolution", logAttrs...)

	return ctx, &loggingResolutionProbe{
		ctx:    ctx,
		logger: probeLogger,
	}
}

// loggingResolutionProbe logs the events of a single resolution
type loggingResolutionProbe struct {
	engine.NoOpResolutionProbe
	ctx    context.Context
	logger *slog.Logger
}

func (p *loggingResolutionProbe) AlreadyAuthenticated() {
	p.logger.LogAttrs(p.ctx, slog.LevelDebug, "Request already authenticated")
}

func (p *loggingResolutionProbe) StrategyFiltered(provider string, err error) {
	attrs := []slog.Attr{slog.String("provider", provider)}
	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	p.logger.LogAttrs(p.ctx, level, "Strategy rejected by provider filter", attrs...)
}

func (p *loggingResolutionProbe) StrategySelected(provider string, fallback bool) {
	p.logger.LogAttrs(p.ctx, slog.LevelDebug,
		"Strategy selected",
		slog.String("provider", provider),
		slog.Bool("fallback", fallback),
	)
}

func (p *loggingResolutionProbe) NoStrategyMatched() {
	p.logger.LogAttrs(p.ctx, slog.LevelDebug, "No strategy matched")
}

func (p *loggingResolutionProbe) ResolutionSucceeded(provider string, id *identity.Identity) {
	attrs := []slog.Attr{slog.String("provider", provider)}
	if id != nil {
		attrs = append(attrs,
			slog.String("name", id.Name()),
			slog.String("identity_provider", id.ProviderName()),
			slog.Int("roles", len(id.Roles())),
		)
	}
	p.logger.LogAttrs(p.ctx, slog.LevelInfo, "Identity resolved", attrs...)
}

func (p *loggingResolutionProbe) ResolutionFailed(provider string, reason strategy.FailureReason, err error) {
	attrs := []slog.Attr{
		slog.String("provider", provider),
		slog.String("reason", string(reason)),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	p.logger.LogAttrs(p.ctx, slog.LevelWarn, "Identity resolution failed", attrs...)
}

func (p *loggingResolutionProbe) RoleAugmentationFailed(name string, err error) {
	p.logger.LogAttrs(p.ctx, slog.LevelWarn,
		"Role augmentation failed, continuing without extra roles",
		slog.String("name", name),
		slog.String("error", err.Error()),
	)
}

func (p *loggingResolutionProbe) End() {
	p.logger.LogAttrs(p.ctx, slog.LevelDebug, "Identity resolution completed")
}

// LookupStarted implements roles.CacheObserver
func (o *LoggingObserver) LookupStarted(ctx context.Context, name string) (context.Context, roles.CacheProbe) {
	probeLogger := o.logger.With(
		"event", EventRoleAugmentation,
		"name", name,
	)

	return ctx, &loggingCacheProbe{
		ctx:    ctx,
		logger: probeLogger,
	}
}

// loggingCacheProbe logs the events of a single role lookup
type loggingCacheProbe struct {
	roles.NoOpCacheProbe
	ctx    context.Context
	logger *slog.Logger
}

func (p *loggingCacheProbe) Hit(count int) {
	p.logger.LogAttrs(p.ctx, slog.LevelDebug, "Roles served from cache", slog.Int("roles", count))
}

func (p *loggingCacheProbe) Miss() {
	p.logger.LogAttrs(p.ctx, slog.LevelDebug, "Roles not cached, fetching")
}

func (p *loggingCacheProbe) Fetched(count int, shared bool) {
	p.logger.LogAttrs(p.ctx, slog.LevelDebug,
		"Roles fetched",
		slog.Int("roles", count),
		slog.Bool("shared", shared),
	)
}

func (p *loggingCacheProbe) FetchFailed(err error) {
	p.logger.LogAttrs(p.ctx, slog.LevelError,
		"Role fetch failed",
		slog.String("error", err.Error()),
	)
}

func (p *loggingCacheProbe) StoreFailed(err error) {
	p.logger.LogAttrs(p.ctx, slog.LevelWarn,
		"Role store unavailable",
		slog.String("error", err.Error()),
	)
}
