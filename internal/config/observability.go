package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/project-kessel/edgeid/internal/probe"
)

// levelDisabled is above every real level
const levelDisabled = slog.Level(1000)

// NewObserver creates an observer from configuration.
// This is a convenience wrapper that creates its own logger from cfg and
// registers metrics with prometheus.DefaultRegisterer.
func NewObserver(cfg *ObservabilityConfig) (probe.Observer, error) {
	return NewObserverWithLogger(cfg, NewLogger(cfg), prometheus.DefaultRegisterer)
}

// NewObserverWithLogger creates an observer using the provided logger and
// metrics registerer. Use this when the observer must share a logger with
// other components.
func NewObserverWithLogger(cfg *ObservabilityConfig, logger *slog.Logger, registerer prometheus.Registerer) (probe.Observer, error) {
	if cfg == nil {
		// Default to no-op observer if not configured
		return probe.NoOpObserver(), nil
	}

	switch cfg.Type {
	case "logging":
		return probe.NewLoggingObserver(logger), nil
	case "metrics":
		return probe.NewMetricsObserver(registerer), nil
	case "noop", "":
		return probe.NoOpObserver(), nil
	case "composite":
		return newCompositeObserver(cfg, logger, registerer)
	default:
		return nil, fmt.Errorf("unknown observability type: %s (supported: logging, metrics, noop, composite)", cfg.Type)
	}
}

// NewLogger creates a structured logger from the observability configuration.
// Returns slog.Default() if cfg is nil.
func NewLogger(cfg *ObservabilityConfig) *slog.Logger {
	return NewLoggerWithWriter(cfg, os.Stdout)
}

// NewLoggerWithWriter is NewLogger writing to w.
func NewLoggerWithWriter(cfg *ObservabilityConfig, w io.Writer) *slog.Logger {
	if cfg == nil {
		return slog.Default()
	}

	defaultLevel := parseLogLevel(cfg.LogLevel)
	handler := createEventFilteringHandler(cfg, w, defaultLevel)
	return slog.New(handler)
}

// newCompositeObserver creates a composite observer that delegates to multiple observers
func newCompositeObserver(cfg *ObservabilityConfig, logger *slog.Logger, registerer prometheus.Registerer) (probe.Observer, error) {
	if len(cfg.Observers) == 0 {
		return nil, fmt.Errorf("composite observer requires at least one sub-observer")
	}

	var observers []probe.Observer
	for i, subCfg := range cfg.Observers {
		observer, err := NewObserverWithLogger(&subCfg, logger, registerer)
		if err != nil {
			return nil, fmt.Errorf("failed to create observer %d: %w", i, err)
		}
		observers = append(observers, observer)
	}

	return probe.NewCompositeObserver(observers...), nil
}

// eventLevel resolves the level override of one event, if any
func eventLevel(cfg *EventLoggingConfig) (slog.Level, bool) {
	if cfg == nil {
		return 0, false
	}
	if cfg.Enabled != nil && !*cfg.Enabled {
		return levelDisabled, true
	}
	if cfg.LogLevel != "" {
		return parseLogLevel(cfg.LogLevel), true
	}
	return 0, false
}

// createEventFilteringHandler creates a handler that filters log events based on the event attribute
func createEventFilteringHandler(cfg *ObservabilityConfig, w io.Writer, defaultLevel slog.Level) slog.Handler {
	eventLevels := make(map[string]slog.Level)
	if level, ok := eventLevel(cfg.IdentityResolution); ok {
		eventLevels[probe.EventIdentityResolution] = level
	}
	if level, ok := eventLevel(cfg.RoleAugmentation); ok {
		eventLevels[probe.EventRoleAugmentation] = level
	}

	// The base handler admits everything an event override may ask for;
	// eventFilteringHandler enforces the default level itself.
	minLevel := defaultLevel
	for _, level := range eventLevels {
		if level < minLevel {
			minLevel = level
		}
	}

	return &eventFilteringHandler{
		next:         createHandler(cfg.LogFormat, w, minLevel),
		eventLevels:  eventLevels,
		defaultLevel: defaultLevel,
		minLevel:     minLevel,
	}
}

// eventFilteringHandler wraps a handler and filters based on the event
// attribute, whether it was attached with Logger.With or on the record.
type eventFilteringHandler struct {
	next         slog.Handler
	eventLevels  map[string]slog.Level
	defaultLevel slog.Level
	minLevel     slog.Level
	event        string
}

func (h *eventFilteringHandler) Enabled(ctx context.Context, level slog.Level) bool {
	// Without a bound event the record's own attributes may still name
	// one, so admit the lowest configured level and decide in Handle.
	if h.event == "" {
		return level >= h.minLevel
	}
	return level >= h.threshold(h.event)
}

func (h *eventFilteringHandler) Handle(ctx context.Context, record slog.Record) error {
	eventName := h.event
	record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == "event" {
			eventName = attr.Value.String()
			return false // Stop iteration
		}
		return true
	})

	if record.Level < h.threshold(eventName) {
		return nil
	}
	return h.next.Handle(ctx, record)
}

// threshold returns the level records of eventName must reach
func (h *eventFilteringHandler) threshold(eventName string) slog.Level {
	if level, ok := h.eventLevels[eventName]; ok {
		return level
	}
	return h.defaultLevel
}

func (h *eventFilteringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.next = h.next.WithAttrs(attrs)
	for _, attr := range attrs {
		if attr.Key == "event" {
			clone.event = attr.Value.String()
		}
	}
	return &clone
}

func (h *eventFilteringHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.next = h.next.WithGroup(name)
	return &clone
}

// createHandler creates a slog handler based on format and level
func createHandler(format string, w io.Writer, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: level,
	}

	switch strings.ToLower(format) {
	case "text":
		return slog.NewTextHandler(w, opts)
	default:
		return slog.NewJSONHandler(w, opts)
	}
}

// parseLogLevel parses a log level string
func parseLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		// Default to info
		return slog.LevelInfo
	}
}
