package config

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-kessel/edgeid/internal/probe"
)

func TestNewObserverWithLogger(t *testing.T) {
	logger := NewLoggerWithWriter(&ObservabilityConfig{}, &bytes.Buffer{})

	tests := []struct {
		name    string
		cfg     *ObservabilityConfig
		wantErr bool
	}{
		{"nil config", nil, false},
		{"logging", &ObservabilityConfig{Type: "logging"}, false},
		{"metrics", &ObservabilityConfig{Type: "metrics"}, false},
		{"noop", &ObservabilityConfig{Type: "noop"}, false},
		{"composite", &ObservabilityConfig{Type: "composite", Observers: []ObservabilityConfig{{Type: "logging"}, {Type: "metrics"}}}, false},
		{"empty composite", &ObservabilityConfig{Type: "composite"}, true},
		{"composite with bad child", &ObservabilityConfig{Type: "composite", Observers: []ObservabilityConfig{{Type: "tracing"}}}, true},
		{"unknown", &ObservabilityConfig{Type: "tracing"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			observer, err := NewObserverWithLogger(tt.cfg, logger, prometheus.NewRegistry())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, observer)
		})
	}
}

func TestEventFilteringHandler(t *testing.T) {
	disabled := false
	ctx := context.Background()

	t.Run("event level override applies to loggers bound with With", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLoggerWithWriter(&ObservabilityConfig{
			LogLevel:           "info",
			IdentityResolution: &EventLoggingConfig{LogLevel: "debug"},
		}, &buf)

		logger.With("event", probe.EventIdentityResolution).DebugContext(ctx, "resolution detail")
		logger.With("event", probe.EventRoleAugmentation).DebugContext(ctx, "augmentation detail")
		logger.DebugContext(ctx, "plain detail")

		out := buf.String()
		assert.Contains(t, out, "resolution detail")
		assert.NotContains(t, out, "augmentation detail")
		assert.NotContains(t, out, "plain detail")
	})

	t.Run("event attribute on the record", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLoggerWithWriter(&ObservabilityConfig{
			LogLevel:         "info",
			RoleAugmentation: &EventLoggingConfig{LogLevel: "debug"},
		}, &buf)

		logger.DebugContext(ctx, "augmentation detail", "event", probe.EventRoleAugmentation)
		logger.DebugContext(ctx, "resolution detail", "event", probe.EventIdentityResolution)

		out := buf.String()
		assert.Contains(t, out, "augmentation detail")
		assert.NotContains(t, out, "resolution detail")
	})

	t.Run("disabled event is dropped at every level", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLoggerWithWriter(&ObservabilityConfig{
			LogLevel:           "debug",
			IdentityResolution: &EventLoggingConfig{Enabled: &disabled},
		}, &buf)

		resolution := logger.With("event", probe.EventIdentityResolution)
		resolution.ErrorContext(ctx, "resolution failure")
		assert.False(t, resolution.Enabled(ctx, slog.LevelError))
		logger.InfoContext(ctx, "other")

		out := buf.String()
		assert.NotContains(t, out, "resolution failure")
		assert.Contains(t, out, "other")
	})

	t.Run("text format", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLoggerWithWriter(&ObservabilityConfig{LogFormat: "text"}, &buf)
		logger.InfoContext(ctx, "hello", "k", "v")

		out := buf.String()
		assert.True(t, strings.Contains(out, "msg=hello"), out)
		assert.Contains(t, out, "k=v")
	})
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", parseLogLevel("Debug").String())
	assert.Equal(t, "WARN", parseLogLevel("warning").String())
	assert.Equal(t, "ERROR", parseLogLevel("error").String())
	assert.Equal(t, "INFO", parseLogLevel("verbose").String())
}
