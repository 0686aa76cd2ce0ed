package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/project-kessel/edgeid/internal/config"
	"github.com/project-kessel/edgeid/internal/server"
)

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the edgeid server",
		Long: `Start the edgeid gRPC and HTTP servers.

The server will:
  - Answer Envoy ext_authz checks over gRPC, forwarding the resolved identity
    upstream as X-Edgeid-* headers
  - Serve GET /v1/whoami, health probes and Prometheus metrics over HTTP
  - Load configuration from file, environment variables, and command-line flags

Configuration precedence (highest to lowest):
  1. Command-line flags
  2. Environment variables (EDGEID_*)
  3. Configuration file (if --config or EDGEID_CONFIG is set)
  4. Built-in defaults

Examples:
  # Start with default settings
  edgeid serve

  # Override server ports
  edgeid serve --server-grpc-port 9091 --server-http-port 8081

  # Look up roles over HTTP, cached for five minutes
  edgeid serve --roles-enabled --roles-source-type http \
    --roles-source-url 'https://roles.internal/users/{name}' --roles-cache-ttl 5m

  # Use custom config file
  edgeid serve --config /etc/edgeid/config.yaml`,
		RunE: runServe,
	}

	config.RegisterFlags(cmd.Flags())

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loader, cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	provider := config.NewProvider(cfg)
	logger := provider.Logger()

	eng, err := provider.Engine()
	if err != nil {
		return fmt.Errorf("failed to create identity engine: %w", err)
	}

	serverCfg := provider.ServerConfig()
	serverCfg.Authenticator = eng
	serverCfg.Gatherer = provider.MetricsRegistry()

	srv := server.New(serverCfg)
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	// Every component is built; per-service health goes SERVING.
	srv.SetReady()

	go func() {
		err := loader.Watch(ctx, func(*config.Config) error {
			logger.Warn("Configuration file changed; restart edgeid to apply it", "path", configPath())
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Config watch stopped", "error", err)
		}
	}()

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(out, "edgeid is running")
	_, _ = fmt.Fprintf(out, "  gRPC (ext_authz):      %s\n", srv.GRPCAddr())
	_, _ = fmt.Fprintf(out, "  HTTP (whoami):         http://%s/v1/whoami\n", srv.HTTPAddr())
	_, _ = fmt.Fprintf(out, "  Metrics:               http://%s/metrics\n", srv.HTTPAddr())
	_, _ = fmt.Fprintf(out, "  Health (gRPC):         %s (grpc.health.v1.Health)\n", srv.GRPCAddr())
	_, _ = fmt.Fprintf(out, "  Health (HTTP live):    http://%s/healthz/live\n", srv.HTTPAddr())
	_, _ = fmt.Fprintf(out, "  Health (HTTP ready):   http://%s/healthz/ready\n", srv.HTTPAddr())
	_, _ = fmt.Fprintf(out, "  Auth endpoint:         %s\n", cfg.Auth.Endpoint)
	_, _ = fmt.Fprintf(out, "  Roles:                 %s\n", rolesSummary(cfg.Roles))
	_, _ = fmt.Fprintf(out, "  Config:                %s\n", configPath())

	<-ctx.Done()
	_, _ = fmt.Fprintln(out, "\nShutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	srv.SetNotReady()
	if err := srv.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("error during shutdown: %w", err)
	}

	_, _ = fmt.Fprintln(out, "Shutdown complete")
	return nil
}

func rolesSummary(cfg config.RolesConfig) string {
	if !cfg.Enabled {
		return "disabled"
	}
	return fmt.Sprintf("%s source, %s cache", cfg.Source.Type, cfg.Cache.Type)
}
