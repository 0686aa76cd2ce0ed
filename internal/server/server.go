// Package server exposes identity resolution over HTTP (chi middleware and
// routes) and to Envoy (ext_authz over gRPC).
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	authv3 "github.com/envoyproxy/go-control-plane/envoy/service/auth/v3"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// healthServices are the per-service names reported by the gRPC health
// server. The overall status ("") stays SERVING while the process is up and
// serves as liveness.
var healthServices = []string{
	authv3.Authorization_ServiceDesc.ServiceName,
}

// Server manages the gRPC and HTTP servers
type Server struct {
	grpcServer   *grpc.Server
	httpServer   *http.Server
	healthServer *health.Server

	grpcPort int
	httpPort int

	authzServer   *AuthzServer
	authenticator Authenticator
	gatherer      prometheus.Gatherer
	logger        *slog.Logger

	grpcListener net.Listener
	httpListener net.Listener
}

// Config contains server configuration
type Config struct {
	GRPCPort int
	HTTPPort int

	// Authenticator resolves callers for both ext_authz and HTTP routes
	Authenticator Authenticator

	// Gatherer is served on /metrics. If nil, /metrics is not served.
	Gatherer prometheus.Gatherer

	Logger *slog.Logger
}

// New creates a new server with the given configuration
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		grpcPort:      cfg.GRPCPort,
		httpPort:      cfg.HTTPPort,
		authzServer:   NewAuthzServer(cfg.Authenticator),
		authenticator: cfg.Authenticator,
		gatherer:      cfg.Gatherer,
		logger:        logger,
	}
}

// Start starts both the gRPC and HTTP servers. Every health service starts
// NOT_SERVING; call SetReady once the process is ready for traffic.
func (s *Server) Start(ctx context.Context) error {
	// Create gRPC server
	s.grpcServer = grpc.NewServer()
	s.healthServer = health.NewServer()
	for _, svc := range healthServices {
		s.healthServer.SetServingStatus(svc, healthpb.HealthCheckResponse_NOT_SERVING)
	}

	// Register services
	authv3.RegisterAuthorizationServer(s.grpcServer, s.authzServer)
	healthpb.RegisterHealthServer(s.grpcServer, s.healthServer)

	// Register reflection service for grpcurl and other tools
	reflection.Register(s.grpcServer)

	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.grpcPort))
	if err != nil {
		return fmt.Errorf("failed to listen on gRPC port %d: %w", s.grpcPort, err)
	}
	s.grpcListener = grpcListener

	httpListener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.httpPort))
	if err != nil {
		_ = grpcListener.Close()
		return fmt.Errorf("failed to listen on HTTP port %d: %w", s.httpPort, err)
	}
	s.httpListener = httpListener

	go func() {
		s.logger.Info("gRPC server listening", "addr", grpcListener.Addr().String())
		if err := s.grpcServer.Serve(grpcListener); err != nil {
			s.logger.Error("gRPC server error", "error", err)
		}
	}()

	s.httpServer = &http.Server{
		Handler: NewRouter(RouterConfig{
			Authenticator: s.authenticator,
			Gatherer:      s.gatherer,
			Logger:        s.logger,
			Liveness:      s.handleLiveness,
			Readiness:     s.handleReadiness,
		}),
		BaseContext: func(net.Listener) context.Context {
			return context.WithoutCancel(ctx)
		},
	}

	go func() {
		s.logger.Info("HTTP server listening", "addr", httpListener.Addr().String())
		if err := s.httpServer.Serve(httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", "error", err)
		}
	}()

	return nil
}

// SetReady marks every health service SERVING
func (s *Server) SetReady() {
	s.setStatus(healthpb.HealthCheckResponse_SERVING)
}

// SetNotReady marks every health service NOT_SERVING
func (s *Server) SetNotReady() {
	s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
}

func (s *Server) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	for _, svc := range healthServices {
		s.healthServer.SetServingStatus(svc, status)
	}
}

// GRPCAddr returns the bound gRPC address, or "" before Start.
func (s *Server) GRPCAddr() string {
	if s.grpcListener == nil {
		return ""
	}
	return s.grpcListener.Addr().String()
}

// HTTPAddr returns the bound HTTP address, or "" before Start.
func (s *Server) HTTPAddr() string {
	if s.httpListener == nil {
		return ""
	}
	return s.httpListener.Addr().String()
}

// Stop gracefully stops both servers. Health services report NOT_SERVING
// first so load balancers drain the instance.
func (s *Server) Stop(ctx context.Context) error {
	if s.healthServer != nil {
		s.healthServer.Shutdown()
	}

	if s.grpcServer != nil {
		s.grpcServer.GracefulStop()
	}

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

// handleLiveness reports that the process is up
func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

// handleReadiness reports SERVING only when every health service is SERVING.
// Otherwise it names the first service that is not.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	for _, svc := range healthServices {
		resp, err := s.healthServer.Check(r.Context(), &healthpb.HealthCheckRequest{Service: svc})
		if err != nil || resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":  healthpb.HealthCheckResponse_NOT_SERVING.String(),
				"service": svc,
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": healthpb.HealthCheckResponse_SERVING.String()})
}
