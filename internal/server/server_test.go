package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	authv3 "github.com/envoyproxy/go-control-plane/envoy/service/auth/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/project-kessel/edgeid/internal/claims"
	"github.com/project-kessel/edgeid/internal/strategy"
)

// TestServerLifecycle drives a real server through
//
//	Start (NOT_SERVING) -> SetReady (SERVING) -> SetNotReady (NOT_SERVING) -> Stop
//
// over both HTTP and gRPC. Subtests share the server and run in order.
func TestServerLifecycle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	stub := strategy.NewStubStrategy("stub").
		WithCanHandle(func(r *http.Request) bool { return r.Header.Get("X-Test-User") != "" }).
		WithClaims(claims.New(claims.TypeName, "jane"), claims.New(claims.TypeRole, "Reader"))

	srv := New(Config{
		Authenticator: newTestEngine(t, stub),
		Gatherer:      prometheus.NewRegistry(),
	})
	require.NoError(t, srv.Start(ctx))

	stopped := false
	t.Cleanup(func() {
		if !stopped {
			_ = srv.Stop(context.Background())
		}
	})

	conn, err := grpc.NewClient(localAddr(t, srv.GRPCAddr()), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	healthClient := healthpb.NewHealthClient(conn)
	authzClient := authv3.NewAuthorizationClient(conn)
	httpClient := &http.Client{Timeout: 5 * time.Second}
	baseURL := "http://" + localAddr(t, srv.HTTPAddr())

	grpcStatus := func(t *testing.T, svc string) healthpb.HealthCheckResponse_ServingStatus {
		t.Helper()
		resp, err := healthClient.Check(ctx, &healthpb.HealthCheckRequest{Service: svc})
		require.NoError(t, err)
		return resp.GetStatus()
	}

	t.Run("before SetReady", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, httpStatus(t, httpClient, baseURL+"/healthz/live"))
		assert.Equal(t, http.StatusServiceUnavailable, httpStatus(t, httpClient, baseURL+"/healthz/ready"))

		assert.Equal(t, healthpb.HealthCheckResponse_SERVING, grpcStatus(t, ""), "overall status is liveness")
		for _, svc := range healthServices {
			assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, grpcStatus(t, svc), svc)
		}
	})

	srv.SetReady()

	t.Run("after SetReady", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, httpStatus(t, httpClient, baseURL+"/healthz/ready"))
		for _, svc := range healthServices {
			assert.Equal(t, healthpb.HealthCheckResponse_SERVING, grpcStatus(t, svc), svc)
		}
	})

	t.Run("ext_authz Check over gRPC", func(t *testing.T) {
		resp, err := authzClient.Check(ctx, checkRequest(map[string]string{"x-test-user": "1"}))
		require.NoError(t, err)
		require.Equal(t, int32(codes.OK), resp.GetStatus().GetCode())

		headers := headerMap(resp.GetOkResponse().GetHeaders())
		assert.Equal(t, "jane", headers[HeaderIdentityName])
		assert.Equal(t, "Reader", headers[HeaderIdentityRoles])
	})

	t.Run("whoami over HTTP", func(t *testing.T) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/v1/whoami", nil)
		require.NoError(t, err)
		req.Header.Set("X-Test-User", "1")

		resp, err := httpClient.Do(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		var body WhoAmIResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "jane", body.Name)
	})

	srv.SetNotReady()

	t.Run("after SetNotReady", func(t *testing.T) {
		assert.Equal(t, http.StatusServiceUnavailable, httpStatus(t, httpClient, baseURL+"/healthz/ready"))
		assert.Equal(t, http.StatusOK, httpStatus(t, httpClient, baseURL+"/healthz/live"))
		for _, svc := range healthServices {
			assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, grpcStatus(t, svc), svc)
		}
	})

	t.Run("Stop", func(t *testing.T) {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		require.NoError(t, srv.Stop(stopCtx))
		stopped = true

		_, err := httpClient.Get(baseURL + "/healthz/live")
		assert.Error(t, err)
	})
}

func TestServer_StartFailsOnBusyPort(t *testing.T) {
	first := New(Config{Authenticator: newTestEngine(t)})
	require.NoError(t, first.Start(context.Background()))
	t.Cleanup(func() { _ = first.Stop(context.Background()) })

	second := New(Config{
		Authenticator: newTestEngine(t),
		GRPCPort:      portOf(t, first.GRPCAddr()),
	})
	err := second.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen on gRPC port")
}

func httpStatus(t *testing.T, client *http.Client, url string) int {
	t.Helper()
	resp, err := client.Get(url)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode
}

// localAddr rewrites a wildcard listener address to localhost
func localAddr(t *testing.T, addr string) string {
	t.Helper()
	return net.JoinHostPort("localhost", strconv.Itoa(portOf(t, addr)))
}

func portOf(t *testing.T, addr string) int {
	t.Helper()
	tcp, err := net.ResolveTCPAddr("tcp", addr)
	require.NoError(t, err)
	return tcp.Port
}
