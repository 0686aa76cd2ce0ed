package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/project-kessel/edgeid/internal/config"
	"github.com/project-kessel/edgeid/internal/engine"
	"github.com/project-kessel/edgeid/internal/server"
)

// ErrResolutionFailed is returned by inspect when the selected strategy fails
var ErrResolutionFailed = errors.New("identity resolution failed")

// InspectResult is the JSON printed by the inspect command
type InspectResult struct {
	Status       string                 `json:"status"`
	ResolutionID string                 `json:"resolution_id"`
	Provider     string                 `json:"provider,omitempty"`
	Reason       string                 `json:"reason,omitempty"`
	Error        string                 `json:"error,omitempty"`
	Identity     *server.WhoAmIResponse `json:"identity,omitempty"`
}

// NewInspectResult renders outcome
func NewInspectResult(outcome engine.Outcome) InspectResult {
	result := InspectResult{
		Status:       outcome.Status.String(),
		ResolutionID: outcome.ID,
		Provider:     outcome.Provider,
		Reason:       string(outcome.Reason),
	}
	if outcome.Err != nil {
		result.Error = outcome.Err.Error()
	}
	if outcome.Identity != nil {
		id := server.NewWhoAmIResponse(outcome.Identity)
		result.Identity = &id
	}
	return result
}

type inspectOptions struct {
	method     string
	url        string
	headers    []string
	cookies    []string
	remoteAddr string
}

// NewInspectCmd creates the inspect command
func NewInspectCmd() *cobra.Command {
	opts := &inspectOptions{}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Resolve the identity of a synthetic request",
		Long: `Build a request from flags, run it through the configured strategies and
role source, and print the outcome as JSON.

Outbound calls (the remote auth document, HTTP and Lua role sources) use the
configured fixtures when there are any, so inspect can run fully offline.
The command exits non-zero when the selected strategy fails.

Examples:
  # Decode an inline principal header
  edgeid inspect -H "X-MS-CLIENT-PRINCIPAL: eyJhdXRoX3R5cCI6..."

  # Decode a bearer token
  edgeid inspect -H "Authorization: Bearer $TOKEN"

  # Fetch the auth document of a proxied app with a session cookie
  edgeid inspect --url https://app.example.com/ --cookie AppServiceAuthSession=abc`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.method, "method", "X", http.MethodGet, "request method")
	cmd.Flags().StringVar(&opts.url, "url", "http://localhost/", "request URL")
	cmd.Flags().StringArrayVarP(&opts.headers, "header", "H", nil, `request header as "Name: value" (repeatable)`)
	cmd.Flags().StringArrayVar(&opts.cookies, "cookie", nil, `request cookie as "name=value" (repeatable)`)
	cmd.Flags().StringVar(&opts.remoteAddr, "remote-addr", "", "client address as host:port")
	config.RegisterFlags(cmd.Flags())

	return cmd
}

func runInspect(cmd *cobra.Command, opts *inspectOptions) error {
	req, err := opts.request(cmd.Context())
	if err != nil {
		return err
	}

	_, cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	provider := config.NewProvider(cfg)
	// Keep stdout for the result.
	provider.SetLogger(config.NewLoggerWithWriter(cfg.Observability, cmd.ErrOrStderr()))

	eng, err := provider.Engine()
	if err != nil {
		return fmt.Errorf("failed to create identity engine: %w", err)
	}

	outcome := eng.Authenticate(req.Context(), req)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewInspectResult(outcome)); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}

	if outcome.Status == engine.StatusFail {
		return fmt.Errorf("%w: %s", ErrResolutionFailed, outcome.Reason)
	}
	return nil
}

// request builds the synthetic request described by the flags
func (o *inspectOptions) request(ctx context.Context) (*http.Request, error) {
	if !strings.HasPrefix(o.url, "http://") && !strings.HasPrefix(o.url, "https://") {
		return nil, fmt.Errorf("--url must be an absolute http(s) URL: %q", o.url)
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(o.method), o.url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	for _, h := range o.headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid header %q: want \"Name: value\"", h)
		}
		req.Header.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	for _, c := range o.cookies {
		name, value, ok := strings.Cut(c, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid cookie %q: want name=value", c)
		}
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	if o.remoteAddr != "" {
		req.RemoteAddr = o.remoteAddr
	}
	return req, nil
}
