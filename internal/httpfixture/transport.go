package httpfixture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/project-kessel/edgeid/internal/clock"
)

// ErrNoFixture is returned by a strict transport, or one without a fallback,
// for a request no fixture matches.
var ErrNoFixture = errors.New("no fixture provided")

// TransportConfig configures a fixture transport
type TransportConfig struct {
	Provider FixtureProvider

	// Fallback serves unmatched requests of a non-strict transport.
	Fallback http.RoundTripper

	// Strict rejects unmatched requests even when Fallback is set.
	Strict bool

	// Clock drives fixture delays. Defaults to the system clock.
	Clock clock.Clock
}

// Transport is an http.RoundTripper answering from a FixtureProvider.
// It records every request it sees so tests can assert on outbound calls.
type Transport struct {
	cfg TransportConfig

	mu   sync.Mutex
	seen []*http.Request
}

// NewTransport creates a fixture transport
func NewTransport(cfg TransportConfig) *Transport {
	if cfg.Clock == nil {
		cfg.Clock = clock.NewSystemClock()
	}
	return &Transport{cfg: cfg}
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.mu.Lock()
	t.seen = append(t.seen, req.Clone(context.Background()))
	t.mu.Unlock()

	if f := t.cfg.Provider.GetFixture(req); f != nil {
		if f.Delay != nil {
			if err := t.sleep(req.Context(), *f.Delay); err != nil {
				return nil, err
			}
		}
		return f.response(req), nil
	}

	if t.cfg.Strict || t.cfg.Fallback == nil {
		return nil, fmt.Errorf("%w for request: %s %s", ErrNoFixture, req.Method, req.URL)
	}
	return t.cfg.Fallback.RoundTrip(req)
}

// Requests returns the requests seen so far, in order
func (t *Transport) Requests() []*http.Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*http.Request(nil), t.seen...)
}

func (t *Transport) sleep(ctx context.Context, d time.Duration) error {
	elapsed := make(chan struct{})
	go func() {
		defer close(elapsed)
		t.cfg.Clock.Sleep(d)
	}()

	select {
	case <-elapsed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Fixture) response(req *http.Request) *http.Response {
	header := make(http.Header, len(f.Headers))
	for k, v := range f.Headers {
		header.Set(k, v)
	}

	return &http.Response{
		Status:        strconv.Itoa(f.StatusCode) + " " + http.StatusText(f.StatusCode),
		StatusCode:    f.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(strings.NewReader(f.Body)),
		ContentLength: int64(len(f.Body)),
		Request:       req,
	}
}
