package roles

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-kessel/edgeid/internal/clock"
	"github.com/project-kessel/edgeid/internal/httpfixture"
	luaservices "github.com/project-kessel/edgeid/internal/lua"
)

func TestStaticSource(t *testing.T) {
	s := NewStaticSource(map[string][]string{
		"Jane@Example.com": {"Writer", "Reader"},
	}, []string{"SystemAdmin"})

	roles, err := s.Roles(context.Background(), "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"SystemAdmin", "Writer", "Reader"}, roles)

	roles, err = s.Roles(context.Background(), "someone-else")
	require.NoError(t, err)
	assert.Equal(t, []string{"SystemAdmin"}, roles)
}

func TestHTTPSource(t *testing.T) {
	transport := httpfixture.NewTransport(httpfixture.TransportConfig{
		Provider: httpfixture.NewMapProvider(map[string]*httpfixture.Fixture{
			"GET https://roles.example.com/users/jane@example.com": {
				StatusCode: 200,
				Body:       `["Reader","Writer"]`,
			},
			"GET https://roles.example.com/users/joe": {
				StatusCode: 200,
				Body:       `{"roles":["Admin"]}`,
			},
			"GET https://roles.example.com/users/ghost": {
				StatusCode: 404,
			},
			"GET https://roles.example.com/users/broken": {
				StatusCode: 503,
			},
			"GET https://roles.example.com/users/garbled": {
				StatusCode: 200,
				Body:       `"Admin"`,
			},
			"GET https://roles.example.com/lookup?name=joe": {
				StatusCode: 200,
				Body:       `["Query"]`,
			},
		}),
		Strict: true,
	})

	s, err := NewHTTPSource(HTTPSourceConfig{
		URL:       "https://roles.example.com/users/{name}",
		Headers:   map[string]string{"X-Api-Key": "k"},
		Transport: transport,
	})
	require.NoError(t, err)

	tests := []struct {
		name    string
		want    []string
		wantErr bool
	}{
		{"jane@example.com", []string{"Reader", "Writer"}, false},
		{"joe", []string{"Admin"}, false},
		{"ghost", nil, false},
		{"broken", nil, true},
		{"garbled", nil, true},
		{"unknown", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Roles(context.Background(), tt.name)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrSource)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	reqs := transport.Requests()
	require.NotEmpty(t, reqs)
	assert.Equal(t, "k", reqs[0].Header.Get("X-Api-Key"))
	assert.Equal(t, "application/json", reqs[0].Header.Get("Accept"))

	t.Run("query parameter without placeholder", func(t *testing.T) {
		q, err := NewHTTPSource(HTTPSourceConfig{
			URL:       "https://roles.example.com/lookup",
			Transport: transport,
		})
		require.NoError(t, err)

		got, err := q.Roles(context.Background(), "joe")
		require.NoError(t, err)
		assert.Equal(t, []string{"Query"}, got)
	})

	t.Run("requires url", func(t *testing.T) {
		_, err := NewHTTPSource(HTTPSourceConfig{})
		require.Error(t, err)
	})
}

func TestLuaSource(t *testing.T) {
	transport := httpfixture.NewTransport(httpfixture.TransportConfig{
		Provider: httpfixture.NewRuleBasedProvider([]httpfixture.HTTPFixtureRule{
			{
				Request: httpfixture.FixtureRequest{
					Method:  "GET",
					URL:     "https://directory.example.com/users/.*",
					URLType: "pattern",
				},
				Response: httpfixture.Fixture{
					StatusCode: 200,
					Body:       `{"groups":[{"name":"Reader"},{"name":"Writer"}]}`,
				},
			},
		}),
		Strict: true,
	})

	script := `
		function roles(name)
			if name == "robot" then
				return "Automation"
			end
			if name == "nobody" then
				return nil
			end
			if name == "fail" then
				return nil, "directory said no"
			end
			if name == "bad" then
				return 42
			end
			local resp, err = http.get(config.base_url .. "/users/" .. name)
			if resp == nil then
				return nil, err
			end
			local doc = json.decode(resp.body)
			local out = {}
			for _, g in ipairs(doc.groups) do
				table.insert(out, g.name)
			end
			return out
		end
	`

	s, err := NewLuaSource(LuaSourceConfig{
		Script:     script,
		Config:     map[string]any{"base_url": "https://directory.example.com"},
		HTTPConfig: luaservices.HTTPServiceConfig{Transport: transport},
	})
	require.NoError(t, err)

	tests := []struct {
		name    string
		want    []string
		wantErr string
	}{
		{name: "jane", want: []string{"Reader", "Writer"}},
		{name: "robot", want: []string{"Automation"}},
		{name: "nobody", want: []string{}},
		{name: "fail", wantErr: "directory said no"},
		{name: "bad", wantErr: "expected a string or list of strings"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Roles(context.Background(), tt.name)
			if tt.wantErr != "" {
				require.ErrorIs(t, err, ErrSource)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("honors cancellation", func(t *testing.T) {
		clk := clock.NewSystemClock()
		delay := time.Hour
		slow := httpfixture.NewTransport(httpfixture.TransportConfig{
			Provider: httpfixture.NewFuncProvider(func(*http.Request) *httpfixture.Fixture {
				return &httpfixture.Fixture{StatusCode: 200, Body: `{"groups":[]}`, Delay: &delay}
			}),
			Clock: clk,
		})
		s, err := NewLuaSource(LuaSourceConfig{
			Script:     script,
			Config:     map[string]any{"base_url": "https://directory.example.com"},
			HTTPConfig: luaservices.HTTPServiceConfig{Transport: slow},
		})
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err = s.Roles(ctx, "jane")
		require.ErrorIs(t, err, ErrSource)
	})

	t.Run("validation", func(t *testing.T) {
		_, err := NewLuaSource(LuaSourceConfig{})
		require.Error(t, err)

		_, err = NewLuaSource(LuaSourceConfig{Script: `function fetch(x) return x end`})
		require.ErrorContains(t, err, "'roles' function")

		_, err = NewLuaSource(LuaSourceConfig{Script: `function roles(`})
		require.ErrorContains(t, err, "failed to load script")
	})
}
