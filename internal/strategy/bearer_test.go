package strategy

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-kessel/edgeid/internal/claims"
	"github.com/project-kessel/edgeid/internal/httpfixture"
	"github.com/project-kessel/edgeid/internal/identity"
)

func TestDecodePayload(t *testing.T) {
	t.Run("decodes unpadded payload", func(t *testing.T) {
		token := mintToken(t, jwt.MapClaims{"upn": "a@b.com", "n": 42})

		payload, err := DecodePayload(token)
		require.NoError(t, err)
		assert.Equal(t, "a@b.com", payload["upn"])
	})

	t.Run("accepts padded payload", func(t *testing.T) {
		seg := base64.URLEncoding.EncodeToString([]byte(`{"sub":"x"}`))
		payload, err := DecodePayload("e30." + seg + ".sig")
		require.NoError(t, err)
		assert.Equal(t, "x", payload["sub"])
	})

	tests := []struct {
		name  string
		token string
	}{
		{"single segment", "abc"},
		{"invalid base64", "e30.@@@@.sig"},
		{"not json", "e30." + base64.RawURLEncoding.EncodeToString([]byte("not json")) + ".sig"},
		{"json array", "e30." + base64.RawURLEncoding.EncodeToString([]byte(`["a"]`)) + ".sig"},
		{"json null", "e30." + base64.RawURLEncoding.EncodeToString([]byte(`null`)) + ".sig"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePayload(tt.token)
			require.ErrorIs(t, err, ErrDecode)
			assert.Equal(t, ReasonDecodeError, ReasonOf(err))
		})
	}
}

func TestBearer_Resolve(t *testing.T) {
	s := NewBearer(identity.NewBuilder())
	opts := s.DefaultOptions()

	t.Run("user token", func(t *testing.T) {
		r := bearerRequest(mintToken(t, jwt.MapClaims{
			"upn":   "a@b.com",
			"roles": "SystemAdmin",
			"idp":   "aad",
		}))
		require.True(t, s.CanHandle(r))

		id, err := s.Resolve(context.Background(), r, opts)
		require.NoError(t, err)
		assert.Equal(t, "a@b.com", id.Name())
		assert.True(t, id.HasRole("SystemAdmin"))
		assert.Equal(t, "aad", id.ProviderName())
		assert.Equal(t, claims.DefaultScope, id.Claims().GetString(claims.TypeScope))
	})

	t.Run("name precedence", func(t *testing.T) {
		tests := []struct {
			name    string
			payload jwt.MapClaims
			want    string
		}{
			{"upn first", jwt.MapClaims{"upn": "u", "appid": "a", "sub": "s", "iss": "i"}, "u"},
			{"appid before sub", jwt.MapClaims{"appid": "a", "sub": "s", "iss": "i"}, "a"},
			{"sub last", jwt.MapClaims{"sub": "s", "iss": "i"}, "s"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				id, err := s.Resolve(context.Background(), bearerRequest(mintToken(t, tt.payload)), opts)
				require.NoError(t, err)
				assert.Equal(t, tt.want, id.Name())
			})
		}
	})

	t.Run("issuer fallback", func(t *testing.T) {
		id, err := s.Resolve(context.Background(),
			bearerRequest(mintToken(t, jwt.MapClaims{"sub": "s", "iss": "https://sts.example.com/"})), opts)
		require.NoError(t, err)
		assert.Equal(t, "https://sts.example.com/", id.ProviderName())
	})

	t.Run("missing subject", func(t *testing.T) {
		_, err := s.Resolve(context.Background(),
			bearerRequest(mintToken(t, jwt.MapClaims{"iss": "i", "roles": "A"})), opts)
		require.ErrorIs(t, err, ErrMissingSubjectClaim)
		assert.Equal(t, ReasonMissingSubjectClaim, ReasonOf(err))
	})

	t.Run("missing issuer", func(t *testing.T) {
		_, err := s.Resolve(context.Background(),
			bearerRequest(mintToken(t, jwt.MapClaims{"sub": "s"})), opts)
		require.ErrorIs(t, err, ErrMissingIssuerClaim)
		assert.Equal(t, ReasonMissingIssuerClaim, ReasonOf(err))
	})

	t.Run("roles array and auth methods", func(t *testing.T) {
		id, err := s.Resolve(context.Background(), bearerRequest(mintToken(t, jwt.MapClaims{
			"sub":   "s",
			"iss":   "i",
			"roles": []string{"A", "B,C"},
			"amr":   []string{"pwd", "mfa"},
			"ver":   2.0,
		})), opts)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"A", "B", "C"}, id.Roles())
		assert.Equal(t, []string{"pwd", "mfa"}, id.FindAll(claims.TypeAuthentication))
		ver, _ := id.FindFirst("ver")
		assert.Equal(t, "2", ver)
	})

	t.Run("signature is not verified", func(t *testing.T) {
		token := mintToken(t, jwt.MapClaims{"upn": "a@b.com", "idp": "aad"})
		parts := strings.Split(token, ".")
		tampered := parts[0] + "." + parts[1] + ".bm90LWEtc2lnbmF0dXJl"

		id, err := s.Resolve(context.Background(), bearerRequest(tampered), opts)
		require.NoError(t, err)
		assert.Equal(t, "a@b.com", id.Name())
	})

	t.Run("rs256 token from unknown key", func(t *testing.T) {
		fixture, err := httpfixture.NewTokenFixture(httpfixture.TokenFixtureConfig{
			Issuer: "https://sts.example.com/tenant/",
		})
		require.NoError(t, err)
		token, err := fixture.CreateAndSignToken(map[string]any{"upn": "rs@example.com"})
		require.NoError(t, err)

		id, err := s.Resolve(context.Background(), bearerRequest(token), opts)
		require.NoError(t, err)
		assert.Equal(t, "rs@example.com", id.Name())
		assert.Equal(t, "https://sts.example.com/tenant/", id.ProviderName())
	})

	t.Run("malformed token", func(t *testing.T) {
		_, err := s.Resolve(context.Background(), bearerRequest("not-a-jwt"), opts)
		assert.Equal(t, ReasonDecodeError, ReasonOf(err))
	})
}

func TestBearer_CanHandle(t *testing.T) {
	s := NewBearer(identity.NewBuilder())

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.False(t, s.CanHandle(r))

	r.Header.Set(HeaderAuthorization, "Basic dXNlcjpwYXNz")
	assert.False(t, s.CanHandle(r))

	r.Header.Set(HeaderAuthorization, "Bearer ")
	assert.False(t, s.CanHandle(r))

	r.Header.Set(HeaderAuthorization, "bearer abc.def.ghi")
	assert.True(t, s.CanHandle(r))
}

func TestApplication(t *testing.T) {
	s := NewApplication(identity.NewBuilder())

	tests := []struct {
		name    string
		payload jwt.MapClaims
		want    bool
	}{
		{"idtyp app", jwt.MapClaims{"idtyp": "app", "appid": "a", "scp": "x"}, true},
		{"appid without user claims", jwt.MapClaims{"appid": "a"}, true},
		{"azp without user claims", jwt.MapClaims{"azp": "a"}, true},
		{"appid with upn", jwt.MapClaims{"appid": "a", "upn": "u"}, false},
		{"appid with scope", jwt.MapClaims{"appid": "a", "scp": "read"}, false},
		{"no appid", jwt.MapClaims{"sub": "s"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.CanHandle(bearerRequest(mintToken(t, tt.payload))))
		})
	}

	t.Run("no bearer", func(t *testing.T) {
		assert.False(t, s.CanHandle(httptest.NewRequest(http.MethodGet, "/", nil)))
	})

	t.Run("malformed bearer", func(t *testing.T) {
		assert.False(t, s.CanHandle(bearerRequest("garbage")))
	})

	t.Run("resolves top-level roles", func(t *testing.T) {
		r := bearerRequest(mintToken(t, jwt.MapClaims{
			"appid": "11111111-2222",
			"idp":   "aad",
			"roles": []string{"Jobs.Run", "Jobs.Read"},
			"oid":   "ignored",
		}))

		id, err := s.Resolve(context.Background(), r, s.DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, "11111111-2222", id.Name())
		assert.Equal(t, claims.TypeSPN, id.NameClaimType())
		assert.Equal(t, []string{"Jobs.Run", "Jobs.Read"}, id.Roles())
		assert.Equal(t, "aad", id.ProviderName())
		assert.False(t, id.Claims().Has("oid"))
	})

	t.Run("missing roles yields no roles", func(t *testing.T) {
		id, err := s.Resolve(context.Background(),
			bearerRequest(mintToken(t, jwt.MapClaims{"appid": "a", "iss": "i"})), s.DefaultOptions())
		require.NoError(t, err)
		assert.Empty(t, id.Roles())
	})

	t.Run("missing issuer", func(t *testing.T) {
		_, err := s.Resolve(context.Background(),
			bearerRequest(mintToken(t, jwt.MapClaims{"appid": "a"})), s.DefaultOptions())
		assert.ErrorIs(t, err, ErrMissingIssuerClaim)
	})
}

func TestReasonOf(t *testing.T) {
	assert.Equal(t, FailureReason(""), ReasonOf(nil))
	assert.Equal(t, ReasonRemoteFetchFailure, ReasonOf(ErrRemoteFetch))
	assert.Equal(t, ReasonUnknown, ReasonOf(assert.AnError))
}

// mintToken signs payload with a throwaway HMAC key. Nothing in edgeid knows
// the key; the tokens resolve because signatures are never checked.
func mintToken(t *testing.T, payload jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, payload).SignedString([]byte("throwaway-test-key"))
	require.NoError(t, err)
	return token
}

func bearerRequest(token string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "https://app.example.com/api", nil)
	r.Header.Set(HeaderAuthorization, "Bearer "+token)
	return r
}
