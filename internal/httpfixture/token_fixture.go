package httpfixture

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/project-kessel/edgeid/internal/clock"
)

// TokenFixture mints RS256 tokens the way an upstream identity provider
// would. The signing key is generated per fixture and never published, so
// nothing downstream can verify these tokens.
type TokenFixture struct {
	issuer string
	key    jwk.Key
	keyID  string
	clock  clock.Clock
	ttl    time.Duration
}

// TokenFixtureConfig configures a token fixture
type TokenFixtureConfig struct {
	// Issuer is set as the iss claim. Empty leaves iss unset.
	Issuer string

	// KeyID is the key identifier (kid)
	// If empty, defaults to "test-key-1"
	KeyID string

	// Clock is the time source for iat and exp
	// If nil, uses system clock
	Clock clock.Clock

	// TTL is the token lifetime. Defaults to one hour.
	TTL time.Duration
}

// NewTokenFixture creates a token fixture with a generated RSA key.
func NewTokenFixture(cfg TokenFixtureConfig) (*TokenFixture, error) {
	keyID := cfg.KeyID
	if keyID == "" {
		keyID = "test-key-1"
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.NewSystemClock()
	}

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = time.Hour
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %w", err)
	}

	key, err := jwk.Import(privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWK from private key: %w", err)
	}
	if err := key.Set(jwk.KeyIDKey, keyID); err != nil {
		return nil, fmt.Errorf("failed to set key ID: %w", err)
	}
	if err := key.Set(jwk.AlgorithmKey, jwa.RS256()); err != nil {
		return nil, fmt.Errorf("failed to set algorithm: %w", err)
	}

	return &TokenFixture{
		issuer: cfg.Issuer,
		key:    key,
		keyID:  keyID,
		clock:  clk,
		ttl:    ttl,
	}, nil
}

// KeyID returns the key identifier
func (f *TokenFixture) KeyID() string {
	return f.keyID
}

// CreateAndSignToken creates a JWT carrying claims and signs it.
// iat, exp, and iss (when configured) are set unless claims override them.
func (f *TokenFixture) CreateAndSignToken(claims map[string]any) (string, error) {
	token := jwt.New()

	now := f.clock.Now()
	if err := token.Set(jwt.IssuedAtKey, now); err != nil {
		return "", fmt.Errorf("failed to set iat: %w", err)
	}
	if err := token.Set(jwt.ExpirationKey, now.Add(f.ttl)); err != nil {
		return "", fmt.Errorf("failed to set exp: %w", err)
	}
	if f.issuer != "" {
		if err := token.Set(jwt.IssuerKey, f.issuer); err != nil {
			return "", fmt.Errorf("failed to set iss: %w", err)
		}
	}

	for key, value := range claims {
		if err := token.Set(key, value); err != nil {
			return "", fmt.Errorf("failed to set claim %s: %w", key, err)
		}
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.RS256(), f.key))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return string(signed), nil
}
