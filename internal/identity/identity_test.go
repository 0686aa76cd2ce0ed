package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-kessel/edgeid/internal/claims"
)

func TestBuilder_Build(t *testing.T) {
	b := NewBuilder()

	t.Run("uses platform defaults for name and role", func(t *testing.T) {
		id := b.Build([]claims.Claim{
			claims.New(claims.TypeName, "jane"),
			claims.New(claims.TypeRoles, "Reader,Writer"),
		}, "aad", ProviderOptions{ProviderName: "aad"})

		assert.Equal(t, "jane", id.Name())
		assert.Equal(t, []string{"Reader", "Writer"}, id.Roles())
		assert.True(t, id.HasRole("Writer"))
		assert.False(t, id.HasRole("Admin"))
		assert.Equal(t, "aad", id.ProviderName())
		assert.Equal(t, DefaultScheme, id.AuthenticationScheme())
		assert.Equal(t, DefaultAuthenticationType, id.AuthenticationType())
		assert.True(t, id.IsAuthenticated())
	})

	t.Run("uses configured claim types", func(t *testing.T) {
		id := b.Build([]claims.Claim{
			claims.New("name", "Jane Doe"),
			claims.New(claims.TypeRoles, "A"),
		}, "facebook", ProviderOptions{
			ProviderName:  "facebook",
			NameClaimType: "name",
			RoleClaimType: "roles",
		})

		assert.Equal(t, "Jane Doe", id.Name())
		assert.Equal(t, "name", id.NameClaimType())
		assert.Equal(t, "roles", id.RoleClaimType())
		assert.Equal(t, []string{"A"}, id.Roles())
	})

	t.Run("exactly one scope and provider claim", func(t *testing.T) {
		inputs := [][]claims.Claim{
			nil,
			{claims.New(claims.TypeScope, "read")},
			{claims.New(claims.TypeProviderName, "twitter")},
			{claims.New(claims.TypeScope, "read"), claims.New(claims.TypeProviderName, "twitter")},
		}

		for _, raw := range inputs {
			id := b.Build(raw, "aad", ProviderOptions{ProviderName: "aad"})
			c := id.Claims()
			require.Equal(t, 1, c.Count(claims.TypeScope))
			require.Equal(t, 1, c.Count(claims.TypeProviderName))

			again := b.Build(c, "aad", ProviderOptions{ProviderName: "aad"})
			assert.Equal(t, c, again.Claims())
		}
	})

	t.Run("applies claims filter before normalization", func(t *testing.T) {
		filtered := NewBuilder(WithClaimsFilter(claims.NewDenyListClaimsFilter([]string{"secret"})))
		id := filtered.Build([]claims.Claim{
			claims.New("secret", "x"),
			claims.New(claims.TypeName, "jane"),
		}, "aad", ProviderOptions{})

		assert.False(t, id.Claims().Has("secret"))
		assert.Equal(t, "jane", id.Name())
	})

	t.Run("custom scheme", func(t *testing.T) {
		id := NewBuilder(WithScheme("Custom")).Build(nil, "aad", ProviderOptions{})
		assert.Equal(t, "Custom", id.AuthenticationScheme())
	})
}

func TestIdentity_Immutable(t *testing.T) {
	id := NewBuilder().Build([]claims.Claim{claims.New(claims.TypeRoles, "A")}, "aad", ProviderOptions{})

	c := id.Claims()
	c[0].Value = "tampered"
	assert.Equal(t, []string{"A"}, id.Roles())

	augmented := id.WithClaims(claims.New(claims.TypeRole, "B"))
	assert.Equal(t, []string{"A"}, id.Roles())
	assert.Equal(t, []string{"A", "B"}, augmented.Roles())
	assert.Equal(t, id.AuthenticationType(), augmented.AuthenticationType())
}

func TestContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	id := NewBuilder().Build(nil, "aad", ProviderOptions{})
	ctx := NewContext(context.Background(), id)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, id, got)
}

func TestProviderOptions_Merge(t *testing.T) {
	base := ProviderOptions{
		ProviderName:  "aad",
		NameClaimType: claims.TypeSPN,
		RoleClaimType: "roles",
		Enabled:       true,
	}

	t.Run("nil override is a no-op", func(t *testing.T) {
		got, err := base.Merge(nil)
		require.NoError(t, err)
		assert.Equal(t, base, got)
	})

	t.Run("mismatched provider is a configuration error", func(t *testing.T) {
		_, err := base.Merge(&ProviderOptions{ProviderName: "twitter"})
		require.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("blank values do not override", func(t *testing.T) {
		got, err := base.Merge(&ProviderOptions{ProviderName: "aad", NameClaimType: "  ", Enabled: true})
		require.NoError(t, err)
		assert.Equal(t, claims.TypeSPN, got.NameClaimType)
		assert.Equal(t, "roles", got.RoleClaimType)
	})

	t.Run("overrides claim types and enabled", func(t *testing.T) {
		got, err := base.Merge(&ProviderOptions{
			ProviderName:  "aad",
			NameClaimType: "upn",
			RoleClaimType: "groups",
			Enabled:       false,
		})
		require.NoError(t, err)
		assert.Equal(t, "upn", got.NameClaimType)
		assert.Equal(t, "groups", got.RoleClaimType)
		assert.False(t, got.Enabled)
	})

	t.Run("does not modify the receiver", func(t *testing.T) {
		orig := base
		_, err := base.Merge(&ProviderOptions{ProviderName: "aad", NameClaimType: "upn"})
		require.NoError(t, err)
		assert.Equal(t, orig, base)
	})
}
