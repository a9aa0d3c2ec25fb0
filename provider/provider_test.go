package provider_test

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-gateway/internal/errors"
	"github.com/jrsteele09/go-auth-gateway/provider"
	"github.com/jrsteele09/go-auth-gateway/provider/providertest"
	"github.com/stretchr/testify/require"
)

const (
	testClientID     = "client-1"
	testClientSecret = "secret-1"
	testRedirectURL  = "https://auth.example.com/callback"
)

func newProvider(t *testing.T, issuer *providertest.Issuer) *provider.OIDCProvider {
	t.Helper()
	p, err := provider.NewOIDCProvider(context.Background(), provider.Config{
		IssuerURL:    issuer.URL(),
		ClientID:     testClientID,
		ClientSecret: testClientSecret,
		RedirectURL:  testRedirectURL,
		Timeout:      5 * time.Second,
	})
	require.NoError(t, err)
	return p
}

func boolPtr(b bool) *bool { return &b }

func TestOIDCProvider_AuthCodeURL(t *testing.T) {
	issuer := providertest.NewIssuer(t, testClientID, testClientSecret)
	p := newProvider(t, issuer)

	u, err := url.Parse(p.AuthCodeURL("state-123"))
	require.NoError(t, err)
	require.Equal(t, issuer.URL()+"/auth", u.Scheme+"://"+u.Host+u.Path)

	q := u.Query()
	require.Equal(t, "state-123", q.Get("state"))
	require.Equal(t, testClientID, q.Get("client_id"))
	require.Equal(t, testRedirectURL, q.Get("redirect_uri"))
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, "openid email profile", q.Get("scope"))
	require.Equal(t, "offline", q.Get("access_type"))
	require.Equal(t, "consent", q.Get("prompt"))
}

func TestOIDCProvider_Exchange(t *testing.T) {
	ctx := context.Background()

	t.Run("verified identity", func(t *testing.T) {
		issuer := providertest.NewIssuer(t, testClientID, testClientSecret)
		p := newProvider(t, issuer)
		issuer.AddCode("good", providertest.User{Subject: "1234", Email: "ok@x.com", Name: "Ok User", EmailVerified: boolPtr(true)})

		id, err := p.Exchange(ctx, "good")
		require.NoError(t, err)
		require.Equal(t, &provider.Identity{Subject: "1234", Email: "ok@x.com", Name: "Ok User"}, id)
	})

	t.Run("name falls back to email", func(t *testing.T) {
		issuer := providertest.NewIssuer(t, testClientID, testClientSecret)
		p := newProvider(t, issuer)
		issuer.AddCode("good", providertest.User{Subject: "1234", Email: "ok@x.com"})

		id, err := p.Exchange(ctx, "good")
		require.NoError(t, err)
		require.Equal(t, "ok@x.com", id.Name)
	})

	t.Run("codes are single use", func(t *testing.T) {
		issuer := providertest.NewIssuer(t, testClientID, testClientSecret)
		p := newProvider(t, issuer)
		issuer.AddCode("good", providertest.User{Subject: "1234", Email: "ok@x.com"})

		_, err := p.Exchange(ctx, "good")
		require.NoError(t, err)
		_, err = p.Exchange(ctx, "good")
		require.ErrorIs(t, err, errors.ErrProviderExchange)
	})

	t.Run("unknown code", func(t *testing.T) {
		issuer := providertest.NewIssuer(t, testClientID, testClientSecret)
		p := newProvider(t, issuer)

		_, err := p.Exchange(ctx, "bad")
		require.ErrorIs(t, err, errors.ErrProviderExchange)
	})

	t.Run("token endpoint failure", func(t *testing.T) {
		issuer := providertest.NewIssuer(t, testClientID, testClientSecret)
		p := newProvider(t, issuer)
		issuer.AddCode("good", providertest.User{Subject: "1234", Email: "ok@x.com"})
		issuer.FailTokenEndpoint()

		_, err := p.Exchange(ctx, "good")
		require.ErrorIs(t, err, errors.ErrProviderExchange)
	})

	t.Run("missing id token", func(t *testing.T) {
		issuer := providertest.NewIssuer(t, testClientID, testClientSecret)
		p := newProvider(t, issuer)
		issuer.AddCode("good", providertest.User{Subject: "1234", Email: "ok@x.com"})
		issuer.OmitIDToken()

		_, err := p.Exchange(ctx, "good")
		require.ErrorIs(t, err, errors.ErrProviderExchange)
	})

	t.Run("wrong audience", func(t *testing.T) {
		issuer := providertest.NewIssuer(t, testClientID, testClientSecret)
		p := newProvider(t, issuer)
		issuer.AddCode("good", providertest.User{Subject: "1234", Email: "ok@x.com"})
		issuer.IssueForAudience("someone-else")

		_, err := p.Exchange(ctx, "good")
		require.ErrorIs(t, err, errors.ErrIdentityVerification)
	})

	t.Run("bad signature", func(t *testing.T) {
		issuer := providertest.NewIssuer(t, testClientID, testClientSecret)
		p := newProvider(t, issuer)
		issuer.AddCode("good", providertest.User{Subject: "1234", Email: "ok@x.com"})
		issuer.SignWithUnknownKey(t)

		_, err := p.Exchange(ctx, "good")
		require.ErrorIs(t, err, errors.ErrIdentityVerification)
	})

	t.Run("missing email", func(t *testing.T) {
		issuer := providertest.NewIssuer(t, testClientID, testClientSecret)
		p := newProvider(t, issuer)
		issuer.AddCode("good", providertest.User{Subject: "1234"})

		_, err := p.Exchange(ctx, "good")
		require.ErrorIs(t, err, errors.ErrIdentityVerification)
	})

	t.Run("unverified email", func(t *testing.T) {
		issuer := providertest.NewIssuer(t, testClientID, testClientSecret)
		p := newProvider(t, issuer)
		issuer.AddCode("good", providertest.User{Subject: "1234", Email: "ok@x.com", EmailVerified: boolPtr(false)})

		_, err := p.Exchange(ctx, "good")
		require.ErrorIs(t, err, errors.ErrIdentityVerification)
	})

	t.Run("wrong client secret", func(t *testing.T) {
		issuer := providertest.NewIssuer(t, testClientID, "other-secret")
		p := newProvider(t, issuer)
		issuer.AddCode("good", providertest.User{Subject: "1234", Email: "ok@x.com"})

		_, err := p.Exchange(ctx, "good")
		require.ErrorIs(t, err, errors.ErrProviderExchange)
	})
}

func TestNewOIDCProvider_DiscoveryFailure(t *testing.T) {
	_, err := provider.NewOIDCProvider(context.Background(), provider.Config{
		IssuerURL: "http://127.0.0.1:1",
		ClientID:  testClientID,
		Timeout:   time.Second,
	})
	require.Error(t, err)
}
