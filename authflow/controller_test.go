package authflow_test

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-gateway/authflow"
	"github.com/jrsteele09/go-auth-gateway/credential"
	"github.com/jrsteele09/go-auth-gateway/internal/errors"
	"github.com/jrsteele09/go-auth-gateway/policy"
	"github.com/jrsteele09/go-auth-gateway/provider"
	"github.com/jrsteele09/go-auth-gateway/provider/providerfake"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer     = "https://auth.example.com"
	testAppURL     = "https://app.example.com/"
	testSigningKey = "signing-key-for-tests"
	testAuthURL    = "https://idp.example.com/auth"
)

type testFixture struct {
	provider   *providerfake.FakeProvider
	controller *authflow.Controller
	state      string
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	fp := providerfake.NewFakeProvider(testAuthURL)
	fp.AddIdentity("code-ok", provider.Identity{Subject: "111", Email: "ok@x.com", Name: "Ok User"})
	fp.AddIdentity("code-denied", provider.Identity{Subject: "222", Email: "user@x.com", Name: "User"})
	fp.AddIdentity("code-noname", provider.Identity{Subject: "333", Email: "noname@x.com"})

	c, err := authflow.NewController(authflow.Options{
		Provider:      fp,
		Policy:        policy.NewAllowList("ok@x.com", "noname@x.com"),
		Signer:        credential.NewHMACSigner(testSigningKey),
		Issuer:        testIssuer,
		AppURL:        testAppURL,
		CredentialTTL: time.Hour,
		StateTTL:      10 * time.Minute,
	})
	require.NoError(t, err)

	login, err := c.Login()
	require.NoError(t, err)

	return &testFixture{provider: fp, controller: c, state: login.State}
}

func (f *testFixture) callback(code, state, cookie, providerErr string) authflow.Outcome {
	return f.controller.Callback(context.Background(), authflow.CallbackRequest{
		Code:          code,
		State:         state,
		ProviderError: providerErr,
		CookieState:   cookie,
	})
}

func TestNewController(t *testing.T) {
	_, err := authflow.NewController(authflow.Options{})
	require.ErrorIs(t, err, errors.ErrConfigIncomplete)

	_, err = authflow.NewController(authflow.Options{
		Provider: providerfake.NewFakeProvider(testAuthURL),
		Policy:   policy.NewAllowList(),
		Signer:   credential.NewHMACSigner(testSigningKey),
		Issuer:   testIssuer,
	})
	require.ErrorIs(t, err, errors.ErrConfigIncomplete)
	require.Contains(t, err.Error(), "app url")
}

func TestController_Login(t *testing.T) {
	f := setupTestFixture(t)

	first, err := f.controller.Login()
	require.NoError(t, err)
	second, err := f.controller.Login()
	require.NoError(t, err)

	require.NotEqual(t, first.State, second.State)
	require.Equal(t, 10*time.Minute, first.StateTTL)

	u, err := url.Parse(first.RedirectURL)
	require.NoError(t, err)
	require.Equal(t, first.State, u.Query().Get("state"))
	require.True(t, strings.HasPrefix(first.RedirectURL, testAuthURL))
}

func TestController_Callback(t *testing.T) {
	t.Run("authorized", func(t *testing.T) {
		f := setupTestFixture(t)
		out := f.callback("code-ok", f.state, f.state, "")

		require.Equal(t, authflow.KindAuthorized, out.Kind)
		require.Equal(t, http.StatusFound, out.StatusCode)
		require.NoError(t, out.Err)

		u, err := url.Parse(out.Location)
		require.NoError(t, err)
		require.Equal(t, "app.example.com", u.Host)
		require.Empty(t, u.Query().Get(authflow.ParamAuthError))

		token := u.Query().Get(authflow.ParamAuthToken)
		require.NotEmpty(t, token)
		claims, err := credential.Verify(token, testAppURL, testIssuer, credential.NewHMACSigner(testSigningKey), 0)
		require.NoError(t, err)
		require.Equal(t, "ok@x.com", claims.Subject)
		require.Equal(t, "ok@x.com", claims.Email)
		require.Equal(t, "Ok User", claims.Name)
		require.WithinDuration(t, claims.IssuedAt.Add(time.Hour), claims.ExpiresAt, time.Second)
	})

	t.Run("name falls back to email", func(t *testing.T) {
		f := setupTestFixture(t)
		out := f.callback("code-noname", f.state, f.state, "")
		require.Equal(t, authflow.KindAuthorized, out.Kind)

		u, err := url.Parse(out.Location)
		require.NoError(t, err)
		claims, err := credential.Verify(u.Query().Get(authflow.ParamAuthToken), testAppURL, testIssuer, credential.NewHMACSigner(testSigningKey), 0)
		require.NoError(t, err)
		require.Equal(t, "noname@x.com", claims.Name)
	})

	t.Run("denied user is redirected with reason", func(t *testing.T) {
		f := setupTestFixture(t)
		out := f.callback("code-denied", f.state, f.state, "")

		require.Equal(t, authflow.KindDenied, out.Kind)
		require.Equal(t, http.StatusFound, out.StatusCode)
		require.Equal(t, "user@x.com", out.Email)

		u, err := url.Parse(out.Location)
		require.NoError(t, err)
		require.Equal(t, authflow.ReasonUnauthorizedUser, u.Query().Get(authflow.ParamAuthError))
		require.Equal(t, "user@x.com", u.Query().Get(authflow.ParamEmail))
		require.Empty(t, u.Query().Get(authflow.ParamAuthToken))
	})

	t.Run("provider error makes no provider calls", func(t *testing.T) {
		f := setupTestFixture(t)
		out := f.callback("code-ok", f.state, f.state, "access_denied")

		require.Equal(t, authflow.KindFailed, out.Kind)
		require.Equal(t, http.StatusBadRequest, out.StatusCode)
		require.ErrorIs(t, out.Err, errors.ErrProviderDenied)
		require.Empty(t, out.Location)
		require.Empty(t, f.provider.Exchanges())
	})

	t.Run("missing code", func(t *testing.T) {
		f := setupTestFixture(t)
		out := f.callback("", f.state, f.state, "")

		require.Equal(t, authflow.KindFailed, out.Kind)
		require.Equal(t, http.StatusBadRequest, out.StatusCode)
		require.ErrorIs(t, out.Err, errors.ErrMalformedCallback)
		require.Empty(t, f.provider.Exchanges())
	})

	t.Run("missing cookie", func(t *testing.T) {
		f := setupTestFixture(t)
		out := f.callback("code-ok", f.state, "", "")

		require.Equal(t, http.StatusBadRequest, out.StatusCode)
		require.ErrorIs(t, out.Err, errors.ErrStateMissing)
		require.Empty(t, f.provider.Exchanges())
	})

	t.Run("state mismatch", func(t *testing.T) {
		f := setupTestFixture(t)
		other, err := f.controller.Login()
		require.NoError(t, err)
		out := f.callback("code-ok", f.state, other.State, "")

		require.Equal(t, http.StatusBadRequest, out.StatusCode)
		require.ErrorIs(t, out.Err, errors.ErrStateMismatch)
		require.Empty(t, f.provider.Exchanges())
	})

	t.Run("exchange failure fails closed", func(t *testing.T) {
		f := setupTestFixture(t)
		f.provider.AddError("code-broken", errors.Wrapf(errors.ErrProviderExchange, "connection reset"))
		out := f.callback("code-broken", f.state, f.state, "")

		require.Equal(t, authflow.KindFailed, out.Kind)
		require.Equal(t, http.StatusInternalServerError, out.StatusCode)
		require.ErrorIs(t, out.Err, errors.ErrProviderExchange)
		require.Empty(t, out.Location)
		require.NotContains(t, out.Message, "connection reset")
	})

	t.Run("identity verification failure", func(t *testing.T) {
		f := setupTestFixture(t)
		f.provider.AddError("code-forged", errors.Wrapf(errors.ErrIdentityVerification, "bad signature"))
		out := f.callback("code-forged", f.state, f.state, "")

		require.Equal(t, http.StatusInternalServerError, out.StatusCode)
		require.ErrorIs(t, out.Err, errors.ErrIdentityVerification)
	})

	t.Run("identity without email", func(t *testing.T) {
		f := setupTestFixture(t)
		f.provider.AddIdentity("code-noemail", provider.Identity{Subject: "444"})
		out := f.callback("code-noemail", f.state, f.state, "")

		require.Equal(t, http.StatusInternalServerError, out.StatusCode)
		require.ErrorIs(t, out.Err, errors.ErrIdentityVerification)
	})

	t.Run("replayed state against cleared cookie", func(t *testing.T) {
		f := setupTestFixture(t)
		first := f.callback("code-ok", f.state, f.state, "")
		require.Equal(t, authflow.KindAuthorized, first.Kind)

		// the cookie was cleared by the first response, so the browser sends none
		replay := f.callback("code-ok", f.state, "", "")
		require.Equal(t, authflow.KindFailed, replay.Kind)
		require.ErrorIs(t, replay.Err, errors.ErrStateMissing)
		require.Equal(t, []string{"code-ok"}, f.provider.Exchanges())
	})
}

func TestController_IssuanceFailure(t *testing.T) {
	fp := providerfake.NewFakeProvider(testAuthURL)
	fp.AddIdentity("code-ok", provider.Identity{Subject: "111", Email: "ok@x.com"})
	c, err := authflow.NewController(authflow.Options{
		Provider: fp,
		Policy:   policy.NewAllowList("ok@x.com"),
		Signer:   credential.NewHMACSigner(""),
		Issuer:   testIssuer,
		AppURL:   testAppURL,
	})
	require.NoError(t, err)

	login, err := c.Login()
	require.NoError(t, err)
	out := c.Callback(context.Background(), authflow.CallbackRequest{Code: "code-ok", State: login.State, CookieState: login.State})

	require.Equal(t, authflow.KindFailed, out.Kind)
	require.Equal(t, http.StatusInternalServerError, out.StatusCode)
	require.ErrorIs(t, out.Err, errors.ErrCredentialIssuance)
	require.Empty(t, out.Location)
}

func TestController_AppURLWithQuery(t *testing.T) {
	fp := providerfake.NewFakeProvider(testAuthURL)
	fp.AddIdentity("code-ok", provider.Identity{Subject: "111", Email: "ok@x.com"})
	c, err := authflow.NewController(authflow.Options{
		Provider: fp,
		Policy:   policy.NewAllowList("ok@x.com"),
		Signer:   credential.NewHMACSigner(testSigningKey),
		Issuer:   testIssuer,
		AppURL:   "https://app.example.com/?page=home",
	})
	require.NoError(t, err)

	login, err := c.Login()
	require.NoError(t, err)
	out := c.Callback(context.Background(), authflow.CallbackRequest{Code: "code-ok", State: login.State, CookieState: login.State})
	require.Equal(t, authflow.KindAuthorized, out.Kind)

	u, err := url.Parse(out.Location)
	require.NoError(t, err)
	require.Equal(t, "home", u.Query().Get("page"))
	require.NotEmpty(t, u.Query().Get(authflow.ParamAuthToken))
}

func TestConfigFailure(t *testing.T) {
	out := authflow.ConfigFailure(errors.ErrConfigIncomplete)
	require.Equal(t, authflow.KindFailed, out.Kind)
	require.Equal(t, http.StatusInternalServerError, out.StatusCode)
	require.False(t, out.IsRedirect())
}
