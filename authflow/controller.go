// Package authflow runs the two-phase OAuth login: Login sends the browser to
// the identity provider and Callback turns the provider's answer into either a
// session credential for the downstream application, a denial, or a failure.
package authflow

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/jrsteele09/go-auth-gateway/credential"
	"github.com/jrsteele09/go-auth-gateway/internal/errors"
	"github.com/jrsteele09/go-auth-gateway/oauthstate"
	"github.com/jrsteele09/go-auth-gateway/provider"
)

// User-facing messages for failed outcomes
const (
	msgProviderDenied   = "Sign-in was cancelled or denied by the identity provider."
	msgMalformed        = "The sign-in response was incomplete. Please sign in again."
	msgInvalidState     = "Your sign-in session is invalid or has expired. Please sign in again."
	msgExchangeFailed   = "Sign-in with the identity provider could not be completed."
	msgIdentityFailed   = "Your identity could not be verified."
	msgIssuanceFailed   = "A session could not be created. Please try again later."
	msgServerError      = "Internal server error."
	msgConfigIncomplete = "The server is not configured correctly."
)

// Policy decides whether a verified identity key may receive a credential
type Policy interface {
	IsAllowed(identityKey string) bool
}

// Options wires a Controller
type Options struct {
	Provider      provider.Provider
	Policy        Policy
	Signer        credential.Signer
	Issuer        string // this service's base URL
	AppURL        string // downstream application, also the credential audience
	CredentialTTL time.Duration
	StateTTL      time.Duration
}

// Controller holds no per-request state and is safe for concurrent use
type Controller struct {
	opts Options
}

// NewController validates opts and returns a Controller
func NewController(opts Options) (*Controller, error) {
	var missing []string
	if opts.Provider == nil {
		missing = append(missing, "provider")
	}
	if opts.Policy == nil {
		missing = append(missing, "policy")
	}
	if opts.Signer == nil {
		missing = append(missing, "signer")
	}
	if opts.Issuer == "" {
		missing = append(missing, "issuer")
	}
	if opts.AppURL == "" {
		missing = append(missing, "app url")
	}
	if len(missing) > 0 {
		return nil, errors.Wrapf(errors.ErrConfigIncomplete, "auth flow missing %v", missing)
	}
	if opts.CredentialTTL <= 0 {
		opts.CredentialTTL = credential.DefaultTTL
	}
	if opts.StateTTL <= 0 {
		opts.StateTTL = oauthstate.DefaultTTL
	}
	return &Controller{opts: opts}, nil
}

// StateTTL is the lifetime of the state cookie
func (c *Controller) StateTTL() time.Duration {
	return c.opts.StateTTL
}

// LoginResult tells the caller where to send the browser and what to store
type LoginResult struct {
	RedirectURL string
	State       string
	StateTTL    time.Duration
}

// Login starts an attempt: a fresh state plus the provider authorization URL
func (c *Controller) Login() (*LoginResult, error) {
	state, err := oauthstate.Generate()
	if err != nil {
		return nil, errors.Wrapf(err, "generate oauth state")
	}
	return &LoginResult{
		RedirectURL: c.opts.Provider.AuthCodeURL(state),
		State:       state,
		StateTTL:    c.opts.StateTTL,
	}, nil
}

// CallbackRequest is everything the callback step reads from the request
type CallbackRequest struct {
	Code          string
	State         string
	ProviderError string
	CookieState   string
}

// attempt carries values between callback steps
type attempt struct {
	req      CallbackRequest
	identity *provider.Identity
	token    string
}

// step either advances the attempt (nil) or ends it with an outcome
type step func(ctx context.Context, a *attempt) *Outcome

// Callback runs the callback pipeline. It always returns a terminal outcome;
// the caller must clear the state cookie whatever the result.
func (c *Controller) Callback(ctx context.Context, req CallbackRequest) Outcome {
	a := &attempt{req: req}
	steps := []step{
		c.checkProviderError,
		c.checkCode,
		c.validateState,
		c.exchangeCode,
		c.authorize,
		c.issueCredential,
	}
	for _, s := range steps {
		if out := s(ctx, a); out != nil {
			return *out
		}
	}
	return *redirect(KindAuthorized, c.opts.AppURL, url.Values{ParamAuthToken: {a.token}}, a.identity.Email)
}

func (c *Controller) checkProviderError(_ context.Context, a *attempt) *Outcome {
	if a.req.ProviderError == "" {
		return nil
	}
	return failed(http.StatusBadRequest, msgProviderDenied,
		errors.Wrapf(errors.ErrProviderDenied, "provider error %q", a.req.ProviderError))
}

func (c *Controller) checkCode(_ context.Context, a *attempt) *Outcome {
	if a.req.Code == "" {
		return failed(http.StatusBadRequest, msgMalformed,
			errors.Wrapf(errors.ErrMalformedCallback, "no authorization code"))
	}
	return nil
}

func (c *Controller) validateState(_ context.Context, a *attempt) *Outcome {
	if err := oauthstate.Validate(a.req.CookieState, a.req.State); err != nil {
		return failed(http.StatusBadRequest, msgInvalidState, err)
	}
	return nil
}

func (c *Controller) exchangeCode(ctx context.Context, a *attempt) *Outcome {
	identity, err := c.opts.Provider.Exchange(ctx, a.req.Code)
	if err != nil {
		msg := msgExchangeFailed
		if errors.Is(err, errors.ErrIdentityVerification) {
			msg = msgIdentityFailed
		}
		return failed(http.StatusInternalServerError, msg, err)
	}
	if identity == nil || identity.Email == "" {
		return failed(http.StatusInternalServerError, msgIdentityFailed,
			errors.Wrapf(errors.ErrIdentityVerification, "%v", errors.ErrMissingIdentityClaims))
	}
	a.identity = identity
	return nil
}

func (c *Controller) authorize(_ context.Context, a *attempt) *Outcome {
	if c.opts.Policy.IsAllowed(a.identity.Email) {
		return nil
	}
	return redirect(KindDenied, c.opts.AppURL, url.Values{
		ParamAuthError: {ReasonUnauthorizedUser},
		ParamEmail:     {a.identity.Email},
	}, a.identity.Email)
}

func (c *Controller) issueCredential(_ context.Context, a *attempt) *Outcome {
	name := a.identity.Name
	if name == "" {
		name = a.identity.Email
	}
	token, err := credential.Issue(credential.Identity{
		Subject: a.identity.Email,
		Email:   a.identity.Email,
		Name:    name,
	}, c.opts.Issuer, c.opts.AppURL, c.opts.Signer, c.opts.CredentialTTL)
	if err != nil {
		return failed(http.StatusInternalServerError, msgIssuanceFailed, err)
	}
	a.token = token
	return nil
}

// ConfigFailure is the outcome used when the flow cannot be built at all
func ConfigFailure(err error) Outcome {
	return *failed(http.StatusInternalServerError, msgConfigIncomplete, err)
}
