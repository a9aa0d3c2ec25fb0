// Package provider talks to the external OpenID Connect identity provider:
// it builds the authorization redirect, exchanges the returned code and
// verifies the identity token that comes back.
package provider

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-auth-gateway/internal/errors"
	"golang.org/x/oauth2"
)

// GoogleIssuer is the default issuer
const GoogleIssuer = "https://accounts.google.com"

// Identity is the verified user asserted by the provider
type Identity struct {
	Subject string
	Email   string
	Name    string
}

// Provider is an OAuth 2.0 authorization-code identity provider
type Provider interface {
	// AuthCodeURL returns the URL the browser is sent to, carrying state
	AuthCodeURL(state string) string

	// Exchange trades an authorization code for a verified identity
	Exchange(ctx context.Context, code string) (*Identity, error)
}

// Config configures an OIDCProvider
type Config struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	Timeout      time.Duration

	// HTTPClient overrides the client used for discovery, key fetches and the
	// token exchange. Its Timeout is replaced by Timeout when that is set.
	HTTPClient *http.Client
}

// OIDCProvider implements Provider using discovery, x/oauth2 and go-oidc
type OIDCProvider struct {
	oauth2Config *oauth2.Config
	verifier     *oidc.IDTokenVerifier
	httpClient   *http.Client
	timeout      time.Duration
}

var _ Provider = (*OIDCProvider)(nil)

// NewOIDCProvider runs discovery against cfg.IssuerURL and prepares the verifier
func NewOIDCProvider(ctx context.Context, cfg Config) (*OIDCProvider, error) {
	if cfg.IssuerURL == "" {
		cfg.IssuerURL = GoogleIssuer
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{oidc.ScopeOpenID, "email", "profile"}
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	if cfg.HTTPClient != nil {
		copied := *cfg.HTTPClient
		if cfg.Timeout > 0 {
			copied.Timeout = cfg.Timeout
		}
		httpClient = &copied
	}

	discoveryCtx := oidc.ClientContext(ctx, httpClient)
	oidcProvider, err := oidc.NewProvider(discoveryCtx, cfg.IssuerURL)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create OIDC provider for %s", cfg.IssuerURL)
	}

	return &OIDCProvider{
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     oidcProvider.Endpoint(),
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
		},
		verifier: oidcProvider.Verifier(&oidc.Config{
			ClientID: cfg.ClientID,
		}),
		httpClient: httpClient,
		timeout:    cfg.Timeout,
	}, nil
}

func (p *OIDCProvider) AuthCodeURL(state string) string {
	return p.oauth2Config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
	)
}

// Exchange fails closed: any transport, provider or verification error means no identity.
func (p *OIDCProvider) Exchange(ctx context.Context, code string) (*Identity, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	token, err := p.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrProviderExchange, "code exchange: %v", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, errors.Wrapf(errors.ErrProviderExchange, "no id_token in token response")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrIdentityVerification, "id token: %v", err)
	}

	var claims struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified *bool  `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, errors.Wrapf(errors.ErrIdentityVerification, "extract claims: %v", err)
	}

	email := strings.TrimSpace(claims.Email)
	if email == "" {
		return nil, errors.Wrapf(errors.ErrIdentityVerification, "%v: email", errors.ErrMissingIdentityClaims)
	}
	if claims.EmailVerified != nil && !*claims.EmailVerified {
		return nil, errors.Wrapf(errors.ErrIdentityVerification, "email %s is not verified", email)
	}

	name := strings.TrimSpace(claims.Name)
	if name == "" {
		name = email
	}

	return &Identity{
		Subject: claims.Sub,
		Email:   email,
		Name:    name,
	}, nil
}
