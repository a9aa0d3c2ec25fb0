// Package credential issues and verifies the short-lived session credential
// handed to the downstream application after a successful login.
//
// The credential is an HS256 JWT whose payload is exactly
//
//	{"sub", "name", "email", "iss", "aud", "iat", "exp"}
//
// with "aud" encoded as a single string and times as unix seconds. Any
// verifier (Go or otherwise) that shares the signing key can check it.
package credential

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-gateway/internal/errors"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

const (
	// DefaultTTL is the lifetime of an issued credential
	DefaultTTL = 1 * time.Hour

	// DefaultLeeway is the clock skew tolerated by Verifier
	DefaultLeeway = 30 * time.Second
)

// Identity is the verified user the credential is issued for
type Identity struct {
	Subject string
	Email   string
	Name    string
}

// Claims is the decoded payload of a session credential
type Claims struct {
	Subject   string
	Name      string
	Email     string
	Issuer    string
	Audience  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// payload is the wire form used when parsing
type payload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Issue signs a credential for identity. A zero ttl uses DefaultTTL.
func Issue(identity Identity, issuer, audience string, signer Signer, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := NowTimeFunc()
	claims := jwt.MapClaims{
		"sub":   identity.Subject,
		"name":  identity.Name,
		"email": identity.Email,
		"iss":   issuer,
		"aud":   audience,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}

	signed, err := signer.Sign(claims)
	if err != nil {
		return "", errors.Wrapf(errors.ErrCredentialIssuance, "sign credential for %s: %v", identity.Subject, err)
	}
	return signed, nil
}

// Verify checks the signature, algorithm, issuer, audience and expiry of a
// credential and returns its claims.
//
// Failures wrap exactly one of ErrMalformedCredential, ErrSignatureInvalid,
// ErrExpired, ErrIssuerMismatch or ErrAudienceMismatch. Callers showing a
// result to an end user should pass the error through Public first.
func Verify(rawToken, expectedAudience, expectedIssuer string, signer Signer, leeway time.Duration) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, errors.ErrMalformedCredential
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(expectedIssuer),
		jwt.WithAudience(expectedAudience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(leeway),
		jwt.WithTimeFunc(NowTimeFunc),
	)

	var p payload
	token, err := parser.ParseWithClaims(rawToken, &p, signer.GetVerificationKey)
	if err != nil {
		return nil, classify(err)
	}
	if !token.Valid {
		return nil, errors.ErrSignatureInvalid
	}

	claims := &Claims{
		Subject:   p.Subject,
		Name:      p.Name,
		Email:     p.Email,
		Issuer:    p.Issuer,
		ExpiresAt: p.ExpiresAt.Time,
	}
	if len(p.Audience) > 0 {
		claims.Audience = p.Audience[0]
	}
	if p.IssuedAt != nil {
		claims.IssuedAt = p.IssuedAt.Time
	}
	return claims, nil
}

// classify maps jwt library errors onto the credential error kinds. Signature
// problems are checked first: claims of an unverified token mean nothing.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return errors.Wrapf(errors.ErrMalformedCredential, "%v", err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return errors.Wrapf(errors.ErrSignatureInvalid, "%v", err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return errors.Wrapf(errors.ErrExpired, "%v", err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return errors.Wrapf(errors.ErrIssuerMismatch, "%v", err)
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return errors.Wrapf(errors.ErrAudienceMismatch, "%v", err)
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return errors.Wrapf(errors.ErrMalformedCredential, "%v", err)
	default:
		return errors.Wrapf(errors.ErrSignatureInvalid, "%v", err)
	}
}

// Public collapses any verification error into ErrInvalidSession so the
// reason a credential was rejected never reaches the end user.
func Public(err error) error {
	if err == nil {
		return nil
	}
	return errors.ErrInvalidSession
}

// Verifier bundles the fixed inputs of Verify for a downstream application
type Verifier struct {
	Audience string
	Issuer   string
	Signer   Signer
	Leeway   time.Duration
}

// NewVerifier creates a Verifier with DefaultLeeway
func NewVerifier(audience, issuer, signingKey string) *Verifier {
	return &Verifier{
		Audience: audience,
		Issuer:   issuer,
		Signer:   NewHMACSigner(signingKey),
		Leeway:   DefaultLeeway,
	}
}

// Verify checks rawToken against the verifier's audience, issuer and key
func (v *Verifier) Verify(rawToken string) (*Claims, error) {
	return Verify(rawToken, v.Audience, v.Issuer, v.Signer, v.Leeway)
}
