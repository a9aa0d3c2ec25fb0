package errors

import (
	"errors"
	"fmt"
)

// Error taxonomy for the login gateway
var (
	// Configuration errors
	ErrConfigIncomplete = errors.New("configuration incomplete")
	ErrInvalidMode      = errors.New("invalid operating mode")
	ErrSecretNotFound   = errors.New("secret not found")

	// OAuth session state errors
	ErrStateMissing  = errors.New("oauth state missing")
	ErrStateMismatch = errors.New("oauth state mismatch")

	// Identity provider errors
	ErrProviderDenied        = errors.New("identity provider denied the request")
	ErrMalformedCallback     = errors.New("malformed callback")
	ErrProviderExchange      = errors.New("provider token exchange failed")
	ErrIdentityVerification  = errors.New("identity verification failed")
	ErrCredentialIssuance    = errors.New("credential issuance failed")
	ErrInvalidSession        = errors.New("invalid session")
	ErrSignatureInvalid      = errors.New("credential signature invalid")
	ErrExpired               = errors.New("credential expired")
	ErrIssuerMismatch        = errors.New("credential issuer mismatch")
	ErrAudienceMismatch      = errors.New("credential audience mismatch")
	ErrMalformedCredential   = errors.New("credential malformed")
	ErrMissingIdentityClaims = errors.New("identity claims missing")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New is errors.New, re-exported so callers need a single errors import
func New(text string) error {
	return errors.New(text)
}
