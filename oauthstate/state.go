// Package oauthstate generates and validates the anti-CSRF value that ties an
// OAuth callback to the browser that started the login.
//
// The same value travels twice: once in an HTTP-only cookie set at login time
// and once as the OAuth "state" parameter echoed back by the provider.
package oauthstate

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/jrsteele09/go-auth-gateway/internal/errors"
)

const (
	// CookieName is the cookie holding the in-flight state value
	CookieName = "oauth_state"

	// DefaultTTL bounds how long a login attempt may wait for its callback
	DefaultTTL = 10 * time.Minute

	// tokenLength is 32 bytes = 256 bits
	tokenLength = 32
)

// Generate returns a fresh random state token.
func Generate() (string, error) {
	b := make([]byte, tokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Validate checks the cookie value against the state returned by the provider.
// It returns ErrStateMissing when either value is empty and ErrStateMismatch otherwise.
func Validate(cookieValue, returnedValue string) error {
	if cookieValue == "" || returnedValue == "" {
		return errors.ErrStateMissing
	}
	if subtle.ConstantTimeCompare([]byte(cookieValue), []byte(returnedValue)) != 1 {
		return errors.ErrStateMismatch
	}
	return nil
}

// FromRequest reads the state cookie, returning "" when absent.
func FromRequest(r *http.Request) string {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// SetCookie stores the state value. maxAge should match the state TTL.
func SetCookie(w http.ResponseWriter, value string, secure bool, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(maxAge.Seconds()),
	})
}

// ClearCookie expires the state cookie using the same path and flags it was set with.
func ClearCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
