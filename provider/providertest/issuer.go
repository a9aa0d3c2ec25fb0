// Package providertest runs an in-process OpenID Connect issuer for tests:
// discovery document, JWKS and a token endpoint that mints RS256 ID tokens.
package providertest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const keyID = "test-key-1"

// JWKS represents a JSON Web Key Set
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK represents a JSON Web Key
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use,omitempty"`
	Kid string `json:"kid,omitempty"`
	Alg string `json:"alg,omitempty"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
}

// User is what the issuer asserts for an authorization code
type User struct {
	Subject       string
	Email         string
	Name          string
	EmailVerified *bool
}

// Issuer is a fake OIDC provider backed by httptest.Server
type Issuer struct {
	Server   *httptest.Server
	ClientID string
	Secret   string

	key *rsa.PrivateKey

	mu          sync.Mutex
	codes       map[string]User
	tokenCalls  int
	audOverride string
	keyOverride *rsa.PrivateKey
	failToken   bool
	omitIDToken bool
}

// NewIssuer starts an issuer and closes it when the test ends
func NewIssuer(t *testing.T, clientID, clientSecret string) *Issuer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	iss := &Issuer{
		ClientID: clientID,
		Secret:   clientSecret,
		key:      key,
		codes:    make(map[string]User),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", iss.discovery)
	mux.HandleFunc("GET /keys", iss.jwks)
	mux.HandleFunc("POST /token", iss.token)
	iss.Server = httptest.NewServer(mux)
	t.Cleanup(iss.Server.Close)
	return iss
}

// URL is the issuer identifier
func (i *Issuer) URL() string {
	return i.Server.URL
}

// AddCode registers a single-use authorization code for user
func (i *Issuer) AddCode(code string, user User) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.codes[code] = user
}

// TokenCalls returns how many times the token endpoint was hit
func (i *Issuer) TokenCalls() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.tokenCalls
}

// IssueForAudience makes the next ID tokens carry a different audience
func (i *Issuer) IssueForAudience(aud string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.audOverride = aud
}

// SignWithUnknownKey makes the next ID tokens fail signature verification
func (i *Issuer) SignWithUnknownKey(t *testing.T) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.keyOverride = key
}

// FailTokenEndpoint makes the token endpoint return a server error
func (i *Issuer) FailTokenEndpoint() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.failToken = true
}

// OmitIDToken makes the token endpoint answer without an id_token
func (i *Issuer) OmitIDToken() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.omitIDToken = true
}

func (i *Issuer) discovery(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                                i.URL(),
		"authorization_endpoint":                i.URL() + "/auth",
		"token_endpoint":                        i.URL() + "/token",
		"jwks_uri":                              i.URL() + "/keys",
		"id_token_signing_alg_values_supported": []string{"RS256"},
	})
}

func (i *Issuer) jwks(w http.ResponseWriter, _ *http.Request) {
	pub := i.key.PublicKey
	writeJSON(w, http.StatusOK, JWKS{Keys: []JWK{{
		Kty: "RSA",
		Use: "sig",
		Kid: keyID,
		Alg: "RS256",
		N:   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}}})
}

func (i *Issuer) token(w http.ResponseWriter, r *http.Request) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.tokenCalls++

	if i.failToken {
		http.Error(w, `{"error":"server_error"}`, http.StatusInternalServerError)
		return
	}
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	clientID, secret, ok := r.BasicAuth()
	if !ok {
		clientID, secret = r.PostForm.Get("client_id"), r.PostForm.Get("client_secret")
	}
	if clientID != i.ClientID || secret != i.Secret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	}

	code := r.PostForm.Get("code")
	user, ok := i.codes[code]
	if !ok || r.PostForm.Get("grant_type") != "authorization_code" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
		return
	}
	delete(i.codes, code)

	resp := map[string]any{
		"access_token": "access-" + code,
		"token_type":   "Bearer",
		"expires_in":   3600,
	}
	if !i.omitIDToken {
		idToken, err := i.signIDToken(user)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		resp["id_token"] = idToken
	}
	writeJSON(w, http.StatusOK, resp)
}

func (i *Issuer) signIDToken(user User) (string, error) {
	aud := i.ClientID
	if i.audOverride != "" {
		aud = i.audOverride
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   i.URL(),
		"sub":   user.Subject,
		"aud":   aud,
		"email": user.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
	if user.Name != "" {
		claims["name"] = user.Name
	}
	if user.EmailVerified != nil {
		claims["email_verified"] = *user.EmailVerified
	}

	key := i.key
	if i.keyOverride != nil {
		key = i.keyOverride
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = keyID
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign id token: %w", err)
	}
	return signed, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
