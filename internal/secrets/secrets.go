// Package secrets resolves logical secret names to string values.
package secrets

import (
	"context"
	"os"
	"strings"

	"github.com/jrsteele09/go-auth-gateway/internal/errors"
)

// Source looks up a secret by logical name. A missing secret returns an error
// wrapping errors.ErrSecretNotFound.
type Source interface {
	Lookup(ctx context.Context, name string) (string, error)
}

// EnvSource reads secrets straight from environment variables named Prefix+name.
// A renamed secret is read from Prefix+rename instead.
type EnvSource struct {
	Prefix  string
	renames map[string]string
	getenv  func(string) string
}

var _ Source = (*EnvSource)(nil)

// NewEnvSource creates an EnvSource backed by os.Getenv
func NewEnvSource(prefix string) *EnvSource {
	return &EnvSource{Prefix: prefix, getenv: os.Getenv}
}

// Rename reads the secret name from the variable Prefix+envName
func (e *EnvSource) Rename(name, envName string) *EnvSource {
	if e.renames == nil {
		e.renames = make(map[string]string)
	}
	e.renames[name] = envName
	return e
}

func (e *EnvSource) Lookup(_ context.Context, name string) (string, error) {
	key := e.Prefix + name
	if envName, ok := e.renames[name]; ok {
		key = e.Prefix + envName
	}
	value := strings.TrimSpace(e.getenv(key))
	if value == "" {
		return "", errors.Wrapf(errors.ErrSecretNotFound, "environment variable %s", key)
	}
	return value, nil
}
