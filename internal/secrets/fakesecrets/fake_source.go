package fakesecrets

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-auth-gateway/internal/errors"
	"github.com/jrsteele09/go-auth-gateway/internal/secrets"
)

// FakeSource is an in-memory secrets.Source for tests
type FakeSource struct {
	mu      sync.Mutex
	values  map[string]string
	lookups map[string]int
	Err     error
}

var _ secrets.Source = (*FakeSource)(nil)

// NewFakeSource creates a FakeSource holding values
func NewFakeSource(values map[string]string) *FakeSource {
	copied := make(map[string]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return &FakeSource{values: copied, lookups: make(map[string]int)}
}

func (f *FakeSource) Lookup(_ context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups[name]++
	if f.Err != nil {
		return "", f.Err
	}
	v, ok := f.values[name]
	if !ok || v == "" {
		return "", errors.Wrapf(errors.ErrSecretNotFound, "fake secret %s", name)
	}
	return v, nil
}

// Set replaces a value
func (f *FakeSource) Set(name, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[name] = value
}

// Lookups returns how many times name was requested
func (f *FakeSource) Lookups(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lookups[name]
}
