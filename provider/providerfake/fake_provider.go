package providerfake

import (
	"context"
	"net/url"
	"sync"

	"github.com/jrsteele09/go-auth-gateway/internal/errors"
	"github.com/jrsteele09/go-auth-gateway/provider"
)

// FakeProvider maps authorization codes to identities without any network
type FakeProvider struct {
	AuthURL string

	mu        sync.Mutex
	codes     map[string]provider.Identity
	errs      map[string]error
	exchanges []string
}

var _ provider.Provider = (*FakeProvider)(nil)

// NewFakeProvider creates a FakeProvider redirecting to authURL
func NewFakeProvider(authURL string) *FakeProvider {
	return &FakeProvider{
		AuthURL: authURL,
		codes:   make(map[string]provider.Identity),
		errs:    make(map[string]error),
	}
}

// AddIdentity makes code exchange to identity
func (f *FakeProvider) AddIdentity(code string, identity provider.Identity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes[code] = identity
}

// AddError makes code fail with err
func (f *FakeProvider) AddError(code string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[code] = err
}

// Exchanges returns the codes passed to Exchange, in order
func (f *FakeProvider) Exchanges() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.exchanges...)
}

func (f *FakeProvider) AuthCodeURL(state string) string {
	return f.AuthURL + "?state=" + url.QueryEscape(state)
}

func (f *FakeProvider) Exchange(_ context.Context, code string) (*provider.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exchanges = append(f.exchanges, code)
	if err, ok := f.errs[code]; ok {
		return nil, err
	}
	identity, ok := f.codes[code]
	if !ok {
		return nil, errors.Wrapf(errors.ErrProviderExchange, "invalid_grant for code %s", code)
	}
	delete(f.codes, code)
	return &identity, nil
}
