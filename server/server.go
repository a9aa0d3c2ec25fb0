package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-auth-gateway/authflow"
	"github.com/jrsteele09/go-auth-gateway/credential"
	"github.com/jrsteele09/go-auth-gateway/internal/config"
	"github.com/jrsteele09/go-auth-gateway/internal/errors"
	"github.com/jrsteele09/go-auth-gateway/internal/lazyinit"
	"github.com/jrsteele09/go-auth-gateway/provider"
	"github.com/rs/zerolog/log"
)

// Runtime is everything a request needs once configuration has been resolved
type Runtime struct {
	Settings   *config.Settings
	Controller *authflow.Controller
}

// RuntimeBuilder resolves configuration and wires the auth flow
type RuntimeBuilder func(ctx context.Context) (*Runtime, error)

// DefaultBuildTimeout bounds a runtime build whose caller set no deadline
const DefaultBuildTimeout = 30 * time.Second

type Server struct {
	appName string
	mode    config.Mode
	mux     *http.ServeMux
	routes  []string
	runtime *lazyinit.Value[Runtime]
}

// New creates the HTTP server. The runtime is built on the first request
// that needs it, or by Warmup.
func New(appName string, mode config.Mode, build RuntimeBuilder) *Server {
	s := &Server{
		appName: appName,
		mode:    mode,
		mux:     http.NewServeMux(),
		runtime: lazyinit.New(func(ctx context.Context) (*Runtime, error) {
			buildCtx, cancel := detach(ctx)
			defer cancel()
			return build(buildCtx)
		}),
	}

	s.initRoutes()
	s.logRoutes()
	return s
}

// detach keeps the caller's deadline but not its cancellation: the build is
// shared by every waiting request, so it must outlive the first one
func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(DefaultBuildTimeout)
	}
	return context.WithDeadline(context.WithoutCancel(ctx), deadline)
}

// NewRuntimeBuilder loads Settings for vars and builds the provider, signer
// and controller from them
func NewRuntimeBuilder(vars config.EnvConfig) RuntimeBuilder {
	return func(ctx context.Context) (*Runtime, error) {
		settings, err := config.Load(ctx, vars)
		if err != nil {
			return nil, err
		}

		idp, err := provider.NewOIDCProvider(ctx, provider.Config{
			IssuerURL:    settings.IssuerURL,
			ClientID:     settings.ClientID,
			ClientSecret: settings.ClientSecret,
			RedirectURL:  settings.RedirectURL,
			Timeout:      settings.ProviderTimeout,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "[NewRuntimeBuilder] identity provider")
		}

		controller, err := authflow.NewController(authflow.Options{
			Provider:      idp,
			Policy:        settings.AllowedUsers,
			Signer:        credential.NewHMACSigner(settings.SigningKey),
			Issuer:        settings.BaseURL,
			AppURL:        settings.AppURL,
			CredentialTTL: settings.CredentialTTL,
			StateTTL:      settings.StateTTL,
		})
		if err != nil {
			return nil, err
		}
		return &Runtime{Settings: settings, Controller: controller}, nil
	}
}

// Warmup builds the runtime now instead of on the first request
func (s *Server) Warmup(ctx context.Context) error {
	_, err := s.runtime.Get(ctx)
	return err
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.mode.IsProduction() {
		return
	}
	for _, route := range s.routes {
		method, path, found := strings.Cut(route, " ")
		if !found {
			method, path = "", route
		}
		log.Debug().Str("method", method).Str("path", path).Msg("Route registered")
	}
}

// getScheme reports the scheme the browser used, honouring a TLS-terminating proxy
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}

func isSecureRequest(r *http.Request) bool {
	return strings.EqualFold(getScheme(r), "https")
}
