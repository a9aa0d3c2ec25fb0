package server

import (
	"fmt"
	"net/http"

	"github.com/jrsteele09/go-auth-gateway/authflow"
	"github.com/rs/zerolog"
)

// IndexHandler reports what this service is
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "%s is running. Sign in at %s\n", s.appName, RouteLogin)
	}
}

// HealthHandler reports liveness. It does not touch configuration.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	}
}

// writeOutcome logs the outcome and sends it to the browser. Outside
// production the internal error is appended to the message.
func (s *Server) writeOutcome(w http.ResponseWriter, r *http.Request, out authflow.Outcome) {
	logger := zerolog.Ctx(r.Context())

	switch out.Kind {
	case authflow.KindAuthorized:
		logger.Info().Str("email", out.Email).Msg("Login authorized")
	case authflow.KindDenied:
		logger.Warn().Str("email", out.Email).Msg("Login denied: identity not on allow-list")
	default:
		logger.Error().Err(out.Err).Int("status", out.StatusCode).Msg(out.Message)
	}

	if out.IsRedirect() {
		http.Redirect(w, r, out.Location, out.StatusCode)
		return
	}

	msg := out.Message
	if !s.mode.IsProduction() && out.Err != nil {
		msg = fmt.Sprintf("%s (%v)", msg, out.Err)
	}
	http.Error(w, msg, out.StatusCode)
}
