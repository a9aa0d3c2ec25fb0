package server

import (
	"net/http"

	"github.com/jrsteele09/go-auth-gateway/authflow"
	"github.com/jrsteele09/go-auth-gateway/oauthstate"
	"github.com/rs/zerolog"
)

// LoginHandler starts a login attempt: it stores a fresh state in a cookie and
// redirects the browser to the identity provider
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rt, err := s.runtime.Get(r.Context())
		if err != nil {
			s.writeOutcome(w, r, authflow.ConfigFailure(err))
			return
		}

		login, err := rt.Controller.Login()
		if err != nil {
			s.writeOutcome(w, r, authflow.ServerFailure(err))
			return
		}

		oauthstate.SetCookie(w, login.State, isSecureRequest(r), login.StateTTL)
		zerolog.Ctx(r.Context()).Debug().Str("state_prefix", login.State[:6]).Msg("Login started")
		http.Redirect(w, r, login.RedirectURL, http.StatusFound)
	}
}
