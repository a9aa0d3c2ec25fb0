package server

import (
	"net/http"

	"github.com/jrsteele09/go-auth-gateway/authflow"
	"github.com/jrsteele09/go-auth-gateway/oauthstate"
)

// CallbackHandler completes a login attempt. The state cookie is cleared on
// every outcome, so a state can be presented at most once.
func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		oauthstate.ClearCookie(w, isSecureRequest(r))

		rt, err := s.runtime.Get(r.Context())
		if err != nil {
			s.writeOutcome(w, r, authflow.ConfigFailure(err))
			return
		}

		q := r.URL.Query()
		out := rt.Controller.Callback(r.Context(), authflow.CallbackRequest{
			Code:          q.Get("code"),
			State:         q.Get("state"),
			ProviderError: q.Get("error"),
			CookieState:   oauthstate.FromRequest(r),
		})
		s.writeOutcome(w, r, out)
	}
}
