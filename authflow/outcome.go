package authflow

import (
	"net/http"
	"net/url"

	"github.com/jrsteele09/go-auth-gateway/internal/errors"
)

// Kind is the terminal state of a login attempt
type Kind string

const (
	KindAuthorized Kind = "authorized"
	KindDenied     Kind = "denied"
	KindFailed     Kind = "failed"
)

// Reason codes carried to the downstream application
const (
	ReasonUnauthorizedUser = "unauthorized_user"

	ParamAuthToken = "auth_token"
	ParamAuthError = "auth_error"
	ParamEmail     = "email"
)

// Outcome is the terminal result of a callback. Authorized and Denied carry a
// redirect Location; Failed carries a status code and a user-facing Message.
// Err holds internal detail for logs and is never shown to users in production.
type Outcome struct {
	Kind       Kind
	StatusCode int
	Location   string
	Message    string
	Email      string
	Err        error
}

// IsRedirect reports whether the outcome redirects the browser
func (o Outcome) IsRedirect() bool {
	return o.Location != ""
}

func failed(status int, message string, err error) *Outcome {
	return &Outcome{
		Kind:       KindFailed,
		StatusCode: status,
		Message:    message,
		Err:        err,
	}
}

// redirectTo appends params to base, keeping any query base already has
func redirectTo(base string, params url.Values) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", errors.Wrapf(err, "parse redirect target %q", base)
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func redirect(kind Kind, base string, params url.Values, email string) *Outcome {
	location, err := redirectTo(base, params)
	if err != nil {
		return failed(http.StatusInternalServerError, msgServerError, err)
	}
	return &Outcome{
		Kind:       kind,
		StatusCode: http.StatusFound,
		Location:   location,
		Email:      email,
	}
}

// ServerFailure is a 500 outcome for errors outside the callback pipeline
func ServerFailure(err error) Outcome {
	return *failed(http.StatusInternalServerError, msgServerError, err)
}
