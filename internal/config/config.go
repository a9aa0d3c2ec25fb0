package config

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jrsteele09/go-auth-gateway/internal/errors"
	"github.com/jrsteele09/go-auth-gateway/internal/secrets"
	"github.com/jrsteele09/go-auth-gateway/policy"
	"github.com/rs/zerolog/log"
)

// Logical secret names
const (
	KeyClientID     = "GOOGLE_CLIENT_ID"
	KeyClientSecret = "GOOGLE_CLIENT_SECRET"
	KeySigningKey   = "JWT_SECRET_KEY"
	KeyAppURL       = "STREAMLIT_APP_URL"
	KeyBaseURL      = "FUNCTION_BASE_URL"
	KeyAllowedUsers = "ALLOWED_USERS_LIST"

	// DirectEnvPrefix prefixes secret names in local_direct mode
	DirectEnvPrefix = "DIRECT_"

	// DirectAllowedUsersName is the local_direct name of KeyAllowedUsers,
	// read as DIRECT_ALLOWED_USERS_LIST_STR
	DirectAllowedUsersName = "ALLOWED_USERS_LIST_STR"

	// CallbackPath is appended to the base URL to form the OAuth redirect URI
	CallbackPath = "/auth_callback"
)

// Mode selects where secret values are resolved from
type Mode string

const (
	ModeLocalDirect Mode = "local_direct"
	ModeLocalSMTest Mode = "local_sm_test"
	ModeProd        Mode = "prod"
)

// ParseMode accepts the three known modes, case-insensitively
func ParseMode(raw string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(raw))); m {
	case ModeLocalDirect, ModeLocalSMTest, ModeProd:
		return m, nil
	default:
		return "", errors.Wrapf(errors.ErrInvalidMode, "%q must be one of %s, %s, %s", raw, ModeLocalDirect, ModeLocalSMTest, ModeProd)
	}
}

// UsesSecretManager reports whether secrets come from Secret Manager
func (m Mode) UsesSecretManager() bool {
	return m == ModeLocalSMTest || m == ModeProd
}

// IsProduction reports whether internal error detail must be withheld from clients
func (m Mode) IsProduction() bool {
	return m == ModeProd
}

// Settings is the resolved configuration. It is built once and never mutated,
// so it is shared between requests without locking.
type Settings struct {
	Mode            Mode
	ClientID        string `key:"GOOGLE_CLIENT_ID"     validate:"required"`
	ClientSecret    string `key:"GOOGLE_CLIENT_SECRET" validate:"required"`
	SigningKey      string `key:"JWT_SECRET_KEY"       validate:"required"`
	AppURL          string `key:"STREAMLIT_APP_URL"    validate:"required,url"`
	BaseURL         string `key:"FUNCTION_BASE_URL"    validate:"required,url"` // credential issuer, kept as configured
	RedirectURL     string `key:"REDIRECT_URI"         validate:"required,url"`
	IssuerURL       string `key:"OIDC_ISSUER_URL"      validate:"required,url"`
	AllowedUsers    policy.AllowList
	CredentialTTL   time.Duration `validate:"gt=0"`
	StateTTL        time.Duration `validate:"gt=0"`
	ProviderTimeout time.Duration `validate:"gt=0"`
}

// Validate reports every missing or malformed field as ErrConfigIncomplete
func (s *Settings) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if key := fld.Tag.Get("key"); key != "" {
			return key
		}
		return fld.Name
	})

	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return errors.Wrapf(errors.ErrConfigIncomplete, "missing or invalid: %s (mode %s)", strings.Join(fields, ", "), s.Mode)
}

// Resolve builds Settings for mode by reading every secret from src
func Resolve(ctx context.Context, vars EnvConfig, mode Mode, src secrets.Source) (*Settings, error) {
	values := make(map[string]string)
	for _, key := range []string{KeyClientID, KeyClientSecret, KeySigningKey, KeyAppURL, KeyBaseURL, KeyAllowedUsers} {
		v, err := src.Lookup(ctx, key)
		if err != nil {
			if errors.Is(err, errors.ErrSecretNotFound) {
				log.Warn().Str("key", key).Str("mode", string(mode)).Msg("Configuration value not found")
				continue
			}
			return nil, errors.Wrapf(err, "resolve %s", key)
		}
		values[key] = v
	}

	// downstream verifiers compare iss with the configured base URL byte for
	// byte, so only the redirect URI is normalised
	baseURL := values[KeyBaseURL]
	redirectURL := ""
	if trimmed := strings.TrimRight(baseURL, "/"); trimmed != "" {
		redirectURL = trimmed + CallbackPath
	}

	allowed := policy.ParseAllowList(values[KeyAllowedUsers])
	if allowed.Len() == 0 {
		log.Warn().Msg("Allow-list is empty: every login will be denied")
	}

	s := &Settings{
		Mode:            mode,
		ClientID:        values[KeyClientID],
		ClientSecret:    values[KeyClientSecret],
		SigningKey:      values[KeySigningKey],
		AppURL:          values[KeyAppURL],
		BaseURL:         baseURL,
		RedirectURL:     redirectURL,
		IssuerURL:       vars.GetIssuerURL(),
		AllowedUsers:    allowed,
		CredentialTTL:   vars.GetCredentialTTL(),
		StateTTL:        vars.GetStateTTL(),
		ProviderTimeout: vars.GetProviderTimeout(),
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	log.Info().
		Str("mode", string(mode)).
		Str("base_url", s.BaseURL).
		Str("redirect_uri", s.RedirectURL).
		Str("app_url", s.AppURL).
		Int("allowed_users", allowed.Len()).
		Msg("Configuration resolved")
	return s, nil
}

// Load resolves Settings from the environment, choosing the secret source by mode
func Load(ctx context.Context, vars EnvConfig) (*Settings, error) {
	mode, err := vars.GetMode()
	if err != nil {
		return nil, err
	}

	if !mode.UsesSecretManager() {
		src := secrets.NewEnvSource(DirectEnvPrefix).Rename(KeyAllowedUsers, DirectAllowedUsersName)
		return Resolve(ctx, vars, mode, src)
	}

	if vars.GetProjectID() == "" {
		return nil, errors.Wrapf(errors.ErrConfigIncomplete, "GCP_PROJECT is required in %s mode", mode)
	}
	src, err := secrets.NewSecretManagerSource(ctx, vars.GetProjectID())
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := src.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close secret manager client")
		}
	}()
	return Resolve(ctx, vars, mode, src)
}
