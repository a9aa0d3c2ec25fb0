package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvConfig exposes the process-level settings the server needs before the
// secret-backed configuration is resolved.
type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetMode() (Mode, error)
	GetProjectID() string
	GetLogLevel() string
	GetIssuerURL() string
	GetCredentialTTL() time.Duration
	GetStateTTL() time.Duration
	GetProviderTimeout() time.Duration
}

// EnvVars holds plain environment settings. None of them are secret.
type EnvVars struct {
	Port            string        `env:"PORT"             envDefault:"8080"`
	AppName         string        `env:"APP_NAME"         envDefault:"Auth Gateway"`
	ModeArg         string        `env:"ENV_ARG"`
	ModeEnv         string        `env:"ENV"              envDefault:"prod"`
	ProjectID       string        `env:"GCP_PROJECT"`
	LogLevel        string        `env:"LOG_LEVEL"        envDefault:"info"`
	IssuerURL       string        `env:"OIDC_ISSUER_URL"  envDefault:"https://accounts.google.com"`
	CredentialTTL   time.Duration `env:"CREDENTIAL_TTL"   envDefault:"1h"`
	StateTTL        time.Duration `env:"STATE_TTL"        envDefault:"10m"`
	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"10s"`
}

var _ EnvConfig = EnvVars{}

// LoadEnvVars reads an optional .env file and parses the environment
func LoadEnvVars(dotenvFiles ...string) (EnvVars, error) {
	if err := loadDotEnv(dotenvFiles...); err != nil {
		return EnvVars{}, err
	}
	var vars EnvVars
	if err := env.Parse(&vars); err != nil {
		return EnvVars{}, fmt.Errorf("parse env: %w", err)
	}
	return vars, nil
}

// loadDotEnv loads files that exist and ignores the ones that don't. Variables
// already set in the environment win.
func loadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("stat %s: %w", file, err)
		}
		if err := godotenv.Load(file); err != nil {
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

func (e EnvVars) GetPort() string {
	port := e.Port
	if port == "" {
		port = "8080"
	}
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

// GetMode resolves ENV_ARG first, then ENV
func (e EnvVars) GetMode() (Mode, error) {
	raw := e.ModeArg
	if raw == "" {
		raw = e.ModeEnv
	}
	return ParseMode(raw)
}

func (e EnvVars) GetProjectID() string {
	return e.ProjectID
}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}

func (e EnvVars) GetIssuerURL() string {
	return e.IssuerURL
}

func (e EnvVars) GetCredentialTTL() time.Duration {
	return e.CredentialTTL
}

func (e EnvVars) GetStateTTL() time.Duration {
	return e.StateTTL
}

func (e EnvVars) GetProviderTimeout() time.Duration {
	return e.ProviderTimeout
}
