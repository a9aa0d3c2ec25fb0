package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/jrsteele09/go-auth-gateway/internal/errors"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	// smNameEnvPrefix lets a deployment override the stored name of a secret,
	// e.g. SM_NAME_FOR_JWT_SECRET_KEY=my-jwt-key
	smNameEnvPrefix = "SM_NAME_FOR_"

	// DefaultNameSuffix is appended to the logical name when no override exists
	DefaultNameSuffix = "_PROD_SM"
)

// versionAccessor is the part of the Secret Manager client we use
type versionAccessor interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
}

// SecretManagerSource reads the latest version of secrets from Google Cloud Secret Manager
type SecretManagerSource struct {
	projectID string
	client    versionAccessor
	closer    func() error
	getenv    func(string) string
}

var _ Source = (*SecretManagerSource)(nil)

// NewSecretManagerSource dials Secret Manager using application default credentials
func NewSecretManagerSource(ctx context.Context, projectID string) (*SecretManagerSource, error) {
	if projectID == "" {
		return nil, errors.Wrapf(errors.ErrConfigIncomplete, "GCP project id is required for secret manager")
	}
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create secret manager client: %w", err)
	}
	return &SecretManagerSource{
		projectID: projectID,
		client:    client,
		closer:    client.Close,
		getenv:    os.Getenv,
	}, nil
}

// SecretName returns the stored name for a logical key
func (s *SecretManagerSource) SecretName(name string) string {
	if override := strings.TrimSpace(s.getenv(smNameEnvPrefix + name)); override != "" {
		return override
	}
	return name + DefaultNameSuffix
}

func (s *SecretManagerSource) Lookup(ctx context.Context, name string) (string, error) {
	secretName := s.SecretName(name)
	resourceName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", s.projectID, secretName)

	resp, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: resourceName})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", errors.Wrapf(errors.ErrSecretNotFound, "secret %s", secretName)
		}
		return "", fmt.Errorf("failed to access secret %s: %w", secretName, err)
	}

	data := resp.GetPayload().GetData()
	if !utf8.Valid(data) {
		return "", fmt.Errorf("secret %s is not valid UTF-8", secretName)
	}
	value := strings.TrimSpace(string(data))
	if value == "" {
		return "", errors.Wrapf(errors.ErrSecretNotFound, "secret %s is empty", secretName)
	}

	log.Debug().Str("secret", secretName).Msg("Fetched secret from secret manager")
	return value, nil
}

// Close releases the underlying client connection
func (s *SecretManagerSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
