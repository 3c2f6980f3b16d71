package tabular

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"

	"github.com/pidb/catalog-api/pkg/config"
)

// ErrNoCredentials means no service credential is configured; callers fall
// back to published, read-only access.
var ErrNoCredentials = errors.New("tabular: no service credential configured")

type secretFetcher func(ctx context.Context, name string) ([]byte, error)

var fetchSecret secretFetcher = accessSecret

// LoadCredentials returns the service-account key. Inline JSON wins over a
// file path, which wins over a Secret Manager secret.
func LoadCredentials(ctx context.Context, cfg config.SheetsConfig) ([]byte, error) {
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		return []byte(cfg.CredentialsJSON), nil
	case cfg.CredentialsFile != "":
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read sheets credentials: %w", err)
		}
		return data, nil
	case cfg.CredentialsSecret != "":
		name, err := secretVersionName(cfg.GCPProjectID, cfg.CredentialsSecret)
		if err != nil {
			return nil, err
		}
		return fetchSecret(ctx, name)
	default:
		return nil, ErrNoCredentials
	}
}

// secretVersionName accepts a full resource name or a bare secret ID.
func secretVersionName(projectID, secret string) (string, error) {
	if strings.HasPrefix(secret, "projects/") {
		if !strings.Contains(secret, "/versions/") {
			return secret + "/versions/latest", nil
		}
		return secret, nil
	}
	if projectID == "" {
		return "", fmt.Errorf("GCP project id required to resolve secret %q", secret)
	}
	return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", projectID, secret), nil
}

func accessSecret(ctx context.Context, name string) ([]byte, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Secret Manager client: %w", err)
	}
	defer client.Close() //nolint:errcheck

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return nil, fmt.Errorf("failed to access secret version: %w", err)
	}
	return result.Payload.Data, nil
}
