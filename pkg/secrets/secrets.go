// Package secrets resolves credentials such as the JWT signing key and the
// webhook token, from Vault when it is enabled and from the environment otherwise.
package secrets

import (
	"context"
	"errors"
)

// Well-known secret keys
const (
	KeyJWTSecret    = "jwt_secret"
	KeyWebhookToken = "notify_webhook_token"
)

// Common errors
var (
	ErrSecretNotFound = errors.New("secret not found")
	ErrNoVaultToken   = errors.New("no vault token provided")
	ErrNoVaultAddress = errors.New("no vault address provided")
)

// Manager provides access to secrets from various sources
type Manager interface {
	// GetSecret retrieves a secret by key
	GetSecret(ctx context.Context, key string) (string, error)

	// GetSecretWithDefault retrieves a secret with a default value if not found
	GetSecretWithDefault(ctx context.Context, key, defaultValue string) string
}
