package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"crisis-chat/backend/pkg/cache"
	"crisis-chat/backend/pkg/config"
	"crisis-chat/backend/pkg/logger"

	vault "github.com/hashicorp/vault/api"
)

// VaultManager reads secrets from a Vault KV v2 mount, falling back to the
// environment when Vault is disabled or does not hold the key
type VaultManager struct {
	client *vault.Client
	mount  string
	path   string
	ttl    time.Duration
	env    func(string) string
	now    func() time.Time

	cache *cache.Cache[string]
	log   *logger.Logger
}

// NewVaultManager creates a manager from the Vault section of cfg
func NewVaultManager(cfg *config.Config, log *logger.Logger) (*VaultManager, error) {
	m := &VaultManager{
		mount: cfg.Vault.Mount,
		path:  cfg.Vault.Path,
		ttl:   cfg.Vault.CacheTTL,
		env:   os.Getenv,
		now:   time.Now,
		log:   log,
	}
	if m.ttl <= 0 {
		m.ttl = 5 * time.Minute
	}
	m.cache = cache.New[string](m.ttl, cache.WithClock(func() time.Time { return m.now() }))
	if !cfg.Vault.Enabled {
		return m, nil
	}

	if cfg.Vault.Addr == "" {
		return nil, ErrNoVaultAddress
	}
	if cfg.Vault.Token == "" {
		return nil, ErrNoVaultToken
	}

	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = cfg.Vault.Addr
	vaultConfig.Timeout = 10 * time.Second
	vaultConfig.MaxRetries = 3

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Vault.Token)
	if cfg.Vault.Namespace != "" {
		client.SetNamespace(cfg.Vault.Namespace)
	}

	m.client = client
	return m, nil
}

// Enabled reports whether secrets are read from Vault
func (m *VaultManager) Enabled() bool {
	return m.client != nil
}

// GetSecret retrieves a secret from Vault, with fallback to environment variable
func (m *VaultManager) GetSecret(ctx context.Context, key string) (string, error) {
	if value, ok := m.cache.Get(key); ok {
		return value, nil
	}

	if m.client == nil {
		return m.getFromEnvironment(key)
	}

	value, err := m.getFromVault(ctx, key)
	if err != nil {
		if errors.Is(err, ErrSecretNotFound) {
			m.log.Warn("Secret not found in Vault, falling back to environment", "key", key)
			return m.getFromEnvironment(key)
		}
		return "", err
	}

	m.cache.Set(key, value)
	return value, nil
}

// GetSecretWithDefault retrieves a secret with a default value if not found
func (m *VaultManager) GetSecretWithDefault(ctx context.Context, key, defaultValue string) string {
	value, err := m.GetSecret(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrSecretNotFound) {
			m.log.Warn("Failed to get secret, using default value", "key", key, "error", err.Error())
		}
		return defaultValue
	}
	return value
}

func (m *VaultManager) getFromVault(ctx context.Context, key string) (string, error) {
	secret, err := m.client.KVv2(m.mount).Get(ctx, m.path)
	if err != nil {
		if errors.Is(err, vault.ErrSecretNotFound) {
			return "", ErrSecretNotFound
		}
		m.log.Error("Failed to read secret from Vault", "mount", m.mount, "path", m.path, "error", err.Error())
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return "", ErrSecretNotFound
	}

	value, ok := secret.Data[key].(string)
	if !ok || value == "" {
		return "", ErrSecretNotFound
	}
	return value, nil
}

// getFromEnvironment maps jwt_secret or jwt-secret to JWT_SECRET
func (m *VaultManager) getFromEnvironment(key string) (string, error) {
	envKey := strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(key))

	value := m.env(envKey)
	if value == "" {
		return "", ErrSecretNotFound
	}

	m.cache.Set(key, value)
	return value, nil
}
