package secrets

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	vault "github.com/hashicorp/vault/api"

	"github.com/vyrodovalexey/avauthgate/internal/config"
	"github.com/vyrodovalexey/avauthgate/internal/observability"
)

// VaultProvider reads secrets from a HashiCorp Vault KV v2 mount.
//
// The key names a secret path and optionally a field after "#":
// "idp/authgate#client_secret" reads field client_secret of
// <mount>/<prefix>/idp/authgate. Without a field, "value" is read.
type VaultProvider struct {
	client     *vault.Client
	mount      string
	pathPrefix string
	logger     observability.Logger
}

// defaultVaultField is read when a key names no field.
const defaultVaultField = "value"

// NewVaultProvider builds a Vault provider and authenticates it. Token
// auth sets the token directly; approle auth logs in and adopts the
// returned client token.
func NewVaultProvider(ctx context.Context, cfg *config.VaultConfig, logger observability.Logger) (*VaultProvider, error) {
	if cfg == nil || cfg.Address == "" {
		return nil, fmt.Errorf("%w: vault address is required", ErrProviderNotConfigured)
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	vaultCfg := vault.DefaultConfig()
	vaultCfg.Address = cfg.Address
	if timeout := cfg.Timeout.Duration(); timeout > 0 {
		vaultCfg.Timeout = timeout
	}
	if cfg.TLSSkipVerify {
		if err := vaultCfg.ConfigureTLS(&vault.TLSConfig{Insecure: true}); err != nil {
			return nil, fmt.Errorf("configuring vault TLS: %w", err)
		}
	}

	client, err := vault.NewClient(vaultCfg)
	if err != nil {
		return nil, fmt.Errorf("creating vault client: %w", err)
	}

	p := &VaultProvider{
		client:     client,
		mount:      cfg.Mount,
		pathPrefix: cfg.PathPrefix,
		logger:     logger,
	}
	if p.mount == "" {
		p.mount = "secret"
	}

	if err := p.authenticate(ctx, cfg); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *VaultProvider) authenticate(ctx context.Context, cfg *config.VaultConfig) error {
	switch cfg.AuthMethod {
	case "", "token":
		if cfg.Token == "" {
			return fmt.Errorf("%w: vault token is required for token auth", ErrProviderNotConfigured)
		}
		p.client.SetToken(cfg.Token)
		return nil

	case "approle":
		secret, err := p.client.Logical().WriteWithContext(ctx, "auth/approle/login",
			map[string]interface{}{
				"role_id":   cfg.AppRoleID,
				"secret_id": cfg.AppRoleSecretID,
			})
		if err != nil {
			return fmt.Errorf("approle login: %w", err)
		}
		if secret == nil || secret.Auth == nil || secret.Auth.ClientToken == "" {
			return fmt.Errorf("approle login returned no client token")
		}
		p.client.SetToken(secret.Auth.ClientToken)
		p.logger.Info("authenticated to vault via approle",
			observability.Int("lease_seconds", secret.Auth.LeaseDuration),
		)
		return nil

	default:
		return fmt.Errorf("%w: unsupported vault auth method %q", ErrProviderNotConfigured, cfg.AuthMethod)
	}
}

// Name implements Provider.
func (p *VaultProvider) Name() string {
	return ProviderVault
}

// GetSecret implements Provider.
func (p *VaultProvider) GetSecret(ctx context.Context, key string) (value string, err error) {
	start := time.Now()
	defer func() { recordOperation(p.Name(), start, err) }()

	secretPath, field, err := splitVaultKey(key)
	if err != nil {
		return "", err
	}
	if p.pathPrefix != "" {
		secretPath = path.Join(p.pathPrefix, secretPath)
	}

	kv, err := p.client.KVv2(p.mount).Get(ctx, secretPath)
	if err != nil {
		if errors.Is(err, vault.ErrSecretNotFound) {
			return "", fmt.Errorf("%w: %s", ErrSecretNotFound, secretPath)
		}
		return "", fmt.Errorf("reading vault secret %s: %w", secretPath, err)
	}

	raw, ok := kv.Data[field]
	if !ok {
		return "", fmt.Errorf("%w: %s has no field %q", ErrSecretNotFound, secretPath, field)
	}
	str, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("vault secret %s field %q is not a string", secretPath, field)
	}

	return str, nil
}

// splitVaultKey separates "path#field" into its parts.
func splitVaultKey(key string) (secretPath, field string, err error) {
	if key == "" {
		return "", "", ErrInvalidKey
	}

	secretPath, field = key, defaultVaultField
	if idx := strings.LastIndex(key, "#"); idx >= 0 {
		secretPath, field = key[:idx], key[idx+1:]
	}
	if secretPath == "" || field == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	return secretPath, field, nil
}

// HealthCheck implements Provider.
func (p *VaultProvider) HealthCheck(ctx context.Context) error {
	health, err := p.client.Sys().HealthWithContext(ctx)
	if err != nil {
		return fmt.Errorf("vault health: %w", err)
	}
	if !health.Initialized || health.Sealed {
		return fmt.Errorf("vault not ready: initialized=%t sealed=%t", health.Initialized, health.Sealed)
	}
	return nil
}

// Close implements Provider.
func (p *VaultProvider) Close() error {
	return nil
}
