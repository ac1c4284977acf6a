package secrets

import (
	"context"
	"fmt"
	"strings"

	"github.com/vyrodovalexey/avauthgate/internal/config"
	"github.com/vyrodovalexey/avauthgate/internal/observability"
)

// refScheme marks a configuration value as a secret reference.
const refScheme = "secret://"

// IsRef reports whether a configuration value is a secret reference.
func IsRef(value string) bool {
	return strings.HasPrefix(value, refScheme)
}

// Resolver resolves secret:// references against named providers.
type Resolver struct {
	providers map[string]Provider
}

// NewResolver builds the providers the document configures. The env
// provider is always available; local and vault join when their
// sections are present. A nil section yields an env-only resolver, so
// references still resolve in development setups.
func NewResolver(ctx context.Context, cfg *config.SecretsConfig, logger observability.Logger) (*Resolver, error) {
	r := &Resolver{providers: make(map[string]Provider)}

	var envPrefix string
	if cfg != nil {
		envPrefix = cfg.EnvPrefix
	}
	r.providers[ProviderEnv] = NewEnvProvider(envPrefix, logger)

	if cfg == nil {
		return r, nil
	}

	if cfg.LocalPath != "" {
		local, err := NewLocalProvider(cfg.LocalPath, logger)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("local secrets provider: %w", err)
		}
		r.providers[ProviderLocal] = local
	}

	if cfg.Vault != nil {
		vault, err := NewVaultProvider(ctx, cfg.Vault, logger)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("vault secrets provider: %w", err)
		}
		r.providers[ProviderVault] = vault
	}

	return r, nil
}

// Provider returns the named provider, if configured.
func (r *Resolver) Provider(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Resolve returns the value for a configuration field. Values that are
// not secret references pass through unchanged.
func (r *Resolver) Resolve(ctx context.Context, value string) (string, error) {
	if !IsRef(value) {
		return value, nil
	}

	rest := strings.TrimPrefix(value, refScheme)
	name, key, found := strings.Cut(rest, "/")
	if !found || name == "" || key == "" {
		return "", fmt.Errorf("%w: malformed reference %q, want secret://provider/key", ErrInvalidKey, value)
	}

	provider, ok := r.providers[name]
	if !ok {
		return "", fmt.Errorf("%w: %q in reference %q", ErrUnknownProvider, name, value)
	}

	return provider.GetSecret(ctx, key)
}

// HealthCheck pings every configured provider.
func (r *Resolver) HealthCheck(ctx context.Context) error {
	for name, p := range r.providers {
		if err := p.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s provider: %w", name, err)
		}
	}
	return nil
}

// Close releases all providers.
func (r *Resolver) Close() {
	for _, p := range r.providers {
		_ = p.Close()
	}
}
