package secrets

import (
	"context"
	"fmt"

	"github.com/vyrodovalexey/avauthgate/internal/config"
)

// secretField pairs a document path with the field it locates, for
// error messages an operator can act on.
type secretField struct {
	path  string
	value *string
}

// ApplyToConfig resolves every secret-bearing field of the document in
// place. Called after load and before validators are built, so the
// validator constructors receive literal values.
//
// Vault's own credentials are deliberately not resolved here: they
// bootstrap the resolver and must be literals or ${ENV} substitutions.
func ApplyToConfig(ctx context.Context, r *Resolver, cfg *config.Config) error {
	var fields []secretField

	if cfg.Auth.JWT != nil {
		fields = append(fields, secretField{"auth.jwt.secret", &cfg.Auth.JWT.Secret})
	}
	if cfg.Auth.Opaque != nil && cfg.Auth.Opaque.Redis != nil {
		fields = append(fields, secretField{"auth.opaque.redis.password", &cfg.Auth.Opaque.Redis.Password})
	}
	if cfg.Auth.Introspection != nil {
		fields = append(fields, secretField{"auth.introspection.client_secret", &cfg.Auth.Introspection.ClientSecret})
	}
	if cfg.Directory != nil && cfg.Directory.Postgres != nil {
		fields = append(fields, secretField{"directory.postgres.dsn", &cfg.Directory.Postgres.DSN})
	}

	for _, f := range fields {
		resolved, err := r.Resolve(ctx, *f.value)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", f.path, err)
		}
		*f.value = resolved
	}

	return nil
}
