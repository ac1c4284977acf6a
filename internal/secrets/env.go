package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vyrodovalexey/avauthgate/internal/observability"
)

// DefaultEnvPrefix namespaces the gate's secret environment variables.
const DefaultEnvPrefix = "AUTHGATE_SECRET_"

// EnvProvider reads secrets from environment variables. The key
// "jwt-signing-key" maps to AUTHGATE_SECRET_JWT_SIGNING_KEY under the
// default prefix.
type EnvProvider struct {
	prefix string
	logger observability.Logger
}

// NewEnvProvider creates an environment variable provider. An empty
// prefix selects DefaultEnvPrefix.
func NewEnvProvider(prefix string, logger observability.Logger) *EnvProvider {
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &EnvProvider{prefix: prefix, logger: logger}
}

// Name implements Provider.
func (p *EnvProvider) Name() string {
	return ProviderEnv
}

// envName maps a key onto a variable name: uppercased, with dashes,
// dots, and slashes folded to underscores.
func (p *EnvProvider) envName(key string) string {
	name := strings.ToUpper(key)
	name = strings.ReplaceAll(name, "-", "_")
	name = strings.ReplaceAll(name, ".", "_")
	name = strings.ReplaceAll(name, "/", "_")
	return p.prefix + name
}

// GetSecret implements Provider.
func (p *EnvProvider) GetSecret(ctx context.Context, key string) (value string, err error) {
	start := time.Now()
	defer func() { recordOperation(p.Name(), start, err) }()

	if key == "" {
		return "", ErrInvalidKey
	}

	name := p.envName(key)
	value, ok := os.LookupEnv(name)
	if !ok {
		p.logger.Debug("secret environment variable not set",
			observability.String("env_var", name),
		)
		return "", fmt.Errorf("%w: environment variable %s not set", ErrSecretNotFound, name)
	}

	return value, nil
}

// HealthCheck implements Provider. The environment is always there.
func (p *EnvProvider) HealthCheck(ctx context.Context) error {
	return nil
}

// Close implements Provider.
func (p *EnvProvider) Close() error {
	return nil
}
