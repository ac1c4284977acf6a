// Package secrets resolves secret references in the configuration from
// environment variables, local files, or HashiCorp Vault (KV v2).
//
// Configuration fields may carry a secret reference instead of a
// literal value:
//
//	auth:
//	  jwt:
//	    secret: secret://env/jwt-signing-key
//	  introspection:
//	    client_secret: secret://vault/idp/authgate#client_secret
//
// The resolver replaces references before validators are built, so the
// rest of the gate never sees the indirection.
package secrets

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Provider names addressable in secret:// references.
const (
	ProviderEnv   = "env"
	ProviderLocal = "local"
	ProviderVault = "vault"
)

// Errors returned by secret providers.
var (
	// ErrSecretNotFound is returned when the key resolves to nothing.
	ErrSecretNotFound = errors.New("secret not found")

	// ErrInvalidKey is returned for empty or malformed keys.
	ErrInvalidKey = errors.New("invalid secret key")

	// ErrUnknownProvider is returned when a reference names a provider
	// that is not configured.
	ErrUnknownProvider = errors.New("unknown secrets provider")

	// ErrProviderNotConfigured is returned when a provider is built
	// from an incomplete configuration.
	ErrProviderNotConfigured = errors.New("secrets provider not configured")
)

// Provider fetches scalar secret values by key.
type Provider interface {
	// Name is the provider's reference name (the host part of a
	// secret:// reference).
	Name() string

	// GetSecret returns the value for key.
	GetSecret(ctx context.Context, key string) (string, error)

	// HealthCheck reports whether the backing store is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases provider resources.
	Close() error
}

// Prometheus metrics for secret lookups.
var (
	secretsOperationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "authgate",
			Subsystem: "secrets",
			Name:      "operations_total",
			Help:      "Total number of secret lookups by provider and result",
		},
		[]string{"provider", "result"},
	)

	secretsOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "authgate",
			Subsystem: "secrets",
			Name:      "operation_duration_seconds",
			Help:      "Duration of secret lookups in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider"},
	)
)

func init() {
	prometheus.MustRegister(secretsOperationTotal, secretsOperationDuration)
}

// recordOperation records a lookup's outcome.
func recordOperation(provider string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	secretsOperationTotal.WithLabelValues(provider, result).Inc()
	secretsOperationDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
}
