package secrets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvProvider_Defaults(t *testing.T) {
	t.Parallel()

	p := NewEnvProvider("", nil)

	assert.Equal(t, ProviderEnv, p.Name())
	assert.Equal(t, DefaultEnvPrefix, p.prefix)
}

func TestEnvProvider_GetSecret(t *testing.T) {
	// Not parallel: mutates the process environment.
	t.Setenv("AUTHGATE_SECRET_JWT_SIGNING_KEY", "hs256-key")

	p := NewEnvProvider("", nil)

	value, err := p.GetSecret(context.Background(), "jwt-signing-key")
	require.NoError(t, err)
	assert.Equal(t, "hs256-key", value)
}

func TestEnvProvider_GetSecret_KeyNormalization(t *testing.T) {
	// Not parallel: mutates the process environment.
	t.Setenv("AUTHGATE_SECRET_IDP_CLIENT_SECRET", "cs")

	p := NewEnvProvider("", nil)

	tests := []struct {
		name string
		key  string
	}{
		{name: "dashes", key: "idp-client-secret"},
		{name: "dots", key: "idp.client.secret"},
		{name: "slashes", key: "idp/client/secret"},
		{name: "mixed case", key: "IdP/Client-Secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, err := p.GetSecret(context.Background(), tt.key)
			require.NoError(t, err)
			assert.Equal(t, "cs", value)
		})
	}
}

func TestEnvProvider_GetSecret_CustomPrefix(t *testing.T) {
	// Not parallel: mutates the process environment.
	t.Setenv("GATE_DB_PASSWORD", "pg-pass")

	p := NewEnvProvider("GATE_", nil)

	value, err := p.GetSecret(context.Background(), "db-password")
	require.NoError(t, err)
	assert.Equal(t, "pg-pass", value)
}

func TestEnvProvider_GetSecret_NotFound(t *testing.T) {
	t.Parallel()

	p := NewEnvProvider("", nil)

	_, err := p.GetSecret(context.Background(), "definitely-not-set-anywhere")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSecretNotFound)
	assert.Contains(t, err.Error(), "AUTHGATE_SECRET_DEFINITELY_NOT_SET_ANYWHERE")
}

func TestEnvProvider_GetSecret_EmptyKey(t *testing.T) {
	t.Parallel()

	p := NewEnvProvider("", nil)

	_, err := p.GetSecret(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestEnvProvider_HealthCheckAndClose(t *testing.T) {
	t.Parallel()

	p := NewEnvProvider("", nil)

	assert.NoError(t, p.HealthCheck(context.Background()))
	assert.NoError(t, p.Close())
}
