package secrets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avauthgate/internal/config"
)

// fakeVault speaks just enough of the Vault HTTP API for the provider:
// KV v2 reads on the "secret" and "kv" mounts, approle login, and the
// health endpoint.
type fakeVault struct {
	mu        sync.Mutex
	secrets   map[string]map[string]interface{}
	sealed    bool
	lastToken string
}

func newFakeVault() *fakeVault {
	return &fakeVault{secrets: make(map[string]map[string]interface{})}
}

func (f *fakeVault) setSecret(mount, path string, data map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.secrets[mount+"/"+path] = data
}

func (f *fakeVault) seal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sealed = true
}

func (f *fakeVault) lastTokenSeen() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastToken
}

func (f *fakeVault) kvHandler(mount string) http.HandlerFunc {
	prefix := "/v1/" + mount + "/data/"

	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.lastToken = r.Header.Get("X-Vault-Token")
		data, ok := f.secrets[mount+"/"+strings.TrimPrefix(r.URL.Path, prefix)]
		f.mu.Unlock()

		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":[]}`))
			return
		}

		resp := map[string]interface{}{
			"data": map[string]interface{}{
				"data": data,
				"metadata": map[string]interface{}{
					"created_time": "2026-01-01T00:00:00Z",
					"version":      1,
					"destroyed":    false,
				},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (f *fakeVault) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/auth/approle/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)

		switch {
		case body["role_id"] == "role-no-auth":
			_, _ = w.Write([]byte(`{"data":{"ok":true}}`))
		case body["role_id"] == "role-1" && body["secret_id"] == "secret-1":
			_, _ = w.Write([]byte(`{"auth":{"client_token":"approle-token","lease_duration":300,"renewable":true}}`))
		default:
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"errors":["invalid role or secret ID"]}`))
		}
	})

	mux.HandleFunc("/v1/sys/health", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		sealed := f.sealed
		f.mu.Unlock()

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"initialized": true,
			"sealed":      sealed,
		})
	})

	mux.HandleFunc("/v1/secret/data/", f.kvHandler("secret"))
	mux.HandleFunc("/v1/kv/data/", f.kvHandler("kv"))

	return mux
}

func startFakeVault(t *testing.T) (*fakeVault, string) {
	t.Helper()

	fake := newFakeVault()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	return fake, srv.URL
}

func vaultTestConfig(address string) *config.VaultConfig {
	return &config.VaultConfig{
		Address: address,
		Token:   "root-token",
		Timeout: config.Duration(5 * time.Second),
	}
}

func TestNewVaultProvider_RequiresAddress(t *testing.T) {
	t.Parallel()

	_, err := NewVaultProvider(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrProviderNotConfigured)

	_, err = NewVaultProvider(context.Background(), &config.VaultConfig{}, nil)
	assert.ErrorIs(t, err, ErrProviderNotConfigured)
}

func TestNewVaultProvider_TokenAuth_RequiresToken(t *testing.T) {
	t.Parallel()

	cfg := &config.VaultConfig{Address: "http://127.0.0.1:8200"}

	_, err := NewVaultProvider(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderNotConfigured)
	assert.Contains(t, err.Error(), "token")
}

func TestNewVaultProvider_UnsupportedAuthMethod(t *testing.T) {
	t.Parallel()

	cfg := &config.VaultConfig{Address: "http://127.0.0.1:8200", AuthMethod: "kubernetes"}

	_, err := NewVaultProvider(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderNotConfigured)
	assert.Contains(t, err.Error(), "kubernetes")
}

func TestNewVaultProvider_AppRole(t *testing.T) {
	t.Parallel()

	fake, addr := startFakeVault(t)
	fake.setSecret("secret", "idp/authgate", map[string]interface{}{"value": "v"})

	cfg := &config.VaultConfig{
		Address:         addr,
		AuthMethod:      "approle",
		AppRoleID:       "role-1",
		AppRoleSecretID: "secret-1",
	}

	p, err := NewVaultProvider(context.Background(), cfg, nil)
	require.NoError(t, err)

	value, err := p.GetSecret(context.Background(), "idp/authgate")
	require.NoError(t, err)
	assert.Equal(t, "v", value)
	assert.Equal(t, "approle-token", fake.lastTokenSeen())
}

func TestNewVaultProvider_AppRole_BadCredentials(t *testing.T) {
	t.Parallel()

	_, addr := startFakeVault(t)

	cfg := &config.VaultConfig{
		Address:         addr,
		AuthMethod:      "approle",
		AppRoleID:       "role-1",
		AppRoleSecretID: "wrong",
	}

	_, err := NewVaultProvider(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "approle login")
}

func TestNewVaultProvider_AppRole_NoClientToken(t *testing.T) {
	t.Parallel()

	_, addr := startFakeVault(t)

	cfg := &config.VaultConfig{
		Address:         addr,
		AuthMethod:      "approle",
		AppRoleID:       "role-no-auth",
		AppRoleSecretID: "secret-1",
	}

	_, err := NewVaultProvider(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no client token")
}

func TestVaultProvider_GetSecret(t *testing.T) {
	t.Parallel()

	fake, addr := startFakeVault(t)
	fake.setSecret("secret", "idp/authgate", map[string]interface{}{
		"value":         "opaque-default",
		"client_secret": "cs-1",
		"version":       42,
	})

	p, err := NewVaultProvider(context.Background(), vaultTestConfig(addr), nil)
	require.NoError(t, err)

	t.Run("default field", func(t *testing.T) {
		value, err := p.GetSecret(context.Background(), "idp/authgate")
		require.NoError(t, err)
		assert.Equal(t, "opaque-default", value)
	})

	t.Run("named field", func(t *testing.T) {
		value, err := p.GetSecret(context.Background(), "idp/authgate#client_secret")
		require.NoError(t, err)
		assert.Equal(t, "cs-1", value)
	})

	t.Run("missing field", func(t *testing.T) {
		_, err := p.GetSecret(context.Background(), "idp/authgate#absent")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSecretNotFound)
		assert.Contains(t, err.Error(), "has no field")
	})

	t.Run("non-string field", func(t *testing.T) {
		_, err := p.GetSecret(context.Background(), "idp/authgate#version")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a string")
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := p.GetSecret(context.Background(), "absent/path")
		assert.ErrorIs(t, err, ErrSecretNotFound)
	})

	t.Run("sends the client token", func(t *testing.T) {
		assert.Equal(t, "root-token", fake.lastTokenSeen())
	})
}

func TestVaultProvider_GetSecret_MountAndPrefix(t *testing.T) {
	t.Parallel()

	fake, addr := startFakeVault(t)
	fake.setSecret("kv", "authgate/db/dsn", map[string]interface{}{"value": "postgres://gate"})

	cfg := vaultTestConfig(addr)
	cfg.Mount = "kv"
	cfg.PathPrefix = "authgate"

	p, err := NewVaultProvider(context.Background(), cfg, nil)
	require.NoError(t, err)

	value, err := p.GetSecret(context.Background(), "db/dsn")
	require.NoError(t, err)
	assert.Equal(t, "postgres://gate", value)
}

func TestVaultProvider_HealthCheck(t *testing.T) {
	t.Parallel()

	fake, addr := startFakeVault(t)

	p, err := NewVaultProvider(context.Background(), vaultTestConfig(addr), nil)
	require.NoError(t, err)

	assert.NoError(t, p.HealthCheck(context.Background()))

	fake.seal()
	err = p.HealthCheck(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sealed=true")

	assert.NoError(t, p.Close())
}

func TestSplitVaultKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		key       string
		wantPath  string
		wantField string
		wantErr   bool
	}{
		{name: "path only", key: "idp/authgate", wantPath: "idp/authgate", wantField: "value"},
		{name: "path and field", key: "idp/authgate#client_secret", wantPath: "idp/authgate", wantField: "client_secret"},
		{name: "last hash wins", key: "a#b#c", wantPath: "a#b", wantField: "c"},
		{name: "empty", key: "", wantErr: true},
		{name: "empty field", key: "idp/authgate#", wantErr: true},
		{name: "empty path", key: "#field", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gotPath, gotField, err := splitVaultKey(tt.key)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidKey)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantPath, gotPath)
			assert.Equal(t, tt.wantField, gotField)
		})
	}
}
