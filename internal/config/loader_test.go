package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avauthgate/internal/auth"
	"github.com/vyrodovalexey/avauthgate/internal/rules"
)

const fullConfigYAML = `
server:
  listen_address: ":8443"
  read_timeout: 5s
  tls:
    cert_file: /etc/tls/cert.pem
    key_file: /etc/tls/key.pem
upstream:
  url: http://app.internal:3000
  response_header_timeout: 15s
rules:
  - pattern: /public/**
    verdict: admit
  - pattern: /internal/**
    verdict: deny
  - pattern: /api/**
    verdict: authenticated
auth:
  reject_invalid: true
  sources:
    - type: header
      name: Authorization
      prefix: "Bearer "
    - type: cookie
      name: session
  jwt:
    algorithm: HS256
    secret: ${TEST_JWT_SECRET:-fallback-secret}
    issuer: https://issuer.example.com
    clock_skew: 30s
  opaque:
    store: redis
    ttl: 2h
    redis:
      address: redis:6379
      dial_timeout: 2s
  introspection:
    endpoint: https://idp.example.com/introspect
    client_id: authgate
    client_secret: s3cret
    timeout: 3s
policies:
  - name: admin-only
    pattern: /admin/**
    expression: '"ADMIN" in roles'
directory:
  mode: memory
  users:
    - id: u-1
      username: alice
      password_hash: "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"
      roles: [USER, ADMIN]
      active: true
login:
  enabled: true
  token_ttl: 1h
cors:
  enabled: true
  allowed_origins:
    - https://app.example.com
    - "*.example.org"
  allowed_methods: [GET, POST]
  max_age: 10m
security_headers:
  enabled: true
rate_limit:
  enabled: true
  requests_per_second: 50
  burst: 100
logging:
  level: debug
  format: console
metrics:
  listen_address: ":9100"
tracing:
  enabled: true
  endpoint: otel-collector:4317
  sample_ratio: 0.25
audit:
  enabled: true
`

func TestLoadConfigFromReader_FullDocument(t *testing.T) {
	cfg, err := LoadConfigFromReader(strings.NewReader(fullConfigYAML))
	require.NoError(t, err)
	require.NoError(t, ValidateConfig(cfg))

	assert.Equal(t, ":8443", cfg.Server.ListenAddress)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout.Duration())
	// Absent timeout fields keep their defaults.
	assert.Equal(t, DefaultWriteTimeout, cfg.Server.WriteTimeout.Duration())
	require.NotNil(t, cfg.Server.TLS)
	assert.Equal(t, "/etc/tls/cert.pem", cfg.Server.TLS.CertFile)

	assert.Equal(t, "http://app.internal:3000", cfg.Upstream.URL)
	assert.Equal(t, 15*time.Second, cfg.Upstream.ResponseHeaderTimeout.Duration())
	assert.Equal(t, DefaultDialTimeout, cfg.Upstream.DialTimeout.Duration())

	require.Len(t, cfg.Rules, 3)
	assert.Equal(t, rules.VerdictAdmit, cfg.Rules[0].Verdict)
	assert.Equal(t, rules.VerdictDeny, cfg.Rules[1].Verdict)
	// The "authenticated" spelling is an alias.
	assert.Equal(t, rules.VerdictRequireAuthenticated, cfg.Rules[2].Verdict)

	assert.True(t, cfg.Auth.RejectInvalid)
	require.Len(t, cfg.Auth.Sources, 2)
	assert.Equal(t, auth.SourceHeader, cfg.Auth.Sources[0].Type)
	assert.Equal(t, "Bearer ", cfg.Auth.Sources[0].Prefix)

	require.NotNil(t, cfg.Auth.JWT)
	assert.Equal(t, "fallback-secret", cfg.Auth.JWT.Secret)
	assert.Equal(t, 30*time.Second, cfg.Auth.JWT.ClockSkew.Duration())

	require.NotNil(t, cfg.Auth.Opaque)
	assert.Equal(t, StoreRedis, cfg.Auth.Opaque.Store)
	assert.Equal(t, 2*time.Hour, cfg.Auth.Opaque.TTL.Duration())
	require.NotNil(t, cfg.Auth.Opaque.Redis)
	assert.Equal(t, "redis:6379", cfg.Auth.Opaque.Redis.Address)
	assert.Equal(t, 2*time.Second, cfg.Auth.Opaque.Redis.DialTimeout.Duration())

	require.NotNil(t, cfg.Auth.Introspection)
	assert.Equal(t, 3*time.Second, cfg.Auth.Introspection.Timeout.Duration())

	require.Len(t, cfg.Policies, 1)
	assert.Equal(t, "admin-only", cfg.Policies[0].Name)

	require.NotNil(t, cfg.Directory)
	require.Len(t, cfg.Directory.Users, 1)
	// Dollar signs in bcrypt hashes survive substitution untouched.
	assert.Equal(t, testHash, cfg.Directory.Users[0].PasswordHash)
	assert.Equal(t, []string{"USER", "ADMIN"}, cfg.Directory.Users[0].Roles)

	require.NotNil(t, cfg.Login)
	assert.Equal(t, DefaultLoginPath, cfg.Login.Path)
	assert.Equal(t, TokenKindOpaque, cfg.Login.TokenKind)
	assert.Equal(t, time.Hour, cfg.Login.TokenTTL.Duration())

	require.NotNil(t, cfg.CORS)
	assert.Equal(t, 10*time.Minute, cfg.CORS.MaxAge.Duration())

	require.NotNil(t, cfg.SecurityHeaders)
	assert.Equal(t, "DENY", cfg.SecurityHeaders.FrameOptions)

	require.NotNil(t, cfg.RateLimit)
	assert.InEpsilon(t, 50.0, cfg.RateLimit.RequestsPerSecond, 0.0001)
	assert.Equal(t, 100, cfg.RateLimit.Burst)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.True(t, cfg.Logging.AccessLog)

	// Metrics stay enabled by default; only the address was overridden.
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, ":9100", cfg.Metrics.ListenAddress)
	assert.Equal(t, DefaultMetricsPath, cfg.Metrics.Path)

	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, "otel-collector:4317", cfg.Tracing.Endpoint)
	assert.InEpsilon(t, 0.25, cfg.Tracing.SampleRatio, 0.0001)
	assert.Equal(t, DefaultServiceName, cfg.Tracing.ServiceName)

	require.NotNil(t, cfg.Audit)
	assert.Equal(t, "stdout", cfg.Audit.Output)
	assert.Equal(t, DefaultAuditBufferSize, cfg.Audit.BufferSize)
}

func TestLoadConfigFromReader_EnvOverride(t *testing.T) {
	t.Setenv("TEST_JWT_SECRET", "from-env")

	cfg, err := LoadConfigFromReader(strings.NewReader(fullConfigYAML))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.JWT.Secret)
}

func TestLoadConfigFromReader_ExplicitDisableSurvivesDefaults(t *testing.T) {
	t.Parallel()

	doc := `
metrics:
  enabled: false
logging:
  access_log: false
`
	cfg, err := LoadConfigFromReader(strings.NewReader(doc))
	require.NoError(t, err)
	assert.False(t, cfg.Metrics.Enabled)
	assert.False(t, cfg.Logging.AccessLog)
}

func TestLoadConfigFromReader_BadYAML(t *testing.T) {
	t.Parallel()

	_, err := LoadConfigFromReader(strings.NewReader("server: [not: a: mapping"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadConfig_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fullConfigYAML), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":8443", cfg.Server.ListenAddress)
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestSubstituteEnvVars(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		in   string
		want string
	}{
		{
			name: "set variable",
			env:  map[string]string{"SUB_HOST": "redis.prod"},
			in:   "address: ${SUB_HOST}:6379",
			want: "address: redis.prod:6379",
		},
		{
			name: "unset variable becomes empty",
			in:   "address: ${SUB_UNSET}",
			want: "address: ",
		},
		{
			name: "default used when unset",
			in:   "address: ${SUB_UNSET:-localhost}",
			want: "address: localhost",
		},
		{
			name: "default ignored when set",
			env:  map[string]string{"SUB_HOST": "redis.prod"},
			in:   "address: ${SUB_HOST:-localhost}",
			want: "address: redis.prod",
		},
		{
			name: "empty default",
			in:   "value: ${SUB_UNSET:-}",
			want: "value: ",
		},
		{
			name: "escaped dollar",
			in:   "value: $${NOT_A_VAR}",
			want: "value: ${NOT_A_VAR}",
		},
		{
			name: "single dollars pass through",
			in:   "hash: $2a$10$abcdef",
			want: "hash: $2a$10$abcdef",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, val := range tt.env {
				t.Setenv(k, val)
			}
			assert.Equal(t, tt.want, substituteEnvVars(tt.in))
		})
	}
}

func TestResolveConfigPath(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	t.Run("absolute existing", func(t *testing.T) {
		got, err := ResolveConfigPath(path)
		require.NoError(t, err)
		assert.Equal(t, path, got)
	})

	t.Run("absolute missing", func(t *testing.T) {
		_, err := ResolveConfigPath(filepath.Join(tmpDir, "missing.yaml"))
		assert.Error(t, err)
	})

	t.Run("relative to working directory", func(t *testing.T) {
		t.Chdir(tmpDir)
		got, err := ResolveConfigPath("config.yaml")
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(got))
		assert.FileExists(t, got)
	})

	t.Run("relative under configs dir", func(t *testing.T) {
		base := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(base, "configs"), 0o755))
		nested := filepath.Join(base, "configs", "gate.yaml")
		require.NoError(t, os.WriteFile(nested, []byte("{}"), 0o644))

		t.Chdir(base)
		got, err := ResolveConfigPath("gate.yaml")
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(got))
		assert.Equal(t, "gate.yaml", filepath.Base(got))
	})
}
