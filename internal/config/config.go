package config

import (
	"strings"
	"time"

	"github.com/vyrodovalexey/avauthgate/internal/auth"
	"github.com/vyrodovalexey/avauthgate/internal/authz/expr"
	"github.com/vyrodovalexey/avauthgate/internal/directory"
	"github.com/vyrodovalexey/avauthgate/internal/rules"
)

// Defaults applied by Default and Normalize.
const (
	DefaultListenAddress  = ":8080"
	DefaultMetricsAddress = ":9090"
	DefaultMetricsPath    = "/metrics"
	DefaultServiceName    = "avauthgate"
	DefaultUpstreamURL    = "http://127.0.0.1:8081"
	DefaultLoginPath      = "/public/login"
	DefaultLogoutPath     = "/public/logout"

	DefaultReadTimeout           = 10 * time.Second
	DefaultReadHeaderTimeout     = 5 * time.Second
	DefaultWriteTimeout          = 30 * time.Second
	DefaultIdleTimeout           = 120 * time.Second
	DefaultShutdownTimeout       = 15 * time.Second
	DefaultDialTimeout           = 5 * time.Second
	DefaultResponseHeaderTimeout = 30 * time.Second
	DefaultIdleConnTimeout       = 90 * time.Second

	DefaultLoginRatePerMinute = 10
	DefaultLoginBurst         = 5
	DefaultAuditBufferSize    = 1024

	// DefaultHSTSMaxAge is one year, in seconds.
	DefaultHSTSMaxAge = 31536000
)

// Opaque token store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// User directory backends.
const (
	DirectoryMemory   = "memory"
	DirectoryPostgres = "postgres"
)

// Token kinds the login endpoint can issue.
const (
	TokenKindOpaque = "opaque"
	TokenKindJWT    = "jwt"
)

// Secret provider names.
const (
	SecretsEnv   = "env"
	SecretsLocal = "local"
	SecretsVault = "vault"
)

// Config is the root of the gate's configuration document.
type Config struct {
	// Server configures the listening HTTP server.
	Server ServerConfig `yaml:"server" json:"server"`

	// Upstream is the application the gate fronts.
	Upstream UpstreamConfig `yaml:"upstream" json:"upstream"`

	// Rules is the ordered path rule table. Empty means the default
	// table: shell and documentation paths admitted, everything else
	// behind authentication.
	Rules []rules.Rule `yaml:"rules,omitempty" json:"rules,omitempty"`

	// Auth configures credential extraction and the validator chain.
	Auth AuthConfig `yaml:"auth" json:"auth"`

	// Policies are CEL expressions evaluated after the rule table admits
	// an authenticated request.
	Policies []expr.Policy `yaml:"policies,omitempty" json:"policies,omitempty"`

	// Directory configures the user store behind the login endpoint.
	Directory *DirectoryConfig `yaml:"directory,omitempty" json:"directory,omitempty"`

	// Login configures the credential login and logout endpoints.
	Login *LoginConfig `yaml:"login,omitempty" json:"login,omitempty"`

	// CORS configures cross-origin response headers and preflights.
	CORS *CORSConfig `yaml:"cors,omitempty" json:"cors,omitempty"`

	// SecurityHeaders configures the hardening headers stamped onto
	// every response.
	SecurityHeaders *SecurityHeadersConfig `yaml:"security_headers,omitempty" json:"security_headers,omitempty"`

	// RateLimit throttles requests per client address before they reach
	// authentication.
	RateLimit *RateLimitConfig `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty"`

	// Secrets configures resolution of secret:// references in the
	// document.
	Secrets *SecretsConfig `yaml:"secrets,omitempty" json:"secrets,omitempty"`

	// Logging configures the structured logger.
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Tracing configures the OTLP trace exporter.
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`

	// Audit configures the append-only decision log.
	Audit *AuditConfig `yaml:"audit,omitempty" json:"audit,omitempty"`
}

// ServerConfig configures the listening HTTP server.
type ServerConfig struct {
	ListenAddress     string     `yaml:"listen_address,omitempty" json:"listen_address,omitempty"`
	ReadTimeout       Duration   `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty"`
	ReadHeaderTimeout Duration   `yaml:"read_header_timeout,omitempty" json:"read_header_timeout,omitempty"`
	WriteTimeout      Duration   `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty"`
	IdleTimeout       Duration   `yaml:"idle_timeout,omitempty" json:"idle_timeout,omitempty"`
	ShutdownTimeout   Duration   `yaml:"shutdown_timeout,omitempty" json:"shutdown_timeout,omitempty"`
	MaxHeaderBytes    int        `yaml:"max_header_bytes,omitempty" json:"max_header_bytes,omitempty"`

	// TrustedProxies are CIDRs (or bare addresses) of load balancers in
	// front of the gate. X-Forwarded-For is honored only when the
	// connection comes from one of them; empty means client addresses
	// are taken from the connection alone.
	TrustedProxies []string `yaml:"trusted_proxies,omitempty" json:"trusted_proxies,omitempty"`

	TLS *TLSConfig `yaml:"tls,omitempty" json:"tls,omitempty"`
}

// TLSConfig configures TLS termination on the listening server.
type TLSConfig struct {
	CertFile string `yaml:"cert_file" json:"cert_file"`
	KeyFile  string `yaml:"key_file" json:"key_file"`

	// MinVersion is "1.2" (default) or "1.3".
	MinVersion string `yaml:"min_version,omitempty" json:"min_version,omitempty"`
}

// UpstreamConfig describes the application behind the gate and the
// transport used to reach it.
type UpstreamConfig struct {
	URL                   string   `yaml:"url" json:"url"`
	DialTimeout           Duration `yaml:"dial_timeout,omitempty" json:"dial_timeout,omitempty"`
	ResponseHeaderTimeout Duration `yaml:"response_header_timeout,omitempty" json:"response_header_timeout,omitempty"`
	IdleConnTimeout       Duration `yaml:"idle_conn_timeout,omitempty" json:"idle_conn_timeout,omitempty"`
	MaxIdleConns          int      `yaml:"max_idle_conns,omitempty" json:"max_idle_conns,omitempty"`
	MaxIdleConnsPerHost   int      `yaml:"max_idle_conns_per_host,omitempty" json:"max_idle_conns_per_host,omitempty"`
	FlushInterval         Duration `yaml:"flush_interval,omitempty" json:"flush_interval,omitempty"`

	// PassHostHeader forwards the client's Host header instead of the
	// upstream's.
	PassHostHeader bool `yaml:"pass_host_header,omitempty" json:"pass_host_header,omitempty"`
}

// AuthConfig configures credential extraction and the validator chain.
// All validator sections are optional; a gate that admits only public
// paths needs none.
type AuthConfig struct {
	// RejectInvalid selects strict mode: requests carrying credentials
	// that fail validation are rejected instead of continuing as
	// anonymous.
	RejectInvalid bool `yaml:"reject_invalid,omitempty" json:"reject_invalid,omitempty"`

	// Sources lists where to look for credentials, in order. Empty
	// means the Authorization header with the Bearer scheme.
	Sources []auth.Source `yaml:"sources,omitempty" json:"sources,omitempty"`

	JWT           *JWTConfig           `yaml:"jwt,omitempty" json:"jwt,omitempty"`
	Opaque        *OpaqueConfig        `yaml:"opaque,omitempty" json:"opaque,omitempty"`
	Introspection *IntrospectionConfig `yaml:"introspection,omitempty" json:"introspection,omitempty"`
}

// JWTConfig configures the JWT validator and, when a signing key is
// present, the login issuer.
type JWTConfig struct {
	Algorithm           string   `yaml:"algorithm" json:"algorithm"`
	Secret              string   `yaml:"secret,omitempty" json:"secret,omitempty"`
	PublicKeyFile       string   `yaml:"public_key_file,omitempty" json:"public_key_file,omitempty"`
	PrivateKeyFile      string   `yaml:"private_key_file,omitempty" json:"private_key_file,omitempty"`
	JWKSURL             string   `yaml:"jwks_url,omitempty" json:"jwks_url,omitempty"`
	JWKSRefreshInterval Duration `yaml:"jwks_refresh_interval,omitempty" json:"jwks_refresh_interval,omitempty"`
	Issuer              string   `yaml:"issuer,omitempty" json:"issuer,omitempty"`
	Audience            string   `yaml:"audience,omitempty" json:"audience,omitempty"`
	ClockSkew           Duration `yaml:"clock_skew,omitempty" json:"clock_skew,omitempty"`
	TokenTTL            Duration `yaml:"token_ttl,omitempty" json:"token_ttl,omitempty"`
	RolesClaim          string   `yaml:"roles_claim,omitempty" json:"roles_claim,omitempty"`
	ScopeClaim          string   `yaml:"scope_claim,omitempty" json:"scope_claim,omitempty"`
	UsernameClaim       string   `yaml:"username_claim,omitempty" json:"username_claim,omitempty"`
}

// OpaqueConfig configures the opaque token manager.
type OpaqueConfig struct {
	// Store is "memory" (default) or "redis".
	Store string `yaml:"store,omitempty" json:"store,omitempty"`

	// TTL is the lifetime of issued tokens. Zero means the manager
	// default.
	TTL Duration `yaml:"ttl,omitempty" json:"ttl,omitempty"`

	// Redis configures the store when Store is "redis".
	Redis *RedisConfig `yaml:"redis,omitempty" json:"redis,omitempty"`
}

// RedisConfig configures the Redis connection backing the opaque token
// store.
type RedisConfig struct {
	Address      string   `yaml:"address" json:"address"`
	Password     string   `yaml:"password,omitempty" json:"password,omitempty"`
	DB           int      `yaml:"db,omitempty" json:"db,omitempty"`
	KeyPrefix    string   `yaml:"key_prefix,omitempty" json:"key_prefix,omitempty"`
	DialTimeout  Duration `yaml:"dial_timeout,omitempty" json:"dial_timeout,omitempty"`
	ReadTimeout  Duration `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty"`
	WriteTimeout Duration `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty"`
	PoolSize     int      `yaml:"pool_size,omitempty" json:"pool_size,omitempty"`
}

// IntrospectionConfig configures the RFC 7662 introspection client.
type IntrospectionConfig struct {
	Endpoint         string   `yaml:"endpoint" json:"endpoint"`
	ClientID         string   `yaml:"client_id,omitempty" json:"client_id,omitempty"`
	ClientSecret     string   `yaml:"client_secret,omitempty" json:"client_secret,omitempty"`
	Timeout          Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	BreakerThreshold int      `yaml:"breaker_threshold,omitempty" json:"breaker_threshold,omitempty"`
	BreakerTimeout   Duration `yaml:"breaker_timeout,omitempty" json:"breaker_timeout,omitempty"`

	// MaxRetries bounds retries of transient failures. Zero means the
	// client default; negative disables retries.
	MaxRetries int `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
}

// DirectoryConfig configures the user store behind the login endpoint.
type DirectoryConfig struct {
	// Mode is "memory" (default) or "postgres".
	Mode string `yaml:"mode,omitempty" json:"mode,omitempty"`

	// Users seeds the memory directory.
	Users []directory.UserRecord `yaml:"users,omitempty" json:"users,omitempty"`

	// Postgres configures the database when Mode is "postgres".
	Postgres *PostgresConfig `yaml:"postgres,omitempty" json:"postgres,omitempty"`
}

// PostgresConfig configures the PostgreSQL user directory.
type PostgresConfig struct {
	DSN             string   `yaml:"dsn" json:"dsn"`
	MaxOpenConns    int      `yaml:"max_open_conns,omitempty" json:"max_open_conns,omitempty"`
	MaxIdleConns    int      `yaml:"max_idle_conns,omitempty" json:"max_idle_conns,omitempty"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime,omitempty" json:"conn_max_lifetime,omitempty"`
}

// LoginConfig configures the login and logout endpoints.
type LoginConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Path is the login endpoint, POST only. Default /public/login.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	// LogoutPath revokes the presented token. Default /public/logout.
	LogoutPath string `yaml:"logout_path,omitempty" json:"logout_path,omitempty"`

	// TokenKind is "opaque" (default) or "jwt".
	TokenKind string `yaml:"token_kind,omitempty" json:"token_kind,omitempty"`

	// TokenTTL overrides the issuer's token lifetime.
	TokenTTL Duration `yaml:"token_ttl,omitempty" json:"token_ttl,omitempty"`

	// RatePerMinute caps login attempts per client address. Zero means
	// DefaultLoginRatePerMinute.
	RatePerMinute int `yaml:"rate_per_minute,omitempty" json:"rate_per_minute,omitempty"`

	// Burst is the attempt burst allowance. Zero means
	// DefaultLoginBurst.
	Burst int `yaml:"burst,omitempty" json:"burst,omitempty"`
}

// CORSConfig configures cross-origin resource sharing.
type CORSConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// AllowedOrigins lists exact origins, "*", or "*.domain" wildcards.
	AllowedOrigins   []string `yaml:"allowed_origins,omitempty" json:"allowed_origins,omitempty"`
	AllowedMethods   []string `yaml:"allowed_methods,omitempty" json:"allowed_methods,omitempty"`
	AllowedHeaders   []string `yaml:"allowed_headers,omitempty" json:"allowed_headers,omitempty"`
	ExposedHeaders   []string `yaml:"exposed_headers,omitempty" json:"exposed_headers,omitempty"`
	AllowCredentials bool     `yaml:"allow_credentials,omitempty" json:"allow_credentials,omitempty"`
	MaxAge           Duration `yaml:"max_age,omitempty" json:"max_age,omitempty"`
}

// SecurityHeadersConfig configures response hardening headers.
type SecurityHeadersConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// FrameOptions is DENY (default) or SAMEORIGIN.
	FrameOptions string `yaml:"frame_options,omitempty" json:"frame_options,omitempty"`

	// ContentTypeNosniff controls X-Content-Type-Options. Stamped by
	// default.
	ContentTypeNosniff *bool `yaml:"content_type_nosniff,omitempty" json:"content_type_nosniff,omitempty"`

	ReferrerPolicy        string `yaml:"referrer_policy,omitempty" json:"referrer_policy,omitempty"`
	ContentSecurityPolicy string `yaml:"content_security_policy,omitempty" json:"content_security_policy,omitempty"`

	// HSTSMaxAge is the Strict-Transport-Security max-age in seconds,
	// sent only on TLS listeners. Zero means DefaultHSTSMaxAge.
	HSTSMaxAge            int  `yaml:"hsts_max_age,omitempty" json:"hsts_max_age,omitempty"`
	HSTSIncludeSubdomains bool `yaml:"hsts_include_subdomains,omitempty" json:"hsts_include_subdomains,omitempty"`
}

// RateLimitConfig throttles requests per client address.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled" json:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int     `yaml:"burst,omitempty" json:"burst,omitempty"`
}

// SecretsConfig configures resolution of secret:// references.
type SecretsConfig struct {
	// Provider is "env", "local", or "vault".
	Provider string `yaml:"provider" json:"provider"`

	// EnvPrefix namespaces environment variable lookups for the env
	// provider.
	EnvPrefix string `yaml:"env_prefix,omitempty" json:"env_prefix,omitempty"`

	// LocalPath is the base directory for the local file provider.
	LocalPath string `yaml:"local_path,omitempty" json:"local_path,omitempty"`

	// Vault configures the Vault provider.
	Vault *VaultConfig `yaml:"vault,omitempty" json:"vault,omitempty"`
}

// VaultConfig configures the Vault KV v2 secrets provider.
type VaultConfig struct {
	Address string `yaml:"address" json:"address"`

	// AuthMethod is "token" (default) or "approle".
	AuthMethod      string `yaml:"auth_method,omitempty" json:"auth_method,omitempty"`
	Token           string `yaml:"token,omitempty" json:"token,omitempty"`
	AppRoleID       string `yaml:"approle_id,omitempty" json:"approle_id,omitempty"`
	AppRoleSecretID string `yaml:"approle_secret_id,omitempty" json:"approle_secret_id,omitempty"`

	// Mount is the KV v2 mount point. Default "secret".
	Mount string `yaml:"mount,omitempty" json:"mount,omitempty"`

	// PathPrefix is prepended to every key lookup.
	PathPrefix string `yaml:"path_prefix,omitempty" json:"path_prefix,omitempty"`

	Timeout       Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	TLSSkipVerify bool     `yaml:"tls_skip_verify,omitempty" json:"tls_skip_verify,omitempty"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level,omitempty" json:"level,omitempty"`

	// Format is json (default) or console.
	Format string `yaml:"format,omitempty" json:"format,omitempty"`

	// Output is stdout, stderr, or a file path.
	Output string `yaml:"output,omitempty" json:"output,omitempty"`

	// AccessLog enables per-request logging.
	AccessLog bool `yaml:"access_log" json:"access_log"`
}

// MetricsConfig configures the Prometheus endpoint, served on its own
// listener next to the health probes.
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled" json:"enabled"`
	ListenAddress string `yaml:"listen_address,omitempty" json:"listen_address,omitempty"`
	Path          string `yaml:"path,omitempty" json:"path,omitempty"`
}

// TracingConfig configures the OTLP trace exporter.
type TracingConfig struct {
	Enabled        bool    `yaml:"enabled" json:"enabled"`
	Endpoint       string  `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	ServiceName    string  `yaml:"service_name,omitempty" json:"service_name,omitempty"`
	ServiceVersion string  `yaml:"service_version,omitempty" json:"service_version,omitempty"`
	SampleRatio    float64 `yaml:"sample_ratio,omitempty" json:"sample_ratio,omitempty"`
}

// AuditConfig configures the append-only decision log.
type AuditConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Output is stdout, stderr, or a file path. Default stdout.
	Output string `yaml:"output,omitempty" json:"output,omitempty"`

	// BufferSize is the async event buffer. Events beyond it are
	// dropped rather than blocking request handling. Zero means
	// DefaultAuditBufferSize.
	BufferSize int `yaml:"buffer_size,omitempty" json:"buffer_size,omitempty"`
}

// Default returns a configuration suitable for local development: the
// default rule table in front of an upstream on localhost, JSON logging,
// and metrics enabled.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddress:     DefaultListenAddress,
			ReadTimeout:       Duration(DefaultReadTimeout),
			ReadHeaderTimeout: Duration(DefaultReadHeaderTimeout),
			WriteTimeout:      Duration(DefaultWriteTimeout),
			IdleTimeout:       Duration(DefaultIdleTimeout),
			ShutdownTimeout:   Duration(DefaultShutdownTimeout),
		},
		Upstream: UpstreamConfig{
			URL:                   DefaultUpstreamURL,
			DialTimeout:           Duration(DefaultDialTimeout),
			ResponseHeaderTimeout: Duration(DefaultResponseHeaderTimeout),
			IdleConnTimeout:       Duration(DefaultIdleConnTimeout),
		},
		Rules: rules.DefaultRules(),
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "json",
			Output:    "stdout",
			AccessLog: true,
		},
		Metrics: MetricsConfig{
			Enabled:       true,
			ListenAddress: DefaultMetricsAddress,
			Path:          DefaultMetricsPath,
		},
		Tracing: TracingConfig{
			ServiceName: DefaultServiceName,
			SampleRatio: 1.0,
		},
	}
}

// Normalize fills section defaults and canonicalizes enumerated values.
// Load calls it after unmarshaling; callers constructing a Config by
// hand should call it before Validate.
func (c *Config) Normalize() {
	if c.Server.ListenAddress == "" {
		c.Server.ListenAddress = DefaultListenAddress
	}
	if c.Upstream.URL == "" {
		c.Upstream.URL = DefaultUpstreamURL
	}

	for i := range c.Rules {
		if v, err := rules.ParseVerdict(string(c.Rules[i].Verdict)); err == nil {
			c.Rules[i].Verdict = v
		}
	}

	for i := range c.Auth.Sources {
		c.Auth.Sources[i].Type = auth.SourceType(canonical(string(c.Auth.Sources[i].Type)))
	}

	if c.Auth.Opaque != nil {
		c.Auth.Opaque.Store = canonical(c.Auth.Opaque.Store)
		if c.Auth.Opaque.Store == "" {
			c.Auth.Opaque.Store = StoreMemory
		}
	}

	if c.Directory != nil {
		c.Directory.Mode = canonical(c.Directory.Mode)
		if c.Directory.Mode == "" {
			c.Directory.Mode = DirectoryMemory
		}
	}

	if c.Login != nil {
		if c.Login.Path == "" {
			c.Login.Path = DefaultLoginPath
		}
		if c.Login.LogoutPath == "" {
			c.Login.LogoutPath = DefaultLogoutPath
		}
		c.Login.TokenKind = canonical(c.Login.TokenKind)
		if c.Login.TokenKind == "" {
			c.Login.TokenKind = TokenKindOpaque
		}
		if c.Login.RatePerMinute == 0 {
			c.Login.RatePerMinute = DefaultLoginRatePerMinute
		}
		if c.Login.Burst == 0 {
			c.Login.Burst = DefaultLoginBurst
		}
	}

	if c.SecurityHeaders != nil {
		if c.SecurityHeaders.FrameOptions == "" {
			c.SecurityHeaders.FrameOptions = "DENY"
		}
		if c.SecurityHeaders.HSTSMaxAge == 0 {
			c.SecurityHeaders.HSTSMaxAge = DefaultHSTSMaxAge
		}
	}

	if c.Secrets != nil {
		c.Secrets.Provider = canonical(c.Secrets.Provider)
		if c.Secrets.Vault != nil {
			if c.Secrets.Vault.AuthMethod == "" {
				c.Secrets.Vault.AuthMethod = "token"
			}
			if c.Secrets.Vault.Mount == "" {
				c.Secrets.Vault.Mount = "secret"
			}
		}
	}

	c.Logging.Level = canonical(c.Logging.Level)
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	c.Logging.Format = canonical(c.Logging.Format)
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}

	if c.Metrics.ListenAddress == "" {
		c.Metrics.ListenAddress = DefaultMetricsAddress
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = DefaultServiceName
	}

	if c.Audit != nil {
		if c.Audit.Output == "" {
			c.Audit.Output = "stdout"
		}
		if c.Audit.BufferSize == 0 {
			c.Audit.BufferSize = DefaultAuditBufferSize
		}
	}
}

// canonical trims and lowercases an enumerated configuration value.
func canonical(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// RuleSet returns the configured rules, or the default table when the
// document declares none.
func (c *Config) RuleSet() []rules.Rule {
	if len(c.Rules) > 0 {
		return c.Rules
	}
	return rules.DefaultRules()
}

// CompileRules compiles the effective rule set into a lookup table.
func (c *Config) CompileRules() (*rules.Table, error) {
	return rules.Compile(c.RuleSet())
}

// MemoryUsers converts the directory's seeded users into the record
// pointers the memory directory constructor takes.
func (d *DirectoryConfig) MemoryUsers() []*directory.UserRecord {
	users := make([]*directory.UserRecord, 0, len(d.Users))
	for i := range d.Users {
		users = append(users, d.Users[i].Clone())
	}
	return users
}
