package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/vyrodovalexey/avauthgate/internal/auth"
	"github.com/vyrodovalexey/avauthgate/internal/auth/jwt"
	"github.com/vyrodovalexey/avauthgate/internal/authz/expr"
	"github.com/vyrodovalexey/avauthgate/internal/directory"
	"github.com/vyrodovalexey/avauthgate/internal/rules"
)

// ValidationError is one configuration problem, located by its dotted
// document path.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// HasErrors returns true if there are validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator checks a configuration document and accumulates every
// problem it finds, so an operator fixes one round, not one field.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// ValidateConfig validates a configuration document. The document must
// be normalized first; Load does both.
func ValidateConfig(cfg *Config) error {
	return NewValidator().Validate(cfg)
}

// Validate validates the configuration and returns any errors.
func (v *Validator) Validate(cfg *Config) error {
	v.errors = make(ValidationErrors, 0)

	if cfg == nil {
		v.addError("", "configuration is nil")
		return v.errors
	}

	v.validateServer(&cfg.Server)
	v.validateUpstream(&cfg.Upstream)
	v.validateRules(cfg)
	v.validateAuth(&cfg.Auth)
	v.validatePolicies(cfg.Policies)
	v.validateDirectory(cfg.Directory)
	v.validateLogin(cfg)
	v.validateCORS(cfg.CORS)
	v.validateSecurityHeaders(cfg.SecurityHeaders)
	v.validateRateLimit(cfg.RateLimit)
	v.validateSecrets(cfg.Secrets)
	v.validateLogging(&cfg.Logging)
	v.validateMetrics(&cfg.Metrics)
	v.validateTracing(&cfg.Tracing)
	v.validateAudit(cfg.Audit)

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}

func (v *Validator) checkDuration(path string, d Duration) {
	if d < 0 {
		v.addError(path, "duration must not be negative")
	}
}

func (v *Validator) checkURL(path, raw string) {
	u, err := url.Parse(raw)
	if err != nil {
		v.addError(path, fmt.Sprintf("invalid URL: %v", err))
		return
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		v.addError(path, fmt.Sprintf("URL scheme must be http or https, got %q", u.Scheme))
		return
	}
	if u.Host == "" {
		v.addError(path, "URL has no host")
	}
}

func (v *Validator) validateServer(s *ServerConfig) {
	if s.ListenAddress == "" {
		v.addError("server.listen_address", "listen address is required")
	}
	v.checkDuration("server.read_timeout", s.ReadTimeout)
	v.checkDuration("server.read_header_timeout", s.ReadHeaderTimeout)
	v.checkDuration("server.write_timeout", s.WriteTimeout)
	v.checkDuration("server.idle_timeout", s.IdleTimeout)
	v.checkDuration("server.shutdown_timeout", s.ShutdownTimeout)
	if s.MaxHeaderBytes < 0 {
		v.addError("server.max_header_bytes", "must not be negative")
	}

	for i, proxy := range s.TrustedProxies {
		if _, _, err := net.ParseCIDR(proxy); err == nil {
			continue
		}
		if net.ParseIP(proxy) == nil {
			v.addError(fmt.Sprintf("server.trusted_proxies[%d]", i),
				fmt.Sprintf("not a CIDR or address: %q", proxy))
		}
	}

	if s.TLS != nil {
		if s.TLS.CertFile == "" {
			v.addError("server.tls.cert_file", "cert file is required")
		}
		if s.TLS.KeyFile == "" {
			v.addError("server.tls.key_file", "key file is required")
		}
		switch s.TLS.MinVersion {
		case "", "1.2", "1.3":
		default:
			v.addError("server.tls.min_version", fmt.Sprintf("must be 1.2 or 1.3, got %q", s.TLS.MinVersion))
		}
	}
}

func (v *Validator) validateUpstream(u *UpstreamConfig) {
	if u.URL == "" {
		v.addError("upstream.url", "upstream URL is required")
	} else {
		v.checkURL("upstream.url", u.URL)
	}
	v.checkDuration("upstream.dial_timeout", u.DialTimeout)
	v.checkDuration("upstream.response_header_timeout", u.ResponseHeaderTimeout)
	v.checkDuration("upstream.idle_conn_timeout", u.IdleConnTimeout)
	v.checkDuration("upstream.flush_interval", u.FlushInterval)
	if u.MaxIdleConns < 0 {
		v.addError("upstream.max_idle_conns", "must not be negative")
	}
	if u.MaxIdleConnsPerHost < 0 {
		v.addError("upstream.max_idle_conns_per_host", "must not be negative")
	}
}

// validateRules compiles the rule table so a malformed pattern or an
// unknown verdict fails the load instead of the first request.
func (v *Validator) validateRules(cfg *Config) {
	if _, err := cfg.CompileRules(); err != nil {
		var patternErr *rules.InvalidPatternError
		if errors.As(err, &patternErr) && patternErr.Index >= 0 {
			v.addError(fmt.Sprintf("rules[%d]", patternErr.Index),
				fmt.Sprintf("pattern %q: %s", patternErr.Pattern, patternErr.Reason))
			return
		}
		v.addError("rules", err.Error())
	}
}

func (v *Validator) validateAuth(a *AuthConfig) {
	for i, src := range a.Sources {
		path := fmt.Sprintf("auth.sources[%d]", i)
		switch src.Type {
		case auth.SourceHeader, auth.SourceCookie, auth.SourceQuery:
		default:
			v.addError(path+".type", fmt.Sprintf("must be header, cookie, or query, got %q", src.Type))
		}
		if src.Name == "" {
			v.addError(path+".name", "source name is required")
		}
	}

	if a.JWT != nil {
		v.validateJWT(a.JWT)
	}
	if a.Opaque != nil {
		v.validateOpaque(a.Opaque)
	}
	if a.Introspection != nil {
		v.validateIntrospection(a.Introspection)
	}
}

func (v *Validator) validateJWT(j *JWTConfig) {
	if j.Algorithm == "" {
		v.addError("auth.jwt.algorithm", "algorithm is required")
	} else if !jwt.SupportedAlgorithm(j.Algorithm) {
		v.addError("auth.jwt.algorithm", fmt.Sprintf("algorithm %q is not supported", j.Algorithm))
	}

	hmac := strings.HasPrefix(j.Algorithm, "HS")
	switch {
	case hmac && j.Secret == "":
		v.addError("auth.jwt.secret", "HMAC algorithms require a secret")
	case !hmac && j.Algorithm != "" && j.Secret != "":
		v.addError("auth.jwt.secret", "secret is only valid for HMAC algorithms")
	case !hmac && j.Algorithm != "" && j.PublicKeyFile == "" && j.JWKSURL == "" && j.PrivateKeyFile == "":
		v.addError("auth.jwt", "asymmetric algorithms require a public key file, a private key file, or a JWKS URL")
	}

	if j.JWKSURL != "" {
		v.checkURL("auth.jwt.jwks_url", j.JWKSURL)
	}
	v.checkDuration("auth.jwt.jwks_refresh_interval", j.JWKSRefreshInterval)
	v.checkDuration("auth.jwt.clock_skew", j.ClockSkew)
	v.checkDuration("auth.jwt.token_ttl", j.TokenTTL)
}

func (v *Validator) validateOpaque(o *OpaqueConfig) {
	switch o.Store {
	case StoreMemory:
	case StoreRedis:
		if o.Redis == nil {
			v.addError("auth.opaque.redis", "redis store requires a redis section")
		} else if o.Redis.Address == "" {
			v.addError("auth.opaque.redis.address", "redis address is required")
		}
	default:
		v.addError("auth.opaque.store", fmt.Sprintf("must be memory or redis, got %q", o.Store))
	}
	v.checkDuration("auth.opaque.ttl", o.TTL)
	if o.Redis != nil {
		v.checkDuration("auth.opaque.redis.dial_timeout", o.Redis.DialTimeout)
		v.checkDuration("auth.opaque.redis.read_timeout", o.Redis.ReadTimeout)
		v.checkDuration("auth.opaque.redis.write_timeout", o.Redis.WriteTimeout)
	}
}

func (v *Validator) validateIntrospection(i *IntrospectionConfig) {
	if i.Endpoint == "" {
		v.addError("auth.introspection.endpoint", "endpoint is required")
	} else {
		v.checkURL("auth.introspection.endpoint", i.Endpoint)
	}
	v.checkDuration("auth.introspection.timeout", i.Timeout)
	v.checkDuration("auth.introspection.breaker_timeout", i.BreakerTimeout)
	if i.BreakerThreshold < 0 {
		v.addError("auth.introspection.breaker_threshold", "must not be negative")
	}
}

// validatePolicies compiles every policy so a bad expression fails the
// load. Name uniqueness and expression type checks live in the
// evaluator; this surfaces its error under the policies path.
func (v *Validator) validatePolicies(policies []expr.Policy) {
	if len(policies) == 0 {
		return
	}
	if _, err := expr.New(policies); err != nil {
		v.addError("policies", err.Error())
	}
}

func (v *Validator) validateDirectory(d *DirectoryConfig) {
	if d == nil {
		return
	}

	switch d.Mode {
	case DirectoryMemory:
		if len(d.Users) == 0 {
			v.addError("directory.users", "memory directory has no users")
		}
		for i := range d.Users {
			path := fmt.Sprintf("directory.users[%d]", i)
			if d.Users[i].ID == "" {
				v.addError(path+".id", "user id is required")
			}
			if d.Users[i].PasswordHash == "" {
				v.addError(path+".password_hash", "password hash is required")
			}
		}
		// The constructor owns username and case-folding rules; run it
		// so the load fails exactly where startup would.
		if _, err := directory.NewMemoryDirectory(d.MemoryUsers()); err != nil {
			v.addError("directory.users", err.Error())
		}
	case DirectoryPostgres:
		if d.Postgres == nil {
			v.addError("directory.postgres", "postgres mode requires a postgres section")
		} else {
			if d.Postgres.DSN == "" {
				v.addError("directory.postgres.dsn", "dsn is required")
			}
			v.checkDuration("directory.postgres.conn_max_lifetime", d.Postgres.ConnMaxLifetime)
		}
	default:
		v.addError("directory.mode", fmt.Sprintf("must be memory or postgres, got %q", d.Mode))
	}
}

func (v *Validator) validateLogin(cfg *Config) {
	l := cfg.Login
	if l == nil || !l.Enabled {
		return
	}

	if cfg.Directory == nil {
		v.addError("login", "login requires a directory section")
	}

	if !strings.HasPrefix(l.Path, "/") {
		v.addError("login.path", "path must start with /")
	}
	if !strings.HasPrefix(l.LogoutPath, "/") {
		v.addError("login.logout_path", "logout path must start with /")
	}

	switch l.TokenKind {
	case TokenKindOpaque:
		if cfg.Auth.Opaque == nil {
			v.addError("login.token_kind", "opaque tokens require an auth.opaque section")
		}
	case TokenKindJWT:
		if cfg.Auth.JWT == nil {
			v.addError("login.token_kind", "jwt tokens require an auth.jwt section")
		} else if cfg.Auth.JWT.Secret == "" && cfg.Auth.JWT.PrivateKeyFile == "" {
			v.addError("login.token_kind", "issuing jwt tokens requires a secret or a private key file")
		}
	default:
		v.addError("login.token_kind", fmt.Sprintf("must be opaque or jwt, got %q", l.TokenKind))
	}

	v.checkDuration("login.token_ttl", l.TokenTTL)
	if l.RatePerMinute < 0 {
		v.addError("login.rate_per_minute", "must not be negative")
	}
	if l.Burst < 0 {
		v.addError("login.burst", "must not be negative")
	}
}

func (v *Validator) validateCORS(c *CORSConfig) {
	if c == nil || !c.Enabled {
		return
	}
	if len(c.AllowedOrigins) == 0 {
		v.addError("cors.allowed_origins", "at least one origin is required")
	}
	for i, origin := range c.AllowedOrigins {
		if origin == "" {
			v.addError(fmt.Sprintf("cors.allowed_origins[%d]", i), "origin must not be empty")
		}
		if origin == "*" && c.AllowCredentials {
			v.addError("cors.allow_credentials", "credentials cannot be combined with the * origin")
		}
	}
	v.checkDuration("cors.max_age", c.MaxAge)
}

func (v *Validator) validateSecurityHeaders(s *SecurityHeadersConfig) {
	if s == nil || !s.Enabled {
		return
	}
	switch s.FrameOptions {
	case "DENY", "SAMEORIGIN":
	default:
		v.addError("security_headers.frame_options", fmt.Sprintf("must be DENY or SAMEORIGIN, got %q", s.FrameOptions))
	}
	if s.HSTSMaxAge < 0 {
		v.addError("security_headers.hsts_max_age", "must not be negative")
	}
}

func (v *Validator) validateRateLimit(r *RateLimitConfig) {
	if r == nil || !r.Enabled {
		return
	}
	if r.RequestsPerSecond <= 0 {
		v.addError("rate_limit.requests_per_second", "must be greater than zero")
	}
	if r.Burst < 1 {
		v.addError("rate_limit.burst", "must be at least 1")
	}
}

func (v *Validator) validateSecrets(s *SecretsConfig) {
	if s == nil {
		return
	}

	switch s.Provider {
	case SecretsEnv:
	case SecretsLocal:
		if s.LocalPath == "" {
			v.addError("secrets.local_path", "local provider requires a base path")
		}
	case SecretsVault:
		if s.Vault == nil {
			v.addError("secrets.vault", "vault provider requires a vault section")
			return
		}
		if s.Vault.Address == "" {
			v.addError("secrets.vault.address", "vault address is required")
		} else {
			v.checkURL("secrets.vault.address", s.Vault.Address)
		}
		switch s.Vault.AuthMethod {
		case "token":
		case "approle":
			if s.Vault.AppRoleID == "" || s.Vault.AppRoleSecretID == "" {
				v.addError("secrets.vault", "approle auth requires approle_id and approle_secret_id")
			}
		default:
			v.addError("secrets.vault.auth_method", fmt.Sprintf("must be token or approle, got %q", s.Vault.AuthMethod))
		}
		v.checkDuration("secrets.vault.timeout", s.Vault.Timeout)
	default:
		v.addError("secrets.provider", fmt.Sprintf("must be env, local, or vault, got %q", s.Provider))
	}
}

func (v *Validator) validateLogging(l *LoggingConfig) {
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		v.addError("logging.level", fmt.Sprintf("must be debug, info, warn, or error, got %q", l.Level))
	}
	switch l.Format {
	case "json", "console":
	default:
		v.addError("logging.format", fmt.Sprintf("must be json or console, got %q", l.Format))
	}
	if l.Output == "" {
		v.addError("logging.output", "output is required")
	}
}

func (v *Validator) validateMetrics(m *MetricsConfig) {
	if !m.Enabled {
		return
	}
	if m.ListenAddress == "" {
		v.addError("metrics.listen_address", "listen address is required")
	}
	if !strings.HasPrefix(m.Path, "/") {
		v.addError("metrics.path", "path must start with /")
	}
}

func (v *Validator) validateTracing(t *TracingConfig) {
	if t.SampleRatio < 0 || t.SampleRatio > 1 {
		v.addError("tracing.sample_ratio", "must be between 0 and 1")
	}
	if t.Enabled && t.ServiceName == "" {
		v.addError("tracing.service_name", "service name is required")
	}
}

func (v *Validator) validateAudit(a *AuditConfig) {
	if a == nil || !a.Enabled {
		return
	}
	if a.Output == "" {
		v.addError("audit.output", "output is required")
	}
	if a.BufferSize < 0 {
		v.addError("audit.buffer_size", "must not be negative")
	}
}
