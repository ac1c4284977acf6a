package config

import (
	"github.com/vyrodovalexey/avauthgate/internal/audit"
	"github.com/vyrodovalexey/avauthgate/internal/auth"
	"github.com/vyrodovalexey/avauthgate/internal/auth/introspect"
	"github.com/vyrodovalexey/avauthgate/internal/auth/jwt"
	"github.com/vyrodovalexey/avauthgate/internal/auth/token"
	"github.com/vyrodovalexey/avauthgate/internal/directory"
	"github.com/vyrodovalexey/avauthgate/internal/observability"
)

// Conversion methods bridging document sections onto the config types
// the feature packages define. The document spells durations as strings
// and the features take time.Duration; everything else maps one to one.

// ValidatorConfig converts the section into the JWT package's config.
func (j *JWTConfig) ValidatorConfig() *jwt.Config {
	if j == nil {
		return nil
	}
	return &jwt.Config{
		Algorithm:           j.Algorithm,
		Secret:              j.Secret,
		PublicKeyFile:       j.PublicKeyFile,
		PrivateKeyFile:      j.PrivateKeyFile,
		JWKSURL:             j.JWKSURL,
		JWKSRefreshInterval: j.JWKSRefreshInterval.Duration(),
		Issuer:              j.Issuer,
		Audience:            j.Audience,
		ClockSkew:           j.ClockSkew.Duration(),
		TokenTTL:            j.TokenTTL.Duration(),
		RolesClaim:          j.RolesClaim,
		ScopeClaim:          j.ScopeClaim,
		UsernameClaim:       j.UsernameClaim,
	}
}

// StoreConfig converts the section into the token package's Redis
// config.
func (r *RedisConfig) StoreConfig() *token.RedisConfig {
	if r == nil {
		return nil
	}
	return &token.RedisConfig{
		Address:      r.Address,
		Password:     r.Password,
		DB:           r.DB,
		KeyPrefix:    r.KeyPrefix,
		DialTimeout:  r.DialTimeout.Duration(),
		ReadTimeout:  r.ReadTimeout.Duration(),
		WriteTimeout: r.WriteTimeout.Duration(),
		PoolSize:     r.PoolSize,
	}
}

// ClientConfig converts the section into the introspection client's
// config.
func (i *IntrospectionConfig) ClientConfig() *introspect.Config {
	if i == nil {
		return nil
	}
	return &introspect.Config{
		Endpoint:         i.Endpoint,
		ClientID:         i.ClientID,
		ClientSecret:     i.ClientSecret,
		Timeout:          i.Timeout.Duration(),
		BreakerThreshold: i.BreakerThreshold,
		BreakerTimeout:   i.BreakerTimeout.Duration(),
		MaxRetries:       i.MaxRetries,
	}
}

// DirectoryConfig converts the section into the directory package's
// PostgreSQL config.
func (p *PostgresConfig) DirectoryConfig() *directory.PostgresConfig {
	if p == nil {
		return nil
	}
	return &directory.PostgresConfig{
		DSN:             p.DSN,
		MaxOpenConns:    p.MaxOpenConns,
		MaxIdleConns:    p.MaxIdleConns,
		ConnMaxLifetime: p.ConnMaxLifetime.Duration(),
	}
}

// AuthenticatorConfig converts the section into the authenticator's
// config. Validator construction stays with the caller; the chain
// depends on which validator sections are present.
func (a *AuthConfig) AuthenticatorConfig() *auth.Config {
	return &auth.Config{
		RejectInvalid: a.RejectInvalid,
		Sources:       a.Sources,
	}
}

// LoggerConfig converts the section into the audit package's config.
func (a *AuditConfig) LoggerConfig() *audit.Config {
	if a == nil {
		return nil
	}
	return &audit.Config{
		Enabled:    a.Enabled,
		Output:     a.Output,
		BufferSize: a.BufferSize,
	}
}

// LogConfig converts the section into the observability logger's
// config.
func (l LoggingConfig) LogConfig() observability.LogConfig {
	return observability.LogConfig{
		Level:  l.Level,
		Format: l.Format,
		Output: l.Output,
	}
}

// TracerConfig converts the section into the observability tracer's
// config.
func (t TracingConfig) TracerConfig() observability.TracerConfig {
	return observability.TracerConfig{
		ServiceName:    t.ServiceName,
		ServiceVersion: t.ServiceVersion,
		OTLPEndpoint:   t.Endpoint,
		SamplingRate:   t.SampleRatio,
		Enabled:        t.Enabled,
	}
}
