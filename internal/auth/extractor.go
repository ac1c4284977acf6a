package auth

import (
	"context"
	"net/http"
	"strings"

	"google.golang.org/grpc/metadata"
)

// SourceType identifies where a credential is looked for in a request.
type SourceType string

const (
	// SourceHeader reads the credential from an HTTP header.
	SourceHeader SourceType = "header"

	// SourceCookie reads the credential from a cookie.
	SourceCookie SourceType = "cookie"

	// SourceQuery reads the credential from a URL query parameter.
	SourceQuery SourceType = "query"
)

const (
	// DefaultHeaderName is the header checked when no sources are configured.
	DefaultHeaderName = "Authorization"

	// BearerPrefix is the scheme prefix stripped from Authorization values.
	BearerPrefix = "Bearer "
)

// Source describes one place to look for a credential.
type Source struct {
	// Type selects the extraction mechanism.
	Type SourceType `yaml:"type" json:"type"`

	// Name is the header, cookie, or query parameter name.
	Name string `yaml:"name" json:"name"`

	// Prefix is stripped from the extracted value when present. A value
	// that lacks a non-empty configured prefix is not a match for this
	// source. Matching is case-insensitive for the scheme portion.
	Prefix string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
}

// Credential is a raw credential extracted from a request, before any
// validation has happened.
type Credential struct {
	// Token is the raw credential value with any scheme prefix removed.
	Token string

	// Source names where the credential was found, for logging.
	Source string
}

// Extractor pulls raw credentials out of incoming requests.
type Extractor interface {
	// Extract returns the first credential found in r, checking sources
	// in their configured order. Returns ErrNoCredentials when no source
	// yields a value, ErrMalformedCredentials for present-but-unusable
	// values (for example an Authorization header with a wrong scheme).
	Extract(r *http.Request) (*Credential, error)

	// ExtractFromMetadata returns the bearer credential from gRPC
	// metadata in ctx, with the same error contract as Extract.
	ExtractFromMetadata(ctx context.Context) (*Credential, error)
}

// extractor is the Source-list backed Extractor implementation.
type extractor struct {
	sources []Source
}

var _ Extractor = (*extractor)(nil)

// NewExtractor creates an Extractor for the given sources. With no
// sources configured it defaults to the Authorization header with the
// Bearer scheme.
func NewExtractor(sources []Source) Extractor {
	if len(sources) == 0 {
		sources = []Source{{
			Type:   SourceHeader,
			Name:   DefaultHeaderName,
			Prefix: BearerPrefix,
		}}
	}
	return &extractor{sources: sources}
}

// Extract implements Extractor.
func (e *extractor) Extract(r *http.Request) (*Credential, error) {
	var sawMalformed bool
	for _, src := range e.sources {
		value, present := e.lookup(r, src)
		if !present {
			continue
		}
		token, ok := stripPrefix(value, src.Prefix)
		if !ok {
			sawMalformed = true
			continue
		}
		if token == "" {
			sawMalformed = true
			continue
		}
		return &Credential{Token: token, Source: sourceName(src)}, nil
	}
	if sawMalformed {
		return nil, ErrMalformedCredentials
	}
	return nil, ErrNoCredentials
}

// lookup returns the raw value for one source and whether it was present.
func (e *extractor) lookup(r *http.Request, src Source) (string, bool) {
	switch src.Type {
	case SourceHeader:
		v := r.Header.Get(src.Name)
		return v, v != ""
	case SourceCookie:
		c, err := r.Cookie(src.Name)
		if err != nil || c.Value == "" {
			return "", false
		}
		return c.Value, true
	case SourceQuery:
		v := r.URL.Query().Get(src.Name)
		return v, v != ""
	default:
		return "", false
	}
}

// ExtractFromMetadata implements Extractor. Only header-type sources
// apply to gRPC; metadata keys are lowercase per the gRPC spec.
func (e *extractor) ExtractFromMetadata(ctx context.Context) (*Credential, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, ErrNoCredentials
	}
	var sawMalformed bool
	for _, src := range e.sources {
		if src.Type != SourceHeader {
			continue
		}
		values := md.Get(strings.ToLower(src.Name))
		if len(values) == 0 || values[0] == "" {
			continue
		}
		token, ok := stripPrefix(values[0], src.Prefix)
		if !ok || token == "" {
			sawMalformed = true
			continue
		}
		return &Credential{Token: token, Source: sourceName(src)}, nil
	}
	if sawMalformed {
		return nil, ErrMalformedCredentials
	}
	return nil, ErrNoCredentials
}

// stripPrefix removes the configured scheme prefix from value.
// The scheme comparison is case-insensitive ("bearer x" matches
// prefix "Bearer "). Returns false when the prefix does not match.
func stripPrefix(value, prefix string) (string, bool) {
	if prefix == "" {
		return strings.TrimSpace(value), true
	}
	if len(value) < len(prefix) {
		return "", false
	}
	if !strings.EqualFold(value[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(value[len(prefix):]), true
}

// sourceName renders a source as "type:name" for logs and metrics.
func sourceName(src Source) string {
	return string(src.Type) + ":" + src.Name
}
