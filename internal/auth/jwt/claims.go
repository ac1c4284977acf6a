package jwt

import (
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/vyrodovalexey/avauthgate/internal/auth"
)

// principalFrom maps a validated token onto a Principal using the
// configured claim conventions.
func (v *Validator) principalFrom(tok jwt.Token) *auth.Principal {
	claims := tok.PrivateClaims()

	p := &auth.Principal{
		Subject:    tok.Subject(),
		Username:   stringClaim(claims, v.cfg.usernameClaim()),
		Roles:      stringListClaim(claims, v.cfg.rolesClaim()),
		Scopes:     scopeClaim(claims, v.cfg.scopeClaim()),
		AuthMethod: auth.MethodJWT,
		TokenID:    tok.JwtID(),
		IssuedAt:   tok.IssuedAt(),
		ExpiresAt:  tok.Expiration(),
		Claims:     claims,
	}
	if p.Username == "" {
		p.Username = p.Subject
	}
	return p
}

// stringClaim reads a string-valued claim, or "" when absent.
func stringClaim(claims map[string]interface{}, name string) string {
	if v, ok := claims[name].(string); ok {
		return v
	}
	return ""
}

// stringListClaim reads a claim that is either a list of strings or a
// single string. Non-string list members are skipped.
func stringListClaim(claims map[string]interface{}, name string) []string {
	switch v := claims[name].(type) {
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case []string:
		if len(v) == 0 {
			return nil
		}
		return v
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}

// scopeClaim reads scopes, accepting both the RFC 8693 space-separated
// string form and a plain list.
func scopeClaim(claims map[string]interface{}, name string) []string {
	if s, ok := claims[name].(string); ok {
		fields := strings.Fields(s)
		if len(fields) == 0 {
			return nil
		}
		return fields
	}
	return stringListClaim(claims, name)
}
