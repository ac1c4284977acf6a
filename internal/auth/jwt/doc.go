// Package jwt validates and issues JSON Web Tokens.
//
// Verification keys come from a shared secret (HMAC algorithms), a PEM
// file (RSA and ECDSA), or a JWKS endpoint refreshed in the background.
// Parsing, signature verification, and temporal claim checks are
// delegated to github.com/lestrrat-go/jwx; this package maps the
// outcome onto the auth package's Principal and error taxonomy and
// applies the claim conventions (roles, scope, preferred_username) the
// rest of the gateway expects.
package jwt
