// Package auth provides request authentication for the authorization
// gateway.
//
// Credentials are extracted from incoming requests (bearer tokens in the
// Authorization header by default, optionally cookies or query
// parameters) and handed to a chain of TokenValidator implementations.
// The first validator that accepts the credential produces a Principal,
// which travels with the request context and is consumed by the
// authorization engine.
//
// Authentication and authorization are deliberately separate: this
// package only establishes who is calling. Whether the caller may reach
// a path is decided by the authz package.
package auth
