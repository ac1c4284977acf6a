// Package authz decides whether a request may proceed.
//
// The Engine evaluates every request against an ordered rule table
// (package rules): the first matching rule's verdict decides, and a
// request no rule matches must be authenticated. Admitted requests
// that carry a principal can be further refined by CEL expression
// policies (package expr), which can only narrow access, never widen
// it; anonymous requests a public rule admits bypass the policies.
//
// Authorize is a pure decision function. It performs no I/O, returns a
// typed Decision rather than an error, and never panics on request
// input; panics are reserved for programmer misuse such as constructing
// an engine without a table. Rendering a decision onto a transport
// (HTTP status codes, gRPC status codes) is the caller's concern;
// Middleware covers the HTTP case.
package authz
