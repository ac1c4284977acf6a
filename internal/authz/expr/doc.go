// Package expr evaluates CEL expression policies against admitted
// requests.
//
// A policy binds a path pattern to a boolean CEL expression over the
// request principal. Policies only narrow access: the rule table must
// admit a request, and the request must carry a principal, before any
// policy runs; every policy whose pattern matches the path must then
// evaluate to true for the request to proceed. Expressions are compiled once at construction; an expression
// that fails to compile is a configuration error, and an expression
// that fails at evaluation time denies the request rather than letting
// it through.
package expr
