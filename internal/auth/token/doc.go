// Package token implements opaque bearer tokens backed by a server-side
// store.
//
// An opaque token is a random string with no embedded claims; everything
// about it lives in a Record keyed by the token's SHA-256 hash, so a
// dump of the store cannot be replayed as credentials. Stores expire
// records by TTL, and revocation is a plain delete, which is the reason
// to prefer opaque tokens over JWTs when sessions must be killable.
//
// The Manager ties issuance, validation, and revocation together and
// plugs into the auth validator chain.
package token
