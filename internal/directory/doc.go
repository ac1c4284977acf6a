// Package directory resolves login usernames to user records. Usernames
// compare case-insensitively. Backends: an in-memory map seeded from
// configuration and a PostgreSQL table. Passwords are stored and
// verified as bcrypt hashes only.
package directory
