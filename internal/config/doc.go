// Package config loads, validates, and watches the gate's YAML
// configuration document.
//
// A single document describes the listening server, the upstream
// application, the ordered path rule table, credential validators, the
// user directory, and the observability stack. Loading substitutes
// ${VAR} and ${VAR:-default} references from the environment before
// parsing. Watcher reloads the document when the file changes and keeps
// the last valid configuration when a reload fails, so a bad edit never
// takes a running gate down.
//
// Sections that configure another package carry conversion methods
// (ValidatorConfig, StoreConfig, ClientConfig, ...) that produce the
// package's own config type. Durations are written in Go's
// human-readable form ("30s", "5m") via the Duration wrapper.
package config
