// Package summary serves the vault metrics text shown to bot users.
//
// The upstream listing is expensive and occasionally down, so the text is
// held in a single-slot TTL cache: concurrent misses collapse into one
// upstream fetch (single-flight), and a failed fetch falls back to the
// last good value instead of erroring.
package summary
