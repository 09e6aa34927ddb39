// Package main hosts the Splintarr CLI entrypoint and command graph.
//
// The Cobra command tree wires configuration, the SQLite store, the
// credential cipher, and structured logging, then hands off to the internal
// packages: feedback reconciliation, search history inspection, instance
// management, and notification checks.
//
// Keep this package lean: behaviour belongs in internal packages and is
// surfaced here through commands and flags.
package main
