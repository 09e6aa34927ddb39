// Package notifications delivers reconciliation events via ntfy.
//
// The default implementation publishes to the topic configured in
// splintarr.toml and degrades to a no-op when no topic is set. Callers
// depend only on the Service interface.
package notifications
