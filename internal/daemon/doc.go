// Package daemon runs the long-lived feedback scheduler.
//
// The daemon polls the store for finished search runs that have waited at
// least feedback.check_delay_minutes, reconciles each one under a per-history
// file lock, stamps it as checked, and posts a summary notification. A
// process-wide flock prevents two schedulers from sharing a data directory.
//
// Reconciliation itself lives in the feedback package; this package owns
// timing, locking, and lifecycle only.
package daemon
