// Package store persists arr instances, search history runs, and library
// items in SQLite.
//
// Only the operations reconciliation and the CLI need are exposed: reading a
// run and overwriting its metadata column, reading instances, and looking up
// and bumping grab counters on library items. Nothing here deletes rows.
//
// The database is created on first open from schema.sql. Schema changes bump
// schemaVersion in schema.go; an older database is rejected rather than
// migrated in place.
package store
