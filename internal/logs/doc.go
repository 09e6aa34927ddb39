// Package logs tails the JSON log file written by the logging package.
//
// Negative offsets mean "last N lines"; positive offsets resume where a
// previous call stopped, which powers `splintarr logs --follow`. Filters
// narrow output to one reconciliation (history_id) or a minimum level
// without loading the whole file.
package logs
