// Package preflight provides readiness checks for the filesystem paths,
// credential key, and arr instances Splintarr depends on.
//
// The CLI "splintarr doctor" command runs RunAll and renders each Result.
// Instance checks open a real session, so they exercise the same probe the
// feedback engine uses before reconciling.
package preflight
