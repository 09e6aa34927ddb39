// Package feedback closes the search-result loop: after a search run has
// submitted commands to Sonarr or Radarr, it polls each command, decides
// whether the searched item was actually grabbed, bumps the matching library
// item's grab counter, and writes the outcome back into the run's audit
// trail.
//
// Service.Reconcile is the only entry point. It never returns an error:
// missing rows, malformed metadata, credential problems, per-item remote
// failures, lost connections, and failed saves all degrade to a logged event
// plus a best-effort Result. Entries are checked one at a time so the
// instance's rate limit holds and the enrichment order is deterministic.
//
// Reconcile is not guarded against concurrent calls for the same history
// run. The metadata write replaces the whole column, so overlapping calls
// race and the later writer wins, and re-running a confirmed run counts its
// grabs again. Callers serialize per run (the CLI holds a file lock).
package feedback
