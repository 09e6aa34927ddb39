// Package services defines shared utilities consumed by the feedback engine
// and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp history IDs, instance IDs, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures from remote
//     services, storage, and credentials classify consistently in logs.
//
// Use these helpers when wiring new integrations so operational behaviour
// (error handling, observability) stays uniform.
package services
