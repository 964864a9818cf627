// Package services defines shared utilities consumed by the pipeline stages and
// the lobby session client.
//
// Key responsibilities:
//   - Context helpers that stamp record IDs, stage names, and run correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper, and DispositionFor which
//     decides whether a failure skips one record or halts the batch.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
