// Package services defines shared utilities consumed by the validation workflow
// and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp Qiita job IDs, step names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper, and Classify which turns
//     a wrapped error back into a short label for the job ledger and metrics.
//
// Business outcomes (a rejected table, a mismatched sequence file) are not
// errors and never pass through these markers.
package services
