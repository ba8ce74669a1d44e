// Package reconcile decides whether the sample identifiers of a submitted count
// table can be used as-is, repaired through a deterministic mapping, or must be
// rejected.
//
// The accepted identifiers come from the prep information record (the keys of
// Metadata). Reconcile tries, in order: the subset fast path, an explicit
// run_prefix inversion, and finally the shared-prefix heuristic. Mismatches are
// ordinary outcomes and are reported through the Verdict; only caller
// precondition violations (ErrInvalidInput) are returned as errors.
//
// The package performs no I/O and keeps no state, so Reconcile may be called
// concurrently and always yields the same Verdict for the same inputs.
package reconcile
