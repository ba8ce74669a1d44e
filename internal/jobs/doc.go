// Package jobs persists a ledger of validation runs in SQLite.
//
// Every run of the validate workflow gets a row keyed by its request ID that
// records the Qiita job and prep it belongs to, the step it last reached, the
// reconcile verdict and the final status. The Store also satisfies the step
// reporter contract so the workflow can stamp progress without knowing about
// the database.
//
// The database is local bookkeeping, not an archive. Schema changes bump the
// version in schema.go; operators delete the database to adopt a new schema.
package jobs
