package testsupport

import (
	"context"
	"testing"

	"biomtype/internal/config"
	"biomtype/internal/jobs"
)

// MustOpenLedger opens a jobs.Store for tests and registers cleanup.
func MustOpenLedger(t testing.TB, cfg *config.Config) *jobs.Store {
	t.Helper()

	store, err := jobs.Open(context.Background(), cfg.LedgerPath())
	if err != nil {
		t.Fatalf("jobs.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// StartJob records a running job for tests using the provided store.
func StartJob(t testing.TB, store *jobs.Store, requestID, qiitaJobID string) *jobs.Job {
	t.Helper()

	job, err := store.Start(context.Background(), jobs.StartParams{
		RequestID:    requestID,
		QiitaJobID:   qiitaJobID,
		PrepID:       "1",
		ArtifactType: "BIOM",
	})
	if err != nil {
		t.Fatalf("store.Start: %v", err)
	}
	return job
}
