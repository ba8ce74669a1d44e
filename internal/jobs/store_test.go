package jobs_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"biomtype/internal/jobs"
	"biomtype/internal/testsupport"
)

func TestStartUpdateFinish(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	job := testsupport.StartJob(t, store, "req-1", "qiita-1")
	if job.ID == 0 || job.Status != jobs.StatusRunning {
		t.Fatalf("unexpected started job %#v", job)
	}
	if job.CreatedAt.IsZero() || job.FinishedAt != nil {
		t.Fatalf("unexpected timestamps %#v", job)
	}

	if err := store.UpdateStep(ctx, "qiita-1", "Step 2: Validating BIOM file"); err != nil {
		t.Fatalf("UpdateStep: %v", err)
	}
	err := store.Finish(ctx, "qiita-1", jobs.Result{
		Success:   true,
		Verdict:   "remapped",
		TablePath: "/out/table.biom",
	})
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}

	fetched, err := store.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if fetched.Status != jobs.StatusSucceeded || fetched.Verdict != "remapped" {
		t.Fatalf("unexpected finished job %#v", fetched)
	}
	if fetched.Step != "Step 2: Validating BIOM file" {
		t.Fatalf("unexpected step %q", fetched.Step)
	}
	if fetched.FinishedAt == nil || !fetched.Status.IsTerminal() {
		t.Fatalf("expected terminal job, got %#v", fetched)
	}

	if err := store.UpdateStep(ctx, "qiita-1", "late"); !errors.Is(err, jobs.ErrNoRunningJob) {
		t.Fatalf("expected ErrNoRunningJob after finish, got %v", err)
	}
}

func TestStartDefaultsJobIDToRequestID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)

	job, err := store.Start(context.Background(), jobs.StartParams{RequestID: "local-1"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if job.QiitaJobID != "local-1" {
		t.Fatalf("expected job id fallback, got %q", job.QiitaJobID)
	}
	if _, err := store.Start(context.Background(), jobs.StartParams{}); err == nil {
		t.Fatal("expected error without request id")
	}
	if _, err := store.Start(context.Background(), jobs.StartParams{RequestID: "local-1"}); err == nil {
		t.Fatal("expected unique request id violation")
	}
}

func TestFinishFailureRecordsError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	testsupport.StartJob(t, store, "req-2", "qiita-2")
	err := store.Finish(ctx, "qiita-2", jobs.Result{
		Verdict:      "rejected",
		ErrorKind:    "metadata_incomplete",
		ErrorMessage: "missing S3",
	})
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	job, err := store.FindByJobID(ctx, "qiita-2")
	if err != nil {
		t.Fatalf("FindByJobID: %v", err)
	}
	if job == nil || job.Status != jobs.StatusFailed || job.ErrorMessage != "missing S3" || job.ErrorKind != "metadata_incomplete" {
		t.Fatalf("unexpected job %#v", job)
	}

	missing, err := store.FindByJobID(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected (nil, nil) for unknown job, got %#v %v", missing, err)
	}
}

func TestListAndCounts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c"} {
		testsupport.StartJob(t, store, "req-"+id, id)
		if i < 2 {
			if err := store.Finish(ctx, id, jobs.Result{Success: i == 0}); err != nil {
				t.Fatalf("Finish %s: %v", id, err)
			}
		}
	}

	all, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].QiitaJobID != "c" {
		t.Fatalf("expected newest first, got %d jobs starting with %q", len(all), all[0].QiitaJobID)
	}
	limited, err := store.List(ctx, 1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("expected one job, got %d (%v)", len(limited), err)
	}
	failed, err := store.List(ctx, 0, jobs.StatusFailed)
	if err != nil || len(failed) != 1 || failed[0].QiitaJobID != "b" {
		t.Fatalf("unexpected failed list %#v (%v)", failed, err)
	}

	counts, err := store.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	for status, want := range map[jobs.Status]int{jobs.StatusRunning: 1, jobs.StatusSucceeded: 1, jobs.StatusFailed: 1} {
		if counts[status] != want {
			t.Fatalf("count[%s] = %d, want %d", status, counts[status], want)
		}
	}
}

func TestReclaimStaleAndPrune(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	testsupport.StartJob(t, store, "req-x", "x")
	reclaimed, err := store.ReclaimStale(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("ReclaimStale: %v", err)
	}
	if reclaimed != 1 {
		t.Fatalf("expected 1 reclaimed job, got %d", reclaimed)
	}
	job, _ := store.FindByJobID(ctx, "x")
	if job.Status != jobs.StatusFailed || job.ErrorKind != "abandoned" {
		t.Fatalf("unexpected reclaimed job %#v", job)
	}

	kept, err := store.Prune(ctx, time.Now().Add(-time.Hour))
	if err != nil || kept != 0 {
		t.Fatalf("expected nothing pruned before cutoff, got %d (%v)", kept, err)
	}
	pruned, err := store.Prune(ctx, time.Now().Add(time.Hour))
	if err != nil || pruned != 1 {
		t.Fatalf("expected 1 pruned job, got %d (%v)", pruned, err)
	}
}

func TestReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	ctx := context.Background()
	store, err := jobs.Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := store.Start(ctx, jobs.StartParams{RequestID: "r"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := jobs.Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	list, err := reopened.List(ctx, 0)
	if err != nil || len(list) != 1 {
		t.Fatalf("expected persisted job, got %d (%v)", len(list), err)
	}
	if reopened.Path() != path {
		t.Fatalf("unexpected path %q", reopened.Path())
	}
}
