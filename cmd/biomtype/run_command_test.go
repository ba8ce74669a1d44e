package main

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"biomtype/internal/config"
	"biomtype/internal/jobs"
	"biomtype/internal/reconcile"
	"biomtype/internal/testsupport"
	"biomtype/internal/validation"
)

func TestRunCompletesRemappedJob(t *testing.T) {
	stub := newQiitaStub(t)
	env := setupCLITestEnv(t,
		testsupport.WithQiitaURL(stub.server.URL),
		testsupport.WithStorageDriver(config.StorageFS),
		testsupport.WithMetricsTextfile(),
	)
	biomPath := testsupport.WriteBIOM(t, filepath.Join(env.baseDir, "upload", "table.biom"), []string{"S1", "S2"}, []string{"O1"})
	stub.files = map[string][]string{"biom": {biomPath}}
	stub.prep = map[string]map[string]string{
		"1.S1": {"run_prefix": "S1"},
		"1.S2": {"run_prefix": "S2"},
	}
	outDir := filepath.Join(env.baseDir, "out")

	out, _, err := runCLI(t, []string{"run", stub.server.URL, "job-1", outDir}, env.configPath)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	requireContains(t, out, "[OK] Succeeded")
	requireContains(t, out, "remapped")

	completed := stub.completion(t)
	if completed["success"] != true {
		t.Fatalf("expected success, got %+v", completed)
	}
	artifacts, ok := completed["artifacts"].(map[string]any)
	if !ok {
		t.Fatalf("artifacts missing: %+v", completed)
	}
	validated, ok := artifacts["null"].(map[string]any)
	if !ok || validated["artifact_type"] != "BIOM" {
		t.Fatalf("unexpected artifact %+v", artifacts)
	}
	filepaths, _ := validated["filepaths"].([]any)
	want := []any{[]any{filepath.Join(outDir, "table.biom"), "biom"}}
	if !reflect.DeepEqual(filepaths, want) {
		t.Fatalf("filepaths = %v, want %v", filepaths, want)
	}

	wantSteps := []string{validation.StepCollectPrep, validation.StepValidateTable, validation.StepFixSampleIDs}
	if !reflect.DeepEqual(stub.steps, wantSteps) {
		t.Fatalf("steps = %v, want %v", stub.steps, wantSteps)
	}

	ledger := testsupport.MustOpenLedger(t, env.cfg)
	job, err := ledger.FindByJobID(context.Background(), "job-1")
	if err != nil || job == nil {
		t.Fatalf("FindByJobID: %v %v", job, err)
	}
	if job.Status != jobs.StatusSucceeded || job.Verdict != "remapped" || job.PrepID != "1" {
		t.Fatalf("unexpected ledger row %+v", job)
	}
	if job.Step != validation.StepFixSampleIDs {
		t.Fatalf("step = %q", job.Step)
	}
	if !strings.HasPrefix(job.ArchiveKey, "tables/job-1/") {
		t.Fatalf("archive key = %q", job.ArchiveKey)
	}
	if _, err := os.Stat(env.cfg.Metrics.Textfile); err != nil {
		t.Fatalf("metrics textfile: %v", err)
	}
}

func TestRunReportsRejection(t *testing.T) {
	stub := newQiitaStub(t)
	env := setupCLITestEnv(t, testsupport.WithQiitaURL(stub.server.URL))
	biomPath := testsupport.WriteBIOM(t, filepath.Join(env.baseDir, "upload", "table.biom"), []string{"S1"}, []string{"O1"})
	stub.files = map[string][]string{"biom": {biomPath}}
	stub.prep = map[string]map[string]string{"X.A": {"depth": "1"}}

	out, _, err := runCLI(t, []string{"run", "", "job-2", filepath.Join(env.baseDir, "out")}, env.configPath)
	if err != nil {
		t.Fatalf("a rejection should not fail the command: %v", err)
	}
	requireContains(t, out, "Rejected")

	completed := stub.completion(t)
	if completed["success"] != false || completed["error"] != reconcile.MismatchMessage {
		t.Fatalf("unexpected completion %+v", completed)
	}

	ledger := testsupport.MustOpenLedger(t, env.cfg)
	job, err := ledger.FindByJobID(context.Background(), "job-2")
	if err != nil || job == nil {
		t.Fatalf("FindByJobID: %v %v", job, err)
	}
	if job.Status != jobs.StatusFailed || job.ErrorKind != string(reconcile.ProblemIdentifierMismatch) {
		t.Fatalf("unexpected ledger row %+v", job)
	}
}

func TestRunUnknownCommandFailsJob(t *testing.T) {
	stub := newQiitaStub(t)
	stub.command = "Generate HTML summary"
	env := setupCLITestEnv(t, testsupport.WithQiitaURL(stub.server.URL))

	_, _, err := runCLI(t, []string{"run", "", "job-3", filepath.Join(env.baseDir, "out")}, env.configPath)
	if err == nil {
		t.Fatal("expected error for unknown command")
	}
	completed := stub.completion(t)
	message, _ := completed["error"].(string)
	if completed["success"] != false || !strings.Contains(message, "unknown command") {
		t.Fatalf("unexpected completion %+v", completed)
	}
}

func TestRunSystemErrorFailsJob(t *testing.T) {
	stub := newQiitaStub(t)
	env := setupCLITestEnv(t, testsupport.WithQiitaURL(stub.server.URL))
	missing := filepath.Join(env.baseDir, "upload", "missing.biom")
	stub.files = map[string][]string{"biom": {missing}}
	stub.prep = map[string]map[string]string{"1.S1": {}}

	if _, _, err := runCLI(t, []string{"run", "", "job-4", filepath.Join(env.baseDir, "out")}, env.configPath); err == nil {
		t.Fatal("expected error for unreadable table")
	}
	completed := stub.completion(t)
	message, _ := completed["error"].(string)
	if completed["success"] != false || !strings.Contains(message, "missing.biom") {
		t.Fatalf("unexpected completion %+v", completed)
	}

	ledger := testsupport.MustOpenLedger(t, env.cfg)
	job, err := ledger.FindByJobID(context.Background(), "job-4")
	if err != nil || job == nil {
		t.Fatalf("FindByJobID: %v %v", job, err)
	}
	if job.Status != jobs.StatusFailed || job.ErrorKind != "transient" {
		t.Fatalf("unexpected ledger row %+v", job)
	}
}

func TestRunRequiresThreeArguments(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"run", "job"}, env.configPath); err == nil {
		t.Fatal("expected argument error")
	}
}
