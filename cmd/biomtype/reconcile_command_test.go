package main

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"biomtype/internal/testsupport"
)

func TestReconcileCommand(t *testing.T) {
	dir := t.TempDir()
	biomPath := testsupport.WriteBIOM(t, filepath.Join(dir, "table.biom"), []string{"A", "B"}, []string{"O1"})

	tests := []struct {
		name    string
		prep    map[string]map[string]string
		verdict string
		problem string
	}{
		{"unchanged", map[string]map[string]string{"A": {}, "B": {}, "C": {}}, "unchanged", ""},
		{"run prefix", map[string]map[string]string{"1.A": {"run_prefix": "A"}, "1.B": {"run_prefix": "B"}}, "remapped", ""},
		{"missing sample", map[string]map[string]string{"1.A": {"run_prefix": "A"}}, "rejected", "metadata_incomplete"},
		{"mismatch", map[string]map[string]string{"Z": {}}, "rejected", "identifier_mismatch"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prepPath := testsupport.WritePrep(t, filepath.Join(t.TempDir(), "prep.json"), tt.prep)
			out, _, err := runCLI(t, []string{"reconcile", "--prep", prepPath, "--biom", biomPath, "--json"}, "")
			if err != nil {
				t.Fatalf("reconcile: %v", err)
			}
			var view verdictView
			if err := json.Unmarshal([]byte(out), &view); err != nil {
				t.Fatalf("decode: %v\n%s", err, out)
			}
			if view.Verdict != tt.verdict || view.Problem != tt.problem {
				t.Fatalf("got %+v, want verdict %s problem %q", view, tt.verdict, tt.problem)
			}
		})
	}
}

func TestReconcileCommandPrintsMapping(t *testing.T) {
	dir := t.TempDir()
	biomPath := testsupport.WriteBIOM(t, filepath.Join(dir, "table.biom"), []string{"A"}, []string{"O1"})
	prepPath := testsupport.WritePrep(t, filepath.Join(dir, "prep.json"), map[string]map[string]string{
		"7.A": {"run_prefix": "A"},
	})

	out, _, err := runCLI(t, []string{"reconcile", "--prep", prepPath, "--biom", biomPath}, "")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	requireContains(t, out, "Verdict: remapped")
	requireContains(t, out, "7.A")
}

func TestInspectCommand(t *testing.T) {
	path := testsupport.WriteBIOM(t, filepath.Join(t.TempDir(), "table.biom"), []string{"S1", "S2"}, []string{"O1", "O2"})

	out, _, err := runCLI(t, []string{"inspect", path, "--json"}, "")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	var summary tableSummary
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	// cells are row+col+1: S1 = 1+2, S2 = 2+3
	if summary.Samples != 2 || summary.Observations != 2 || summary.NonZero != 4 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.SampleTotals["S1"] != 3 || summary.SampleTotals["S2"] != 5 {
		t.Fatalf("sample totals = %v", summary.SampleTotals)
	}
	if summary.Density != 1 {
		t.Fatalf("density = %v", summary.Density)
	}

	out, _, err = runCLI(t, []string{"inspect", path}, "")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	requireContains(t, out, "Shape: 2 observations x 2 samples")
}
