package reconcile

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestReconcileSubsetIsUnchanged(t *testing.T) {
	accepted := Metadata{
		"1.SKB8.640193": {"col": "val1"},
		"1.SKD8.640184": {"col": "val2"},
		"1.SKB7.640196": {"col": "val3"},
	}
	tests := []struct {
		name      string
		submitted []string
	}{
		{"equal", []string{"1.SKB8.640193", "1.SKD8.640184", "1.SKB7.640196"}},
		{"strict subset", []string{"1.SKD8.640184"}},
		{"empty table", nil},
		{"duplicates", []string{"1.SKD8.640184", "1.SKD8.640184"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Reconcile(accepted, tt.submitted)
			if err != nil {
				t.Fatalf("Reconcile returned error: %v", err)
			}
			if !got.Unchanged() {
				t.Fatalf("expected unchanged verdict, got %+v", got)
			}
			if got.Mapping != nil || got.Reason != "" {
				t.Fatalf("unchanged verdict must not carry mapping or reason: %+v", got)
			}
		})
	}
}

func TestReconcileRunPrefixInversion(t *testing.T) {
	accepted := Metadata{
		"1.SKB8.640193": {"run_prefix": "S1", "col": "a"},
		"1.SKD8.640184": {"run_prefix": "S2", "col": "b"},
	}
	got, err := Reconcile(accepted, []string{"S2", "S1"})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if !got.Remapped() {
		t.Fatalf("expected remapped verdict, got %+v", got)
	}
	want := map[string]string{"S1": "1.SKB8.640193", "S2": "1.SKD8.640184"}
	if !reflect.DeepEqual(got.Mapping, want) {
		t.Fatalf("mapping = %v, want %v", got.Mapping, want)
	}
}

func TestReconcileRunPrefixTakesPrecedenceOverPrefixGuess(t *testing.T) {
	// The prefix heuristic would map S1 -> 1.S1, but run_prefix says otherwise.
	accepted := Metadata{
		"1.S1": {"run_prefix": "S2"},
		"1.S2": {"run_prefix": "S1"},
	}
	got, err := Reconcile(accepted, []string{"S1", "S2"})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	want := map[string]string{"S1": "1.S2", "S2": "1.S1"}
	if !got.Remapped() || !reflect.DeepEqual(got.Mapping, want) {
		t.Fatalf("got %+v, want mapping %v", got, want)
	}
}

func TestReconcileRunPrefixMappingRestrictedToSubmitted(t *testing.T) {
	accepted := Metadata{
		"1.S1": {"run_prefix": "S1"},
		"1.S2": {"run_prefix": "S2"},
		"1.S3": {"run_prefix": "S3"},
	}
	got, err := Reconcile(accepted, []string{"S1"})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if len(got.Mapping) != 1 || got.Mapping["S1"] != "1.S1" {
		t.Fatalf("unexpected mapping %v", got.Mapping)
	}
}

func TestReconcilePrefixHeuristic(t *testing.T) {
	accepted := Metadata{
		"1.SKB8.640193": {"col": "val1"},
		"1.SKD8.640184": {"col": "val2"},
		"1.SKB7.640196": {"col": "val3"},
	}
	got, err := Reconcile(accepted, []string{"SKB8.640193", "SKD8.640184"})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	want := map[string]string{
		"SKB8.640193": "1.SKB8.640193",
		"SKD8.640184": "1.SKD8.640184",
	}
	if !got.Remapped() || !reflect.DeepEqual(got.Mapping, want) {
		t.Fatalf("got %+v, want mapping %v", got, want)
	}
}

func TestReconcilePrefixUsesFirstDotOnly(t *testing.T) {
	accepted := Metadata{
		"10.a.b.c": {},
		"10.d.e":   {},
	}
	got, err := Reconcile(accepted, []string{"a.b.c", "d.e"})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if got.Mapping["a.b.c"] != "10.a.b.c" || got.Mapping["d.e"] != "10.d.e" {
		t.Fatalf("unexpected mapping %v", got.Mapping)
	}
}

func TestReconcileMissingSamples(t *testing.T) {
	accepted := Metadata{
		"1.S1": {"run_prefix": "S1"},
		"1.S2": {"run_prefix": "S2"},
	}
	got, err := Reconcile(accepted, []string{"S1", "S2", "S3"})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if !got.Rejected() || got.Problem != ProblemMetadataIncomplete {
		t.Fatalf("expected metadata_incomplete rejection, got %+v", got)
	}
	if !reflect.DeepEqual(got.Missing, []string{"S3"}) {
		t.Fatalf("missing = %v, want [S3]", got.Missing)
	}
	want := "Your prep information is missing samples that are present in your BIOM table: S3"
	if got.Reason != want {
		t.Fatalf("reason = %q, want %q", got.Reason, want)
	}
}

func TestReconcileEmptyRunPrefixMapsNothing(t *testing.T) {
	accepted := Metadata{
		"1.S1": {"run_prefix": "S1"},
		"1.S2": {"run_prefix": ""},
	}
	got, err := Reconcile(accepted, []string{"S1", ""})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if !got.Rejected() || got.Problem != ProblemMetadataIncomplete {
		t.Fatalf("expected metadata_incomplete rejection, got %+v", got)
	}
	if !reflect.DeepEqual(got.Missing, []string{""}) {
		t.Fatalf("missing = %q, want the empty id", got.Missing)
	}
}

func TestReconcileMissingSamplesSorted(t *testing.T) {
	accepted := Metadata{"1.S1": {"run_prefix": "S1"}}
	got, err := Reconcile(accepted, []string{"S9", "S1", "S4", "S7"})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if !reflect.DeepEqual(got.Missing, []string{"S4", "S7", "S9"}) {
		t.Fatalf("missing = %v", got.Missing)
	}
	if !strings.HasSuffix(got.Reason, "S4, S7, S9") {
		t.Fatalf("reason not sorted: %q", got.Reason)
	}
}

func TestReconcileUnrecoverable(t *testing.T) {
	accepted := Metadata{
		"1.S1": {},
		"1.S2": {},
	}
	got, err := Reconcile(accepted, []string{"X1", "X2"})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if !got.Rejected() || got.Problem != ProblemIdentifierMismatch {
		t.Fatalf("expected identifier_mismatch rejection, got %+v", got)
	}
	if !strings.Contains(got.Reason, "do not match") || !strings.Contains(got.Reason, "run_prefix") {
		t.Fatalf("unexpected reason %q", got.Reason)
	}
	if got.Mapping != nil {
		t.Fatalf("rejected verdict must not carry a mapping")
	}
}

func TestReconcilePartialPrefixMatchIsUnrecoverable(t *testing.T) {
	accepted := Metadata{
		"1.S1": {},
		"1.S2": {},
	}
	got, err := Reconcile(accepted, []string{"S1", "S3"})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if got.Problem != ProblemIdentifierMismatch || got.Reason != MismatchMessage {
		t.Fatalf("got %+v", got)
	}
}

func TestReconcileSharedRunPrefix(t *testing.T) {
	accepted := Metadata{
		"1.S1": {"run_prefix": "lane1"},
		"1.S2": {"run_prefix": "lane1"},
		"1.S3": {"run_prefix": "lane2"},
	}
	got, err := Reconcile(accepted, []string{"lane1", "lane2"})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if got.Problem != ProblemIdentifierMismatch || !strings.Contains(got.Reason, "lane1") {
		t.Fatalf("got %+v", got)
	}

	// A shared value that the table never uses does not block the mapping.
	got, err = Reconcile(accepted, []string{"lane2"})
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if !got.Remapped() || got.Mapping["lane2"] != "1.S3" {
		t.Fatalf("got %+v", got)
	}
}

func TestReconcileInvalidInput(t *testing.T) {
	if _, err := Reconcile(Metadata{}, []string{"S1"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty accepted set: err = %v, want ErrInvalidInput", err)
	}
	if _, err := Reconcile(nil, nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("nil accepted set: err = %v, want ErrInvalidInput", err)
	}

	mixed := Metadata{
		"1.S1": {"run_prefix": "S1"},
		"1.S2": {"col": "x"},
	}
	if _, err := Reconcile(mixed, []string{"S1", "S2"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("mixed schema: err = %v, want ErrInvalidInput", err)
	}
	// The fast path never inspects the schema.
	if v, err := Reconcile(mixed, []string{"1.S2"}); err != nil || !v.Unchanged() {
		t.Fatalf("mixed schema fast path: verdict %+v err %v", v, err)
	}
}

func TestReconcileIdempotent(t *testing.T) {
	cases := []struct {
		accepted  Metadata
		submitted []string
	}{
		{Metadata{"1.S1": {"run_prefix": "S1"}, "1.S2": {"run_prefix": "S2"}}, []string{"S1", "S2", "S3"}},
		{Metadata{"1.S1": {}, "1.S2": {}}, []string{"S1", "S2"}},
		{Metadata{"1.S1": {}, "1.S2": {}}, []string{"X"}},
		{Metadata{"1.S1": {}}, []string{"1.S1"}},
	}
	for _, tc := range cases {
		first, err1 := Reconcile(tc.accepted, tc.submitted)
		second, err2 := Reconcile(tc.accepted, tc.submitted)
		if err1 != nil || err2 != nil {
			t.Fatalf("unexpected errors: %v, %v", err1, err2)
		}
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("verdicts differ: %+v vs %+v", first, second)
		}
	}
}

func TestReconcileRemappedInvariant(t *testing.T) {
	accepted := Metadata{
		"7.A": {},
		"7.B": {},
		"7.C": {},
	}
	submitted := []string{"A", "C"}
	got, err := Reconcile(accepted, submitted)
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if len(got.Mapping) != len(submitted) {
		t.Fatalf("domain size %d, want %d", len(got.Mapping), len(submitted))
	}
	for _, id := range submitted {
		target, ok := got.Mapping[id]
		if !ok {
			t.Fatalf("submitted id %s missing from mapping", id)
		}
		if _, ok := accepted[target]; !ok {
			t.Fatalf("mapped id %s not accepted", target)
		}
	}
}

func TestKindString(t *testing.T) {
	if KindRemapped.String() != "remapped" || Kind(9).String() != "kind(9)" {
		t.Fatalf("unexpected kind labels")
	}
}
