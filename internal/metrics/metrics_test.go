package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func counterValue(t *testing.T, r *Recorder, name, label, value string) float64 {
	t.Helper()
	families, err := r.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if pair.GetName() == label && pair.GetValue() == value {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestRecorderCounts(t *testing.T) {
	r := New()
	r.ObserveValidation("success", 120*time.Millisecond)
	r.ObserveValidation("failure", time.Second)
	r.ObserveValidation("success", 10*time.Millisecond)
	r.ObserveVerdict("remapped")
	r.ObserveCrossValidation(true)
	r.ObserveCrossValidation(false)

	tests := []struct {
		name, label, value string
		want               float64
	}{
		{"biomtype_validations_total", "result", "success", 2},
		{"biomtype_validations_total", "result", "failure", 1},
		{"biomtype_reconcile_verdicts_total", "verdict", "remapped", 1},
		{"biomtype_cross_validations_total", "result", "match", 1},
		{"biomtype_cross_validations_total", "result", "mismatch", 1},
	}
	for _, tt := range tests {
		if got := counterValue(t, r, tt.name, tt.label, tt.value); got != tt.want {
			t.Fatalf("%s{%s=%q} = %v, want %v", tt.name, tt.label, tt.value, got, tt.want)
		}
	}
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.ObserveValidation("success", time.Second)
	r.ObserveVerdict("unchanged")
	r.ObserveCrossValidation(true)
	if err := r.WriteTextfile(filepath.Join(t.TempDir(), "m.prom")); err != nil {
		t.Fatalf("WriteTextfile on nil recorder: %v", err)
	}
}

func TestWriteTextfile(t *testing.T) {
	r := New()
	r.ObserveValidation("error", 3*time.Second)
	path := filepath.Join(t.TempDir(), "collector", "biomtype.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	text := string(data)
	for _, want := range []string{
		`biomtype_validations_total{result="error"} 1`,
		"biomtype_validation_duration_seconds_count 1",
		"biomtype_last_validation_timestamp_seconds",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("textfile missing %q:\n%s", want, text)
		}
	}
}
