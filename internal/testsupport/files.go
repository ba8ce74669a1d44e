package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"biomtype/internal/biom"
)

// WriteFile writes content to path, creating parent directories.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// NewTable builds a table with one count per (observation, sample) pair.
func NewTable(samples, observations []string) *biom.Table {
	table := &biom.Table{ID: "fixture", Type: "OTU table", ElementType: "int"}
	for _, id := range observations {
		table.Observations = append(table.Observations, biom.Entry{ID: id})
	}
	for _, id := range samples {
		table.Samples = append(table.Samples, biom.Entry{ID: id})
	}
	for row := range observations {
		for col := range samples {
			table.Cells = append(table.Cells, biom.Cell{Row: row, Col: col, Value: float64(row + col + 1)})
		}
	}
	return table
}

// WriteBIOM saves a fixture table at path and returns the path.
func WriteBIOM(t testing.TB, path string, samples, observations []string) string {
	t.Helper()

	if err := NewTable(samples, observations).Save(path, "fixture"); err != nil {
		t.Fatalf("save biom fixture %s: %v", path, err)
	}
	return path
}

// WriteFASTA writes one record per id with a short placeholder sequence.
func WriteFASTA(t testing.TB, path string, ids ...string) string {
	t.Helper()

	var b strings.Builder
	for _, id := range ids {
		b.WriteString(">")
		b.WriteString(id)
		b.WriteString(" fixture\nACGT\n")
	}
	WriteFile(t, path, b.String())
	return path
}

// WritePrep writes prep information in the Qiita {"data": {...}} layout.
func WritePrep(t testing.TB, path string, data map[string]map[string]string) string {
	t.Helper()

	payload, err := json.Marshal(map[string]any{"data": data})
	if err != nil {
		t.Fatalf("marshal prep: %v", err)
	}
	WriteFile(t, path, string(payload))
	return path
}
