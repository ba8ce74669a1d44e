package biom

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Axis selects the sample (column) or observation (row) dimension.
type Axis string

const (
	AxisSample      Axis = "sample"
	AxisObservation Axis = "observation"
)

// Entry is an identifier with its optional per-entry metadata.
type Entry struct {
	ID       string         `json:"id"`
	Metadata map[string]any `json:"metadata"`
}

// Cell is a single non-zero count.
type Cell struct {
	Row   int
	Col   int
	Value float64
}

// Table is an in-memory count table.
type Table struct {
	ID           string
	Type         string
	GeneratedBy  string
	Date         string
	ElementType  string
	Observations []Entry
	Samples      []Entry
	Cells        []Cell
}

// ErrInvalidTable reports a structurally inconsistent table.
var ErrInvalidTable = errors.New("invalid biom table")

// UpdateError is returned by UpdateIDs when the mapping cannot be applied.
// Missing lists current identifiers absent from the mapping; Duplicates lists
// target identifiers claimed by more than one current identifier.
type UpdateError struct {
	Axis       Axis
	Missing    []string
	Duplicates []string
}

func (e *UpdateError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("mapping does not cover %s ids: %s", e.Axis, strings.Join(e.Missing, ", ")))
	}
	if len(e.Duplicates) > 0 {
		parts = append(parts, fmt.Sprintf("mapping produces duplicate %s ids: %s", e.Axis, strings.Join(e.Duplicates, ", ")))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("update %s ids failed", e.Axis)
	}
	return strings.Join(parts, "; ")
}

// Shape returns the observation and sample counts.
func (t *Table) Shape() (observations, samples int) {
	return len(t.Observations), len(t.Samples)
}

// IDs returns a copy of the identifiers along axis in table order.
func (t *Table) IDs(axis Axis) []string {
	entries := t.entries(axis)
	ids := make([]string, len(entries))
	for i, entry := range entries {
		ids[i] = entry.ID
	}
	return ids
}

// UpdateIDs rewrites the identifiers along axis using mapping. Every current
// identifier must be a key of mapping and the rewritten identifiers must stay
// unique; otherwise an *UpdateError is returned and the table is unchanged.
func (t *Table) UpdateIDs(mapping map[string]string, axis Axis) error {
	entries := t.entries(axis)
	if entries == nil && axis != AxisSample && axis != AxisObservation {
		return fmt.Errorf("%w: unknown axis %q", ErrInvalidTable, axis)
	}

	updated := make([]string, len(entries))
	seen := make(map[string]int, len(entries))
	var missing []string
	for i, entry := range entries {
		target, ok := mapping[entry.ID]
		if !ok {
			missing = append(missing, entry.ID)
			continue
		}
		updated[i] = target
		seen[target]++
	}
	var duplicates []string
	for id, count := range seen {
		if count > 1 {
			duplicates = append(duplicates, id)
		}
	}
	if len(missing) > 0 || len(duplicates) > 0 {
		sort.Strings(missing)
		sort.Strings(duplicates)
		return &UpdateError{Axis: axis, Missing: missing, Duplicates: duplicates}
	}

	for i := range entries {
		entries[i].ID = updated[i]
	}
	return nil
}

// SampleTotals sums the counts of each sample, in sample order.
func (t *Table) SampleTotals() []float64 {
	totals := make([]float64, len(t.Samples))
	for _, cell := range t.Cells {
		if cell.Col >= 0 && cell.Col < len(totals) {
			totals[cell.Col] += cell.Value
		}
	}
	return totals
}

// NonZero returns the number of stored non-zero cells.
func (t *Table) NonZero() int {
	return len(t.Cells)
}

// Validate checks identifier uniqueness and cell bounds.
func (t *Table) Validate() error {
	for _, axis := range []Axis{AxisObservation, AxisSample} {
		seen := make(map[string]struct{})
		for _, entry := range t.entries(axis) {
			if strings.TrimSpace(entry.ID) == "" {
				return fmt.Errorf("%w: empty %s id", ErrInvalidTable, axis)
			}
			if _, ok := seen[entry.ID]; ok {
				return fmt.Errorf("%w: duplicate %s id %q", ErrInvalidTable, axis, entry.ID)
			}
			seen[entry.ID] = struct{}{}
		}
	}
	rows, cols := t.Shape()
	for _, cell := range t.Cells {
		if cell.Row < 0 || cell.Row >= rows || cell.Col < 0 || cell.Col >= cols {
			return fmt.Errorf("%w: cell (%d, %d) outside shape [%d, %d]", ErrInvalidTable, cell.Row, cell.Col, rows, cols)
		}
	}
	return nil
}

func (t *Table) entries(axis Axis) []Entry {
	switch axis {
	case AxisSample:
		return t.Samples
	case AxisObservation:
		return t.Observations
	default:
		return nil
	}
}
