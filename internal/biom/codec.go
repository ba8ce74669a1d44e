package biom

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"biomtype/internal/fileutil"
)

const (
	formatName = "Biological Observation Matrix 1.0.0"
	formatURL  = "http://biom-format.org"
)

type document struct {
	ID                string            `json:"id"`
	Format            string            `json:"format"`
	FormatURL         string            `json:"format_url"`
	Type              string            `json:"type"`
	GeneratedBy       string            `json:"generated_by"`
	Date              string            `json:"date"`
	Rows              []Entry           `json:"rows"`
	Columns           []Entry           `json:"columns"`
	MatrixType        string            `json:"matrix_type"`
	MatrixElementType string            `json:"matrix_element_type"`
	Shape             []int             `json:"shape"`
	Data              []json.RawMessage `json:"data"`
}

// Decode parses a BIOM 1.0 JSON document.
func Decode(r io.Reader) (*Table, error) {
	var doc document
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode biom json: %w", err)
	}
	if len(doc.Shape) != 2 {
		return nil, fmt.Errorf("%w: shape must have two dimensions", ErrInvalidTable)
	}
	if doc.Shape[0] != len(doc.Rows) || doc.Shape[1] != len(doc.Columns) {
		return nil, fmt.Errorf("%w: shape %v does not match %d rows and %d columns",
			ErrInvalidTable, doc.Shape, len(doc.Rows), len(doc.Columns))
	}

	table := &Table{
		ID:           doc.ID,
		Type:         doc.Type,
		GeneratedBy:  doc.GeneratedBy,
		Date:         doc.Date,
		ElementType:  doc.MatrixElementType,
		Observations: doc.Rows,
		Samples:      doc.Columns,
	}

	switch doc.MatrixType {
	case "sparse", "":
		for i, raw := range doc.Data {
			var triple []float64
			if err := json.Unmarshal(raw, &triple); err != nil || len(triple) != 3 {
				return nil, fmt.Errorf("%w: sparse entry %d must be [row, col, value]", ErrInvalidTable, i)
			}
			if triple[2] == 0 {
				continue
			}
			table.Cells = append(table.Cells, Cell{Row: int(triple[0]), Col: int(triple[1]), Value: triple[2]})
		}
	case "dense":
		if len(doc.Data) != len(doc.Rows) {
			return nil, fmt.Errorf("%w: dense matrix has %d rows, want %d", ErrInvalidTable, len(doc.Data), len(doc.Rows))
		}
		for row, raw := range doc.Data {
			var values []float64
			if err := json.Unmarshal(raw, &values); err != nil {
				return nil, fmt.Errorf("%w: dense row %d: %v", ErrInvalidTable, row, err)
			}
			if len(values) != len(doc.Columns) {
				return nil, fmt.Errorf("%w: dense row %d has %d values, want %d", ErrInvalidTable, row, len(values), len(doc.Columns))
			}
			for col, value := range values {
				if value != 0 {
					table.Cells = append(table.Cells, Cell{Row: row, Col: col, Value: value})
				}
			}
		}
	default:
		return nil, fmt.Errorf("%w: unsupported matrix type %q", ErrInvalidTable, doc.MatrixType)
	}

	if err := table.Validate(); err != nil {
		return nil, err
	}
	return table, nil
}

// Load reads a BIOM 1.0 JSON file.
func Load(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open biom table: %w", err)
	}
	defer file.Close()
	table, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", filepath.Base(path), err)
	}
	return table, nil
}

// Encode writes the table as sparse BIOM 1.0 JSON, stamping generatedBy and
// the current date.
func (t *Table) Encode(w io.Writer, generatedBy string) error {
	if err := t.Validate(); err != nil {
		return err
	}
	data := make([]json.RawMessage, 0, len(t.Cells))
	for _, cell := range t.Cells {
		raw, err := json.Marshal([]any{cell.Row, cell.Col, t.formatValue(cell.Value)})
		if err != nil {
			return fmt.Errorf("encode cell: %w", err)
		}
		data = append(data, raw)
	}
	elementType := t.ElementType
	if elementType == "" {
		elementType = "float"
	}
	tableType := t.Type
	if tableType == "" {
		tableType = "OTU table"
	}
	doc := document{
		ID:                t.ID,
		Format:            formatName,
		FormatURL:         formatURL,
		Type:              tableType,
		GeneratedBy:       generatedBy,
		Date:              time.Now().UTC().Format("2006-01-02T15:04:05"),
		Rows:              nonNilEntries(t.Observations),
		Columns:           nonNilEntries(t.Samples),
		MatrixType:        "sparse",
		MatrixElementType: elementType,
		Shape:             []int{len(t.Observations), len(t.Samples)},
		Data:              data,
	}
	enc := json.NewEncoder(w)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode biom json: %w", err)
	}
	return nil
}

// Save writes the table to path atomically.
func (t *Table) Save(path, generatedBy string) error {
	if _, err := fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		return t.Encode(w, generatedBy)
	}); err != nil {
		return fmt.Errorf("save table %s: %w", path, err)
	}
	return nil
}

func (t *Table) formatValue(v float64) any {
	if t.ElementType == "int" && v == math.Trunc(v) {
		return int64(v)
	}
	return v
}

func nonNilEntries(entries []Entry) []Entry {
	if entries == nil {
		return []Entry{}
	}
	return entries
}
