// Package rows reads and writes the tabular formats state collections
// travel in: JSON (array, {"json": [...]}, {"states": [...]} or a single
// object), JSON Lines and CSV.
//
// Decoded rows keep their column order, which schema.Infer uses as field
// order. Numbers are canonicalized to int64 or float64; CSV cells are
// inferred as integer, float, boolean or string, and empty cells are null.
package rows

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tailored-agentic-units/agentics/core/stage"
)

var (
	ErrUnsupportedFormat = stage.NewError(stage.Ingestion, "unsupported row format")
	ErrMalformed         = stage.NewError(stage.Ingestion, "malformed rows")
)

// Format names a row encoding.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatCSV   Format = "csv"
)

// FormatOf picks a format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".jsonl", ".ndjson":
		return FormatJSONL, nil
	case ".csv":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

// Table is decoded input: rows plus the column order they were read in.
type Table struct {
	Columns []string
	Rows    []map[string]any
}

// Len returns the number of rows.
func (t Table) Len() int {
	return len(t.Rows)
}

// Limit returns t truncated to at most n rows. n <= 0 keeps every row.
func (t Table) Limit(n int) Table {
	if n <= 0 || n >= len(t.Rows) {
		return t
	}
	return Table{Columns: t.Columns, Rows: t.Rows[:n]}
}

// addColumns appends keys not seen before, in order.
func (t *Table) addColumns(seen map[string]bool, keys []string) {
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			t.Columns = append(t.Columns, k)
		}
	}
}

// DecodeError reports input that could not be read as rows. Row is the
// zero-based row (or line, for JSONL and CSV) where decoding stopped, or -1.
type DecodeError struct {
	Format Format
	Row    int
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("decode %s: %v", e.Format, e.Err)
	}
	return fmt.Sprintf("decode %s: row %d: %v", e.Format, e.Row, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Stage() stage.Stage { return stage.Ingestion }

func malformed(format Format, row int, msg string, args ...any) *DecodeError {
	return &DecodeError{Format: format, Row: row, Err: fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(msg, args...))}
}
