package rows

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// DecodeCSV reads a CSV document whose header row names the columns.
// Cells are inferred with InferCell.
func DecodeCSV(r io.Reader) (Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Table{}, malformed(FormatCSV, -1, "missing header row")
		}
		return Table{}, &DecodeError{Format: FormatCSV, Row: 0, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}

	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if columns[i] == "" {
			return Table{}, malformed(FormatCSV, 0, "empty column name at position %d", i)
		}
	}

	t := Table{Columns: columns}
	for line := 1; ; line++ {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return Table{}, &DecodeError{Format: FormatCSV, Row: line, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = InferCell(record[i])
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// InferCell converts a CSV cell to a typed value: empty is null, then
// integer, float and boolean are tried before falling back to the string.
func InferCell(cell string) any {
	s := strings.TrimSpace(cell)
	if s == "" {
		return nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if isDecimal(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	return cell
}

// isDecimal rejects the hex, infinity and NaN spellings ParseFloat accepts.
func isDecimal(s string) bool {
	for _, r := range s {
		if !strings.ContainsRune("0123456789+-.eE", r) {
			return false
		}
	}
	return true
}
