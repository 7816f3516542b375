package rows

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailored-agentic-units/agentics/states"
)

// Decode reads data in the given format.
func Decode(format Format, data []byte) (Table, error) {
	switch format {
	case FormatJSON:
		return DecodeJSON(data)
	case FormatJSONL:
		return DecodeJSONL(bytes.NewReader(data))
	case FormatCSV:
		return DecodeCSV(bytes.NewReader(data))
	}
	return Table{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}

// ReadFile reads rows from path, choosing the format by extension. A
// positive maxRows keeps only the first maxRows rows.
func ReadFile(path string, maxRows int) (Table, error) {
	format, err := FormatOf(path)
	if err != nil {
		return Table{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read rows: %w", err)
	}
	t, err := Decode(format, data)
	if err != nil {
		return Table{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return t.Limit(maxRows), nil
}

// WriteFile writes c to path as JSON. The file is replaced atomically.
func WriteFile(path string, c states.Collection) error {
	data, err := Encode(c)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write rows: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write rows: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}
