package rows

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/tailored-agentic-units/agentics/schema"
)

// DecodeJSON reads a JSON document holding rows. Accepted shapes:
//
//	[{...}, {...}]
//	{"json": [{...}]}
//	{"states": [{...}], "explanations": [...]}
//	{...}                 a single row
func DecodeJSON(data []byte) (Table, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Table{}, malformed(FormatJSON, -1, "empty document")
	}

	switch data[0] {
	case '[':
		return decodeArray(data)
	case '{':
		keys, err := objectKeys(data)
		if err != nil {
			return Table{}, &DecodeError{Format: FormatJSON, Row: -1, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
		}
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return Table{}, &DecodeError{Format: FormatJSON, Row: -1, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
		}
		for _, key := range []string{"json", "states"} {
			if inner, ok := wrapper[key]; ok && isArray(inner) && wrapperOnly(keys, key) {
				return decodeArray(inner)
			}
		}
		return decodeRows([]json.RawMessage{data})
	default:
		return Table{}, malformed(FormatJSON, -1, "expected an array or object")
	}
}

// wrapperOnly reports whether keys holds key plus at most an explanations
// sequence, so that a row with a "json" column is still read as a row.
func wrapperOnly(keys []string, key string) bool {
	for _, k := range keys {
		if k != key && k != "explanations" {
			return false
		}
	}
	return true
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

func decodeArray(data []byte) (Table, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return Table{}, &DecodeError{Format: FormatJSON, Row: -1, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	return decodeRows(items)
}

func decodeRows(items []json.RawMessage) (Table, error) {
	t := Table{Rows: make([]map[string]any, 0, len(items))}
	seen := make(map[string]bool)

	for i, item := range items {
		row, keys, err := decodeObject(item)
		if err != nil {
			return Table{}, &DecodeError{Format: FormatJSON, Row: i, Err: err}
		}
		t.addColumns(seen, keys)
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// DecodeJSONL reads one JSON object per line. Blank lines are skipped.
func DecodeJSONL(r io.Reader) (Table, error) {
	t := Table{}
	seen := make(map[string]bool)

	dec := json.NewDecoder(r)
	for line := 0; ; line++ {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return Table{}, &DecodeError{Format: FormatJSONL, Row: line, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
		}
		row, keys, err := decodeObject(raw)
		if err != nil {
			return Table{}, &DecodeError{Format: FormatJSONL, Row: line, Err: err}
		}
		t.addColumns(seen, keys)
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// decodeObject decodes one row and returns its keys in document order.
func decodeObject(raw json.RawMessage) (map[string]any, []string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, nil, fmt.Errorf("%w: row is not an object", ErrMalformed)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var row map[string]any
	if err := dec.Decode(&row); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	keys, err := objectKeys(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return schema.Canonical(row), keys, nil
}

// objectKeys walks the tokens of a JSON object and returns its top-level
// keys in order, first occurrence only.
func objectKeys(raw []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	var keys []string
	seen := make(map[string]bool)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}
