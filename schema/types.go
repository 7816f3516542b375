package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValueType is the closed set of scalar tags a field may carry.
type ValueType int

const (
	_ ValueType = iota // zero value is invalid

	String
	Integer
	Float
	Boolean
	Object
)

var valueTypeNames = map[ValueType]string{
	String:  "string",
	Integer: "integer",
	Float:   "float",
	Boolean: "boolean",
	Object:  "object",
}

// aliases accepted on input; the first column of the original field tables
// used the short Python spellings.
var valueTypeAliases = map[string]ValueType{
	"string":  String,
	"str":     String,
	"integer": Integer,
	"int":     Integer,
	"float":   Float,
	"number":  Float,
	"boolean": Boolean,
	"bool":    Boolean,
	"object":  Object,
	"dict":    Object,
}

func (t ValueType) String() string {
	if name, ok := valueTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ValueType(%d)", int(t))
}

// Valid reports whether t is one of the five declared tags.
func (t ValueType) Valid() bool {
	_, ok := valueTypeNames[t]
	return ok
}

// IsNumber reports whether t holds a numeric value.
func (t ValueType) IsNumber() bool {
	return t == Integer || t == Float
}

// ParseValueType resolves a type name such as "int" or "dict".
func ParseValueType(name string) (ValueType, error) {
	if t, ok := valueTypeAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return t, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownType, name)
}

// ParseTypeName resolves a type name that may carry a list wrapper, e.g.
// "list[str]" or "List[int]". The returned multiplicity is List when the
// wrapper was present.
func ParseTypeName(name string) (ValueType, Multiplicity, error) {
	trimmed := strings.TrimSpace(name)
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "list[") && strings.HasSuffix(lower, "]") {
		t, err := ParseValueType(trimmed[len("list[") : len(trimmed)-1])
		if err != nil {
			return 0, Single, err
		}
		return t, List, nil
	}
	t, err := ParseValueType(trimmed)
	return t, Single, err
}

func (t ValueType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, int(t))
	}
	return []byte(t.String()), nil
}

func (t *ValueType) UnmarshalText(text []byte) error {
	parsed, err := ParseValueType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Multiplicity marks a field as holding one value or a list of values.
type Multiplicity int

const (
	Single Multiplicity = iota
	List
)

func (m Multiplicity) String() string {
	if m == List {
		return "list"
	}
	return "single"
}

// ParseMultiplicity accepts "single"/"list" and the boolean spellings used by
// the "As List" column of field tables.
func ParseMultiplicity(s string) (Multiplicity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "single", "false", "no":
		return Single, nil
	case "list", "multiple", "true", "yes":
		return List, nil
	}
	return Single, fmt.Errorf("%w: multiplicity %q", ErrUnknownType, s)
}

func (m Multiplicity) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Multiplicity) UnmarshalText(text []byte) error {
	parsed, err := ParseMultiplicity(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// UnmarshalJSON accepts both a string and a bare JSON boolean.
func (m *Multiplicity) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		if b {
			*m = List
		} else {
			*m = Single
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: multiplicity %s", ErrUnknownType, string(data))
	}
	return m.UnmarshalText([]byte(s))
}

func (m Multiplicity) MarshalYAML() (any, error) {
	return m.String(), nil
}

func (m *Multiplicity) UnmarshalYAML(node *yaml.Node) error {
	return m.UnmarshalText([]byte(node.Value))
}
