package schema

// JSONSchema renders the descriptor as a JSON Schema object. Every field is
// nullable so a backend may leave a field empty instead of inventing data;
// all fields are listed as required, as structured-output APIs demand.
func (d *Descriptor) JSONSchema() map[string]any {
	properties := make(map[string]any, len(d.fields))
	required := make([]any, 0, len(d.fields))

	for _, f := range d.fields {
		properties[f.Name] = f.jsonSchema()
		required = append(required, f.Name)
	}

	s := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
	if d.name != "" {
		s["title"] = d.name
	}
	if d.description != "" {
		s["description"] = d.description
	}
	return s
}

// Closed reports whether JSONSchema pins down every value completely. Object
// fields render as open objects without properties, which strict
// structured-output modes reject.
func (d *Descriptor) Closed() bool {
	for _, f := range d.fields {
		if f.Type == Object {
			return false
		}
	}
	return true
}

func (f Field) jsonSchema() map[string]any {
	var s map[string]any
	if f.IsList() {
		s = map[string]any{
			"type":  []any{"array", "null"},
			"items": map[string]any{"type": jsonType(f.Type)},
		}
	} else {
		s = map[string]any{"type": []any{jsonType(f.Type), "null"}}
	}
	if f.Description != "" {
		s["description"] = f.Description
	}
	return s
}

func jsonType(t ValueType) string {
	switch t {
	case Integer:
		return "integer"
	case Float:
		return "number"
	case Boolean:
		return "boolean"
	case Object:
		return "object"
	default:
		return "string"
	}
}
