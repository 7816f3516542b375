package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tailored-agentic-units/agentics/core/protocol"
	"github.com/tailored-agentic-units/agentics/schema"
)

const defaultInstructions = "Transform the input into the target type, filling every field you can infer from the input."

// OutputSchema returns the JSON Schema a backend's answer must satisfy.
// Without explanations it is the target's own schema; with them the value
// is wrapped as {"state": ..., "explanation": "..."}.
func OutputSchema(target *schema.Descriptor, explain bool) map[string]any {
	state := target.JSONSchema()
	if !explain {
		return state
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"state": state,
			"explanation": map[string]any{
				"type":        "string",
				"description": "Why the state was filled the way it was.",
			},
		},
		"required":             []any{"state", "explanation"},
		"additionalProperties": false,
	}
}

// Messages renders req as a system and a user message.
func Messages(req Request) ([]protocol.Message, error) {
	var system strings.Builder
	if req.Instructions != "" {
		system.WriteString(req.Instructions)
	} else {
		system.WriteString(defaultInstructions)
	}
	fmt.Fprintf(&system, "\n\nRespond with a single JSON object of type %s:\n%s", typeName(req.Target), req.Target)
	if req.Explain {
		system.WriteString("\nWrap it as {\"state\": <object>, \"explanation\": <string>} and explain briefly how you derived it.")
	}
	system.WriteString("\nUse null for any field you cannot determine.")

	var user string
	switch in := req.Input.(type) {
	case nil:
		user = fmt.Sprintf("Generate %s record number %d. Make it distinct from other records.", typeName(req.Target), req.Index+1)
	default:
		body, err := json.MarshalIndent(in, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode input: %w", err)
		}
		user = "Input:\n" + string(body)
	}

	return []protocol.Message{
		protocol.NewMessage(protocol.RoleSystem, system.String()),
		protocol.NewMessage(protocol.RoleUser, user),
	}, nil
}

// DecodeOutput parses a backend's text answer into a Response. Code fences
// around the JSON are tolerated. Numbers are kept as json.Number so the
// target's Conform decides integer versus float.
func DecodeOutput(content string, explain bool) (Response, error) {
	content = stripFence(content)
	if content == "" {
		return Response{}, fmt.Errorf("%w: empty output", ErrMalformedOutput)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(content)))
	dec.UseNumber()

	var value map[string]any
	if err := dec.Decode(&value); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	return unwrap(value, explain)
}

// unwrap splits an explained envelope into value and explanation.
func unwrap(value map[string]any, explain bool) (Response, error) {
	if value == nil {
		return Response{}, fmt.Errorf("%w: null output", ErrMalformedOutput)
	}
	if !explain {
		return Response{Value: value}, nil
	}

	state, ok := value["state"].(map[string]any)
	if !ok {
		return Response{}, fmt.Errorf("%w: missing state object", ErrMalformedOutput)
	}
	explanation, _ := value["explanation"].(string)
	return Response{Value: state, Explanation: explanation}, nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func typeName(d *schema.Descriptor) string {
	if d.Name() == "" {
		return "State"
	}
	return d.Name()
}
