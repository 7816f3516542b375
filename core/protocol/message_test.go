package protocol_test

import (
	"encoding/json"
	"testing"

	"github.com/tailored-agentic-units/agentics/core/protocol"
)

func TestChatRequest_Marshal(t *testing.T) {
	temp := 0.2
	req := protocol.ChatRequest{
		Model:       "gpt-4o-mini",
		Messages:    []protocol.Message{protocol.NewMessage(protocol.RoleSystem, "be brief")},
		Temperature: &temp,
		ResponseFormat: protocol.StructuredFormat("Tweet", map[string]any{
			"type": "object",
		}, true),
	}

	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatal(err)
	}

	if got["temperature"] != 0.2 {
		t.Errorf("temperature = %v", got["temperature"])
	}
	if _, ok := got["max_tokens"]; ok {
		t.Error("expected max_tokens to be omitted")
	}

	rf := got["response_format"].(map[string]any)
	if rf["type"] != "json_schema" {
		t.Errorf("response_format.type = %v", rf["type"])
	}
	js := rf["json_schema"].(map[string]any)
	if js["name"] != "Tweet" || js["strict"] != true {
		t.Errorf("unexpected json_schema %v", js)
	}
}

func TestStructuredFormat_Lenient(t *testing.T) {
	body, err := json.Marshal(protocol.StructuredFormat("Profile", map[string]any{"type": "object"}, false))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatal(err)
	}
	if js := got["json_schema"].(map[string]any); js["strict"] != false {
		t.Errorf("expected strict=false, got %v", js["strict"])
	}
}
