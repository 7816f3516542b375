package provider

import (
	"bytes"
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tailored-agentic-units/agentics/schema"
)

// GenerateProcedure is the full procedure name of the remote inference
// call, shared by the Connect and gRPC backends. Both carry
// google.protobuf.Struct messages in each direction, so no generated code is
// involved on either side.
const GenerateProcedure = "/agentics.v1.InferenceService/Generate"

type wireRequest struct {
	Model        string            `json:"model"`
	Project      string            `json:"project,omitempty"`
	Instructions string            `json:"instructions,omitempty"`
	Input        any               `json:"input,omitempty"`
	Target       schema.Definition `json:"target"`
	OutputSchema map[string]any    `json:"output_schema"`
	Explain      bool              `json:"explain"`
	Index        int               `json:"index"`
}

type wireResponse struct {
	State       map[string]any `json:"state"`
	Explanation string         `json:"explanation,omitempty"`
}

// Call is a Generate request as seen by a serving backend.
type Call struct {
	Model   string
	Project string
	Request
}

// EncodeRequest converts req into the Struct sent to a remote backend.
func EncodeRequest(model, project string, req Request) (*structpb.Struct, error) {
	return toStruct(wireRequest{
		Model:        model,
		Project:      project,
		Instructions: req.Instructions,
		Input:        req.Input,
		Target:       req.Target.Definition(),
		OutputSchema: OutputSchema(req.Target, req.Explain),
		Explain:      req.Explain,
		Index:        req.Index,
	})
}

// DecodeRequest is the inverse of EncodeRequest, used by servers that
// implement the Generate procedure.
func DecodeRequest(s *structpb.Struct) (Call, error) {
	var w wireRequest
	if err := fromStruct(s, &w); err != nil {
		return Call{}, err
	}
	target, err := w.Target.Descriptor()
	if err != nil {
		return Call{}, fmt.Errorf("invalid target: %w", err)
	}
	return Call{
		Model:   w.Model,
		Project: w.Project,
		Request: Request{
			Instructions: w.Instructions,
			Input:        schema.Canonical(w.Input),
			Target:       target,
			Explain:      w.Explain,
			Index:        w.Index,
		},
	}, nil
}

// EncodeResponse converts resp into the Struct returned by a serving
// backend.
func EncodeResponse(resp Response) (*structpb.Struct, error) {
	return toStruct(wireResponse{State: resp.Value, Explanation: resp.Explanation})
}

// DecodeResponse reads a remote backend's Struct answer.
func DecodeResponse(s *structpb.Struct) (Response, error) {
	var w wireResponse
	if err := fromStruct(s, &w); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if w.State == nil {
		return Response{}, fmt.Errorf("%w: missing state object", ErrMalformedOutput)
	}
	return Response{Value: w.State, Explanation: w.Explanation}, nil
}

func toStruct(v any) (*structpb.Struct, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(body, s); err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return s, nil
}

func fromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		return fmt.Errorf("empty message")
	}
	body, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}
	return nil
}
