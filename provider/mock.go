package provider

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/tailored-agentic-units/agentics/schema"
)

// MockFunc answers one request for a Mock.
type MockFunc func(ctx context.Context, req Request) (Response, error)

// Mock is an in-process Provider. With a nil func it synthesizes a
// deterministic value for the target type, copying same-named input fields
// where the types allow, which makes it usable for dry runs.
type Mock struct {
	fn    MockFunc
	calls atomic.Int64
}

// NewMock creates a Mock answering with fn, or with Synthesize when fn is
// nil.
func NewMock(fn MockFunc) *Mock {
	return &Mock{fn: fn}
}

func (m *Mock) Name() string { return string(KindMock) }

func (m *Mock) Generate(ctx context.Context, req Request) (Response, error) {
	m.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	if m.fn != nil {
		return m.fn(ctx, req)
	}
	return Synthesize(req), nil
}

// Calls returns how many times Generate was invoked.
func (m *Mock) Calls() int {
	return int(m.calls.Load())
}

// Synthesize builds a placeholder value for req.Target. Record n (1-based)
// gets integers equal to n, floats n+0.5, strings "<field> n", and booleans
// alternating from true.
func Synthesize(req Request) Response {
	input, _ := req.Input.(map[string]any)
	n := req.Index + 1

	value := make(map[string]any, req.Target.Len())
	for _, f := range req.Target.Fields() {
		if v, ok := input[f.Name]; ok && v != nil {
			if checked, err := f.Check(v); err == nil {
				value[f.Name] = checked
				continue
			}
		}

		var v any
		switch f.Type {
		case schema.String:
			v = fmt.Sprintf("%s %d", f.Name, n)
		case schema.Integer:
			v = int64(n)
		case schema.Float:
			v = float64(n) + 0.5
		case schema.Boolean:
			v = n%2 == 1
		case schema.Object:
			v = map[string]any{}
		}
		if f.IsList() {
			v = []any{v}
		}
		value[f.Name] = v
	}

	resp := Response{Value: value}
	if req.Explain {
		resp.Explanation = fmt.Sprintf("synthesized %s record %d", typeName(req.Target), n)
	}
	return resp
}
