package server_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tailored-agentic-units/agentics/catalog"
	"github.com/tailored-agentic-units/agentics/provider"
	"github.com/tailored-agentic-units/agentics/server"
	"github.com/tailored-agentic-units/agentics/transduction"
)

type client struct {
	transduce *connect.Client[structpb.Struct, structpb.Struct]
	combine   *connect.Client[structpb.Struct, structpb.Struct]
}

func (c client) call(t *testing.T, rpc *connect.Client[structpb.Struct, structpb.Struct], body map[string]any) (map[string]any, error) {
	t.Helper()
	msg, err := structpb.NewStruct(body)
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	resp, err := rpc.CallUnary(context.Background(), connect.NewRequest(msg))
	if err != nil {
		return nil, err
	}
	return resp.Msg.AsMap(), nil
}

func startServer(t *testing.T, p provider.Provider) client {
	t.Helper()

	engine, err := transduction.New(p, &transduction.Config{Observer: "noop"})
	if err != nil {
		t.Fatalf("transduction.New: %v", err)
	}
	cfg := catalog.DefaultConfig()
	cat, err := catalog.Open(context.Background(), &cfg)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle(server.New(engine, server.WithCatalog(cat)).Handler())
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return client{
		transduce: connect.NewClient[structpb.Struct, structpb.Struct](srv.Client(), srv.URL+server.TransduceProcedure),
		combine:   connect.NewClient[structpb.Struct, structpb.Struct](srv.Client(), srv.URL+server.CombineProcedure),
	}
}

func movies() map[string]any {
	return map[string]any{
		"columns": []any{"movie_name", "year"},
		"rows": []any{
			map[string]any{"movie_name": "Alien", "year": 1979},
			map[string]any{"movie_name": "Heat", "year": 1995},
		},
	}
}

func tweetTarget() map[string]any {
	return map[string]any{
		"name":   "Tweet",
		"fields": []any{map[string]any{"name": "tweet", "type": "str"}},
	}
}

func TestTransduce_MapMergedWithSource(t *testing.T) {
	c := startServer(t, provider.NewMock(nil))

	out, err := c.call(t, c.transduce, map[string]any{
		"operation":    "map",
		"target":       tweetTarget(),
		"merge_source": true,
		"explanations": true,
		"source":       movies(),
	})
	if err != nil {
		t.Fatalf("Transduce: %v", err)
	}

	if out["status"] != string(transduction.StatusCompleted) || out["run_id"] == "" {
		t.Errorf("Unexpected run: %v", out)
	}
	states := out["states"].([]any)
	if len(states) != 2 {
		t.Fatalf("Expected 2 states, got %d", len(states))
	}
	second := states[1].(map[string]any)
	if second["movie_name"] != "Heat" || second["tweet"] != "tweet 2" || second["year"] != float64(1995) {
		t.Errorf("Unexpected second state: %v", second)
	}
	if exps := out["explanations"].([]any); len(exps) != 2 {
		t.Errorf("Expected 2 explanations, got %v", exps)
	}
}

func TestTransduce_GenerateFromCatalog(t *testing.T) {
	c := startServer(t, provider.NewMock(nil))

	out, err := c.call(t, c.transduce, map[string]any{
		"operation":    "generate",
		"catalog_type": "Employee",
		"count":        3,
	})
	if err != nil {
		t.Fatalf("Transduce: %v", err)
	}
	if states := out["states"].([]any); len(states) != 3 {
		t.Errorf("Expected 3 states, got %d", len(states))
	}
	if _, ok := out["explanations"]; ok {
		t.Error("Expected no explanations")
	}
}

func TestTransduce_Failures(t *testing.T) {
	p := provider.NewMock(func(_ context.Context, req provider.Request) (provider.Response, error) {
		if req.Index == 0 {
			return provider.Response{}, provider.ErrRefused
		}
		return provider.Synthesize(req), nil
	})
	c := startServer(t, p)

	out, err := c.call(t, c.transduce, map[string]any{
		"operation": "map",
		"target":    tweetTarget(),
		"source":    movies(),
	})
	if err != nil {
		t.Fatalf("Transduce: %v", err)
	}
	failures := out["failures"].([]any)
	if len(failures) != 1 || failures[0].(map[string]any)["index"] != float64(0) {
		t.Errorf("Unexpected failures: %v", failures)
	}
	first := out["states"].([]any)[0].(map[string]any)
	if first["tweet"] != nil {
		t.Errorf("Expected null record, got %v", first)
	}
}

func TestTransduce_ErrorCodes(t *testing.T) {
	unavailable := provider.NewMock(func(context.Context, provider.Request) (provider.Response, error) {
		return provider.Response{}, fmt.Errorf("%w: down", provider.ErrUnavailable)
	})

	tests := []struct {
		name string
		p    provider.Provider
		body map[string]any
		want connect.Code
	}{
		{"unknown operation", provider.NewMock(nil), map[string]any{"operation": "fold", "target": tweetTarget()}, connect.CodeInvalidArgument},
		{"no target", provider.NewMock(nil), map[string]any{"operation": "generate", "count": 1}, connect.CodeInvalidArgument},
		{"unknown catalog type", provider.NewMock(nil), map[string]any{"operation": "generate", "catalog_type": "spaceship"}, connect.CodeNotFound},
		{"unknown field", provider.NewMock(nil), map[string]any{"operation": "map", "bogus": true}, connect.CodeInvalidArgument},
		{"bad target", provider.NewMock(nil), map[string]any{"operation": "generate", "target": map[string]any{"fields": []any{map[string]any{"name": "a", "type": "spaceship"}}}}, connect.CodeInvalidArgument},
		{"systemic failure", unavailable, map[string]any{"operation": "map", "target": tweetTarget(), "source": movies()}, connect.CodeUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := startServer(t, tt.p)
			_, err := c.call(t, c.transduce, tt.body)
			if got := connect.CodeOf(err); got != tt.want {
				t.Errorf("Expected code %v, got %v (%v)", tt.want, got, err)
			}
		})
	}
}

func TestCombine(t *testing.T) {
	c := startServer(t, provider.NewMock(nil))
	tweets := map[string]any{
		"name": "Tweet",
		"rows": []any{map[string]any{"tweet": "a"}, map[string]any{"tweet": "b"}},
	}

	out, err := c.call(t, c.combine, map[string]any{"selector": "compose", "left": movies(), "right": tweets})
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	first := out["states"].([]any)[0].(map[string]any)
	nested, ok := first["tweet"].(map[string]any)
	if !ok || nested["tweet"] != "a" || first["movie_name"] != "Alien" {
		t.Errorf("Unexpected composed state: %v", first)
	}

	out, err = c.call(t, c.combine, map[string]any{"selector": "add", "left": movies(), "right": tweets})
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if len(out["states"].([]any)) != 4 || out["homogeneous"] != false {
		t.Errorf("Unexpected concatenation: %v", out)
	}

	out, err = c.call(t, c.combine, map[string]any{"selector": "zip", "left": movies(), "right": tweets})
	if err != nil {
		t.Fatalf("Combine: %v", err)
	}
	if states, _ := out["states"].([]any); len(states) != 0 {
		t.Errorf("Expected empty result for unknown selector, got %v", states)
	}

	short := map[string]any{"rows": []any{map[string]any{"tweet": "a"}}}
	_, err = c.call(t, c.combine, map[string]any{"selector": "merge", "left": movies(), "right": short})
	if connect.CodeOf(err) != connect.CodeFailedPrecondition {
		t.Errorf("Expected FailedPrecondition, got %v", err)
	}
}

func TestTransduce_Direct(t *testing.T) {
	engine, err := transduction.New(provider.NewMock(nil), &transduction.Config{Observer: "noop"})
	if err != nil {
		t.Fatal(err)
	}
	s := server.New(engine)

	_, err = s.Transduce(context.Background(), server.TransduceRequest{Operation: "generate", CatalogType: "tweet", Count: 1})
	if !errors.Is(err, server.ErrNoTarget) {
		t.Errorf("Expected ErrNoTarget without a catalog, got %v", err)
	}
}
