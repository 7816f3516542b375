package composition_test

import (
	"context"
	"errors"
	"testing"

	"github.com/tailored-agentic-units/agentics/composition"
	"github.com/tailored-agentic-units/agentics/core/stage"
	"github.com/tailored-agentic-units/agentics/observability"
	"github.com/tailored-agentic-units/agentics/schema"
	"github.com/tailored-agentic-units/agentics/states"
)

func collection(t *testing.T, name, field string, values ...any) states.Collection {
	t.Helper()
	desc, err := schema.Build(name, []schema.FieldSpec{{Name: field, Type: "str"}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	rows := make([]map[string]any, len(values))
	for i, v := range values {
		rows[i] = map[string]any{field: v}
	}
	c, err := states.FromRows(rows, desc)
	if err != nil {
		t.Fatalf("FromRows: %v", err)
	}
	return c
}

func TestParseSelector(t *testing.T) {
	tests := []struct {
		in      string
		want    composition.Selector
		wantErr bool
	}{
		{"merge", composition.SelectorMerge, false},
		{"Compose", composition.SelectorCompose, false},
		{"concatenate", composition.SelectorConcatenate, false},
		{"add", composition.SelectorConcatenate, false},
		{" concat ", composition.SelectorConcatenate, false},
		{"zip", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := composition.ParseSelector(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseSelector(%q) = %q, %v", tt.in, got, err)
		}
		if tt.wantErr && !errors.Is(err, composition.ErrUnknownSelector) {
			t.Errorf("Expected ErrUnknownSelector for %q, got %v", tt.in, err)
		}
	}
}

func TestCombine(t *testing.T) {
	movies := collection(t, "Movie", "movie_name", "Alien", "Heat")
	tweets := collection(t, "Tweet", "tweet", "t1", "t2")

	tests := []struct {
		selector string
		records  int
		check    func(t *testing.T, row map[string]any)
	}{
		{"merge", 2, func(t *testing.T, row map[string]any) {
			if row["movie_name"] != "Alien" || row["tweet"] != "t1" {
				t.Errorf("Unexpected merged row: %v", row)
			}
		}},
		{"compose", 2, func(t *testing.T, row map[string]any) {
			nested, ok := row["tweet"].(map[string]any)
			if !ok || nested["tweet"] != "t1" || row["movie_name"] != "Alien" {
				t.Errorf("Unexpected composed row: %v", row)
			}
		}},
		{"add", 4, func(t *testing.T, row map[string]any) {
			if row["movie_name"] != "Alien" {
				t.Errorf("Unexpected first row: %v", row)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			out, err := composition.Combine(tt.selector, movies, tweets)
			if err != nil {
				t.Fatalf("Combine: %v", err)
			}
			if out.Len() != tt.records {
				t.Fatalf("Expected %d records, got %d", tt.records, out.Len())
			}
			tt.check(t, out.Rows()[0])
		})
	}
}

func TestCombine_Misaligned(t *testing.T) {
	left := collection(t, "Movie", "movie_name", "Alien", "Heat")
	right := collection(t, "Tweet", "tweet", "t1")

	for _, selector := range []string{"merge", "compose"} {
		_, err := composition.Combine(selector, left, right)
		if !errors.Is(err, states.ErrMisaligned) {
			t.Errorf("%s: expected ErrMisaligned, got %v", selector, err)
		}
	}

	out, err := composition.Combine("concatenate", left, right)
	if err != nil || out.Len() != 3 {
		t.Errorf("Expected concatenation of 3 records, got %d, %v", out.Len(), err)
	}
}

func TestCombine_UnknownSelector(t *testing.T) {
	rec := &observability.Recorder{}
	observability.RegisterObserver("composition-test", rec)

	c, err := composition.New("composition-test")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	left := collection(t, "Movie", "movie_name", "Alien")
	right := collection(t, "Tweet", "tweet", "t1")

	out, err := c.Combine(context.Background(), "zip", left, right)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("Expected empty collection, got %d records", out.Len())
	}
	if rec.Count(composition.EventUnknown) != 1 {
		t.Errorf("Expected one unknown-selector event, got %d", rec.Count(composition.EventUnknown))
	}

	_, err = c.CombineStrict(context.Background(), "zip", left, right)
	if !errors.Is(err, composition.ErrUnknownSelector) {
		t.Errorf("Expected ErrUnknownSelector, got %v", err)
	}
	if got := stage.Of(err); got != stage.Composition {
		t.Errorf("Expected composition stage, got %q", got)
	}

	if _, err := c.Combine(context.Background(), "merge", left, right); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if rec.Count(composition.EventCombine) != 1 {
		t.Errorf("Expected one combine event, got %d", rec.Count(composition.EventCombine))
	}
}

func TestNew_UnknownObserver(t *testing.T) {
	if _, err := composition.New("does-not-exist"); err == nil {
		t.Error("Expected error for unknown observer")
	}
}
