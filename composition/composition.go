// Package composition combines two state collections by name. It is the
// configuration-facing front of the operators on states.Collection:
//
//	merge        per-index field union, right side wins on collision
//	compose      right record nested under a key derived from its type name
//	concatenate  right records appended after left records (alias "add")
//
// An unrecognized selector yields an empty collection and a warning event.
// CombineStrict reports ErrUnknownSelector instead.
package composition

import (
	"context"
	"fmt"
	"strings"

	"github.com/tailored-agentic-units/agentics/core/stage"
	"github.com/tailored-agentic-units/agentics/observability"
	"github.com/tailored-agentic-units/agentics/states"
)

const source = "composition.Composer"

var ErrUnknownSelector = stage.NewError(stage.Composition, "unknown composition selector")

// Selector names a combination operator.
type Selector string

const (
	SelectorMerge       Selector = "merge"
	SelectorCompose     Selector = "compose"
	SelectorConcatenate Selector = "concatenate"
)

// ParseSelector normalizes a selector name. "add" and "concat" are accepted
// for concatenate.
func ParseSelector(s string) (Selector, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "merge":
		return SelectorMerge, nil
	case "compose":
		return SelectorCompose, nil
	case "concatenate", "concat", "add":
		return SelectorConcatenate, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSelector, s)
}

// Selectors lists the canonical selector names.
func Selectors() []Selector {
	return []Selector{SelectorMerge, SelectorCompose, SelectorConcatenate}
}

// Composer applies selectors and reports each combination to an observer.
type Composer struct {
	observer observability.Observer
}

// New creates a Composer reporting to the named observer.
func New(observer string) (*Composer, error) {
	obs, err := observability.GetObserver(observer)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve observer: %w", err)
	}
	return &Composer{observer: obs}, nil
}

// Combine applies selector to left and right. Merge and compose fail with
// *states.AlignmentError when the lengths differ. An unknown selector
// returns an empty collection and no error.
func (c *Composer) Combine(ctx context.Context, selector string, left, right states.Collection) (states.Collection, error) {
	sel, err := ParseSelector(selector)
	if err != nil {
		observability.Emit(ctx, c.observer, EventUnknown, observability.LevelWarning, source, map[string]any{
			"selector": selector,
		})
		return states.Collection{}, nil
	}
	return c.apply(ctx, sel, left, right)
}

// CombineStrict is Combine with ErrUnknownSelector for unrecognized
// selectors.
func (c *Composer) CombineStrict(ctx context.Context, selector string, left, right states.Collection) (states.Collection, error) {
	sel, err := ParseSelector(selector)
	if err != nil {
		return states.Collection{}, err
	}
	return c.apply(ctx, sel, left, right)
}

func (c *Composer) apply(ctx context.Context, sel Selector, left, right states.Collection) (states.Collection, error) {
	var (
		out states.Collection
		err error
	)
	switch sel {
	case SelectorMerge:
		out, err = left.Merge(right)
	case SelectorCompose:
		out, err = left.Compose(right)
	case SelectorConcatenate:
		out = left.Concatenate(right)
	}

	data := map[string]any{
		"selector": string(sel),
		"left":     left.Len(),
		"right":    right.Len(),
	}
	if err != nil {
		data["error"] = err.Error()
		observability.Emit(ctx, c.observer, EventCombine, observability.LevelError, source, data)
		return states.Collection{}, err
	}

	data["records"] = out.Len()
	data["homogeneous"] = out.Homogeneous()
	observability.Emit(ctx, c.observer, EventCombine, observability.LevelInfo, source, data)
	return out, nil
}

var defaultComposer = &Composer{observer: observability.NoOpObserver{}}

// Combine applies selector without reporting events.
func Combine(selector string, left, right states.Collection) (states.Collection, error) {
	return defaultComposer.Combine(context.Background(), selector, left, right)
}

// CombineStrict applies selector without reporting events and rejects
// unknown selectors.
func CombineStrict(selector string, left, right states.Collection) (states.Collection, error) {
	return defaultComposer.CombineStrict(context.Background(), selector, left, right)
}
