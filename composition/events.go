package composition

import "github.com/tailored-agentic-units/agentics/observability"

const (
	EventCombine observability.EventType = "composition.combine"
	EventUnknown observability.EventType = "composition.unknown"
)
