package pipeline

import "github.com/tailored-agentic-units/agentics/observability"

const (
	EventStart    observability.EventType = "pipeline.start"
	EventComplete observability.EventType = "pipeline.complete"
)
