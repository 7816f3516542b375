package transduction

import "github.com/tailored-agentic-units/agentics/observability"

const (
	EventRunStart       observability.EventType = "transduction.run.start"
	EventRunComplete    observability.EventType = "transduction.run.complete"
	EventRunFailed      observability.EventType = "transduction.run.failed"
	EventBatchStart     observability.EventType = "transduction.batch.start"
	EventBatchComplete  observability.EventType = "transduction.batch.complete"
	EventRecordFailed   observability.EventType = "transduction.record.failed"
	EventRecordProgress observability.EventType = "transduction.record.progress"
	EventLedgerError    observability.EventType = "transduction.ledger.error"
)
