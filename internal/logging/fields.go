package logging

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldItemID is the standardized structured logging key for queue item identifiers.
	FieldItemID = "item_id"
	// FieldEventType is the standardized structured logging key for machine-readable event classification.
	FieldEventType = "event_type"
	// FieldErrorHint is the standardized structured logging key for operator remediation hints.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldTable is the standardized structured logging key for the mutated table name.
	FieldTable = "table"
	// FieldRecordID is the standardized structured logging key for the mutated record identifier.
	FieldRecordID = "record_id"
	// FieldOperation is the standardized structured logging key for the mutation operation.
	FieldOperation = "operation"
)
