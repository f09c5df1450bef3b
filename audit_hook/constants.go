package audithook

// Action constants for audit events.
const (
	// Stream actions
	ActionStreamCreated   = "stream.created"
	ActionStreamPaused    = "stream.paused"
	ActionStreamResumed   = "stream.resumed"
	ActionStreamCancelled = "stream.cancelled"
	ActionStreamSettled   = "stream.settled"

	// Settlement actions
	ActionWithdrawal      = "settlement.withdrawal"
	ActionReceiptsFlushed = "settlement.receipts_flushed"

	// Batch actions
	ActionBatchValidated = "batch.validated"

	// Error actions
	ActionOverflowDetected = "arithmetic.overflow_detected"
)

// Resource constants for audit events.
const (
	ResourceStream     = "stream"
	ResourceSettlement = "settlement"
	ResourceReceipt    = "receipt"
	ResourceBatch      = "batch"
)

// Category constants for audit events.
const (
	CategoryLifecycle      = "lifecycle"
	CategorySettlement     = "settlement"
	CategoryReconciliation = "reconciliation"
	CategoryIntegrity      = "integrity"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
