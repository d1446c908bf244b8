package audithook

// Action constants for audit events.
const (
	// Record actions
	ActionRecordsLoaded = "records.loaded"
	ActionFeeSettled    = "fee.settled"
	ActionFeeOverdue    = "fee.overdue"

	// Payment actions
	ActionPaymentApplied  = "payment.applied"
	ActionPaymentRejected = "payment.rejected"
)

// Resource constants for audit events.
const (
	ResourceAccount = "account"
	ResourceFee     = "fee"
	ResourcePayment = "payment"
)

// Category constants for audit events.
const (
	CategoryLedger  = "ledger"
	CategoryPayment = "payment"
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
)
