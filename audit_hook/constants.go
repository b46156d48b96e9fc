package audithook

// Action constants for audit events.
const (
	// Ledger lifecycle
	ActionLedgerInitialized = "ledger.initialized"

	// Seed and locks
	ActionSeedGranted    = "seed.granted"
	ActionTokensUnlocked = "locks.released"

	// Consumption
	ActionActionRecorded = "action.recorded"
	ActionActionsFlushed = "action.flushed"

	// Regeneration
	ActionRegenerated = "regeneration.completed"

	// Movements
	ActionTransferred      = "transfer.completed"
	ActionGifted           = "gift.completed"
	ActionDevTokensGranted = "dev_grant.completed"
	ActionPledgeSpent      = "pledge.spent"
)

// Resource constants for audit events.
const (
	ResourceLedger       = "ledger"
	ResourceAccount      = "account"
	ResourceAction       = "action"
	ResourceRegeneration = "regeneration"
	ResourceTransfer     = "transfer"
)

// Category constants for audit events.
const (
	CategoryGovernance = "governance"
	CategoryIssuance   = "issuance"
	CategoryUsage      = "usage"
	CategoryMovement   = "movement"
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
