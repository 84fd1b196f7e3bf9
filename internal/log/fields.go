package log

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldUserAgent     = "user_agent"
	FieldError         = "error"
	FieldTransactionID = "transaction_id"
	FieldRuleID        = "rule_id"
	FieldGoalID        = "goal_id"
	FieldAmountCents   = "amount_cents"
	FieldCategoryID    = "category_id"
	FieldFrequency     = "frequency"
	FieldGranularity   = "granularity"
	FieldSkipped       = "skipped_records"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentExport  = "export"
)
