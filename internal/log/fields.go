package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldOperation  = "operation"
	FieldMonth      = "month"
	FieldGoalID     = "goal_id"
	FieldAssetID    = "asset_id"
	FieldRecordID   = "record_id"
	FieldAmount     = "amount"
	FieldEvent      = "event"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentEngine    = "engine"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentRates     = "rates"
	ComponentRateLimit = "rate_limit"
)

// Operations defines standard operation names
const (
	OpStart     = "start"
	OpComplete  = "complete"
	OpUndo      = "undo"
	OpUndoStart = "undo_start"
	OpSync      = "sync"
	OpAppend    = "append"
	OpFetch     = "fetch"
	OpStartup   = "startup"
	OpShutdown  = "shutdown"
)
