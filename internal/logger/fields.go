package logger

// Fields is the structured field map attached to log lines.
type Fields map[string]interface{}

// Context fields. These travel with the request through the call chain.
const (
	FieldRequestID = "request_id"
	FieldUserID    = "user_id"
	FieldVibelogID = "vibelog_id"
	FieldJobID     = "job_id"
	FieldComponent = "component"
)

// Metric fields, set per log line through the Entry API.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	FieldSize       = "size"
	FieldStatus     = "status"
	FieldCostUSD    = "cost_usd"
	FieldRoute      = "route"
	FieldMethod     = "method"
	FieldClientIP   = "client_ip"
)
