package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Relay session, taken from the handshake headers
	FieldClientID      = "client_id"
	FieldContributorID = "contributor_id"
	FieldRoomID        = "room_id"

	// Relay entities
	FieldPollID      = "poll_id"
	FieldRewardID    = "reward_id"
	FieldMessageType = "message_type"

	// Service
	FieldService = "service"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
