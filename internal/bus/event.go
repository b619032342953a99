package bus

import "time"

// Event kinds published by the daemon. Subscribers match on prefixes such as
// "undo." or "message.".
const (
	KindStatusChanged  = "session.status_changed"
	KindMessageTracked = "message.tracked"
	KindMessageUndone  = "message.undone"
	KindUndoQueued     = "undo.queued"
	KindUndoSucceeded  = "undo.succeeded"
	KindUndoFailed     = "undo.failed"
)

// Event represents a domain event published on the bus.
type Event struct {
	ID        string
	Kind      string
	Timestamp time.Time
	Payload   any
}

// UndoOutcome is the payload of undo.succeeded and undo.failed.
type UndoOutcome struct {
	RequestID   string `json:"request_id,omitempty"`
	GlobalMsgID string `json:"global_msg_id"`
	ThreadID    string `json:"thread_id,omitempty"`
	Status      int    `json:"status"`
	Error       string `json:"error,omitempty"`
}
