package events

import "time"

// Event types delivered on a job's queue.
const (
	TypeLog    = "log"
	TypeStatus = "status"
	TypeResult = "result"
	TypeError  = "error"
)

// Event is a single progress notification produced by a running job.
// Only the fields relevant to the event's type are populated.
type Event struct {
	Type      string      `json:"type"`
	Message   string      `json:"message,omitempty"`
	Status    string      `json:"status,omitempty"`
	Error     string      `json:"error,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func NewLog(message string) Event {
	return Event{Type: TypeLog, Message: message, Timestamp: time.Now().UTC()}
}

func NewStatus(status string) Event {
	return Event{Type: TypeStatus, Status: status, Timestamp: time.Now().UTC()}
}

func NewResult(status string, data interface{}) Event {
	return Event{Type: TypeResult, Status: status, Data: data, Timestamp: time.Now().UTC()}
}

func NewError(status, message string) Event {
	return Event{Type: TypeError, Status: status, Error: message, Timestamp: time.Now().UTC()}
}
