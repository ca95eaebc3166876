// Package notify dispatches lifecycle events of parser operations to
// listeners.
//
// Dispatch is fire-and-forget: every listener runs concurrently and is raced
// against its own timeout. A listener that fails, panics or is still running
// when the timeout elapses is logged and otherwise ignored, so Notify never
// fails and never blocks longer than the timeout.
package notify

import (
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
)

const (
	SerializeStart   = "on_serialize_start"
	SerializeEnd     = "on_serialize_end"
	DeserializeStart = "on_deserialize_start"
	DeserializeEnd   = "on_deserialize_end"
	RunStart         = "on_run_start"
	RunEnd           = "on_run_end"
)

// Event is one lifecycle notification. Start and end events of the same
// operation share a RunID.
type Event struct {
	Name      string          `json:"name"`
	RunID     uuid.UUID       `json:"run_id"`
	Timestamp strfmt.DateTime `json:"timestamp"`
	Data      any             `json:"data,omitempty"`
}

// NewEvent creates an event stamped with the current time.
func NewEvent(name string, runID uuid.UUID, data any) Event {
	return Event{
		Name:      name,
		RunID:     runID,
		Timestamp: strfmt.DateTime(time.Now().UTC()),
		Data:      data,
	}
}

// NewRunID returns a time-ordered id for correlating start and end events.
func NewRunID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}
