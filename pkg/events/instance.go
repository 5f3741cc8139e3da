package events

import "time"

// Instance lifecycle event types.
const (
	InstanceCreated = "instance.created"
	InstanceFailed  = "instance.failed"
	InstanceDeleted = "instance.deleted"
	InstanceVisited = "instance.visited"
	InstanceError   = "instance.error"
	LayoutArranged  = "layout.arranged"
)

// InstanceEvent reports a change of a browser instance.
type InstanceEvent struct {
	Type       string    `json:"type"`
	InstanceID string    `json:"instance_id,omitempty"`
	Status     string    `json:"status,omitempty"`
	Message    string    `json:"message,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// EventType returns the event type.
func (e InstanceEvent) EventType() string {
	return e.Type
}

// NewInstanceEvent stamps a new event with the current time.
func NewInstanceEvent(eventType, instanceID, status, message string) InstanceEvent {
	return InstanceEvent{
		Type:       eventType,
		InstanceID: instanceID,
		Status:     status,
		Message:    message,
		Timestamp:  time.Now().UTC(),
	}
}
