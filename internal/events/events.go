package events

import "context"

// Streams
const (
	StreamCases = "events:case"
)

// Event types
const (
	EventCaseCreated       = "case_created"
	EventCaseStatusChanged = "case_status_changed"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

// Publisher must only be handed events for changes that have already committed.
type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
