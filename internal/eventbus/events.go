package eventbus

import (
	"context"
	"time"
)

// EventType names a planner lifecycle event.
type EventType string

const (
	// Run lifecycle
	EventRunStarted    EventType = "run_started"
	EventRunCompleted  EventType = "run_completed"
	EventRunFailed     EventType = "run_failed"
	EventRunTerminated EventType = "run_terminated"
	EventRunCancelled  EventType = "run_cancelled"

	// Stage lifecycle
	EventStageStarted   EventType = "stage_started"
	EventStageCompleted EventType = "stage_completed"
	EventStageDegraded  EventType = "stage_degraded"

	// Approval checkpoint
	EventApprovalRequested EventType = "approval_requested"
	EventApprovalResolved  EventType = "approval_resolved"
	EventApprovalAuto      EventType = "approval_auto"

	// Synthesis
	EventItineraryFallback EventType = "itinerary_fallback"

	EventSystemWarning EventType = "system_warning"
)

// Well-known metadata keys.
const (
	MetaRunID = "run_id"
	MetaStage = "stage"
)

// EventHandler handles one event. A returned error triggers a retry.
type EventHandler func(context.Context, Event) error

// Event is something that happened during a run.
type Event interface {
	Type() EventType
	Payload() interface{}
	Metadata() map[string]interface{}
	Timestamp() int64
	Source() string
}

// EventBus dispatches events to subscribers asynchronously.
type EventBus interface {
	Publish(ctx context.Context, event Event) error
	// Subscribe returns a subscription ID usable with Unsubscribe.
	Subscribe(eventTypes []EventType, handler EventHandler) (string, error)
	SubscribeAll(handler EventHandler) (string, error)
	Unsubscribe(subscriptionID string) error
	Close() error
}

// BaseEvent is the default Event implementation.
type BaseEvent struct {
	eventType EventType
	payload   interface{}
	metadata  map[string]interface{}
	timestamp int64
	source    string
}

func NewEvent(eventType EventType, payload interface{}, source string, metadata map[string]interface{}) *BaseEvent {
	if metadata == nil {
		metadata = make(map[string]interface{})
	}
	return &BaseEvent{
		eventType: eventType,
		payload:   payload,
		metadata:  metadata,
		timestamp: time.Now().UnixNano(),
		source:    source,
	}
}

// NewRunEvent is NewEvent with the run ID and stage already in the metadata.
func NewRunEvent(eventType EventType, runID, stage string, payload interface{}) *BaseEvent {
	return NewEvent(eventType, payload, "planner", map[string]interface{}{
		MetaRunID: runID,
		MetaStage: stage,
	})
}

func (e *BaseEvent) Type() EventType                  { return e.eventType }
func (e *BaseEvent) Payload() interface{}             { return e.payload }
func (e *BaseEvent) Metadata() map[string]interface{} { return e.metadata }
func (e *BaseEvent) Timestamp() int64                 { return e.timestamp }
func (e *BaseEvent) Source() string                   { return e.source }

// WithMetadata sets one metadata entry and returns the event for chaining.
func (e *BaseEvent) WithMetadata(key string, value interface{}) *BaseEvent {
	e.metadata[key] = value
	return e
}

// RunID reads the run ID metadata of any event, or "".
func RunID(e Event) string {
	id, _ := e.Metadata()[MetaRunID].(string)
	return id
}
