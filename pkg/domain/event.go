package domain

import "time"

// EventType identifies workflow lifecycle events published on the bus.
type EventType string

const (
	EventTypeWorkflowSubmitted EventType = "workflow.submitted"
	EventTypeWorkflowCompleted EventType = "workflow.completed"
	EventTypeWorkflowFailed    EventType = "workflow.failed"
	EventTypeWorkflowCancelled EventType = "workflow.cancelled"

	EventTypeNodeStarted   EventType = "node.started"
	EventTypeNodeCompleted EventType = "node.completed"
	EventTypeNodeFailed    EventType = "node.failed"

	EventTypeCancelRequested EventType = "invocation.cancel_requested"
)

// Event is the envelope published on the event bus.
type Event struct {
	ID           string                 `json:"id"`
	Type         EventType              `json:"type"`
	WorkflowID   string                 `json:"workflowId,omitempty"`
	InvocationID string                 `json:"invocationId,omitempty"`
	NodeID       string                 `json:"nodeId,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
	Data         map[string]interface{} `json:"data,omitempty"`
}

// Topic names used on the event bus.
const (
	TopicWorkflowEvents = "workflow.events"
	TopicNodeEvents     = "node.events"
)

// CancelTopic returns the per-invocation channel that distributed cancel
// signals are published on. Any instance hosting the invocation subscribes
// to it.
func CancelTopic(invocationID string) string {
	return "invocation.cancel." + invocationID
}
