package ports

import (
	"context"
	"time"

	"github.com/eenlars/lucky-sub006/pkg/domain"
)

// EventHandler processes one event received on a subscribed topic.
type EventHandler func(ctx context.Context, event domain.Event) error

// Subscription is a live topic subscription. Unsubscribe stops delivery
// and releases the underlying channel; it must be called on every exit
// path to avoid leaked subscriptions.
type Subscription interface {
	Unsubscribe() error
}

// EventBus distributes events across process boundaries. Publish is
// fire-and-forget for subscribers; delivery order is per-topic.
type EventBus interface {
	Publish(ctx context.Context, topic string, event domain.Event) error
	Subscribe(ctx context.Context, topic string, handler EventHandler) (Subscription, error)
	Close() error
}

// InvocationStore is the shared key-value copy of per-invocation
// cancellation state. Entries carry a TTL so abandoned invocations
// self-expire. Writes are last-writer-wins per invocation key.
type InvocationStore interface {
	Save(ctx context.Context, rec domain.InvocationRecord, ttl time.Duration) error
	Load(ctx context.Context, invocationID string) (domain.InvocationRecord, bool, error)
	Delete(ctx context.Context, invocationID string) error
	List(ctx context.Context) ([]string, error)
}

// WorkflowVersionRecord is the persisted form of one validated config.
type WorkflowVersionRecord struct {
	VersionID  string                `json:"versionId"`
	WorkflowID string                `json:"workflowId"`
	Config     domain.WorkflowConfig `json:"config"`
	Parent1ID  string                `json:"parent1Id,omitempty"`
	Parent2ID  string                `json:"parent2Id,omitempty"`
	Operation  string                `json:"operation,omitempty"`
	Cases      []domain.IOCase       `json:"cases,omitempty"`
	CreatedAt  time.Time             `json:"createdAt"`
}

// WorkflowInvocationRecord is the persisted form of one invocation and the
// IO case it ran against.
type WorkflowInvocationRecord struct {
	InvocationID string    `json:"invocationId"`
	VersionID    string    `json:"versionId"`
	IOIndex      int       `json:"ioIndex"`
	Input        string    `json:"input"`
	Expected     string    `json:"expected"`
	Output       string    `json:"output,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Persistence is the storage collaborator the lifecycle manager calls.
// The core does not define schema beyond these records.
type Persistence interface {
	CreateWorkflowVersion(ctx context.Context, rec WorkflowVersionRecord) error
	CreateWorkflowInvocation(ctx context.Context, rec WorkflowInvocationRecord) error
	UpdateWorkflowVersionWithIO(ctx context.Context, versionID string, cases []domain.IOCase) error
}

// ModelRequest is one opaque model call on behalf of a node.
type ModelRequest struct {
	Model        string
	SystemPrompt string
	Input        string
	MaxTokens    int
}

// ModelResponse is the result of a model call. Cost is in the caller's
// accounting unit; the core treats it as opaque and does not retry.
type ModelResponse struct {
	Output string
	Cost   float64
	Model  string
}

// ModelClient invokes the underlying model gateway. Implementations must
// honor ctx cancellation on their own terms; a call already in flight is
// never interrupted by the engine.
type ModelClient interface {
	Complete(ctx context.Context, req ModelRequest) (*ModelResponse, error)
}

// MetricsCollector records orchestration metrics. A no-op implementation
// is acceptable anywhere metrics are not wired.
type MetricsCollector interface {
	RecordWorkflowValidated(findings int)
	RecordWorkflowSubmitted(status string)
	RecordInvocationStarted()
	RecordInvocationCompleted(status string, duration time.Duration)
	RecordCancelRequest(status string)
	RecordNodeExecuted(status string, duration time.Duration)
	RecordModelCall(model string, cost float64)
	RecordTierFallback(gateway string)
	RecordRunnerPoolStatus(idle, busy, stopped int)
}
