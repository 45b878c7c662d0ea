package domain

import "time"

// InvocationState is the lifecycle state of one workflow invocation.
// Transitions are monotonic: running -> cancelling -> cancelled, never
// backward.
type InvocationState string

const (
	InvocationRunning    InvocationState = "running"
	InvocationCancelling InvocationState = "cancelling"
	InvocationCancelled  InvocationState = "cancelled"
)

// Terminal reports whether no further cancellation transition is possible.
func (s InvocationState) Terminal() bool {
	return s == InvocationCancelled
}

// InvocationRecord is the shared, cross-process copy of an invocation's
// cancellation state. It holds no abort handle; the handle lives only in
// the process hosting the execution. Desired may lead State while a
// distributed cancel propagates.
type InvocationRecord struct {
	InvocationID      string          `json:"invocationId"`
	State             InvocationState `json:"state"`
	Desired           InvocationState `json:"desired"`
	CreatedAt         time.Time       `json:"createdAt"`
	StartedAt         time.Time       `json:"startedAt"`
	CancelRequestedAt *time.Time      `json:"cancelRequestedAt,omitempty"`
}

// CancelStatus is the outcome communicated by a cancel request. The
// transport always succeeds; the status carries the result.
type CancelStatus string

const (
	// CancelStatusCancelling means this request (or an earlier one)
	// initiated cancellation and the execution will stop after its current
	// node.
	CancelStatusCancelling CancelStatus = "cancelling"
	// CancelStatusAlreadyCancelled means the invocation was already fully
	// cancelled before this request arrived.
	CancelStatusAlreadyCancelled CancelStatus = "already_cancelled"
	// CancelStatusNotFound means the invocation is unknown: it finished
	// naturally, expired, or never existed.
	CancelStatusNotFound CancelStatus = "not_found"
)

// CancelResult is the idempotent response to a cancel request. Issuing the
// same request any number of times yields the same status and timestamp.
type CancelResult struct {
	Status            CancelStatus `json:"status"`
	InvocationID      string       `json:"invocationId"`
	CancelRequestedAt *time.Time   `json:"cancelRequestedAt,omitempty"`
	Message           string       `json:"message,omitempty"`
}
