package cancellation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eenlars/lucky-sub006/pkg/domain"
	"github.com/eenlars/lucky-sub006/pkg/ports"
)

// localEntry is the process-private copy of an invocation's cancellation
// state. It holds the live abort handle; the shared record never does.
type localEntry struct {
	state             domain.InvocationState
	createdAt         time.Time
	cancelRequestedAt *time.Time
	abort             context.CancelFunc
	sub               ports.Subscription
}

// Coordinator reconciles in-process abort signals with cross-process
// cancel signals distributed via the event bus and the shared invocation
// store. A cancel request landing on any instance stops an execution
// hosted by any other instance, and the request stays idempotent no
// matter how often or where it lands.
type Coordinator struct {
	store   ports.InvocationStore
	bus     ports.EventBus
	metrics ports.MetricsCollector
	logger  *zap.Logger
	ttl     time.Duration

	mu    sync.Mutex
	local map[string]*localEntry
}

// NewCoordinator creates a coordinator. ttl bounds how long abandoned
// shared records survive.
func NewCoordinator(
	store ports.InvocationStore,
	bus ports.EventBus,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	ttl time.Duration,
) *Coordinator {
	return &Coordinator{
		store:   store,
		bus:     bus,
		metrics: metrics,
		logger:  logger,
		ttl:     ttl,
		local:   make(map[string]*localEntry),
	}
}

// Register records a running invocation hosted by this process: a local
// entry holding the abort handle, a shared record other instances can
// see, and a subscription to the invocation's cancel channel.
func (c *Coordinator) Register(ctx context.Context, invocationID string, abort context.CancelFunc) error {
	now := time.Now().UTC()
	rec := domain.InvocationRecord{
		InvocationID: invocationID,
		State:        domain.InvocationRunning,
		Desired:      domain.InvocationRunning,
		CreatedAt:    now,
		StartedAt:    now,
	}
	if err := c.store.Save(ctx, rec, c.ttl); err != nil {
		// Local cancellation must keep working when the shared store is
		// down; other instances just cannot see this invocation.
		c.logger.Warn("failed to save shared invocation record",
			zap.String("invocation_id", invocationID),
			zap.Error(err))
	}

	sub, err := c.bus.Subscribe(ctx, domain.CancelTopic(invocationID), c.handleCancelEvent)
	if err != nil {
		// Shared record exists; local cancellation still works without the
		// subscription. TTL cleans the record up if we bail here.
		c.logger.Warn("cancel channel subscription failed",
			zap.String("invocation_id", invocationID),
			zap.Error(err))
	}

	c.mu.Lock()
	c.local[invocationID] = &localEntry{
		state:     domain.InvocationRunning,
		createdAt: now,
		abort:     abort,
		sub:       sub,
	}
	c.mu.Unlock()

	c.logger.Debug("invocation registered",
		zap.String("invocation_id", invocationID))
	return nil
}

// RequestCancel handles a cancel request for an invocation that may be
// running on this instance, another instance, or nowhere. Safe to call
// any number of times with any interleaving; repeated requests echo the
// original status and timestamp and never re-trigger side effects.
func (c *Coordinator) RequestCancel(ctx context.Context, invocationID string) domain.CancelResult {
	res := c.requestCancel(ctx, invocationID)
	if c.metrics != nil {
		c.metrics.RecordCancelRequest(string(res.Status))
	}
	return res
}

func (c *Coordinator) requestCancel(ctx context.Context, invocationID string) domain.CancelResult {
	rec, found, err := c.store.Load(ctx, invocationID)
	if err != nil {
		c.logger.Error("shared cancel state unavailable",
			zap.String("invocation_id", invocationID),
			zap.Error(err))
		found = false
	}

	c.mu.Lock()
	entry, hosted := c.local[invocationID]
	var localState domain.InvocationState
	var localTS *time.Time
	if hosted {
		localState = entry.state
		localTS = entry.cancelRequestedAt
	}
	c.mu.Unlock()

	if !found && !hosted {
		msg := "invocation not found; it may have completed or never existed"
		if err != nil {
			msg = "invocation state unavailable"
		}
		return domain.CancelResult{
			Status:       domain.CancelStatusNotFound,
			InvocationID: invocationID,
			Message:      msg,
		}
	}

	// Idempotent short-circuit: once cancellation started, echo the state
	// and original timestamp without writing anything.
	sharedState := rec.State
	ts := rec.CancelRequestedAt
	if !found {
		sharedState = localState
		ts = localTS
	}
	switch {
	case sharedState.Terminal() || localState.Terminal():
		if ts == nil {
			ts = localTS
		}
		return domain.CancelResult{
			Status:            domain.CancelStatusAlreadyCancelled,
			InvocationID:      invocationID,
			CancelRequestedAt: ts,
		}
	case sharedState == domain.InvocationCancelling || localState == domain.InvocationCancelling:
		if ts == nil {
			ts = localTS
		}
		return domain.CancelResult{
			Status:            domain.CancelStatusCancelling,
			InvocationID:      invocationID,
			CancelRequestedAt: ts,
			Message:           "cancellation already in progress",
		}
	}

	now := time.Now().UTC()
	rec.InvocationID = invocationID
	rec.State = domain.InvocationCancelling
	rec.Desired = domain.InvocationCancelling
	rec.CancelRequestedAt = &now
	if !found {
		rec.CreatedAt = now
	}
	if saveErr := c.store.Save(ctx, rec, c.ttl); saveErr != nil {
		// Keep going: the local abort below must not depend on the store.
		c.logger.Error("failed to persist cancelling state",
			zap.String("invocation_id", invocationID),
			zap.Error(saveErr))
	}

	event := domain.Event{
		ID:           uuid.New().String(),
		Type:         domain.EventTypeCancelRequested,
		InvocationID: invocationID,
		Timestamp:    now,
	}
	if pubErr := c.bus.Publish(ctx, domain.CancelTopic(invocationID), event); pubErr != nil {
		c.logger.Error("failed to publish cancel event",
			zap.String("invocation_id", invocationID),
			zap.Error(pubErr))
	}

	// If this process hosts the execution, abort synchronously. Local
	// cancellation never waits on the pub/sub round trip.
	c.flipLocal(invocationID, now)

	c.logger.Info("cancellation requested",
		zap.String("invocation_id", invocationID))

	return domain.CancelResult{
		Status:            domain.CancelStatusCancelling,
		InvocationID:      invocationID,
		CancelRequestedAt: &now,
	}
}

// handleCancelEvent reacts to a distributed cancel signal. The owning
// process may not be the one that received the cancel request; this is
// what makes cross-process cancellation work. The originator also
// receives its own event, by which point the local entry is already
// flipped.
func (c *Coordinator) handleCancelEvent(_ context.Context, event domain.Event) error {
	if event.Type != domain.EventTypeCancelRequested {
		return nil
	}
	ts := event.Timestamp
	c.flipLocal(event.InvocationID, ts)
	return nil
}

// flipLocal moves a hosted invocation to cancelling and fires its abort
// handle. A no-op when the invocation is not hosted here or cancellation
// already started.
func (c *Coordinator) flipLocal(invocationID string, requestedAt time.Time) {
	c.mu.Lock()
	entry, ok := c.local[invocationID]
	if !ok || entry.state != domain.InvocationRunning {
		c.mu.Unlock()
		return
	}
	entry.state = domain.InvocationCancelling
	entry.cancelRequestedAt = &requestedAt
	abort := entry.abort
	c.mu.Unlock()

	if abort != nil {
		abort()
	}
	c.logger.Info("local abort triggered",
		zap.String("invocation_id", invocationID))
}

// IsCancelled reports whether a hosted invocation has a pending or
// completed cancellation. False for invocations not hosted here.
func (c *Coordinator) IsCancelled(invocationID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.local[invocationID]
	return ok && entry.state != domain.InvocationRunning
}

// Complete removes an invocation's bookkeeping on any exit path. A
// naturally finished invocation disappears entirely (later cancels see
// not_found); an aborted one leaves a cancelled shared record behind
// until TTL so later cancels see already_cancelled with the original
// timestamp.
func (c *Coordinator) Complete(ctx context.Context, invocationID string, aborted bool) {
	c.mu.Lock()
	entry, ok := c.local[invocationID]
	delete(c.local, invocationID)
	c.mu.Unlock()

	if ok && entry.sub != nil {
		if err := entry.sub.Unsubscribe(); err != nil {
			c.logger.Warn("cancel channel unsubscribe failed",
				zap.String("invocation_id", invocationID),
				zap.Error(err))
		}
	}

	if !aborted {
		if err := c.store.Delete(ctx, invocationID); err != nil {
			c.logger.Warn("failed to delete shared invocation record",
				zap.String("invocation_id", invocationID),
				zap.Error(err))
		}
		return
	}

	rec, found, err := c.store.Load(ctx, invocationID)
	if err != nil || !found {
		rec = domain.InvocationRecord{InvocationID: invocationID}
		if ok {
			rec.CreatedAt = entry.createdAt
			rec.CancelRequestedAt = entry.cancelRequestedAt
		}
	}
	rec.State = domain.InvocationCancelled
	rec.Desired = domain.InvocationCancelled
	if err := c.store.Save(ctx, rec, c.ttl); err != nil {
		c.logger.Warn("failed to persist cancelled state",
			zap.String("invocation_id", invocationID),
			zap.Error(err))
	}
}

// ActiveCount returns how many invocations this instance currently hosts.
func (c *Coordinator) ActiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.local)
}

// Shutdown aborts every hosted invocation and drops local bookkeeping.
// Shared records are left to TTL expiry so other instances keep a
// consistent view.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	entries := make(map[string]*localEntry, len(c.local))
	for id, e := range c.local {
		entries[id] = e
	}
	c.local = make(map[string]*localEntry)
	c.mu.Unlock()

	for id, e := range entries {
		if e.abort != nil {
			e.abort()
		}
		if e.sub != nil {
			_ = e.sub.Unsubscribe()
		}
		c.logger.Debug("invocation aborted on shutdown", zap.String("invocation_id", id))
	}
}
