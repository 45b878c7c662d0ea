package runner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eenlars/lucky-sub006/pkg/domain"
	"github.com/eenlars/lucky-sub006/pkg/ports"
)

// execState is the shared mutable state of one graph walk. Parallel
// handoffs touch it from several goroutines.
type execState struct {
	mu      sync.Mutex
	res     *domain.RunResult
	visited map[string]bool
}

func (s *execState) markVisited(nodeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.visited[nodeID] {
		return false
	}
	s.visited[nodeID] = true
	return true
}

func (s *execState) recordOutput(nodeID, output string, cost float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.res.NodeOutputs[nodeID] = output
	s.res.Cost += cost
}

func (s *execState) markAborted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.res.Aborted = true
}

// executeGraph walks the workflow graph from the entry node. The abort
// signal is sampled at node boundaries, never mid-node: a node in flight
// always completes, and the next node is never started once the signal is
// set.
func (w *worker) executeGraph(ctx context.Context, req Request) *domain.RunResult {
	state := &execState{
		res: &domain.RunResult{
			InvocationID: req.InvocationID,
			IOIndex:      req.IOIndex,
			NodeOutputs:  make(map[string]string),
		},
		visited: make(map[string]bool),
	}

	w.pool.logger.Info("graph execution started",
		zap.String("worker_id", w.id),
		zap.String("invocation_id", req.InvocationID),
		zap.String("entry_node", req.Config.EntryNodeID))

	output, err := w.walk(ctx, req, state, req.Config.EntryNodeID, req.Input)
	if err != nil {
		state.res.Error = err.Error()
		w.pool.logger.Error("graph execution failed",
			zap.String("worker_id", w.id),
			zap.String("invocation_id", req.InvocationID),
			zap.Error(err))
	}
	state.res.Output = output

	w.pool.logger.Info("graph execution finished",
		zap.String("worker_id", w.id),
		zap.String("invocation_id", req.InvocationID),
		zap.Bool("aborted", state.res.Aborted),
		zap.Int("nodes_executed", len(state.res.NodeOutputs)))

	return state.res
}

// walk executes one node and then its successors according to the node's
// handoff type. Returns the output at the end of this path.
func (w *worker) walk(ctx context.Context, req Request, state *execState, nodeID, input string) (string, error) {
	if nodeID == domain.TerminalNodeID {
		return input, nil
	}

	// Cooperative cancellation: checked before starting a node, never
	// preemptively during one.
	if ctx.Err() != nil {
		state.markAborted()
		return input, nil
	}

	// Diamond joins: a node two branches converge on executes once.
	if !state.markVisited(nodeID) {
		return input, nil
	}

	node, ok := req.Config.NodeByID(nodeID)
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrNodeNotFound, nodeID)
	}

	output, err := w.executeNode(ctx, req, node, input, state)
	if err != nil {
		return "", err
	}

	successors := liveSuccessors(node)
	if len(successors) == 0 {
		return output, nil
	}

	if len(successors) > 1 && node.HandOffType == domain.HandOffParallel {
		return w.walkParallel(ctx, req, state, successors, output)
	}

	// Sequential handoffs preserve strict order: each successor sees the
	// previous one's output.
	current := output
	for _, next := range successors {
		current, err = w.walk(ctx, req, state, next, current)
		if err != nil {
			return "", err
		}
	}
	return current, nil
}

// walkParallel fans the sibling nodes out concurrently against the same
// input, joins them, then continues from their successors. All siblings
// complete (or are aborted) before any joining successor starts.
func (w *worker) walkParallel(ctx context.Context, req Request, state *execState, siblings []string, input string) (string, error) {
	outputs := make([]string, len(siblings))
	errs := make([]error, len(siblings))

	var wg sync.WaitGroup
	for i, sib := range siblings {
		wg.Add(1)
		go func(i int, sib string) {
			defer wg.Done()
			if ctx.Err() != nil {
				state.markAborted()
				outputs[i] = input
				return
			}
			if !state.markVisited(sib) {
				outputs[i] = input
				return
			}
			node, ok := req.Config.NodeByID(sib)
			if !ok {
				errs[i] = fmt.Errorf("%w: %q", domain.ErrNodeNotFound, sib)
				return
			}
			outputs[i], errs[i] = w.executeNode(ctx, req, node, input, state)
		}(i, sib)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return "", err
		}
	}

	joined := strings.Join(outputs, "\n")

	// Continue past the join with the siblings' successors, deduplicated
	// in handoff order. The visited guard keeps a shared successor from
	// running once per branch.
	var followers []string
	seen := make(map[string]bool)
	for _, sib := range siblings {
		node, ok := req.Config.NodeByID(sib)
		if !ok {
			continue
		}
		for _, next := range liveSuccessors(node) {
			if !seen[next] {
				seen[next] = true
				followers = append(followers, next)
			}
		}
	}

	current := joined
	var err error
	for _, next := range followers {
		current, err = w.walk(ctx, req, state, next, current)
		if err != nil {
			return "", err
		}
	}
	return current, nil
}

// executeNode performs one node's model call and publishes its lifecycle
// events.
func (w *worker) executeNode(ctx context.Context, req Request, node *domain.NodeConfig, input string, state *execState) (string, error) {
	start := time.Now()
	w.publishNodeEvent(ctx, req, node.NodeID, domain.EventTypeNodeStarted, nil)

	modelID := req.Models[node.NodeID]
	if modelID == "" {
		modelID = node.Model.ID
	}

	resp, err := w.pool.model.Complete(ctx, ports.ModelRequest{
		Model:        modelID,
		SystemPrompt: nodeSystemPrompt(node),
		Input:        input,
	})
	duration := time.Since(start)

	if err != nil {
		w.publishNodeEvent(ctx, req, node.NodeID, domain.EventTypeNodeFailed, map[string]interface{}{
			"error": err.Error(),
		})
		if w.pool.metrics != nil {
			w.pool.metrics.RecordNodeExecuted("failed", duration)
		}
		return "", fmt.Errorf("node %q model call failed: %w", node.NodeID, err)
	}

	state.recordOutput(node.NodeID, resp.Output, resp.Cost)
	w.publishNodeEvent(ctx, req, node.NodeID, domain.EventTypeNodeCompleted, map[string]interface{}{
		"output": resp.Output,
	})
	if w.pool.metrics != nil {
		w.pool.metrics.RecordNodeExecuted("completed", duration)
		w.pool.metrics.RecordModelCall(resp.Model, resp.Cost)
	}

	w.pool.logger.Debug("node executed",
		zap.String("worker_id", w.id),
		zap.String("invocation_id", req.InvocationID),
		zap.String("node_id", node.NodeID),
		zap.String("model", modelID),
		zap.Duration("duration", duration))

	return resp.Output, nil
}

// nodeSystemPrompt combines the node's system prompt with its durable
// memory entries.
func nodeSystemPrompt(node *domain.NodeConfig) string {
	if len(node.Memory) == 0 {
		return node.SystemPrompt
	}
	var b strings.Builder
	b.WriteString(node.SystemPrompt)
	b.WriteString("\n\nMemory:")
	for k, v := range node.Memory {
		b.WriteString("\n- ")
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(v)
	}
	return b.String()
}

// liveSuccessors filters the terminal sentinel out of a node's handoffs.
func liveSuccessors(node *domain.NodeConfig) []string {
	var out []string
	for _, h := range node.HandOffs {
		if h != domain.TerminalNodeID {
			out = append(out, h)
		}
	}
	return out
}

func (w *worker) publishNodeEvent(ctx context.Context, req Request, nodeID string, eventType domain.EventType, data map[string]interface{}) {
	if w.pool.bus == nil {
		return
	}
	event := domain.Event{
		ID:           uuid.New().String(),
		Type:         eventType,
		WorkflowID:   req.WorkflowID,
		InvocationID: req.InvocationID,
		NodeID:       nodeID,
		Timestamp:    time.Now().UTC(),
		Data:         data,
	}
	if err := w.pool.bus.Publish(ctx, domain.TopicNodeEvents, event); err != nil {
		w.pool.logger.Error("failed to publish node event",
			zap.String("worker_id", w.id),
			zap.String("event_type", string(eventType)),
			zap.Error(err))
	}
}
