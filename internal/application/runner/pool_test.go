package runner_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eenlars/lucky-sub006/internal/application/runner"
	eventsmemory "github.com/eenlars/lucky-sub006/pkg/adapters/events/memory"
	"github.com/eenlars/lucky-sub006/pkg/adapters/metrics/noop"
	"github.com/eenlars/lucky-sub006/pkg/domain"
	"github.com/eenlars/lucky-sub006/pkg/ports"
)

// fakeModel echoes node identity around its input and records call order.
type fakeModel struct {
	mu    sync.Mutex
	calls []ports.ModelRequest
	hook  func(req ports.ModelRequest)
	fail  map[string]error
}

func (f *fakeModel) Complete(ctx context.Context, req ports.ModelRequest) (*ports.ModelResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	if f.hook != nil {
		f.hook(req)
	}
	if err, ok := f.fail[req.Model]; ok {
		return nil, err
	}
	return &ports.ModelResponse{
		Output: fmt.Sprintf("%s(%s)", req.Model, req.Input),
		Cost:   0.01,
		Model:  req.Model,
	}, nil
}

func (f *fakeModel) callModels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Model
	}
	return out
}

func newTestPool(t *testing.T, model ports.ModelClient) *runner.Pool {
	t.Helper()
	pool := runner.NewPool(2, model, eventsmemory.NewInMemoryEventBus(), noop.NewCollector(), zap.NewNop(), time.Minute)
	require.NoError(t, pool.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = pool.Shutdown(ctx)
	})
	return pool
}

func node(id string, handOffs ...string) domain.NodeConfig {
	return domain.NodeConfig{
		NodeID:       id,
		Description:  "node " + id,
		SystemPrompt: "prompt " + id,
		Model:        domain.ParseModelRef("model-" + id),
		MCPTools:     []string{},
		CodeTools:    []string{},
		HandOffs:     handOffs,
	}
}

func request(cfg *domain.WorkflowConfig, input string) runner.Request {
	models := make(map[string]string, len(cfg.Nodes))
	for _, n := range cfg.Nodes {
		models[n.NodeID] = n.Model.ID
	}
	return runner.Request{
		InvocationID: "inv-test",
		WorkflowID:   "wf-test",
		Config:       cfg,
		Models:       models,
		Input:        input,
	}
}

func TestRun_SequentialChain(t *testing.T) {
	model := &fakeModel{}
	pool := newTestPool(t, model)

	cfg := &domain.WorkflowConfig{
		EntryNodeID: "a",
		Nodes: []domain.NodeConfig{
			node("a", "b"),
			node("b", "c"),
			node("c", domain.TerminalNodeID),
		},
	}

	res, err := pool.Run(context.Background(), request(cfg, "in"))
	require.NoError(t, err)
	assert.Empty(t, res.Error)
	assert.False(t, res.Aborted)

	// Each node sees the previous node's output.
	assert.Equal(t, "model-c(model-b(model-a(in)))", res.Output)
	assert.Equal(t, []string{"model-a", "model-b", "model-c"}, model.callModels())
	assert.Len(t, res.NodeOutputs, 3)
	assert.InDelta(t, 0.03, res.Cost, 1e-9)
}

func TestRun_ParallelJoin(t *testing.T) {
	model := &fakeModel{}
	pool := newTestPool(t, model)

	split := node("a", "b", "c")
	split.HandOffType = domain.HandOffParallel
	cfg := &domain.WorkflowConfig{
		EntryNodeID: "a",
		Nodes: []domain.NodeConfig{
			split,
			node("b", "d"),
			node("c", "d"),
			node("d", domain.TerminalNodeID),
		},
	}

	res, err := pool.Run(context.Background(), request(cfg, "in"))
	require.NoError(t, err)
	assert.Empty(t, res.Error)

	// Both branches see the same input, their outputs join in handoff
	// order, and the shared successor runs exactly once on the join.
	assert.Equal(t, "model-d(model-b(model-a(in))\nmodel-c(model-a(in)))", res.Output)
	assert.Len(t, res.NodeOutputs, 4)

	count := 0
	for _, m := range model.callModels() {
		if m == "model-d" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestRun_DiamondSequentialSingleExecution(t *testing.T) {
	model := &fakeModel{}
	pool := newTestPool(t, model)

	cfg := &domain.WorkflowConfig{
		EntryNodeID: "a",
		Nodes: []domain.NodeConfig{
			node("a", "b", "c"),
			node("b", "d"),
			node("c", "d"),
			node("d", domain.TerminalNodeID),
		},
	}

	res, err := pool.Run(context.Background(), request(cfg, "in"))
	require.NoError(t, err)

	count := 0
	for _, m := range model.callModels() {
		if m == "model-d" {
			count++
		}
	}
	assert.Equal(t, 1, count, "joined node must execute once")
	assert.Len(t, res.NodeOutputs, 4)
}

func TestRun_AbortBetweenNodes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	model := &fakeModel{}
	// The cancel lands while the first node is in flight. The node
	// completes; the next one never starts.
	model.hook = func(req ports.ModelRequest) {
		if req.Model == "model-a" {
			cancel()
		}
	}
	pool := newTestPool(t, model)

	cfg := &domain.WorkflowConfig{
		EntryNodeID: "a",
		Nodes: []domain.NodeConfig{
			node("a", "b"),
			node("b", domain.TerminalNodeID),
		},
	}

	res, err := pool.Run(ctx, request(cfg, "in"))
	require.NoError(t, err)
	assert.True(t, res.Aborted)
	assert.Equal(t, []string{"model-a"}, model.callModels())
	assert.Equal(t, "model-a(in)", res.Output)
	assert.Len(t, res.NodeOutputs, 1)
}

func TestRun_NodeFailure(t *testing.T) {
	model := &fakeModel{fail: map[string]error{"model-b": errors.New("model exploded")}}
	pool := newTestPool(t, model)

	cfg := &domain.WorkflowConfig{
		EntryNodeID: "a",
		Nodes: []domain.NodeConfig{
			node("a", "b"),
			node("b", domain.TerminalNodeID),
		},
	}

	res, err := pool.Run(context.Background(), request(cfg, "in"))
	require.NoError(t, err)
	assert.Contains(t, res.Error, `node "b" model call failed`)
}

func TestRun_AfterShutdown(t *testing.T) {
	model := &fakeModel{}
	pool := runner.NewPool(1, model, eventsmemory.NewInMemoryEventBus(), noop.NewCollector(), zap.NewNop(), time.Minute)
	require.NoError(t, pool.Start())

	ctx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	require.NoError(t, pool.Shutdown(ctx))

	_, err := pool.Run(context.Background(), request(&domain.WorkflowConfig{
		EntryNodeID: "a",
		Nodes:       []domain.NodeConfig{node("a", domain.TerminalNodeID)},
	}, "in"))
	assert.Error(t, err)
}

func TestGetStatus(t *testing.T) {
	model := &fakeModel{}
	pool := newTestPool(t, model)

	status := pool.GetStatus()
	assert.Len(t, status, 2)
	for _, s := range status {
		assert.Equal(t, runner.WorkerStatusIdle, s)
	}
}
