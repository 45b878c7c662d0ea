package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eenlars/lucky-sub006/internal/application/cancellation"
	"github.com/eenlars/lucky-sub006/internal/application/runner"
	"github.com/eenlars/lucky-sub006/internal/application/validation"
	"github.com/eenlars/lucky-sub006/pkg/domain"
	"github.com/eenlars/lucky-sub006/pkg/ports"
)

// GraphRunner executes one graph walk. Implemented by the runner pool.
type GraphRunner interface {
	Run(ctx context.Context, req runner.Request) (*domain.RunResult, error)
}

// Manager coordinates the workflow lifecycle: validation, setup, running
// every IO case through the runner with cancellation bookkeeping, and
// evaluation.
type Manager struct {
	validator   *validation.Validator
	runner      GraphRunner
	coordinator *cancellation.Coordinator
	persistence ports.Persistence
	bus         ports.EventBus
	metrics     ports.MetricsCollector
	logger      *zap.Logger

	enabledModels     []domain.ModelInfo
	catalog           domain.ModelCatalog
	invocationTimeout time.Duration

	mu        sync.Mutex
	workflows map[string]*Workflow
}

// ManagerConfig bundles the manager's collaborators.
type ManagerConfig struct {
	Validator         *validation.Validator
	Runner            GraphRunner
	Coordinator       *cancellation.Coordinator
	Persistence       ports.Persistence
	EventBus          ports.EventBus
	Metrics           ports.MetricsCollector
	Logger            *zap.Logger
	EnabledModels     []domain.ModelInfo
	Catalog           domain.ModelCatalog
	InvocationTimeout time.Duration
}

// NewManager creates a lifecycle manager.
func NewManager(cfg ManagerConfig) *Manager {
	return &Manager{
		validator:         cfg.Validator,
		runner:            cfg.Runner,
		coordinator:       cfg.Coordinator,
		persistence:       cfg.Persistence,
		bus:               cfg.EventBus,
		metrics:           cfg.Metrics,
		logger:            cfg.Logger,
		enabledModels:     cfg.EnabledModels,
		catalog:           cfg.Catalog,
		invocationTimeout: cfg.InvocationTimeout,
		workflows:         make(map[string]*Workflow),
	}
}

// Validate runs all configured checks and returns the findings.
func (m *Manager) Validate(cfg *domain.WorkflowConfig) []string {
	findings := m.validator.Validate(cfg)
	if m.metrics != nil {
		m.metrics.RecordWorkflowValidated(len(findings))
	}
	return findings
}

// SubmitWorkflow validates a configuration, sets up a workflow over the
// given IO cases, and executes it in the background: one invocation per
// case, then evaluation. Returns the workflow id immediately. The
// coordination mode and catalogs are those captured in the validator at
// construction time, so validation and execution see one consistent
// snapshot.
func (m *Manager) SubmitWorkflow(ctx context.Context, cfg *domain.WorkflowConfig, cases []domain.IOCase) (string, error) {
	wf, err := NewWorkflow(cfg, cases, WorkflowOptions{
		Validator:     m.validator,
		Persistence:   m.persistence,
		EnabledModels: m.enabledModels,
		Catalog:       m.catalog,
		Metrics:       m.metrics,
		Strict:        true,
		Logger:        m.logger,
	})
	if err != nil {
		return "", err
	}

	if err := wf.Setup(ctx); err != nil {
		if m.metrics != nil {
			m.metrics.RecordWorkflowSubmitted("rejected")
		}
		return "", fmt.Errorf("workflow setup failed: %w", err)
	}

	m.mu.Lock()
	m.workflows[wf.WorkflowID()] = wf
	m.mu.Unlock()

	m.publishWorkflowEvent(ctx, wf.WorkflowID(), domain.EventTypeWorkflowSubmitted, nil)
	if m.metrics != nil {
		m.metrics.RecordWorkflowSubmitted("accepted")
	}
	m.logger.Info("workflow submitted",
		zap.String("workflow_id", wf.WorkflowID()),
		zap.String("version_id", wf.VersionID()),
		zap.Int("cases", len(cases)))

	go m.execute(wf)

	return wf.WorkflowID(), nil
}

// execute drives run and evaluate for a submitted workflow.
func (m *Manager) execute(wf *Workflow) {
	ctx := context.Background()

	if err := wf.Run(ctx, m); err != nil {
		m.publishWorkflowEvent(ctx, wf.WorkflowID(), domain.EventTypeWorkflowFailed, map[string]interface{}{
			"error": err.Error(),
		})
		m.logger.Error("workflow run failed",
			zap.String("workflow_id", wf.WorkflowID()),
			zap.Error(err))
		return
	}

	aborted := false
	for _, r := range wf.Results() {
		if r.Aborted {
			aborted = true
			break
		}
	}
	if aborted {
		m.publishWorkflowEvent(ctx, wf.WorkflowID(), domain.EventTypeWorkflowCancelled, nil)
		m.logger.Info("workflow cancelled",
			zap.String("workflow_id", wf.WorkflowID()))
		return
	}

	if err := wf.Evaluate(ctx); err != nil {
		m.publishWorkflowEvent(ctx, wf.WorkflowID(), domain.EventTypeWorkflowFailed, map[string]interface{}{
			"error": err.Error(),
		})
		m.logger.Error("workflow evaluation failed",
			zap.String("workflow_id", wf.WorkflowID()),
			zap.Error(err))
		return
	}

	fitness, _ := wf.GetFitness()
	data := map[string]interface{}{}
	if fitness != nil {
		data["fitness"] = fitness
	}
	m.publishWorkflowEvent(ctx, wf.WorkflowID(), domain.EventTypeWorkflowCompleted, data)
}

// ExecuteInvocation runs one invocation on the runner pool, wrapped in
// the cancellation protocol: register before the walk, complete on every
// exit path, shared record cleaned up or marked cancelled accordingly.
func (m *Manager) ExecuteInvocation(ctx context.Context, req runner.Request) (*domain.RunResult, error) {
	if m.invocationTimeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, m.invocationTimeout)
		defer cancelTimeout()
	}
	invCtx, abort := context.WithCancel(ctx)
	defer abort()

	if err := m.coordinator.Register(invCtx, req.InvocationID, abort); err != nil {
		return nil, fmt.Errorf("failed to register invocation: %w", err)
	}
	if m.metrics != nil {
		m.metrics.RecordInvocationStarted()
	}
	start := time.Now()

	res, err := m.runner.Run(invCtx, req)

	aborted := err == nil && res.Aborted
	m.coordinator.Complete(context.Background(), req.InvocationID, aborted)

	status := "completed"
	switch {
	case err != nil:
		status = "failed"
	case aborted:
		status = "cancelled"
	case res.Error != "":
		status = "failed"
	}
	if m.metrics != nil {
		m.metrics.RecordInvocationCompleted(status, time.Since(start))
	}
	return res, err
}

// Cancel requests cancellation of an invocation, wherever it runs.
func (m *Manager) Cancel(ctx context.Context, invocationID string) domain.CancelResult {
	return m.coordinator.RequestCancel(ctx, invocationID)
}

// WorkflowStatus is a point-in-time snapshot of a workflow's lifecycle.
type WorkflowStatus struct {
	WorkflowID  string              `json:"workflowId"`
	VersionID   string              `json:"versionId"`
	Parent1ID   string              `json:"parent1Id,omitempty"`
	Parent2ID   string              `json:"parent2Id,omitempty"`
	HasRun      bool                `json:"hasRun"`
	Evaluated   bool                `json:"evaluated"`
	Invocations map[int]string      `json:"invocations"`
	Fitness     *domain.Fitness     `json:"fitness,omitempty"`
	Feedback    string              `json:"feedback,omitempty"`
	Results     []*domain.RunResult `json:"results,omitempty"`
}

// Status returns a snapshot of a submitted workflow.
func (m *Manager) Status(workflowID string) (*WorkflowStatus, error) {
	m.mu.Lock()
	wf, ok := m.workflows[workflowID]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("workflow not found: %s", workflowID)
	}

	parent1, parent2 := wf.Lineage()

	wf.mu.Lock()
	status := &WorkflowStatus{
		WorkflowID:  wf.workflowID,
		VersionID:   wf.versionID,
		Parent1ID:   parent1,
		Parent2ID:   parent2,
		HasRun:      wf.hasRun,
		Evaluated:   wf.evaluated,
		Invocations: make(map[int]string, len(wf.invocationIDs)),
		Fitness:     wf.fitness,
		Feedback:    wf.feedback,
		Results:     append([]*domain.RunResult{}, wf.results...),
	}
	for i, id := range wf.invocationIDs {
		status.Invocations[i] = id
	}
	wf.mu.Unlock()
	return status, nil
}

// Workflow returns a submitted workflow instance, for evolutionary
// callers that drive Reset and Clone directly.
func (m *Manager) Workflow(workflowID string) (*Workflow, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wf, ok := m.workflows[workflowID]
	return wf, ok
}

// Shutdown aborts all hosted invocations.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("shutting down orchestrator manager")
	m.coordinator.Shutdown()
	m.logger.Info("orchestrator manager shut down complete")
	return nil
}

func (m *Manager) publishWorkflowEvent(ctx context.Context, workflowID string, eventType domain.EventType, data map[string]interface{}) {
	if m.bus == nil {
		return
	}
	event := domain.Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		WorkflowID: workflowID,
		Timestamp:  time.Now().UTC(),
		Data:       data,
	}
	if err := m.bus.Publish(ctx, domain.TopicWorkflowEvents, event); err != nil {
		m.logger.Error("failed to publish workflow event",
			zap.String("workflow_id", workflowID),
			zap.String("event_type", string(eventType)),
			zap.Error(err))
	}
}
