package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eenlars/lucky-sub006/internal/application/models"
	"github.com/eenlars/lucky-sub006/internal/application/runner"
	"github.com/eenlars/lucky-sub006/internal/application/validation"
	"github.com/eenlars/lucky-sub006/pkg/domain"
	"github.com/eenlars/lucky-sub006/pkg/ports"
)

// InvocationExecutor runs one invocation's graph walk. The manager
// implements it, wrapping the runner pool with cancellation bookkeeping.
type InvocationExecutor interface {
	ExecuteInvocation(ctx context.Context, req runner.Request) (*domain.RunResult, error)
}

// Node is one instantiated graph vertex: its config plus the concrete
// model id resolved for it.
type Node struct {
	Config  domain.NodeConfig
	ModelID string
}

// WorkflowOptions configures a workflow instance.
type WorkflowOptions struct {
	// WorkflowID is the stable logical id across versions. Generated when
	// empty.
	WorkflowID string
	// Parent1ID and Parent2ID record lineage for evolutionary callers.
	Parent1ID string
	Parent2ID string
	// EnabledModels is the user's enabled model set, used to resolve tier
	// references at setup time.
	EnabledModels []domain.ModelInfo
	// Catalog is the full model catalog, used to map literal references
	// onto gateways for batch resolution. Optional; literal references
	// pass through unchecked without it.
	Catalog domain.ModelCatalog
	// Strict makes Setup fail on any validation finding instead of
	// logging it.
	Strict      bool
	Validator   *validation.Validator
	Persistence ports.Persistence
	Metrics     ports.MetricsCollector
	Logger      *zap.Logger
}

// Workflow wraps one validated configuration plus the runtime state of
// executing and evaluating it. The run phase is single-use; Reset returns
// the instance to its constructed state without rebuilding the graph.
type Workflow struct {
	mu sync.Mutex

	config     *domain.WorkflowConfig
	workflowID string
	versionID  string
	parent1ID  string
	parent2ID  string
	cases      []domain.IOCase

	validator   *validation.Validator
	persistence ports.Persistence
	enabled     []domain.ModelInfo
	catalog     domain.ModelCatalog
	metrics     ports.MetricsCollector
	strict      bool
	logger      *zap.Logger

	// Populated by Setup.
	nodes          []*Node
	nodeByID       map[string]*Node
	resolvedModels map[string]string

	// Per-run state, cleared by Reset.
	invocationIDs map[int]string
	results       []*domain.RunResult
	totalCost     float64
	hasRun        bool

	// Evaluation state, mutually exclusive with the next improvement
	// pass; cleared via ClearEvaluationState.
	evaluated bool
	fitness   *domain.Fitness
	feedback  string

	isSetUp bool
}

// NewWorkflow constructs a workflow instance from a config and its
// evaluation cases. Call Setup before Run.
func NewWorkflow(cfg *domain.WorkflowConfig, cases []domain.IOCase, opts WorkflowOptions) (*Workflow, error) {
	if cfg == nil {
		return nil, fmt.Errorf("workflow config is nil")
	}
	if len(cases) == 0 {
		return nil, domain.ErrNoEvalCases
	}
	if opts.Validator == nil {
		return nil, fmt.Errorf("validator is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	workflowID := opts.WorkflowID
	if workflowID == "" {
		workflowID = "wf-" + uuid.New().String()
	}

	return &Workflow{
		config:        cfg,
		workflowID:    workflowID,
		versionID:     cfg.VersionID(),
		parent1ID:     opts.Parent1ID,
		parent2ID:     opts.Parent2ID,
		cases:         cases,
		validator:     opts.Validator,
		persistence:   opts.Persistence,
		enabled:       opts.EnabledModels,
		catalog:       opts.Catalog,
		metrics:       opts.Metrics,
		strict:        opts.Strict,
		logger:        opts.Logger,
		invocationIDs: make(map[int]string),
	}, nil
}

// WorkflowID returns the stable logical id.
func (w *Workflow) WorkflowID() string { return w.workflowID }

// VersionID returns the content-derived version id.
func (w *Workflow) VersionID() string { return w.versionID }

// Config returns the underlying configuration.
func (w *Workflow) Config() *domain.WorkflowConfig { return w.config }

// Lineage returns the parent version ids, empty for a root workflow.
func (w *Workflow) Lineage() (parent1, parent2 string) {
	return w.parent1ID, w.parent2ID
}

// Setup validates the configuration and instantiates the node objects.
// Non-strict setup logs findings and proceeds; strict setup fails on any
// finding. When a persistence collaborator is configured the version
// record is written.
func (w *Workflow) Setup(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.strict {
		if err := w.validator.ValidateStrict(w.config); err != nil {
			return err
		}
	} else if findings := w.validator.Validate(w.config); len(findings) > 0 {
		w.logger.Warn("workflow has validation findings",
			zap.String("workflow_id", w.workflowID),
			zap.Strings("findings", findings))
	}

	if w.persistence != nil {
		rec := ports.WorkflowVersionRecord{
			VersionID:  w.versionID,
			WorkflowID: w.workflowID,
			Config:     *w.config,
			Parent1ID:  w.parent1ID,
			Parent2ID:  w.parent2ID,
			Operation:  "init",
			CreatedAt:  time.Now().UTC(),
		}
		if err := w.persistence.CreateWorkflowVersion(ctx, rec); err != nil {
			return fmt.Errorf("failed to persist workflow version: %w", err)
		}
		if err := w.persistence.UpdateWorkflowVersionWithIO(ctx, w.versionID, w.cases); err != nil {
			return fmt.Errorf("failed to persist workflow IO cases: %w", err)
		}
	}

	available := w.resolveGateways()

	w.nodes = make([]*Node, 0, len(w.config.Nodes))
	w.nodeByID = make(map[string]*Node, len(w.config.Nodes))
	w.resolvedModels = make(map[string]string, len(w.config.Nodes))
	for _, nc := range w.config.Nodes {
		node := &Node{Config: nc, ModelID: w.resolveModel(nc.Model, available)}
		w.nodes = append(w.nodes, node)
		w.nodeByID[nc.NodeID] = node
		w.resolvedModels[nc.NodeID] = node.ModelID
	}

	w.isSetUp = true
	w.logger.Info("workflow set up",
		zap.String("workflow_id", w.workflowID),
		zap.String("version_id", w.versionID),
		zap.Int("nodes", len(w.nodes)))
	return nil
}

// resolveGateways runs batch resolution over the config's literal model
// references: per required gateway, the intersection of requested and
// enabled models, preserving request order. Each substituted gateway is
// logged and counted.
func (w *Workflow) resolveGateways() map[string][]string {
	resolver := models.NewResolver(w.catalog)
	_, required := resolver.RequiredGateways(w.config)
	if len(required) == 0 {
		return nil
	}

	enabledByGateway := make(map[string][]domain.ModelInfo)
	for _, m := range w.enabled {
		if m.RuntimeEnabled {
			enabledByGateway[m.Gateway] = append(enabledByGateway[m.Gateway], m)
		}
	}

	available, fallbacks := models.ResolveAvailableModels(required, enabledByGateway)
	for _, fb := range fallbacks {
		if w.metrics != nil {
			w.metrics.RecordTierFallback(fb.Gateway)
		}
		w.logger.Warn("requested models unavailable on gateway, substituting",
			zap.String("workflow_id", w.workflowID),
			zap.String("gateway", fb.Gateway),
			zap.Strings("requested", fb.Requested),
			zap.Strings("used", fb.Used))
	}
	return available
}

func (w *Workflow) resolveModel(ref domain.ModelRef, available map[string][]string) string {
	if ref.Kind == domain.ModelRefTier {
		picked := models.PickUserModelForTier(ref.Tier, w.enabled)
		if picked.PricingTier != ref.Tier && w.metrics != nil {
			w.metrics.RecordTierFallback(picked.Gateway)
		}
		return picked.ID
	}
	// A literal reference whose gateway resolved to a substitute list is
	// remapped onto the first usable model there.
	if info, ok := w.catalog.Lookup(ref.ID); ok {
		usable := available[info.Gateway]
		if len(usable) > 0 && !containsString(usable, ref.ID) {
			return usable[0]
		}
	}
	return ref.ID
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Node returns the instantiated node for an id.
func (w *Workflow) Node(nodeID string) (*Node, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	node, ok := w.nodeByID[nodeID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrNodeNotFound, nodeID)
	}
	return node, nil
}

// CreateInvocationForIO allocates a fresh invocation id for one IO case,
// persists its record, and keys it by case index. Multiple invocations
// can exist concurrently under one workflow, one per case.
func (w *Workflow) CreateInvocationForIO(ctx context.Context, index int, io domain.IOCase) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.isSetUp {
		return "", domain.ErrNotSetUp
	}
	if index < 0 || index >= len(w.cases) {
		return "", fmt.Errorf("io case index %d out of range (have %d cases)", index, len(w.cases))
	}

	invocationID := "inv-" + uuid.New().String()
	if w.persistence != nil {
		rec := ports.WorkflowInvocationRecord{
			InvocationID: invocationID,
			VersionID:    w.versionID,
			IOIndex:      index,
			Input:        io.Input,
			Expected:     io.Expected,
			CreatedAt:    time.Now().UTC(),
		}
		if err := w.persistence.CreateWorkflowInvocation(ctx, rec); err != nil {
			return "", fmt.Errorf("failed to persist invocation: %w", err)
		}
	}
	w.invocationIDs[index] = invocationID
	return invocationID, nil
}

// InvocationID returns the invocation id allocated for a case index.
func (w *Workflow) InvocationID(index int) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	id, ok := w.invocationIDs[index]
	return id, ok
}

// Run executes the workflow once against every IO case. A workflow
// instance is single-use for the run phase: running twice, or running
// after evaluation, is a precondition violation.
func (w *Workflow) Run(ctx context.Context, exec InvocationExecutor) error {
	w.mu.Lock()
	if !w.isSetUp {
		w.mu.Unlock()
		return domain.ErrNotSetUp
	}
	if w.hasRun {
		w.mu.Unlock()
		return domain.ErrAlreadyRan
	}
	if w.evaluated {
		w.mu.Unlock()
		return domain.ErrAlreadyEvaluated
	}
	cases := w.cases
	resolved := w.resolvedModels
	w.mu.Unlock()

	results := make([]*domain.RunResult, 0, len(cases))
	for i, io := range cases {
		invocationID, ok := w.InvocationID(i)
		if !ok {
			var err error
			invocationID, err = w.CreateInvocationForIO(ctx, i, io)
			if err != nil {
				return err
			}
		}

		req := runner.Request{
			InvocationID: invocationID,
			WorkflowID:   w.workflowID,
			IOIndex:      i,
			Config:       w.config,
			Models:       resolved,
			Input:        io.Input,
		}
		res, err := exec.ExecuteInvocation(ctx, req)
		if err != nil {
			return fmt.Errorf("invocation %s failed: %w", invocationID, err)
		}
		results = append(results, res)
	}

	w.mu.Lock()
	w.results = results
	for _, r := range results {
		w.totalCost += r.Cost
	}
	w.hasRun = true
	w.mu.Unlock()

	w.logger.Info("workflow run complete",
		zap.String("workflow_id", w.workflowID),
		zap.Int("cases", len(results)))
	return nil
}

// Evaluate scores the run results once: per-case fitness averaged across
// cases, cost accumulated, and a feedback summary for improvement
// callers. Evaluating before running, or twice, is a precondition
// violation.
func (w *Workflow) Evaluate(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.evaluated {
		return domain.ErrAlreadyEvaluated
	}
	if !w.hasRun || len(w.results) == 0 {
		return domain.ErrNotYetRun
	}

	var sum float64
	var failing []string
	for i, res := range w.results {
		score := caseScore(res, w.cases[i].Expected)
		sum += score
		if score < 100 {
			failing = append(failing, fmt.Sprintf(
				"case %d scored %.0f: expected %q, got %q",
				i, score, w.cases[i].Expected, res.Output))
		}
	}
	accuracy := sum / float64(len(w.results))

	w.fitness = &domain.Fitness{
		Score:     accuracy,
		Accuracy:  accuracy,
		TotalCost: w.totalCost,
	}
	if len(failing) == 0 {
		w.feedback = fmt.Sprintf("all %d cases passed", len(w.results))
	} else {
		w.feedback = fmt.Sprintf("%d of %d cases imperfect:\n%s",
			len(failing), len(w.results), strings.Join(failing, "\n"))
	}
	w.evaluated = true

	w.logger.Info("workflow evaluated",
		zap.String("workflow_id", w.workflowID),
		zap.Float64("accuracy", accuracy),
		zap.Float64("total_cost", w.totalCost))
	return nil
}

// caseScore grades one run result against its expected output. Aborted
// and failed cases score zero; otherwise the normalized output is graded
// by token overlap, with an exact match worth the full score.
func caseScore(res *domain.RunResult, expected string) float64 {
	if res.Aborted || res.Error != "" {
		return 0
	}
	got := strings.Fields(strings.ToLower(strings.TrimSpace(res.Output)))
	want := strings.Fields(strings.ToLower(strings.TrimSpace(expected)))
	if strings.Join(got, " ") == strings.Join(want, " ") {
		return 100
	}
	if len(want) == 0 {
		return 0
	}
	wantSet := make(map[string]bool, len(want))
	for _, t := range want {
		wantSet[t] = true
	}
	matched := 0
	for _, t := range got {
		if wantSet[t] {
			matched++
			delete(wantSet, t)
		}
	}
	return 100 * float64(matched) / float64(len(want))
}

// GetFitness returns the evaluation result. Reading it before evaluation
// is a distinct error so callers can special-case "not yet evaluated".
func (w *Workflow) GetFitness() (*domain.Fitness, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.evaluated || w.fitness == nil {
		return nil, domain.ErrFitnessNotAvailable
	}
	return w.fitness, nil
}

// GetFeedback returns the natural-language evaluation summary.
func (w *Workflow) GetFeedback() (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.evaluated {
		return "", domain.ErrFitnessNotAvailable
	}
	return w.feedback, nil
}

// Results returns the per-case run results.
func (w *Workflow) Results() []*domain.RunResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]*domain.RunResult{}, w.results...)
}

// TotalCost returns the accumulated model cost.
func (w *Workflow) TotalCost() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.totalCost
}

// ClearEvaluationState drops fitness and feedback so a later improvement
// pass cannot read stale pre-improvement scores.
func (w *Workflow) ClearEvaluationState() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.fitness = nil
	w.feedback = ""
	w.evaluated = false
}

// ResetContext describes why an evolutionary caller is resetting the
// workflow.
type ResetContext struct {
	Operation string
}

// Reset clears all per-run state so the workflow can be mutated and
// re-run without reconstructing the graph. Config, lineage, and the
// instantiated nodes are preserved.
func (w *Workflow) Reset(rc ResetContext) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.invocationIDs = make(map[int]string)
	w.results = nil
	w.totalCost = 0
	w.hasRun = false
	w.evaluated = false
	w.fitness = nil
	w.feedback = ""

	w.logger.Info("workflow reset",
		zap.String("workflow_id", w.workflowID),
		zap.String("operation", rc.Operation))
}

// Clone produces a new workflow sharing the same config, cases, and
// lineage but with fresh, independent runtime state. Used when sibling
// executions must not share mutable state.
func (w *Workflow) Clone() *Workflow {
	w.mu.Lock()
	defer w.mu.Unlock()

	clone := &Workflow{
		config:        w.config,
		workflowID:    w.workflowID,
		versionID:     w.versionID,
		parent1ID:     w.parent1ID,
		parent2ID:     w.parent2ID,
		cases:         w.cases,
		validator:     w.validator,
		persistence:   w.persistence,
		enabled:       w.enabled,
		catalog:       w.catalog,
		metrics:       w.metrics,
		strict:        w.strict,
		logger:        w.logger,
		invocationIDs: make(map[int]string),
	}
	if w.isSetUp {
		clone.nodes = append([]*Node{}, w.nodes...)
		clone.nodeByID = make(map[string]*Node, len(w.nodeByID))
		for id, n := range w.nodeByID {
			clone.nodeByID[id] = n
		}
		clone.resolvedModels = make(map[string]string, len(w.resolvedModels))
		for id, m := range w.resolvedModels {
			clone.resolvedModels[id] = m
		}
		clone.isSetUp = true
	}
	return clone
}
