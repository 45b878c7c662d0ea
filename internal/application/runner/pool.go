package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eenlars/lucky-sub006/pkg/domain"
	"github.com/eenlars/lucky-sub006/pkg/ports"
)

// Request is one graph execution: a validated config, the model id
// resolved for each node, and the input of one IO case.
type Request struct {
	InvocationID string
	WorkflowID   string
	IOIndex      int
	Config       *domain.WorkflowConfig
	// Models maps node id to the concrete model id resolved for it (tier
	// references already picked).
	Models map[string]string
	Input  string
}

// Pool manages the worker goroutines that execute workflow graphs.
type Pool struct {
	size    int
	model   ports.ModelClient
	bus     ports.EventBus
	metrics ports.MetricsCollector
	logger  *zap.Logger
	health  *HealthMonitor

	jobs    chan *job
	workers []*worker
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

type job struct {
	ctx  context.Context
	req  Request
	done chan *domain.RunResult
}

// worker is a single execution goroutine.
type worker struct {
	id      string
	pool    *Pool
	status  WorkerStatus
	mu      sync.RWMutex
	lastJob time.Time
}

// WorkerStatus represents worker status.
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusBusy    WorkerStatus = "busy"
	WorkerStatusStopped WorkerStatus = "stopped"
)

// NewPool creates a pool of graph-execution workers.
func NewPool(
	size int,
	model ports.ModelClient,
	bus ports.EventBus,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
	healthCheckInterval time.Duration,
) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	pool := &Pool{
		size:    size,
		model:   model,
		bus:     bus,
		metrics: metrics,
		logger:  logger,
		jobs:    make(chan *job),
		workers: make([]*worker, size),
		ctx:     ctx,
		cancel:  cancel,
	}
	pool.health = NewHealthMonitor(pool, healthCheckInterval, logger)
	return pool
}

// Start launches the workers and the health monitor.
func (p *Pool) Start() error {
	p.logger.Info("starting runner pool", zap.Int("size", p.size))

	for i := 0; i < p.size; i++ {
		w := &worker{
			id:      fmt.Sprintf("runner-%d", i),
			pool:    p,
			status:  WorkerStatusIdle,
			lastJob: time.Now(),
		}
		p.workers[i] = w

		p.wg.Add(1)
		go w.run(p.ctx)
	}

	p.health.Start()

	p.logger.Info("runner pool started", zap.Int("workers", p.size))
	return nil
}

// Run executes one graph on a pool worker and blocks until the walk
// finishes. The request context carries the abort signal; it is sampled
// between nodes only, so a cancelled context still returns a result once
// the current node completes.
func (p *Pool) Run(ctx context.Context, req Request) (*domain.RunResult, error) {
	j := &job{ctx: ctx, req: req, done: make(chan *domain.RunResult, 1)}

	select {
	case p.jobs <- j:
	case <-p.ctx.Done():
		return nil, fmt.Errorf("runner pool is shut down")
	}

	select {
	case res := <-j.done:
		return res, nil
	case <-p.ctx.Done():
		return nil, fmt.Errorf("runner pool shut down during execution")
	}
}

// Shutdown gracefully stops the pool, waiting for in-flight executions.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.logger.Info("shutting down runner pool")

	p.health.Stop()
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("runner pool shut down complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout")
	}
}

// GetStatus returns the status of all workers.
func (p *Pool) GetStatus() map[string]WorkerStatus {
	status := make(map[string]WorkerStatus)
	for _, w := range p.workers {
		w.mu.RLock()
		status[w.id] = w.status
		w.mu.RUnlock()
	}
	return status
}

// run is the main worker loop.
func (w *worker) run(ctx context.Context) {
	defer w.pool.wg.Done()

	w.pool.logger.Debug("runner worker started", zap.String("worker_id", w.id))

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			w.status = WorkerStatusStopped
			w.mu.Unlock()
			w.pool.logger.Debug("runner worker stopped", zap.String("worker_id", w.id))
			return

		case j := <-w.pool.jobs:
			w.mu.Lock()
			w.status = WorkerStatusBusy
			w.lastJob = time.Now()
			w.mu.Unlock()

			res := w.executeGraph(j.ctx, j.req)
			j.done <- res

			w.mu.Lock()
			w.status = WorkerStatusIdle
			w.mu.Unlock()
		}
	}
}
