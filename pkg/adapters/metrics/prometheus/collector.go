package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements ports.MetricsCollector using Prometheus.
type Collector struct {
	workflowsValidated    prometheus.Counter
	validationFindings    prometheus.Counter
	workflowsSubmitted    *prometheus.CounterVec
	invocationsStarted    prometheus.Counter
	invocationsCompleted  *prometheus.CounterVec
	invocationDuration    *prometheus.HistogramVec
	cancelRequests        *prometheus.CounterVec
	nodesExecuted         *prometheus.CounterVec
	nodeExecutionDuration prometheus.Histogram
	modelCalls            *prometheus.CounterVec
	modelCost             *prometheus.CounterVec
	tierFallbacks         *prometheus.CounterVec
	runnerPoolIdle        prometheus.Gauge
	runnerPoolBusy        prometheus.Gauge
	runnerPoolStopped     prometheus.Gauge
}

// NewCollector creates a new Prometheus metrics collector.
func NewCollector() *Collector {
	return &Collector{
		workflowsValidated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "lucky_workflows_validated_total",
				Help: "Total number of workflow configs validated",
			},
		),
		validationFindings: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "lucky_validation_findings_total",
				Help: "Total number of validation findings reported",
			},
		),
		workflowsSubmitted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lucky_workflows_submitted_total",
				Help: "Total number of workflows submitted",
			},
			[]string{"status"},
		),
		invocationsStarted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "lucky_invocations_started_total",
				Help: "Total number of invocations started",
			},
		),
		invocationsCompleted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lucky_invocations_completed_total",
				Help: "Total number of invocations completed",
			},
			[]string{"status"},
		),
		invocationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lucky_invocation_duration_seconds",
				Help:    "Invocation duration in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"status"},
		),
		cancelRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lucky_cancel_requests_total",
				Help: "Total number of cancel requests by outcome",
			},
			[]string{"status"},
		),
		nodesExecuted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lucky_nodes_executed_total",
				Help: "Total number of nodes executed",
			},
			[]string{"status"},
		),
		nodeExecutionDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "lucky_node_execution_duration_seconds",
				Help:    "Node execution duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
		),
		modelCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lucky_model_calls_total",
				Help: "Total number of model API calls",
			},
			[]string{"model"},
		),
		modelCost: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lucky_model_cost_usd_total",
				Help: "Accumulated model cost in US dollars",
			},
			[]string{"model"},
		),
		tierFallbacks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lucky_tier_fallbacks_total",
				Help: "Total number of model availability fallbacks",
			},
			[]string{"gateway"},
		),
		runnerPoolIdle: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "lucky_runner_pool_idle",
				Help: "Number of idle runner workers",
			},
		),
		runnerPoolBusy: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "lucky_runner_pool_busy",
				Help: "Number of busy runner workers",
			},
		),
		runnerPoolStopped: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "lucky_runner_pool_stopped",
				Help: "Number of stopped runner workers",
			},
		),
	}
}

// RecordWorkflowValidated records one validation pass and its finding count.
func (c *Collector) RecordWorkflowValidated(findings int) {
	c.workflowsValidated.Inc()
	c.validationFindings.Add(float64(findings))
}

// RecordWorkflowSubmitted records a workflow submission.
func (c *Collector) RecordWorkflowSubmitted(status string) {
	c.workflowsSubmitted.WithLabelValues(status).Inc()
}

// RecordInvocationStarted records an invocation start.
func (c *Collector) RecordInvocationStarted() {
	c.invocationsStarted.Inc()
}

// RecordInvocationCompleted records an invocation completion.
func (c *Collector) RecordInvocationCompleted(status string, duration time.Duration) {
	c.invocationsCompleted.WithLabelValues(status).Inc()
	c.invocationDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordCancelRequest records a cancel request by outcome status.
func (c *Collector) RecordCancelRequest(status string) {
	c.cancelRequests.WithLabelValues(status).Inc()
}

// RecordNodeExecuted records a node execution.
func (c *Collector) RecordNodeExecuted(status string, duration time.Duration) {
	c.nodesExecuted.WithLabelValues(status).Inc()
	c.nodeExecutionDuration.Observe(duration.Seconds())
}

// RecordModelCall records a model API call and its cost.
func (c *Collector) RecordModelCall(model string, cost float64) {
	c.modelCalls.WithLabelValues(model).Inc()
	c.modelCost.WithLabelValues(model).Add(cost)
}

// RecordTierFallback records one model availability fallback per gateway.
func (c *Collector) RecordTierFallback(gateway string) {
	c.tierFallbacks.WithLabelValues(gateway).Inc()
}

// RecordRunnerPoolStatus records runner pool worker states.
func (c *Collector) RecordRunnerPoolStatus(idle, busy, stopped int) {
	c.runnerPoolIdle.Set(float64(idle))
	c.runnerPoolBusy.Set(float64(busy))
	c.runnerPoolStopped.Set(float64(stopped))
}
