// Package noop provides a metrics collector that discards everything.
// Useful in tests and anywhere metrics are not wired.
package noop

import "time"

// Collector implements ports.MetricsCollector as a no-op.
type Collector struct{}

// NewCollector creates a no-op metrics collector.
func NewCollector() *Collector { return &Collector{} }

func (*Collector) RecordWorkflowValidated(int)                    {}
func (*Collector) RecordWorkflowSubmitted(string)                 {}
func (*Collector) RecordInvocationStarted()                       {}
func (*Collector) RecordInvocationCompleted(string, time.Duration) {}
func (*Collector) RecordCancelRequest(string)                     {}
func (*Collector) RecordNodeExecuted(string, time.Duration)       {}
func (*Collector) RecordModelCall(string, float64)                {}
func (*Collector) RecordTierFallback(string)                      {}
func (*Collector) RecordRunnerPoolStatus(int, int, int)           {}
