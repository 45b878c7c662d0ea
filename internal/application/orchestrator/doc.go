// Package orchestrator implements the workflow lifecycle: a validated
// configuration becomes a Workflow instance that is set up, run once
// across its IO cases, and evaluated. The Manager ties the lifecycle to
// the runner pool and the cancellation coordinator and exposes the
// surface evolutionary callers drive (Reset, Clone, fitness, feedback).
//
// Illegal state transitions (double run, evaluate before run) are
// returned immediately as sentinel errors; they indicate caller misuse,
// not recoverable runtime conditions.
package orchestrator
