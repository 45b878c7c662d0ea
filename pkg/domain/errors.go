package domain

import "errors"

// Precondition violations. These indicate caller misuse of the workflow
// lifecycle, not recoverable runtime conditions, and are returned
// immediately instead of letting bad state propagate deeper.
var (
	// ErrNotSetUp is returned when Run is called before Setup.
	ErrNotSetUp = errors.New("workflow has not been set up")
	// ErrAlreadyRan is returned on a second Run; a workflow instance is
	// single-use for the run phase.
	ErrAlreadyRan = errors.New("workflow has already been run")
	// ErrAlreadyEvaluated is returned when Run or Evaluate is called after
	// evaluation completed.
	ErrAlreadyEvaluated = errors.New("workflow has already been evaluated")
	// ErrNotYetRun is returned when Evaluate is called with no run results.
	ErrNotYetRun = errors.New("workflow has not been run")
	// ErrNoEvalCases is returned when a workflow is constructed or run
	// without any IO cases.
	ErrNoEvalCases = errors.New("no evaluation cases configured")
	// ErrNodeNotFound is returned when execution references a node id that
	// is not part of the workflow.
	ErrNodeNotFound = errors.New("node not found in workflow")
)

// ErrFitnessNotAvailable is returned when fitness or feedback is read
// before evaluation. Distinct from the generic precondition errors so
// callers can tell "not yet evaluated" apart from "genuinely broken".
var ErrFitnessNotAvailable = errors.New("fitness not available before evaluation")

// ErrInvalidWorkflow is returned by strict validation when a config has
// structural findings.
var ErrInvalidWorkflow = errors.New("invalid workflow configuration")
