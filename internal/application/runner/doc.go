// Package runner executes workflow graphs on a pool of worker
// goroutines. A walk starts at the entry node and follows handoffs:
// sequential handoffs chain each successor on the previous output,
// parallel handoffs fan out against the same input and join before the
// graph continues. The abort signal is the request context, sampled only
// at node boundaries; a model call in flight always completes on its own
// terms.
package runner
