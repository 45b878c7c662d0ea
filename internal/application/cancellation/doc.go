// Package cancellation implements the distributed cancellation protocol.
//
// Each invocation has two copies of its cancellation state: a
// process-private entry holding a live abort handle, and a shared record
// in the invocation store that survives process boundaries. A cancel
// request updates the shared record, publishes a signal on the
// invocation's channel, and aborts locally when the execution is hosted
// here; any other instance hosting it reacts to the published signal.
// States only move forward (running, cancelling, cancelled), so
// last-writer-wins on the shared record is sufficient.
package cancellation
