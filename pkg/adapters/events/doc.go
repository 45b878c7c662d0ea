// Package events provides event bus implementations.
//
// Implementations:
//   - redis: Redis pub/sub channels, one per topic
//   - memory: In-memory synchronous dispatch for testing
package events
