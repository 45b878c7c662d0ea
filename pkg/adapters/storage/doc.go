// Package storage provides invocation and workflow record storage
// implementations.
//
// Implementations:
//   - redis: Redis with JSON serialization and TTL
//   - memory: In-memory for testing
package storage
