// Package ports defines the interfaces between the orchestration core and
// its collaborators: event bus, shared invocation store, persistence,
// model gateway, and metrics. Adapters under pkg/adapters implement them;
// the application layer only depends on this package.
package ports
