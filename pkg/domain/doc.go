// Package domain holds the shared data model of the workflow
// orchestration engine: declarative workflow graphs, model and tool
// catalogs, invocation cancellation state, events, and run results.
//
// All catalogs are plain structs injected where needed; nothing in this
// package carries ambient global state.
package domain
