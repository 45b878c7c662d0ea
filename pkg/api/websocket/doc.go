// Package websocket provides real-time event streaming via WebSocket.
//
// Clients can connect to /api/v1/events/ws to receive workflow and node
// events as they happen, optionally filtered to one invocation.
package websocket
