// Package models resolves node model references to concrete gateways and
// performs tier-based fallback against a user's enabled model set. All
// selection is deterministic: identical inputs always yield the same
// model.
package models
