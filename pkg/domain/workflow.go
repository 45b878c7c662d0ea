package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// TerminalNodeID is the sentinel handoff target marking the end of a
// workflow path. It is an implicit sink: no NodeConfig ever carries it.
const TerminalNodeID = "end"

// HandOffType controls how a node with more than one handoff dispatches
// its successors.
type HandOffType string

const (
	// HandOffSequential invokes successors one after another, each seeing
	// the previous successor's output.
	HandOffSequential HandOffType = "sequential"
	// HandOffParallel invokes all successors concurrently against the same
	// input and joins before the graph continues.
	HandOffParallel HandOffType = "parallel"
)

// CoordinationMode selects how node roles are interpreted during
// validation and execution.
type CoordinationMode string

const (
	CoordinationSequential   CoordinationMode = "sequential"
	CoordinationHierarchical CoordinationMode = "hierarchical"
)

// NodeConfig is one vertex of the declarative workflow graph.
type NodeConfig struct {
	NodeID       string            `json:"nodeId"`
	Description  string            `json:"description"`
	SystemPrompt string            `json:"systemPrompt"`
	Model        ModelRef          `json:"modelName"`
	MCPTools     []string          `json:"mcpTools"`
	CodeTools    []string          `json:"codeTools"`
	HandOffs     []string          `json:"handOffs"`
	Memory       map[string]string `json:"memory,omitempty"`
	HandOffType  HandOffType       `json:"handOffType,omitempty"`
}

// WorkflowConfig is the declarative graph: a set of nodes plus an entry
// point. Immutable once validated; identified by its content hash.
type WorkflowConfig struct {
	Nodes       []NodeConfig `json:"nodes"`
	EntryNodeID string       `json:"entryNodeId"`
}

// NodeByID returns the node config with the given id, if present.
func (c *WorkflowConfig) NodeByID(id string) (*NodeConfig, bool) {
	for i := range c.Nodes {
		if c.Nodes[i].NodeID == id {
			return &c.Nodes[i], true
		}
	}
	return nil, false
}

// VersionID derives the content hash identifying this exact graph. Two
// configs with identical nodes and entry produce the same id.
func (c *WorkflowConfig) VersionID() string {
	data, err := json.Marshal(c)
	if err != nil {
		// WorkflowConfig contains only marshalable fields; this cannot
		// happen for a well-formed config.
		return ""
	}
	sum := sha256.Sum256(data)
	return "wfv-" + hex.EncodeToString(sum[:16])
}

// IOCase is one input/expected-output pair a workflow is evaluated
// against. Each case gets its own invocation.
type IOCase struct {
	Input    string `json:"input"`
	Expected string `json:"expected"`
}
