package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/eenlars/lucky-sub006/pkg/domain"
)

// CheckCycles runs a depth-first traversal tracking the recursion stack.
// Any edge targeting a node already on the stack means the graph contains
// a cycle; a node handing off to itself is a one-node cycle caught the
// same way. Reported once per config. Suppressed when AllowCycles is set.
func (v *Validator) CheckCycles(cfg *domain.WorkflowConfig) []string {
	if v.opts.AllowCycles {
		return nil
	}

	const (
		unvisited = iota
		onStack
		done
	)
	state := make(map[string]int, len(cfg.Nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		if id == domain.TerminalNodeID {
			return false // implicit sink, no outgoing edges
		}
		node, ok := cfg.NodeByID(id)
		if !ok {
			return false // dangling edges are a different defect
		}
		state[id] = onStack
		for _, next := range node.HandOffs {
			switch state[next] {
			case onStack:
				return true
			case unvisited:
				if visit(next) {
					return true
				}
			}
		}
		state[id] = done
		return false
	}

	for _, n := range cfg.Nodes {
		if state[n.NodeID] == unvisited && visit(n.NodeID) {
			return []string{"workflow contains a cycle"}
		}
	}
	return nil
}

// reachableFrom computes the node set reachable from the entry via
// handoffs. The terminal sentinel is recorded but never expanded.
func reachableFrom(cfg *domain.WorkflowConfig, start string) map[string]bool {
	reached := make(map[string]bool)
	queue := []string{start}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if reached[id] {
			continue
		}
		reached[id] = true
		if id == domain.TerminalNodeID {
			continue
		}
		node, ok := cfg.NodeByID(id)
		if !ok {
			continue
		}
		queue = append(queue, node.HandOffs...)
	}
	return reached
}

// CheckReachability names every node that no handoff path from the entry
// reaches. A structural defect distinct from a cycle.
func (v *Validator) CheckReachability(cfg *domain.WorkflowConfig) []string {
	if cfg.EntryNodeID == "" {
		return nil // reported by CheckEntryNode
	}
	reached := reachableFrom(cfg, cfg.EntryNodeID)
	var findings []string
	for _, n := range cfg.Nodes {
		if !reached[n.NodeID] {
			findings = append(findings, fmt.Sprintf("node %q is not reachable from entry", n.NodeID))
		}
	}
	return findings
}

// CheckTerminalReachability verifies some path from the entry reaches the
// terminal sentinel. A graph can be fully connected yet never terminate.
func (v *Validator) CheckTerminalReachability(cfg *domain.WorkflowConfig) []string {
	if cfg.EntryNodeID == "" {
		return nil
	}
	if _, ok := cfg.NodeByID(cfg.EntryNodeID); !ok {
		return nil
	}
	reached := reachableFrom(cfg, cfg.EntryNodeID)
	if !reached[domain.TerminalNodeID] {
		return []string{fmt.Sprintf("no path from entry %q reaches %q", cfg.EntryNodeID, domain.TerminalNodeID)}
	}
	return nil
}

// CheckDuplicateHandoffs flags any target listed more than once within a
// single node's handoffs. Handoffs are semantically a set.
func (v *Validator) CheckDuplicateHandoffs(cfg *domain.WorkflowConfig) []string {
	var findings []string
	for _, n := range cfg.Nodes {
		seen := make(map[string]bool, len(n.HandOffs))
		reported := make(map[string]bool)
		for _, target := range n.HandOffs {
			if seen[target] && !reported[target] {
				findings = append(findings, fmt.Sprintf(
					"node %q lists duplicate handoff target %q", n.NodeID, target))
				reported[target] = true
			}
			seen[target] = true
		}
	}
	return findings
}

// CheckHierarchy validates orchestrator/worker structure under
// hierarchical coordination. The entry node is the orchestrator and every
// other node a worker; every handoff must resolve to an existing node or
// the terminal sentinel. Worker chains and diamonds are valid; only
// dangling references are defects. A no-op under sequential mode.
func (v *Validator) CheckHierarchy(cfg *domain.WorkflowConfig) []string {
	if v.opts.Mode != domain.CoordinationHierarchical {
		return nil
	}
	var findings []string
	for _, n := range cfg.Nodes {
		role := "worker"
		if n.NodeID == cfg.EntryNodeID {
			role = "orchestrator"
		}
		for _, target := range n.HandOffs {
			if target == domain.TerminalNodeID {
				continue
			}
			if _, ok := cfg.NodeByID(target); !ok {
				findings = append(findings, fmt.Sprintf(
					"%s %q hands off to unknown node %q", role, n.NodeID, target))
			}
		}
	}
	return findings
}

// CheckToolUniqueness enforces that no tool name is used by more than one
// node across the whole workflow, reporting the tool and every node using
// it.
func (v *Validator) CheckToolUniqueness(cfg *domain.WorkflowConfig) []string {
	users := make(map[string][]string)
	for _, n := range cfg.Nodes {
		for _, t := range append(append([]string{}, n.MCPTools...), n.CodeTools...) {
			if !containsStr(users[t], n.NodeID) {
				users[t] = append(users[t], n.NodeID)
			}
		}
	}
	tools := make([]string, 0, len(users))
	for t := range users {
		tools = append(tools, t)
	}
	sort.Strings(tools)

	var findings []string
	for _, t := range tools {
		if len(users[t]) > 1 {
			findings = append(findings, fmt.Sprintf(
				"tool %q is used by multiple nodes: %s", t, strings.Join(users[t], ", ")))
		}
	}
	return findings
}

// CheckUniqueToolSets enforces that no two nodes carry an identical
// combined tool set and that no node lists the same tool twice.
func (v *Validator) CheckUniqueToolSets(cfg *domain.WorkflowConfig) []string {
	var findings []string
	setOwners := make(map[string]string)
	for _, n := range cfg.Nodes {
		combined := append(append([]string{}, n.MCPTools...), n.CodeTools...)

		seen := make(map[string]bool, len(combined))
		for _, t := range combined {
			if seen[t] {
				findings = append(findings, fmt.Sprintf(
					"node %q lists tool %q more than once", n.NodeID, t))
			}
			seen[t] = true
		}

		if len(combined) == 0 {
			continue // empty tool sets may repeat
		}
		key := toolSetKey(combined)
		if owner, ok := setOwners[key]; ok {
			findings = append(findings, fmt.Sprintf(
				"nodes %q and %q have identical tool sets", owner, n.NodeID))
			continue
		}
		setOwners[key] = n.NodeID
	}
	return findings
}

// CheckToolLimits bounds each node's tool count per category after
// subtracting the always-allowed default tools.
func (v *Validator) CheckToolLimits(cfg *domain.WorkflowConfig) []string {
	defaults := make(map[string]bool, len(v.opts.DefaultTools))
	for _, t := range v.opts.DefaultTools {
		defaults[t] = true
	}
	countNonDefault := func(tools []string) int {
		n := 0
		for _, t := range tools {
			if !defaults[t] {
				n++
			}
		}
		return n
	}

	var findings []string
	for _, n := range cfg.Nodes {
		if v.opts.MaxMCPToolsPerNode > 0 {
			if c := countNonDefault(n.MCPTools); c > v.opts.MaxMCPToolsPerNode {
				findings = append(findings, fmt.Sprintf(
					"node %q has %d MCP tools, limit is %d", n.NodeID, c, v.opts.MaxMCPToolsPerNode))
			}
		}
		if v.opts.MaxCodeToolsPerNode > 0 {
			if c := countNonDefault(n.CodeTools); c > v.opts.MaxCodeToolsPerNode {
				findings = append(findings, fmt.Sprintf(
					"node %q has %d code tools, limit is %d", n.NodeID, c, v.opts.MaxCodeToolsPerNode))
			}
		}
	}
	return findings
}

// CheckActiveTools verifies every referenced tool belongs to the active
// catalog. Inactive tools and tools absent from the catalog are reported
// by name and owning node.
func (v *Validator) CheckActiveTools(cfg *domain.WorkflowConfig) []string {
	var findings []string
	for _, n := range cfg.Nodes {
		for _, t := range append(append([]string{}, n.MCPTools...), n.CodeTools...) {
			switch {
			case v.opts.Tools.IsActive(t):
				// ok
			case v.opts.Tools.IsInactive(t):
				findings = append(findings, fmt.Sprintf(
					"node %q references inactive tool %q", n.NodeID, t))
			default:
				findings = append(findings, fmt.Sprintf(
					"node %q references unknown tool %q", n.NodeID, t))
			}
		}
	}
	return findings
}

// CheckModels verifies every node's model reference is present and
// resolves to a known, non-inactive catalog entry. Tier references are
// resolved at run time against the user's enabled models and always pass
// here.
func (v *Validator) CheckModels(cfg *domain.WorkflowConfig) []string {
	var findings []string
	for _, n := range cfg.Nodes {
		switch n.Model.Kind {
		case domain.ModelRefTier:
			// resolved per user at execution time
		case domain.ModelRefLiteral:
			info, ok := v.opts.Models.Lookup(n.Model.ID)
			if !ok {
				findings = append(findings, fmt.Sprintf(
					"node %q references unknown model %q", n.NodeID, n.Model.ID))
			} else if info.Inactive {
				findings = append(findings, fmt.Sprintf(
					"node %q references inactive model %q", n.NodeID, n.Model.ID))
			}
		default:
			findings = append(findings, fmt.Sprintf("node %q has no model reference", n.NodeID))
		}
	}
	return findings
}

func toolSetKey(tools []string) string {
	sorted := append([]string{}, tools...)
	sort.Strings(sorted)
	return strings.Join(sorted, "\x00")
}

func containsStr(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
