package validation

import (
	"fmt"
	"strings"

	"github.com/eenlars/lucky-sub006/pkg/domain"
)

// Options configures which checks run and the catalogs they check
// against. Catalogs are injected here so tests can validate against a
// small, explicit tool/model set.
type Options struct {
	// AllowCycles suppresses cycle detection entirely. Some execution
	// modes intentionally loop.
	AllowCycles bool

	// Mode selects the coordination structure. Hierarchical-mode checks
	// are a no-op under sequential mode.
	Mode domain.CoordinationMode

	Tools  domain.ToolCatalog
	Models domain.ModelCatalog

	// MaxMCPToolsPerNode and MaxCodeToolsPerNode bound a node's tool
	// count per category, after subtracting DefaultTools. Zero disables
	// the corresponding limit.
	MaxMCPToolsPerNode  int
	MaxCodeToolsPerNode int
	// DefaultTools are always allowed and never counted against limits.
	DefaultTools []string

	EnforceUniqueTools    bool
	EnforceUniqueToolSets bool
	EnforceToolLimits     bool
	EnforceActiveTools    bool
	EnforceModels         bool
}

// Validator runs structural checks against a workflow configuration. All
// checks are pure: they return findings as human-readable strings and
// never mutate the config. An empty result means the config passed.
type Validator struct {
	opts Options
}

// NewValidator creates a validator with the given options.
func NewValidator(opts Options) *Validator {
	if opts.Mode == "" {
		opts.Mode = domain.CoordinationSequential
	}
	return &Validator{opts: opts}
}

// Validate runs every enabled check and concatenates their findings.
// Callers decide whether to reject, repair, or merely warn.
func (v *Validator) Validate(cfg *domain.WorkflowConfig) []string {
	if cfg == nil {
		return []string{"workflow config is nil"}
	}
	if len(cfg.Nodes) == 0 {
		return []string{"workflow must have at least one node"}
	}

	var findings []string
	findings = append(findings, v.CheckFields(cfg)...)
	findings = append(findings, v.CheckEntryNode(cfg)...)
	findings = append(findings, v.CheckDuplicateNodeIDs(cfg)...)
	findings = append(findings, v.CheckCycles(cfg)...)
	findings = append(findings, v.CheckReachability(cfg)...)
	findings = append(findings, v.CheckTerminalReachability(cfg)...)
	findings = append(findings, v.CheckDuplicateHandoffs(cfg)...)
	findings = append(findings, v.CheckHierarchy(cfg)...)
	if v.opts.EnforceUniqueTools {
		findings = append(findings, v.CheckToolUniqueness(cfg)...)
	}
	if v.opts.EnforceUniqueToolSets {
		findings = append(findings, v.CheckUniqueToolSets(cfg)...)
	}
	if v.opts.EnforceToolLimits {
		findings = append(findings, v.CheckToolLimits(cfg)...)
	}
	if v.opts.EnforceActiveTools {
		findings = append(findings, v.CheckActiveTools(cfg)...)
	}
	if v.opts.EnforceModels {
		findings = append(findings, v.CheckModels(cfg)...)
	}
	return findings
}

// ValidateStrict runs Validate and converts any finding into an error
// carrying the full list, for callers that want to reject immediately.
func (v *Validator) ValidateStrict(cfg *domain.WorkflowConfig) error {
	findings := v.Validate(cfg)
	if len(findings) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", domain.ErrInvalidWorkflow, strings.Join(findings, "; "))
}

// CheckEntryNode verifies the entry node id is set and exists.
func (v *Validator) CheckEntryNode(cfg *domain.WorkflowConfig) []string {
	if cfg.EntryNodeID == "" {
		return []string{"entryNodeId is required"}
	}
	if _, ok := cfg.NodeByID(cfg.EntryNodeID); !ok {
		return []string{fmt.Sprintf("entry node %q not found in workflow", cfg.EntryNodeID)}
	}
	return nil
}

// CheckDuplicateNodeIDs verifies node ids are unique within the config.
func (v *Validator) CheckDuplicateNodeIDs(cfg *domain.WorkflowConfig) []string {
	var findings []string
	seen := make(map[string]bool, len(cfg.Nodes))
	for _, n := range cfg.Nodes {
		if n.NodeID == "" {
			continue // reported by CheckFields
		}
		if seen[n.NodeID] {
			findings = append(findings, fmt.Sprintf("duplicate node id %q", n.NodeID))
		}
		seen[n.NodeID] = true
	}
	return findings
}

// CheckFields verifies every node carries its required fields. Empty
// lists are valid; nil lists are not.
func (v *Validator) CheckFields(cfg *domain.WorkflowConfig) []string {
	var findings []string
	for _, n := range cfg.Nodes {
		var missing []string
		if n.NodeID == "" {
			missing = append(missing, "nodeId")
		}
		if n.Description == "" {
			missing = append(missing, "description")
		}
		if n.SystemPrompt == "" {
			missing = append(missing, "systemPrompt")
		}
		if n.Model.IsZero() {
			missing = append(missing, "modelName")
		}
		if n.MCPTools == nil {
			missing = append(missing, "mcpTools")
		}
		if n.CodeTools == nil {
			missing = append(missing, "codeTools")
		}
		if n.HandOffs == nil {
			missing = append(missing, "handOffs")
		}
		if len(missing) > 0 {
			id := n.NodeID
			if id == "" {
				id = "(unnamed)"
			}
			findings = append(findings, fmt.Sprintf(
				"node %s is missing required fields: %s", id, strings.Join(missing, ", ")))
		}
	}
	return findings
}
