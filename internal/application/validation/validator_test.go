package validation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eenlars/lucky-sub006/internal/application/validation"
	"github.com/eenlars/lucky-sub006/pkg/domain"
)

func testNode(id string, handOffs ...string) domain.NodeConfig {
	return domain.NodeConfig{
		NodeID:       id,
		Description:  "node " + id,
		SystemPrompt: "you are " + id,
		Model:        domain.ModelRef{Kind: domain.ModelRefTier, Tier: domain.TierLow},
		MCPTools:     []string{},
		CodeTools:    []string{},
		HandOffs:     handOffs,
	}
}

func testConfig(entry string, nodes ...domain.NodeConfig) *domain.WorkflowConfig {
	return &domain.WorkflowConfig{Nodes: nodes, EntryNodeID: entry}
}

func testValidator() *validation.Validator {
	return validation.NewValidator(validation.Options{
		Tools: domain.ToolCatalog{
			Active:   []string{"search", "fetch", "calculator", "browser"},
			Inactive: []string{"legacy_scraper"},
		},
		Models: domain.ModelCatalog{Models: []domain.ModelInfo{
			{ID: "claude-3-5-haiku-latest", Gateway: "anthropic"},
			{ID: "old-model", Gateway: "anthropic", Inactive: true},
		}},
		MaxMCPToolsPerNode:    2,
		MaxCodeToolsPerNode:   2,
		EnforceUniqueTools:    true,
		EnforceUniqueToolSets: true,
		EnforceToolLimits:     true,
		EnforceActiveTools:    true,
		EnforceModels:         true,
	})
}

func TestValidate_LinearChainPasses(t *testing.T) {
	v := testValidator()
	cfg := testConfig("a",
		testNode("a", "b"),
		testNode("b", "c"),
		testNode("c", domain.TerminalNodeID),
	)
	assert.Empty(t, v.Validate(cfg))
}

func TestValidate_DiamondPasses(t *testing.T) {
	v := testValidator()
	cfg := testConfig("a",
		testNode("a", "b", "c"),
		testNode("b", "d"),
		testNode("c", "d"),
		testNode("d", domain.TerminalNodeID),
	)
	assert.Empty(t, v.Validate(cfg))
}

func TestValidate_EmptyConfig(t *testing.T) {
	v := testValidator()
	assert.Equal(t, []string{"workflow config is nil"}, v.Validate(nil))
	assert.Equal(t, []string{"workflow must have at least one node"},
		v.Validate(&domain.WorkflowConfig{EntryNodeID: "a"}))
}

func TestCheckCycles(t *testing.T) {
	t.Run("two node cycle", func(t *testing.T) {
		v := testValidator()
		cfg := testConfig("a",
			testNode("a", "b"),
			testNode("b", "a", domain.TerminalNodeID),
		)
		findings := v.Validate(cfg)
		assert.Contains(t, findings, "workflow contains a cycle")
	})

	t.Run("self loop is a one node cycle", func(t *testing.T) {
		v := testValidator()
		cfg := testConfig("a",
			testNode("a", "a", domain.TerminalNodeID),
		)
		findings := v.Validate(cfg)
		assert.Contains(t, findings, "workflow contains a cycle")
	})

	t.Run("reported once per config", func(t *testing.T) {
		v := testValidator()
		cfg := testConfig("a",
			testNode("a", "b"),
			testNode("b", "a", "c"),
			testNode("c", "b", domain.TerminalNodeID),
		)
		count := 0
		for _, f := range v.Validate(cfg) {
			if f == "workflow contains a cycle" {
				count++
			}
		}
		assert.Equal(t, 1, count)
	})

	t.Run("suppressed when cycles allowed", func(t *testing.T) {
		v := validation.NewValidator(validation.Options{AllowCycles: true})
		cfg := testConfig("a",
			testNode("a", "b"),
			testNode("b", "a", domain.TerminalNodeID),
		)
		for _, f := range v.Validate(cfg) {
			assert.NotEqual(t, "workflow contains a cycle", f)
		}
	})

	t.Run("diamond is not a cycle", func(t *testing.T) {
		v := testValidator()
		cfg := testConfig("a",
			testNode("a", "b", "c"),
			testNode("b", "d"),
			testNode("c", "d"),
			testNode("d", domain.TerminalNodeID),
		)
		assert.NotContains(t, v.Validate(cfg), "workflow contains a cycle")
	})
}

func TestCheckReachability(t *testing.T) {
	v := testValidator()
	cfg := testConfig("a",
		testNode("a", domain.TerminalNodeID),
		testNode("island", domain.TerminalNodeID),
	)
	findings := v.Validate(cfg)
	assert.Contains(t, findings, `node "island" is not reachable from entry`)
	assert.NotContains(t, findings, `node "a" is not reachable from entry`)
}

func TestCheckTerminalReachability(t *testing.T) {
	v := validation.NewValidator(validation.Options{AllowCycles: true})
	// a and b loop forever; no path reaches the terminal sentinel.
	cfg := testConfig("a",
		testNode("a", "b"),
		testNode("b", "a"),
	)
	findings := v.Validate(cfg)
	assert.Contains(t, findings, `no path from entry "a" reaches "end"`)
}

func TestCheckEntryNode(t *testing.T) {
	t.Run("missing entry id", func(t *testing.T) {
		v := testValidator()
		cfg := testConfig("", testNode("a", domain.TerminalNodeID))
		assert.Contains(t, v.Validate(cfg), "entryNodeId is required")
	})

	t.Run("entry not in workflow", func(t *testing.T) {
		v := testValidator()
		cfg := testConfig("ghost", testNode("a", domain.TerminalNodeID))
		assert.Contains(t, v.Validate(cfg), `entry node "ghost" not found in workflow`)
	})
}

func TestCheckDuplicateNodeIDs(t *testing.T) {
	v := testValidator()
	cfg := testConfig("a",
		testNode("a", "b"),
		testNode("b", domain.TerminalNodeID),
		testNode("b", domain.TerminalNodeID),
	)
	assert.Contains(t, v.Validate(cfg), `duplicate node id "b"`)
}

func TestCheckDuplicateHandoffs(t *testing.T) {
	v := testValidator()
	cfg := testConfig("a",
		testNode("a", "b", "b"),
		testNode("b", domain.TerminalNodeID),
	)
	assert.Contains(t, v.Validate(cfg), `node "a" lists duplicate handoff target "b"`)
}

func TestCheckFields(t *testing.T) {
	v := testValidator()
	n := domain.NodeConfig{
		NodeID:   "a",
		Model:    domain.ModelRef{Kind: domain.ModelRefTier, Tier: domain.TierLow},
		HandOffs: []string{domain.TerminalNodeID},
		// Description, SystemPrompt empty; MCPTools, CodeTools nil.
	}
	findings := v.Validate(testConfig("a", n))
	assert.Contains(t, findings,
		"node a is missing required fields: description, systemPrompt, mcpTools, codeTools")
}

func TestCheckFields_EmptySlicesAreValid(t *testing.T) {
	v := testValidator()
	cfg := testConfig("a", testNode("a", domain.TerminalNodeID))
	assert.Empty(t, v.Validate(cfg))
}

func TestCheckToolUniqueness(t *testing.T) {
	v := testValidator()
	na := testNode("a", "b")
	na.MCPTools = []string{"search"}
	nb := testNode("b", domain.TerminalNodeID)
	nb.CodeTools = []string{"search"}
	cfg := testConfig("a", na, nb)

	findings := v.Validate(cfg)
	assert.Contains(t, findings, `tool "search" is used by multiple nodes: a, b`)
}

func TestCheckUniqueToolSets(t *testing.T) {
	t.Run("identical sets", func(t *testing.T) {
		v := validation.NewValidator(validation.Options{EnforceUniqueToolSets: true})
		na := testNode("a", "b")
		na.MCPTools = []string{"search", "fetch"}
		nb := testNode("b", domain.TerminalNodeID)
		nb.MCPTools = []string{"fetch", "search"}
		cfg := testConfig("a", na, nb)

		assert.Contains(t, v.Validate(cfg), `nodes "a" and "b" have identical tool sets`)
	})

	t.Run("node repeats a tool", func(t *testing.T) {
		v := validation.NewValidator(validation.Options{EnforceUniqueToolSets: true})
		na := testNode("a", domain.TerminalNodeID)
		na.MCPTools = []string{"search", "search"}
		cfg := testConfig("a", na)

		assert.Contains(t, v.Validate(cfg), `node "a" lists tool "search" more than once`)
	})

	t.Run("empty sets may repeat", func(t *testing.T) {
		v := validation.NewValidator(validation.Options{EnforceUniqueToolSets: true})
		cfg := testConfig("a",
			testNode("a", "b"),
			testNode("b", domain.TerminalNodeID),
		)
		assert.Empty(t, v.Validate(cfg))
	})
}

func TestCheckToolLimits(t *testing.T) {
	t.Run("over the limit", func(t *testing.T) {
		v := testValidator()
		na := testNode("a", domain.TerminalNodeID)
		na.MCPTools = []string{"search", "fetch", "browser"}
		cfg := testConfig("a", na)

		assert.Contains(t, v.Validate(cfg), `node "a" has 3 MCP tools, limit is 2`)
	})

	t.Run("default tools are not counted", func(t *testing.T) {
		v := validation.NewValidator(validation.Options{
			Tools:              domain.ToolCatalog{Active: []string{"search", "fetch", "browser"}},
			MaxMCPToolsPerNode: 2,
			DefaultTools:       []string{"search"},
			EnforceToolLimits:  true,
			EnforceActiveTools: true,
		})
		na := testNode("a", domain.TerminalNodeID)
		na.MCPTools = []string{"search", "fetch", "browser"}
		cfg := testConfig("a", na)

		assert.Empty(t, v.Validate(cfg))
	})
}

func TestCheckActiveTools(t *testing.T) {
	v := testValidator()
	na := testNode("a", domain.TerminalNodeID)
	na.MCPTools = []string{"legacy_scraper"}
	na.CodeTools = []string{"made_up"}
	cfg := testConfig("a", na)

	findings := v.Validate(cfg)
	assert.Contains(t, findings, `node "a" references inactive tool "legacy_scraper"`)
	assert.Contains(t, findings, `node "a" references unknown tool "made_up"`)
}

func TestCheckModels(t *testing.T) {
	t.Run("tier references always pass", func(t *testing.T) {
		v := testValidator()
		cfg := testConfig("a", testNode("a", domain.TerminalNodeID))
		assert.Empty(t, v.Validate(cfg))
	})

	t.Run("unknown literal", func(t *testing.T) {
		v := testValidator()
		na := testNode("a", domain.TerminalNodeID)
		na.Model = domain.ParseModelRef("gpt-99")
		cfg := testConfig("a", na)
		assert.Contains(t, v.Validate(cfg), `node "a" references unknown model "gpt-99"`)
	})

	t.Run("inactive literal", func(t *testing.T) {
		v := testValidator()
		na := testNode("a", domain.TerminalNodeID)
		na.Model = domain.ParseModelRef("old-model")
		cfg := testConfig("a", na)
		assert.Contains(t, v.Validate(cfg), `node "a" references inactive model "old-model"`)
	})

	t.Run("known literal passes", func(t *testing.T) {
		v := testValidator()
		na := testNode("a", domain.TerminalNodeID)
		na.Model = domain.ParseModelRef("claude-3-5-haiku-latest")
		cfg := testConfig("a", na)
		assert.Empty(t, v.Validate(cfg))
	})
}

func TestCheckHierarchy(t *testing.T) {
	t.Run("dangling reference reported with role", func(t *testing.T) {
		v := validation.NewValidator(validation.Options{
			Mode: domain.CoordinationHierarchical,
		})
		cfg := testConfig("boss",
			testNode("boss", "worker1", "ghost"),
			testNode("worker1", domain.TerminalNodeID),
		)
		findings := v.Validate(cfg)
		assert.Contains(t, findings, `orchestrator "boss" hands off to unknown node "ghost"`)
	})

	t.Run("noop under sequential mode", func(t *testing.T) {
		v := validation.NewValidator(validation.Options{
			Mode: domain.CoordinationSequential,
		})
		cfg := testConfig("boss",
			testNode("boss", "ghost"),
			testNode("worker1", domain.TerminalNodeID),
		)
		for _, f := range v.Validate(cfg) {
			assert.NotContains(t, f, "hands off to unknown node")
		}
	})
}

func TestValidate_RoundTripSingleViolation(t *testing.T) {
	// A valid config altered with exactly one defect yields exactly the
	// finding for that defect, then passes again once repaired.
	v := testValidator()
	good := func() *domain.WorkflowConfig {
		return testConfig("a",
			testNode("a", "b"),
			testNode("b", domain.TerminalNodeID),
		)
	}
	require.Empty(t, v.Validate(good()))

	broken := good()
	broken.Nodes[1].HandOffs = []string{domain.TerminalNodeID, domain.TerminalNodeID}
	findings := v.Validate(broken)
	require.Len(t, findings, 1)
	assert.Equal(t, `node "b" lists duplicate handoff target "end"`, findings[0])

	broken.Nodes[1].HandOffs = []string{domain.TerminalNodeID}
	assert.Empty(t, v.Validate(broken))
}

func TestValidateStrict(t *testing.T) {
	v := testValidator()

	err := v.ValidateStrict(testConfig("a", testNode("a", "a")))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidWorkflow)

	assert.NoError(t, v.ValidateStrict(testConfig("a", testNode("a", domain.TerminalNodeID))))
}
