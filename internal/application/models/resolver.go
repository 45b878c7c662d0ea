package models

import (
	"sort"

	"github.com/eenlars/lucky-sub006/pkg/domain"
)

// DefaultModelID is the hard-coded system fallback when tier selection
// finds no usable model at all.
const DefaultModelID = "claude-3-5-haiku-latest"

// maxTierCandidates bounds how many tier candidates survive ranking, to
// bound downstream prompt/context size.
const maxTierCandidates = 5

// Resolver maps node model references onto concrete gateways using an
// injected catalog. All methods are pure and deterministic.
type Resolver struct {
	catalog domain.ModelCatalog
}

// NewResolver creates a resolver over the given catalog.
func NewResolver(catalog domain.ModelCatalog) *Resolver {
	return &Resolver{catalog: catalog}
}

// RequiredGateways scans every node's model reference and returns the set
// of gateways the workflow needs plus, per gateway, the model ids
// requested on it. Duplicates are preserved in request order; the list is
// later used to size fallback reporting. Nodes whose model is absent from
// the catalog or empty are silently skipped: this is best-effort
// resolution, not a validation gate.
func (r *Resolver) RequiredGateways(cfg *domain.WorkflowConfig) ([]string, map[string][]string) {
	byGateway := make(map[string][]string)
	var order []string
	for _, n := range cfg.Nodes {
		if n.Model.Kind != domain.ModelRefLiteral || n.Model.ID == "" {
			continue
		}
		info, ok := r.catalog.Lookup(n.Model.ID)
		if !ok {
			continue
		}
		if _, seen := byGateway[info.Gateway]; !seen {
			order = append(order, info.Gateway)
		}
		byGateway[info.Gateway] = append(byGateway[info.Gateway], n.Model.ID)
	}
	return order, byGateway
}

// speedScore ranks the coarse speed categories for tier selection.
func speedScore(s domain.Speed) int {
	switch s {
	case domain.SpeedFast:
		return 3
	case domain.SpeedMedium:
		return 2
	case domain.SpeedSlow:
		return 1
	}
	return 0
}

func rank(m domain.ModelInfo) int {
	return m.Intelligence*10 + speedScore(m.Speed)
}

// PickUserModelForTier selects the best enabled model for a symbolic
// tier. Selection is greedy and total-ordered: filter to the tier, cap
// the candidate set, take the highest rank. Ties break by input order
// (stable sort) so the result is reproducible given identical inputs.
// With no tier match the best enabled model overall is used; with no
// enabled models at all the system default id is returned.
func PickUserModelForTier(tier domain.Tier, enabled []domain.ModelInfo) domain.ModelInfo {
	var candidates []domain.ModelInfo
	for _, m := range enabled {
		if m.PricingTier == tier && m.RuntimeEnabled {
			candidates = append(candidates, m)
		}
	}

	if len(candidates) > maxTierCandidates {
		sort.SliceStable(candidates, func(i, j int) bool {
			return rank(candidates[i]) > rank(candidates[j])
		})
		candidates = candidates[:maxTierCandidates]
	}

	if best, ok := pickBest(candidates); ok {
		return best
	}

	// No model in the requested tier: fall back to the best enabled model
	// overall, ignoring tier.
	var anyEnabled []domain.ModelInfo
	for _, m := range enabled {
		if m.RuntimeEnabled {
			anyEnabled = append(anyEnabled, m)
		}
	}
	if best, ok := pickBest(anyEnabled); ok {
		return best
	}

	return domain.ModelInfo{ID: DefaultModelID, PricingTier: tier}
}

// pickBest returns the highest-ranked model, first occurrence winning
// ties.
func pickBest(models []domain.ModelInfo) (domain.ModelInfo, bool) {
	if len(models) == 0 {
		return domain.ModelInfo{}, false
	}
	best := models[0]
	for _, m := range models[1:] {
		if rank(m) > rank(best) {
			best = m
		}
	}
	return best, true
}

// Fallback records a per-gateway substitution made during batch
// resolution: the models that were requested and the ones actually used.
type Fallback struct {
	Gateway   string   `json:"gateway"`
	Requested []string `json:"requested"`
	Used      []string `json:"used"`
}

// ResolveAvailableModels intersects, per gateway, the required model list
// with the user's enabled models, preserving the required list's order.
// An empty intersection on a gateway with any enabled models falls back
// to the full enabled list and records the substitution. A gateway with
// no enabled models is dropped entirely, so the caller never receives a
// gateway entry with zero usable models.
func ResolveAvailableModels(required map[string][]string, enabled map[string][]domain.ModelInfo) (map[string][]string, []Fallback) {
	resolved := make(map[string][]string)
	var fallbacks []Fallback

	gateways := make([]string, 0, len(required))
	for gw := range required {
		gateways = append(gateways, gw)
	}
	sort.Strings(gateways)

	for _, gw := range gateways {
		reqModels := required[gw]
		enabledModels := enabled[gw]
		if len(enabledModels) == 0 {
			continue
		}

		enabledSet := make(map[string]bool, len(enabledModels))
		for _, m := range enabledModels {
			enabledSet[m.ID] = true
		}

		var usable []string
		for _, id := range reqModels {
			if enabledSet[id] {
				usable = append(usable, id)
			}
		}

		if len(usable) == 0 {
			full := make([]string, 0, len(enabledModels))
			for _, m := range enabledModels {
				full = append(full, m.ID)
			}
			resolved[gw] = full
			fallbacks = append(fallbacks, Fallback{
				Gateway:   gw,
				Requested: append([]string{}, reqModels...),
				Used:      full,
			})
			continue
		}
		resolved[gw] = usable
	}

	return resolved, fallbacks
}
