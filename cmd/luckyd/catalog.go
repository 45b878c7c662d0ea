package main

import "github.com/eenlars/lucky-sub006/pkg/domain"

// defaultModelCatalog is the static model catalog served to the
// validator and resolver. Gateways and tiers mirror the Anthropic
// lineup; entries can be disabled without removing them.
func defaultModelCatalog() domain.ModelCatalog {
	return domain.ModelCatalog{
		Models: []domain.ModelInfo{
			{
				ID:             "claude-3-5-haiku-latest",
				Gateway:        "anthropic",
				PricingTier:    domain.TierLow,
				Intelligence:   5,
				Speed:          domain.SpeedFast,
				RuntimeEnabled: true,
			},
			{
				ID:             "claude-sonnet-4-20250514",
				Gateway:        "anthropic",
				PricingTier:    domain.TierMedium,
				Intelligence:   8,
				Speed:          domain.SpeedMedium,
				RuntimeEnabled: true,
			},
			{
				ID:             "claude-opus-4-20250514",
				Gateway:        "anthropic",
				PricingTier:    domain.TierHigh,
				Intelligence:   10,
				Speed:          domain.SpeedSlow,
				RuntimeEnabled: true,
			},
		},
	}
}

// defaultToolCatalog lists the tools nodes may reference. Inactive tools
// are known names that validation rejects.
func defaultToolCatalog() domain.ToolCatalog {
	return domain.ToolCatalog{
		Active: []string{
			"search", "fetch", "calculator", "filesystem", "browser",
			"js_executor", "csv_reader", "summarizer",
		},
		Inactive: []string{
			"legacy_scraper", "shell_exec",
		},
	}
}

// enabledModels filters the catalog down to runtime-enabled entries.
func enabledModels(catalog domain.ModelCatalog) []domain.ModelInfo {
	out := make([]domain.ModelInfo, 0, len(catalog.Models))
	for _, m := range catalog.Models {
		if m.RuntimeEnabled && !m.Inactive {
			out = append(out, m)
		}
	}
	return out
}
