package domain

import "encoding/json"

// Tier is a coarse cost/capability bucket used to pick a concrete model
// without hard-coding its identifier.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// Speed is a coarse latency category carried by the model catalog.
type Speed string

const (
	SpeedFast   Speed = "fast"
	SpeedMedium Speed = "medium"
	SpeedSlow   Speed = "slow"
)

// ModelRefKind discriminates how a node's model field should be resolved.
type ModelRefKind string

const (
	// ModelRefLiteral names a concrete model identifier.
	ModelRefLiteral ModelRefKind = "literal"
	// ModelRefTier names a symbolic tier resolved against the user's
	// enabled models at run time.
	ModelRefTier ModelRefKind = "tier"
)

// ModelRef is the tagged form of a node's model field. The kind is decided
// once when the config is loaded so resolution code never re-parses
// strings.
type ModelRef struct {
	Kind ModelRefKind `json:"kind"`
	ID   string       `json:"id,omitempty"`
	Tier Tier         `json:"tier,omitempty"`
}

// IsZero reports whether the reference is absent.
func (r ModelRef) IsZero() bool {
	return r.Kind == "" && r.ID == "" && r.Tier == ""
}

// String returns the wire form the reference was parsed from.
func (r ModelRef) String() string {
	if r.Kind == ModelRefTier {
		return string(r.Tier)
	}
	return r.ID
}

// MarshalJSON writes the reference back in its wire form, a raw string.
func (r ModelRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON classifies the raw wire string once at load time.
func (r *ModelRef) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = ParseModelRef(raw)
	return nil
}

// ParseModelRef classifies a raw model string. The tier keywords
// low/medium/high become tier references; everything else is a literal id.
func ParseModelRef(raw string) ModelRef {
	switch Tier(raw) {
	case TierLow, TierMedium, TierHigh:
		return ModelRef{Kind: ModelRefTier, Tier: Tier(raw)}
	}
	if raw == "" {
		return ModelRef{}
	}
	return ModelRef{Kind: ModelRefLiteral, ID: raw}
}

// ModelInfo describes one entry of the model catalog.
type ModelInfo struct {
	ID             string  `json:"id"`
	Gateway        string  `json:"gateway"`
	PricingTier    Tier    `json:"pricingTier"`
	Intelligence   int     `json:"intelligence"`
	Speed          Speed   `json:"speed"`
	RuntimeEnabled bool    `json:"runtimeEnabled"`
	Inactive       bool    `json:"inactive"`
	CostPerKTokens float64 `json:"costPerKTokens,omitempty"`
}

// ModelCatalog is the static model -> gateway catalog, passed explicitly
// into the validator and resolver rather than read from a global.
type ModelCatalog struct {
	Models []ModelInfo
}

// Lookup returns the catalog entry for a model id.
func (c ModelCatalog) Lookup(id string) (ModelInfo, bool) {
	for _, m := range c.Models {
		if m.ID == id {
			return m, true
		}
	}
	return ModelInfo{}, false
}

// ToolCatalog is the known tool set injected into the validator. Tools in
// Inactive are known but may not be referenced by any node.
type ToolCatalog struct {
	Active   []string
	Inactive []string
}

// IsActive reports whether the tool is in the active catalog.
func (c ToolCatalog) IsActive(name string) bool {
	for _, t := range c.Active {
		if t == name {
			return true
		}
	}
	return false
}

// IsInactive reports whether the tool is known but disabled.
func (c ToolCatalog) IsInactive(name string) bool {
	for _, t := range c.Inactive {
		if t == name {
			return true
		}
	}
	return false
}
