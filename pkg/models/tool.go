package models

// CostClass is the static cost/latency class declared by a tool.
// Lower values are cheaper and preferred when relevance ties.
type CostClass int

const (
	// CostLow marks cheap, low-latency tools.
	CostLow CostClass = iota
	// CostMedium marks tools with moderate cost or latency.
	CostMedium
	// CostHigh marks expensive or slow tools.
	CostHigh
)

// String returns a human-readable representation of the cost class.
func (c CostClass) String() string {
	switch c {
	case CostLow:
		return "low"
	case CostMedium:
		return "medium"
	case CostHigh:
		return "high"
	default:
		return "unknown"
	}
}

// ParseCostClass converts a config string into a CostClass.
// Unknown values map to CostMedium.
func ParseCostClass(s string) CostClass {
	switch s {
	case "low":
		return CostLow
	case "high":
		return CostHigh
	default:
		return CostMedium
	}
}

// RelevanceTier ranks how well a tool matches a task node.
type RelevanceTier int

const (
	// TierLow is a registry default or general-purpose match.
	TierLow RelevanceTier = iota
	// TierMedium is a partial or intent-only match.
	TierMedium
	// TierHigh is an exact keyword/domain match.
	TierHigh
)

// String returns a human-readable representation of the tier.
func (t RelevanceTier) String() string {
	switch t {
	case TierHigh:
		return "high"
	case TierMedium:
		return "medium"
	case TierLow:
		return "low"
	default:
		return "unknown"
	}
}

// ToolDescriptor describes one external capability provider.
// Descriptors are created at registry load and updated only by a
// configuration reload; task execution never mutates them.
type ToolDescriptor struct {
	// Name is the unique tool name.
	Name string `json:"name" yaml:"name"`
	// Operations is the declared operation vocabulary of the tool.
	Operations []string `json:"operations" yaml:"operations"`
	// Params is the parameter schema: name to expected type.
	Params map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
	// Cost is the declared cost/latency class.
	Cost CostClass `json:"cost" yaml:"-"`
	// Enabled indicates whether the tool may be invoked.
	Enabled bool `json:"enabled" yaml:"enabled"`
	// GeneralPurpose marks a registry default that matches any node at Low tier.
	GeneralPurpose bool `json:"general_purpose,omitempty" yaml:"general_purpose,omitempty"`
}

// Supports returns true if the tool declares the given operation keyword.
func (d *ToolDescriptor) Supports(op string) bool {
	for _, o := range d.Operations {
		if o == op {
			return true
		}
	}
	return false
}
