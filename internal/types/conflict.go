package types

// Severity is the ordinal risk classification for an ingredient interaction.
// Ordering matters: CRITICAL > WARNING > ADVICE > SAFE.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL" // High risk of barrier damage or chemical burn
	SeverityWarning  Severity = "WARNING"  // Ingredients cancel each other out
	SeverityAdvice   Severity = "ADVICE"   // Suboptimal layering order
	SeveritySafe     Severity = "SAFE"     // No known interaction
)

// Rank returns the sort rank of a severity, lower is more severe.
// Unknown severities sort last.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	case SeverityAdvice:
		return 2
	case SeveritySafe:
		return 3
	default:
		return 4
	}
}

// MoreSevere reports whether s outranks other.
func (s Severity) MoreSevere(other Severity) bool {
	return s.Rank() < other.Rank()
}

// ConflictRule is one known pairwise ingredient interaction. Rules are loaded
// once at startup and never mutated; IngredientA and IngredientB are canonical
// INCI-style names and the alias lists catch formulation variants.
type ConflictRule struct {
	IngredientA           string   `json:"ingredient_a"`
	IngredientAAliases    []string `json:"ingredient_a_aliases"`
	IngredientB           string   `json:"ingredient_b"`
	IngredientBAliases    []string `json:"ingredient_b_aliases"`
	Severity              Severity `json:"severity"`
	InteractionType       string   `json:"interaction_type"`
	Reasoning             string   `json:"reasoning"`
	RecommendedAdjustment string   `json:"recommended_adjustment"`
	Source                string   `json:"source"`
}

// Conflict is a finding produced at evaluation time. IngredientA is always the
// side found in the candidate product, IngredientB the side found in the
// existing routine.
type Conflict struct {
	Severity              Severity `json:"severity"`
	IngredientA           string   `json:"ingredient_a"`
	IngredientB           string   `json:"ingredient_b"`
	InteractionType       string   `json:"interaction_type"`
	Reasoning             string   `json:"reasoning"`
	RecommendedAdjustment string   `json:"recommended_adjustment"`
	Source                string   `json:"source"`
	ProductName           string   `json:"product_name,omitempty"`
}

// SafetyVerdict aggregates every conflict found across all retrieved
// candidates into one overall risk decision.
// Invariant: Blocked is true iff OverallSeverity == SeverityCritical.
type SafetyVerdict struct {
	OverallSeverity Severity   `json:"overall_severity"`
	Conflicts       []Conflict `json:"conflicts"`
	Blocked         bool       `json:"blocked"`
}

// CriticalConflicts returns only the CRITICAL findings, preserving order.
func (v SafetyVerdict) CriticalConflicts() []Conflict {
	var out []Conflict
	for _, c := range v.Conflicts {
		if c.Severity == SeverityCritical {
			out = append(out, c)
		}
	}
	return out
}
