package safety

import (
	"sort"
	"strings"

	"github.com/skinsage/skinsage/internal/types"
)

// Engine is the deterministic rule-based conflict matcher. It holds the
// immutable rule table and nothing else; Evaluate is a pure function of its
// inputs, called once per candidate in sequence so findings aggregate
// deterministically.
type Engine struct {
	rules []types.ConflictRule
}

// NewEngine returns an Engine over the given rule table. Pass ConflictRules
// for the production set.
func NewEngine(rules []types.ConflictRule) *Engine {
	return &Engine{rules: rules}
}

// normalizeIngredient prepares an ingredient name for matching.
func normalizeIngredient(ingredient string) string {
	return strings.ToUpper(strings.TrimSpace(ingredient))
}

// matchesIngredient reports whether ingredient matches the rule's canonical
// name or any alias. Canonical names match on exact equality; aliases match on
// substring containment in either direction, deliberately permissive so that
// formulation variants like "Retinyl Palmitate" buried inside a longer INCI
// entry still match.
func matchesIngredient(ingredient, canonical string, aliases []string) bool {
	normalized := normalizeIngredient(ingredient)
	if normalized == strings.ToUpper(canonical) {
		return true
	}
	for _, alias := range aliases {
		a := strings.ToUpper(alias)
		if strings.Contains(normalized, a) || strings.Contains(a, normalized) {
			return true
		}
	}
	return false
}

func anyMatches(ingredients []string, canonical string, aliases []string) bool {
	for _, ing := range ingredients {
		if matchesIngredient(ing, canonical, aliases) {
			return true
		}
	}
	return false
}

// Evaluate checks a candidate product's ingredient list against the combined
// routine ingredients and returns every rule finding, oriented so that
// IngredientA is always the side present in the candidate. Each rule is tested
// in both directions; a rule can therefore fire at most twice per call, once
// per orientation. The result is stable-sorted by severity, CRITICAL first,
// with rule order preserved among equal severities.
//
// Empty or nil inputs simply produce no findings.
func (e *Engine) Evaluate(candidateIngredients, routineIngredients []string) []types.Conflict {
	var conflicts []types.Conflict

	for _, rule := range e.rules {
		candidateHasA := anyMatches(candidateIngredients, rule.IngredientA, rule.IngredientAAliases)
		routineHasB := anyMatches(routineIngredients, rule.IngredientB, rule.IngredientBAliases)

		if candidateHasA && routineHasB {
			conflicts = append(conflicts, types.Conflict{
				Severity:              rule.Severity,
				IngredientA:           rule.IngredientA,
				IngredientB:           rule.IngredientB,
				InteractionType:       rule.InteractionType,
				Reasoning:             rule.Reasoning,
				RecommendedAdjustment: rule.RecommendedAdjustment,
				Source:                rule.Source,
			})
			continue
		}

		// Reverse orientation: candidate carries B, routine carries A.
		candidateHasB := anyMatches(candidateIngredients, rule.IngredientB, rule.IngredientBAliases)
		routineHasA := anyMatches(routineIngredients, rule.IngredientA, rule.IngredientAAliases)

		if candidateHasB && routineHasA {
			conflicts = append(conflicts, types.Conflict{
				Severity:              rule.Severity,
				IngredientA:           rule.IngredientB, // swap so A stays the candidate side
				IngredientB:           rule.IngredientA,
				InteractionType:       rule.InteractionType,
				Reasoning:             rule.Reasoning,
				RecommendedAdjustment: rule.RecommendedAdjustment,
				Source:                rule.Source,
			})
		}
	}

	sort.SliceStable(conflicts, func(i, j int) bool {
		return conflicts[i].Severity.Rank() < conflicts[j].Severity.Rank()
	})

	return conflicts
}
