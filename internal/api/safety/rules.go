package safety

import "github.com/skinsage/skinsage/internal/types"

// ConflictRules is the static table of known ingredient interaction pairings.
// It is read-only configuration: loaded once, never mutated at runtime.
// Sources are citation tags, not URLs.
var ConflictRules = []types.ConflictRule{
	{
		IngredientA:           "RETINOL",
		IngredientAAliases:    []string{"Retinyl Palmitate", "Tretinoin", "Adapalene", "Retinaldehyde", "Retin-A", "Differin"},
		IngredientB:           "GLYCOLIC ACID",
		IngredientBAliases:    []string{"AHA", "Alpha Hydroxy Acid", "Lactic Acid", "Mandelic Acid"},
		Severity:              types.SeverityCritical,
		InteractionType:       "irritation",
		Reasoning:             "Combining retinoids with AHAs causes severe barrier damage and irritation.",
		RecommendedAdjustment: "Use Retinol PM only; move AHA to morning or alternate days.",
		Source:                "AAD Guidelines",
	},
	{
		IngredientA:           "RETINOL",
		IngredientAAliases:    []string{"Retinyl Palmitate", "Tretinoin", "Adapalene"},
		IngredientB:           "BENZOYL PEROXIDE",
		IngredientBAliases:    []string{"BPO", "Benzoyl"},
		Severity:              types.SeverityCritical,
		InteractionType:       "deactivation",
		Reasoning:             "Benzoyl Peroxide oxidizes and deactivates retinoids, making them ineffective.",
		RecommendedAdjustment: "Apply BPO in AM and Retinol in PM, or use on alternate days.",
		Source:                "Paula's Choice",
	},
	{
		IngredientA:           "L-ASCORBIC ACID",
		IngredientAAliases:    []string{"Vitamin C", "Ascorbyl Glucoside", "Ascorbic Acid", "Sodium Ascorbyl Phosphate"},
		IngredientB:           "NIACINAMIDE",
		IngredientBAliases:    []string{"Nicotinamide", "Vitamin B3"},
		Severity:              types.SeverityWarning,
		InteractionType:       "reduced_efficacy",
		Reasoning:             "May reduce efficacy of Vitamin C at high concentrations (debated, but worth noting).",
		RecommendedAdjustment: "Layer with a wait time of 15 minutes, or use at different times of day.",
		Source:                "Cosmetic Chemist",
	},
	{
		IngredientA:           "L-ASCORBIC ACID",
		IngredientAAliases:    []string{"Vitamin C", "Ascorbic Acid"},
		IngredientB:           "COPPER PEPTIDES",
		IngredientBAliases:    []string{"GHK-Cu", "Copper Tripeptide"},
		Severity:              types.SeverityWarning,
		InteractionType:       "oxidation",
		Reasoning:             "Copper can oxidize Vitamin C, reducing its effectiveness.",
		RecommendedAdjustment: "Use Vitamin C in AM and Copper Peptides in PM.",
		Source:                "The Ordinary",
	},
	{
		IngredientA:           "BENZOYL PEROXIDE",
		IngredientAAliases:    []string{"BPO"},
		IngredientB:           "L-ASCORBIC ACID",
		IngredientBAliases:    []string{"Vitamin C", "Ascorbic Acid"},
		Severity:              types.SeverityCritical,
		InteractionType:       "deactivation",
		Reasoning:             "Benzoyl Peroxide oxidizes and completely neutralizes Vitamin C.",
		RecommendedAdjustment: "Never layer. Use BP in AM and Vitamin C in PM.",
		Source:                "Dermatology Research",
	},
	{
		IngredientA:           "GLYCOLIC ACID",
		IngredientAAliases:    []string{"AHA", "Alpha Hydroxy Acid"},
		IngredientB:           "SALICYLIC ACID",
		IngredientBAliases:    []string{"BHA", "Beta Hydroxy Acid"},
		Severity:              types.SeverityWarning,
		InteractionType:       "over-exfoliation",
		Reasoning:             "Layering multiple acids increases risk of over-exfoliation and barrier damage.",
		RecommendedAdjustment: "Use one acid per day, or on alternate days.",
		Source:                "Skincare by Hyram",
	},
	{
		IngredientA:           "HYDROQUINONE",
		IngredientAAliases:    []string{},
		IngredientB:           "BENZOYL PEROXIDE",
		IngredientBAliases:    []string{"BPO"},
		Severity:              types.SeverityCritical,
		InteractionType:       "staining",
		Reasoning:             "Causes dark staining on skin and severe irritation.",
		RecommendedAdjustment: "Never combine. Use on completely different days.",
		Source:                "FDA Warning",
	},
	{
		IngredientA:           "PEPTIDES",
		IngredientAAliases:    []string{"Matrixyl", "Argireline", "Copper Peptides", "Palmitoyl"},
		IngredientB:           "GLYCOLIC ACID",
		IngredientBAliases:    []string{"AHA", "Direct Acids", "Lactic Acid"},
		Severity:              types.SeverityWarning,
		InteractionType:       "breakdown",
		Reasoning:             "Acids can break down peptide bonds, reducing efficacy.",
		RecommendedAdjustment: "Apply peptides before acids, or use at different times.",
		Source:                "Cosmetic Formulator",
	},
	{
		IngredientA:           "RETINOL",
		IngredientAAliases:    []string{"Tretinoin", "Retinyl Palmitate"},
		IngredientB:           "SALICYLIC ACID",
		IngredientBAliases:    []string{"BHA", "Beta Hydroxy Acid"},
		Severity:              types.SeverityAdvice,
		InteractionType:       "sensitivity",
		Reasoning:             "May increase skin sensitivity when layered together.",
		RecommendedAdjustment: "Use Retinol PM and BHA AM, or alternate days.",
		Source:                "Dermatologist Advice",
	},
	{
		IngredientA:           "RETINOL",
		IngredientAAliases:    []string{"Tretinoin", "Adapalene", "Retinyl Palmitate"},
		IngredientB:           "VITAMIN C",
		IngredientBAliases:    []string{"L-Ascorbic Acid", "Ascorbic Acid"},
		Severity:              types.SeverityAdvice,
		InteractionType:       "timing",
		Reasoning:             "Both are powerful actives that work best at different pH levels.",
		RecommendedAdjustment: "Vitamin C in AM, Retinol in PM for optimal results.",
		Source:                "Dermatologist Consensus",
	},
	{
		IngredientA:           "NIACINAMIDE",
		IngredientAAliases:    []string{"Vitamin B3", "Nicotinamide"},
		IngredientB:           "GLYCOLIC ACID",
		IngredientBAliases:    []string{"AHA", "Alpha Hydroxy Acid"},
		Severity:              types.SeverityAdvice,
		InteractionType:       "flushing",
		Reasoning:             "May cause temporary flushing at high concentrations.",
		RecommendedAdjustment: "Apply AHA first, wait 15 minutes, then apply Niacinamide.",
		Source:                "Paula's Choice",
	},
	{
		IngredientA:           "EUK-134",
		IngredientAAliases:    []string{"EUK"},
		IngredientB:           "VITAMIN C",
		IngredientBAliases:    []string{"L-Ascorbic Acid", "Ascorbic Acid"},
		Severity:              types.SeverityWarning,
		InteractionType:       "instability",
		Reasoning:             "EUK can reduce Vitamin C stability.",
		RecommendedAdjustment: "Use at different times of day.",
		Source:                "The Ordinary",
	},
	{
		IngredientA:           "AZELAIC ACID",
		IngredientAAliases:    []string{"Azelaic"},
		IngredientB:           "RETINOL",
		IngredientBAliases:    []string{"Tretinoin", "Retinyl Palmitate"},
		Severity:              types.SeverityAdvice,
		InteractionType:       "sensitivity",
		Reasoning:             "May increase sensitivity when used together.",
		RecommendedAdjustment: "Introduce slowly; consider alternate day use.",
		Source:                "Dermatologist Advice",
	},
	{
		IngredientA:           "PHYSICAL SCRUB",
		IngredientAAliases:    []string{"Scrub", "Exfoliant Beads", "Walnut Shell"},
		IngredientB:           "GLYCOLIC ACID",
		IngredientBAliases:    []string{"AHA", "Chemical Exfoliant"},
		Severity:              types.SeverityWarning,
		InteractionType:       "over-exfoliation",
		Reasoning:             "Physical + chemical exfoliation risks micro-tears and barrier damage.",
		RecommendedAdjustment: "Never use on the same day. Choose one method per session.",
		Source:                "AAD Guidelines",
	},
	{
		IngredientA:           "RETINOL",
		IngredientAAliases:    []string{"Tretinoin", "Adapalene"},
		IngredientB:           "WAXING",
		IngredientBAliases:    []string{"Wax", "Hair Removal Wax"},
		Severity:              types.SeverityWarning,
		InteractionType:       "skin_lifting",
		Reasoning:             "Retinoids thin the skin barrier; waxing can cause skin lifting.",
		RecommendedAdjustment: "Stop retinoid use 5-7 days before waxing.",
		Source:                "Esthetician Guidelines",
	},
}
