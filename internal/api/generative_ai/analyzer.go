package generativeAI

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/skinsage/skinsage/internal/types"
)

// FormulationAnalyzer is the optional model-based second safety tier. It looks
// for interactions the rule table does not cover. The pipeline is correct
// without it; callers treat a nil analyzer or a failed call as "no extra
// findings".
type FormulationAnalyzer struct {
	llm    LanguageModel
	logger *slog.Logger
}

func NewFormulationAnalyzer(llm LanguageModel, logger *slog.Logger) *FormulationAnalyzer {
	return &FormulationAnalyzer{llm: llm, logger: logger}
}

type analyzerFinding struct {
	Severity              string `json:"severity"`
	IngredientA           string `json:"ingredient_a"`
	IngredientB           string `json:"ingredient_b"`
	InteractionType       string `json:"interaction_type"`
	Reasoning             string `json:"reasoning"`
	RecommendedAdjustment string `json:"recommended_adjustment"`
	ProductName           string `json:"product_name"`
}

// Analyze asks the model for interactions between each candidate formulation
// and the shelf. The model only ever adds findings on top of the rule tier,
// and anything it returns with an unknown severity is discarded.
func (a *FormulationAnalyzer) Analyze(ctx context.Context, candidates []types.Product, shelfIngredients []string) ([]types.Conflict, error) {
	var sb strings.Builder
	sb.WriteString("You are a cosmetic chemist. The user's current routine contains these ingredients:\n")
	sb.WriteString(strings.Join(shelfIngredients, ", "))
	sb.WriteString("\n\nCandidate products and their full INCI lists:\n")
	for _, p := range candidates {
		fmt.Fprintf(&sb, "- %s: %s\n", p.Name, strings.Join(p.Ingredients, ", "))
	}
	sb.WriteString(`
List any harmful or efficacy-reducing interactions between a candidate and the routine
that a simple pairwise rule table would miss. Respond with a JSON array only, each
element: {"severity": "CRITICAL"|"WARNING"|"ADVICE", "ingredient_a": "...",
"ingredient_b": "...", "interaction_type": "...", "reasoning": "...",
"recommended_adjustment": "...", "product_name": "..."}.
Return [] if there are none.`)

	text, err := a.llm.Invoke(ctx, sb.String())
	if err != nil {
		return nil, fmt.Errorf("formulation analysis call failed: %w", err)
	}

	// Models wrap JSON in code fences often enough to strip them here.
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	var findings []analyzerFinding
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &findings); err != nil {
		return nil, fmt.Errorf("unparseable formulation analysis response: %w", err)
	}

	var conflicts []types.Conflict
	for _, f := range findings {
		severity := types.Severity(strings.ToUpper(f.Severity))
		switch severity {
		case types.SeverityCritical, types.SeverityWarning, types.SeverityAdvice:
		default:
			continue
		}
		conflicts = append(conflicts, types.Conflict{
			Severity:              severity,
			IngredientA:           f.IngredientA,
			IngredientB:           f.IngredientB,
			InteractionType:       f.InteractionType,
			Reasoning:             f.Reasoning,
			RecommendedAdjustment: f.RecommendedAdjustment,
			Source:                "Model Analysis",
			ProductName:           f.ProductName,
		})
	}
	return conflicts, nil
}
