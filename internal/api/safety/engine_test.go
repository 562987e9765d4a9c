package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skinsage/skinsage/internal/types"
)

func TestEngine_Evaluate_RetinolVsGlycolic(t *testing.T) {
	engine := NewEngine(ConflictRules)

	conflicts := engine.Evaluate(
		[]string{"Retinol", "Squalane"},
		[]string{"Glycolic Acid", "Water"},
	)

	require.NotEmpty(t, conflicts)
	assert.Equal(t, types.SeverityCritical, conflicts[0].Severity)
	assert.Equal(t, "RETINOL", conflicts[0].IngredientA)
	assert.Equal(t, "GLYCOLIC ACID", conflicts[0].IngredientB)
	assert.Equal(t, "irritation", conflicts[0].InteractionType)
}

func TestEngine_Evaluate_OrientationNormalized(t *testing.T) {
	engine := NewEngine(ConflictRules)

	// Same pair, reversed roles: the candidate now carries the acid.
	conflicts := engine.Evaluate(
		[]string{"Glycolic Acid"},
		[]string{"Retinol"},
	)

	require.NotEmpty(t, conflicts)
	// IngredientA must always be the candidate side.
	assert.Equal(t, "GLYCOLIC ACID", conflicts[0].IngredientA)
	assert.Equal(t, "RETINOL", conflicts[0].IngredientB)
	assert.Equal(t, types.SeverityCritical, conflicts[0].Severity)
}

func TestEngine_Evaluate_AliasMatching(t *testing.T) {
	engine := NewEngine(ConflictRules)

	t.Run("alias inside longer INCI entry", func(t *testing.T) {
		conflicts := engine.Evaluate(
			[]string{"Encapsulated Retinyl Palmitate Complex"},
			[]string{"Glycolic Acid"},
		)
		require.NotEmpty(t, conflicts)
		assert.Equal(t, "RETINOL", conflicts[0].IngredientA)
	})

	t.Run("percent-suffixed entry still matches", func(t *testing.T) {
		conflicts := engine.Evaluate(
			[]string{"Tretinoin"},
			[]string{"Lactic Acid 10%"},
		)
		require.NotEmpty(t, conflicts)
		assert.Equal(t, types.SeverityCritical, conflicts[0].Severity)
	})

	t.Run("case and whitespace insensitive", func(t *testing.T) {
		conflicts := engine.Evaluate(
			[]string{"  retinol  "},
			[]string{"GLYCOLIC ACID"},
		)
		require.NotEmpty(t, conflicts)
	})
}

func TestEngine_Evaluate_SeverityOrdering(t *testing.T) {
	engine := NewEngine(ConflictRules)

	// Niacinamide vs Vitamin C is WARNING; Retinol vs Glycolic is CRITICAL.
	// Candidate carries both triggers so both rules fire.
	conflicts := engine.Evaluate(
		[]string{"Niacinamide", "Retinol"},
		[]string{"L-Ascorbic Acid", "Glycolic Acid"},
	)

	require.GreaterOrEqual(t, len(conflicts), 2)
	for i := 1; i < len(conflicts); i++ {
		assert.LessOrEqual(t, conflicts[i-1].Severity.Rank(), conflicts[i].Severity.Rank(),
			"conflicts must be sorted most severe first")
	}
	assert.Equal(t, types.SeverityCritical, conflicts[0].Severity)
}

func TestEngine_Evaluate_Idempotent(t *testing.T) {
	engine := NewEngine(ConflictRules)
	candidate := []string{"Retinol", "Niacinamide"}
	routine := []string{"Glycolic Acid", "L-Ascorbic Acid"}

	first := engine.Evaluate(candidate, routine)
	second := engine.Evaluate(candidate, routine)

	assert.Equal(t, first, second)
}

func TestEngine_Evaluate_EmptyInputs(t *testing.T) {
	engine := NewEngine(ConflictRules)

	assert.Empty(t, engine.Evaluate(nil, nil))
	assert.Empty(t, engine.Evaluate([]string{"Retinol"}, nil))
	assert.Empty(t, engine.Evaluate(nil, []string{"Glycolic Acid"}))
	assert.Empty(t, engine.Evaluate([]string{"Water"}, []string{"Squalane"}))
}

func TestEngine_Evaluate_NoSelfConflictWithinCandidate(t *testing.T) {
	engine := NewEngine(ConflictRules)

	// Both halves of a known pair inside the candidate alone must not fire:
	// conflicts are cross-product between candidate and routine only.
	conflicts := engine.Evaluate(
		[]string{"Retinol", "Glycolic Acid"},
		[]string{"Water"},
	)

	assert.Empty(t, conflicts)
}
