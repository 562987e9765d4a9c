package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/skinsage/skinsage/internal/types"
)

func TestRoute(t *testing.T) {
	blocked := types.SafetyVerdict{OverallSeverity: types.SeverityCritical, Blocked: true}
	clear := types.SafetyVerdict{OverallSeverity: types.SeveritySafe}

	cases := []struct {
		name    string
		verdict types.SafetyVerdict
		query   string
		want    Decision
	}{
		{"blocked always wins", blocked, "where can I buy retinol", DecisionBlocked},
		{"blocked plain query", blocked, "recommend a serum", DecisionBlocked},
		{"purchase intent buy", clear, "where to BUY a toner", DecisionStore},
		{"purchase intent near me", clear, "pharmacies near me", DecisionStore},
		{"purchase intent store", clear, "which store carries this", DecisionStore},
		{"plain recommendation", clear, "recommend a gentle cleanser", DecisionSynthesis},
		{"empty query", clear, "", DecisionSynthesis},
		{"warning does not block", types.SafetyVerdict{OverallSeverity: types.SeverityWarning}, "recommend a serum", DecisionSynthesis},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Route(tc.verdict, tc.query))
		})
	}
}

func TestRoute_IsPure(t *testing.T) {
	verdict := types.SafetyVerdict{OverallSeverity: types.SeveritySafe}
	first := Route(verdict, "where can I get this")
	second := Route(verdict, "where can I get this")
	assert.Equal(t, first, second)
	assert.Equal(t, DecisionStore, first)
}
