package orchestrator

import (
	"strings"

	"github.com/skinsage/skinsage/internal/types"
)

// Decision is the outcome of routing after the safety gate.
type Decision int

const (
	DecisionBlocked Decision = iota
	DecisionStore
	DecisionSynthesis
)

func (d Decision) String() string {
	switch d {
	case DecisionBlocked:
		return "blocked"
	case DecisionStore:
		return "store"
	case DecisionSynthesis:
		return "synthesis"
	default:
		return "unknown"
	}
}

// storeKeywords mark purchase intent in the user's literal query text.
var storeKeywords = []string{"buy", "near me", "store", "where", "purchase", "get"}

// Route decides the stage after SAFETY. It is a pure function and total over
// its domain. The blocked check comes first and always wins: a dangerous
// combination is never routed toward a purchase answer, even when the user
// explicitly asks where to buy.
func Route(verdict types.SafetyVerdict, queryText string) Decision {
	if verdict.Blocked {
		return DecisionBlocked
	}

	query := strings.ToLower(queryText)
	for _, keyword := range storeKeywords {
		if strings.Contains(query, keyword) {
			return DecisionStore
		}
	}
	return DecisionSynthesis
}
