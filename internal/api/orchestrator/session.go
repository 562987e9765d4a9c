package orchestrator

import (
	"github.com/google/uuid"

	"github.com/skinsage/skinsage/internal/types"
)

// Request is the input of one pipeline execution. UserID is mandatory; a nil
// user is the one structurally invalid input the executor rejects outright.
type Request struct {
	Query        string
	UserID       uuid.UUID
	LocationHint string
}

// StageUpdate carries only the fields a stage changed. The executor merges
// updates into the session with a fixed per-field strategy: scalars and
// structs replace, the message log appends. Stages never see each other's
// in-progress writes and can never remove earlier data.
type StageUpdate struct {
	UserContext   *types.UserContext
	Candidates    []types.Product
	SafetyVerdict *types.SafetyVerdict
	StoreResults  []types.StoreResult
	FinalText     *string
	Messages      []types.SessionMessage
}

func newSession(req Request) *types.SessionState {
	return &types.SessionState{
		SessionID:    uuid.New(),
		Query:        req.Query,
		UserID:       req.UserID,
		LocationHint: req.LocationHint,
	}
}

// applyUpdate merges a stage's output into the session state.
func applyUpdate(state *types.SessionState, update StageUpdate) {
	if update.UserContext != nil {
		state.UserContext = *update.UserContext
	}
	if update.Candidates != nil {
		state.Candidates = update.Candidates
	}
	if update.SafetyVerdict != nil {
		state.SafetyVerdict = *update.SafetyVerdict
	}
	if update.StoreResults != nil {
		state.StoreResults = update.StoreResults
	}
	if update.FinalText != nil {
		state.FinalText = *update.FinalText
	}
	state.Messages = append(state.Messages, update.Messages...)
}
