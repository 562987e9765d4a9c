package types

import (
	"time"

	"github.com/google/uuid"
)

// SessionState is the working memory for one recommendation request. It is
// created at request start, filled in additively by each pipeline stage, and
// discarded at request end. No stage may remove data written by an earlier
// stage; scalar fields are replaced, the message log is appended.
type SessionState struct {
	SessionID    uuid.UUID `json:"session_id"`
	Query        string    `json:"query"`
	UserID       uuid.UUID `json:"user_id"`
	LocationHint string    `json:"location_hint,omitempty"`

	UserContext   UserContext   `json:"user_context"`
	Candidates    []Product     `json:"candidates"`
	SafetyVerdict SafetyVerdict `json:"safety_verdict"`
	StoreResults  []StoreResult `json:"store_results,omitempty"`
	FinalText     string        `json:"final_text"`

	// Messages is the append-only log of prompts and model turns for this
	// request, useful for debugging and evaluation.
	Messages []SessionMessage `json:"messages,omitempty"`
}

// SessionMessage is one entry of the session's append-only message log.
type SessionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StreamEvent is one typed event on the incremental execution stream.
// Consumers must treat the sequence as append-only and order-significant.
type StreamEvent struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	EventID   string      `json:"event_id"`
	IsFinal   bool        `json:"is_final,omitempty"`
}

// Stream event types emitted by the executor, in stage order.
const (
	EventTypeStart       = "start"
	EventTypeSafetyAlert = "safety_alert"
	EventTypeProducts    = "products"
	EventTypeText        = "text"
	EventTypeError       = "error"
	EventTypeComplete    = "complete"
)

// SafetyAlertPayload is the Data carried by a safety_alert event.
type SafetyAlertPayload struct {
	Severity  Severity   `json:"severity"`
	Conflicts []Conflict `json:"conflicts"`
}
