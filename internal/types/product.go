package types

import "github.com/google/uuid"

// EvidenceGrade classifies how well a product's claims are supported.
type EvidenceGrade string

const (
	EvidenceClinical  EvidenceGrade = "clinical"  // backed by clinical trials
	EvidenceConsensus EvidenceGrade = "consensus" // dermatologist consensus
	EvidenceAnecdotal EvidenceGrade = "anecdotal" // reviews only
)

// Product is a catalog item as returned by retrieval. Ingredients preserve
// the label declaration order.
type Product struct {
	ID            uuid.UUID         `json:"id"`
	Name          string            `json:"name"`
	Brand         string            `json:"brand"`
	Description   string            `json:"description"`
	Ingredients   []string          `json:"ingredients"`
	EvidenceGrade EvidenceGrade     `json:"evidence_grade"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// StoreResult is one store returned by the external locator.
type StoreResult struct {
	Name     string  `json:"name"`
	Address  string  `json:"address"`
	Distance float64 `json:"distance,omitempty"`
	InStock  bool    `json:"in_stock"`
}
