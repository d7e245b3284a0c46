package models

import (
	"time"

	"github.com/google/uuid"
)

// EntityType identifies which external table a link endpoint points into.
type EntityType string

const (
	EntityCategory     EntityType = "category"
	EntityGroup        EntityType = "group"
	EntityCustomer     EntityType = "customer"
	EntitySubscription EntityType = "subscription"
)

// LinkDecision is the human-review state of a persisted link.
type LinkDecision string

const (
	DecisionPending  LinkDecision = "pending"
	DecisionAccepted LinkDecision = "accepted"
	DecisionRejected LinkDecision = "rejected"
)

// Link is a discovered relationship between two external entities,
// persisted for human review. The (source_type, source_id, target_type,
// target_id) tuple is unique and directional.
type Link struct {
	ID           uuid.UUID    `db:"id"`
	SourceType   EntityType   `db:"source_type"`
	SourceID     uuid.UUID    `db:"source_id"`
	TargetType   EntityType   `db:"target_type"`
	TargetID     uuid.UUID    `db:"target_id"`
	Confidence   float64      `db:"confidence"`
	EvidenceText string       `db:"evidence_text"`
	UserDecision LinkDecision `db:"user_decision"`
	CreatedAt    time.Time    `db:"created_at"`
}

// Candidate is a scored, not-yet-persisted link proposal.
type Candidate struct {
	SourceType   EntityType `json:"source_type"`
	SourceID     uuid.UUID  `json:"source_id"`
	TargetType   EntityType `json:"target_type"`
	TargetID     uuid.UUID  `json:"target_id"`
	Confidence   float64    `json:"confidence"`
	EvidenceText string     `json:"evidence_text"`
}
