package models

import (
	"time"

	"github.com/google/uuid"
)

// BetView is a bet as shown to one viewer. When the bet is hidden from that
// viewer the redactable fields are nil: the viewer learns that a bet about
// them exists, and nothing else. Identity, status and timestamps stay
// visible either way.
type BetView struct {
	ID       uuid.UUID `json:"id"`
	MarketID uuid.UUID `json:"market_id"`
	IsHidden bool      `json:"is_hidden"`

	// Redacted when hidden.
	SubjectID          *uuid.UUID `json:"subject_id,omitempty"`
	Description        *string    `json:"description,omitempty"`
	ResolutionCriteria *string    `json:"resolution_criteria,omitempty"`
	YesPool            *int64     `json:"yes_pool,omitempty"`
	NoPool             *int64     `json:"no_pool,omitempty"`
	Probability        *float64   `json:"probability,omitempty"`

	CreatedBy  uuid.UUID  `json:"created_by"`
	Status     BetStatus  `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}
