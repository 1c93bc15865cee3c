package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type BetStatus string

const (
	BetStatusPending     BetStatus = "pending"      // awaiting admin approval
	BetStatusActive      BetStatus = "active"       // open for wagering
	BetStatusResolvedYes BetStatus = "resolved_yes" // outcome: YES
	BetStatusResolvedNo  BetStatus = "resolved_no"  // outcome: NO
)

// Resolved reports whether the bet has reached a terminal outcome.
func (s BetStatus) Resolved() bool {
	return s == BetStatusResolvedYes || s == BetStatusResolvedNo
}

// Side is one of the two parimutuel pools of a bet.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// Valid reports whether s is one of the two defined sides.
func (s Side) Valid() bool {
	return s == SideYes || s == SideNo
}

// Bet is a YES/NO proposition about a participant. Pool totals only ever
// increase while the bet is live; at resolution they are read to settle
// payouts and never decremented.
type Bet struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	MarketID           uuid.UUID  `gorm:"type:uuid;not null;index" json:"market_id"`
	SubjectID          uuid.UUID  `gorm:"type:uuid;not null;index" json:"subject_id"`
	CreatedBy          uuid.UUID  `gorm:"type:uuid;not null" json:"created_by"`
	Description        string     `gorm:"type:text;not null" json:"description"`
	ResolutionCriteria string     `gorm:"type:text" json:"resolution_criteria"`
	Status             BetStatus  `gorm:"size:20;not null;default:pending;index" json:"status"`
	YesPool            int64      `gorm:"not null;default:0" json:"yes_pool"`
	NoPool             int64      `gorm:"not null;default:0" json:"no_pool"`
	HideFromSubject    bool       `gorm:"not null;default:false" json:"hide_from_subject"`
	CreatedAt          time.Time  `gorm:"default:CURRENT_TIMESTAMP;index" json:"created_at"`
	ResolvedAt         *time.Time `json:"resolved_at,omitempty"`
}

func (Bet) TableName() string {
	return "bets"
}

// NewBet builds a bet with empty pools. Status is decided by the caller
// (pending when the market moderates new bets, active otherwise).
func NewBet(marketID, subjectID, createdBy uuid.UUID, description, criteria string, hideFromSubject bool, status BetStatus) (*Bet, error) {
	if strings.TrimSpace(description) == "" {
		return nil, invalid("description", "must not be empty")
	}
	if status != BetStatusPending && status != BetStatusActive {
		return nil, invalid("status", "new bets start pending or active")
	}
	return &Bet{
		ID:                 uuid.New(),
		MarketID:           marketID,
		SubjectID:          subjectID,
		CreatedBy:          createdBy,
		Description:        strings.TrimSpace(description),
		ResolutionCriteria: strings.TrimSpace(criteria),
		Status:             status,
		HideFromSubject:    hideFromSubject,
		CreatedAt:          time.Now().UTC(),
	}, nil
}
