package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wager is a single immutable stake on one side of a bet. The pool snapshot
// taken after placement is the audit trail from which probability history is
// reconstructed. Wagers are never cancelled or amended.
type Wager struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	BetID            uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_bet_seq" json:"bet_id"`
	ParticipantID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"participant_id"`
	Side             Side            `gorm:"size:3;not null" json:"side"`
	Amount           int64           `gorm:"not null" json:"amount"`
	// Seq is the 1-based placement position within the bet, assigned under
	// the bet's row lock. Timestamps can collide; seq cannot.
	Seq              int64           `gorm:"not null;uniqueIndex:idx_bet_seq" json:"seq"`
	YesPoolAfter     int64           `gorm:"not null" json:"yes_pool_after"`
	NoPoolAfter      int64           `gorm:"not null" json:"no_pool_after"`
	ProbabilityAfter decimal.Decimal `gorm:"type:decimal(9,8);not null" json:"probability_after"`
	PlacedAt         time.Time       `gorm:"default:CURRENT_TIMESTAMP;index" json:"placed_at"`
}

func (Wager) TableName() string {
	return "wagers"
}

// NewWager builds a wager with its post-placement pool snapshot.
func NewWager(betID, participantID uuid.UUID, side Side, amount, seq, yesAfter, noAfter int64, probabilityAfter float64) (*Wager, error) {
	if !side.Valid() {
		return nil, invalid("side", "must be YES or NO")
	}
	if amount <= 0 {
		return nil, invalid("amount", "must be positive")
	}
	if seq < 1 {
		return nil, invalid("seq", "must be at least 1")
	}
	return &Wager{
		ID:               uuid.New(),
		BetID:            betID,
		ParticipantID:    participantID,
		Side:             side,
		Amount:           amount,
		Seq:              seq,
		YesPoolAfter:     yesAfter,
		NoPoolAfter:      noAfter,
		ProbabilityAfter: decimal.NewFromFloat(probabilityAfter).Round(8),
		PlacedAt:         time.Now().UTC(),
	}, nil
}
