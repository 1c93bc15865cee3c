package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type MarketStatus string

const (
	MarketStatusDraft    MarketStatus = "draft"    // collecting participants and bet ideas
	MarketStatusOpen     MarketStatus = "open"     // active betting period
	MarketStatusClosed   MarketStatus = "closed"   // resolution period
	MarketStatusResolved MarketStatus = "resolved" // final results
)

// Market is a bounded group-betting session. It owns all participants, bets
// and wagers created under it; status transitions are strictly forward.
type Market struct {
	ID              uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	Name            string       `gorm:"size:255;not null" json:"name"`
	Status          MarketStatus `gorm:"size:20;not null;default:draft;index" json:"status"`
	CreatedBy       uuid.UUID    `gorm:"type:uuid;not null" json:"created_by"`
	InviteCode      string       `gorm:"size:12;not null;uniqueIndex" json:"invite_code"`
	StartingBalance int64        `gorm:"not null" json:"starting_balance"`
	RequireApproval bool         `gorm:"not null;default:false" json:"require_approval"`
	ClosesAt        *time.Time   `json:"closes_at,omitempty"`
	CreatedAt       time.Time    `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	OpenedAt        *time.Time   `json:"opened_at,omitempty"`
	ClosedAt        *time.Time   `json:"closed_at,omitempty"`
	ResolvedAt      *time.Time   `json:"resolved_at,omitempty"`
}

func (Market) TableName() string {
	return "markets"
}

// NewMarket builds a draft market. The admin participant is created
// separately and referenced by createdBy.
func NewMarket(name, inviteCode string, createdBy uuid.UUID, startingBalance int64, requireApproval bool) (*Market, error) {
	if strings.TrimSpace(name) == "" {
		return nil, invalid("name", "must not be empty")
	}
	if strings.TrimSpace(inviteCode) == "" {
		return nil, invalid("invite_code", "must not be empty")
	}
	if startingBalance <= 0 {
		return nil, invalid("starting_balance", "must be positive")
	}
	return &Market{
		ID:              uuid.New(),
		Name:            strings.TrimSpace(name),
		Status:          MarketStatusDraft,
		CreatedBy:       createdBy,
		InviteCode:      inviteCode,
		StartingBalance: startingBalance,
		RequireApproval: requireApproval,
		CreatedAt:       time.Now().UTC(),
	}, nil
}
