package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Participant is a member of a single market, identified Jackbox-style by an
// opaque device id. Rejoining with the same device id must return the same
// row, so (market_id, device_id) is unique. Balance is integer coins and is
// never allowed to go negative.
type Participant struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	MarketID    uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_market_device" json:"market_id"`
	DeviceID    string    `gorm:"size:255;not null;uniqueIndex:idx_market_device" json:"-"`
	DisplayName string    `gorm:"size:100;not null" json:"display_name"`
	Avatar      string    `gorm:"size:16" json:"avatar"`
	Balance     int64     `gorm:"not null" json:"balance"`
	IsAdmin     bool      `gorm:"not null;default:false" json:"is_admin"`
	JoinedAt    time.Time `gorm:"default:CURRENT_TIMESTAMP;index" json:"joined_at"`
}

func (Participant) TableName() string {
	return "participants"
}

// NewParticipant builds a participant with the market's starting balance.
func NewParticipant(marketID uuid.UUID, deviceID, displayName, avatar string, balance int64, isAdmin bool) (*Participant, error) {
	if strings.TrimSpace(deviceID) == "" {
		return nil, invalid("device_id", "must not be empty")
	}
	if strings.TrimSpace(displayName) == "" {
		return nil, invalid("display_name", "must not be empty")
	}
	if balance < 0 {
		return nil, invalid("balance", "must not be negative")
	}
	return &Participant{
		ID:          uuid.New(),
		MarketID:    marketID,
		DeviceID:    deviceID,
		DisplayName: strings.TrimSpace(displayName),
		Avatar:      avatar,
		Balance:     balance,
		IsAdmin:     isAdmin,
		JoinedAt:    time.Now().UTC(),
	}, nil
}
