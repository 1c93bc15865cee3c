// Package events defines the typed payloads emitted by the market service,
// one per accepted command. Every event carries the id of the market it
// belongs to so the transport layer can route it to that market's
// subscribers only.
package events

import (
	"hushbet/internal/models"
	"hushbet/internal/parimutuel"

	"github.com/google/uuid"
)

// Event is a domain event scoped to one market.
type Event interface {
	Type() string
	Market() uuid.UUID
}

type MarketCreated struct {
	MarketID uuid.UUID      `json:"market_id"`
	Snapshot *models.Market `json:"market"`
}

func (MarketCreated) Type() string        { return "market_created" }
func (e MarketCreated) Market() uuid.UUID { return e.MarketID }

type MarketOpened struct {
	MarketID uuid.UUID `json:"market_id"`
}

func (MarketOpened) Type() string        { return "market_opened" }
func (e MarketOpened) Market() uuid.UUID { return e.MarketID }

type MarketClosed struct {
	MarketID uuid.UUID `json:"market_id"`
}

func (MarketClosed) Type() string        { return "market_closed" }
func (e MarketClosed) Market() uuid.UUID { return e.MarketID }

type MarketResolved struct {
	MarketID uuid.UUID `json:"market_id"`
}

func (MarketResolved) Type() string        { return "market_resolved" }
func (e MarketResolved) Market() uuid.UUID { return e.MarketID }

type MarketDeleted struct {
	MarketID uuid.UUID `json:"market_id"`
}

func (MarketDeleted) Type() string        { return "market_deleted" }
func (e MarketDeleted) Market() uuid.UUID { return e.MarketID }

type ParticipantJoined struct {
	MarketID    uuid.UUID           `json:"market_id"`
	Participant *models.Participant `json:"participant"`
}

func (ParticipantJoined) Type() string        { return "participant_joined" }
func (e ParticipantJoined) Market() uuid.UUID { return e.MarketID }

// BetCreated deliberately omits the bet's content: whether a given
// subscriber may see it is a per-viewer question answered at query time, not
// something to fan out.
type BetCreated struct {
	MarketID         uuid.UUID        `json:"market_id"`
	BetID            uuid.UUID        `json:"bet_id"`
	SubjectID        uuid.UUID        `json:"subject_id"`
	VisibleToSubject bool             `json:"visible_to_subject"`
	Status           models.BetStatus `json:"status"`
}

func (BetCreated) Type() string        { return "bet_created" }
func (e BetCreated) Market() uuid.UUID { return e.MarketID }

type BetApproved struct {
	MarketID uuid.UUID `json:"market_id"`
	BetID    uuid.UUID `json:"bet_id"`
}

func (BetApproved) Type() string        { return "bet_approved" }
func (e BetApproved) Market() uuid.UUID { return e.MarketID }

type WagerPlaced struct {
	MarketID       uuid.UUID `json:"market_id"`
	BetID          uuid.UUID `json:"bet_id"`
	NewYesPool     int64     `json:"new_yes_pool"`
	NewNoPool      int64     `json:"new_no_pool"`
	NewProbability float64   `json:"new_probability"`
}

func (WagerPlaced) Type() string        { return "wager_placed" }
func (e WagerPlaced) Market() uuid.UUID { return e.MarketID }

type BetResolved struct {
	MarketID uuid.UUID           `json:"market_id"`
	BetID    uuid.UUID           `json:"bet_id"`
	Outcome  models.Side         `json:"outcome"`
	Payouts  []parimutuel.Payout `json:"payouts"`
}

func (BetResolved) Type() string        { return "bet_resolved" }
func (e BetResolved) Market() uuid.UUID { return e.MarketID }
