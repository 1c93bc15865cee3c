// Package storage declares the capability interface the market service is
// written against. One implementation exists per backend (gorm/postgres in
// production, gorm/sqlite in tests); the service never sees the concrete
// type.
package storage

import (
	"context"

	"hushbet/internal/models"

	"github.com/google/uuid"
)

// Store is the persistence surface of the core. Methods suffixed ForUpdate
// lock the row for the remainder of the surrounding transaction; calling
// them outside Atomic is a programming error.
type Store interface {
	// Atomic runs fn inside one storage transaction. fn receives a Store
	// bound to that transaction; any error rolls everything back.
	Atomic(ctx context.Context, fn func(Store) error) error

	CreateMarket(ctx context.Context, market *models.Market) error
	GetMarket(ctx context.Context, id uuid.UUID) (*models.Market, error)
	GetMarketByInviteCode(ctx context.Context, code string) (*models.Market, error)
	UpdateMarket(ctx context.Context, market *models.Market) error
	// DeleteMarket cascades to participants, bets and wagers.
	DeleteMarket(ctx context.Context, id uuid.UUID) error

	CreateParticipant(ctx context.Context, p *models.Participant) error
	GetParticipant(ctx context.Context, id uuid.UUID) (*models.Participant, error)
	GetParticipantForUpdate(ctx context.Context, id uuid.UUID) (*models.Participant, error)
	GetParticipantByDevice(ctx context.Context, marketID uuid.UUID, deviceID string) (*models.Participant, error)
	DisplayNameTaken(ctx context.Context, marketID uuid.UUID, displayName string) (bool, error)
	ListParticipants(ctx context.Context, marketID uuid.UUID) ([]*models.Participant, error)
	UpdateParticipant(ctx context.Context, p *models.Participant) error
	ListMembershipsByDevice(ctx context.Context, deviceID string) ([]*models.Participant, error)

	CreateBet(ctx context.Context, bet *models.Bet) error
	GetBet(ctx context.Context, id uuid.UUID) (*models.Bet, error)
	GetBetForUpdate(ctx context.Context, id uuid.UUID) (*models.Bet, error)
	UpdateBet(ctx context.Context, bet *models.Bet) error
	ListBets(ctx context.Context, marketID uuid.UUID) ([]*models.Bet, error)
	ListBetsBySubject(ctx context.Context, subjectID uuid.UUID) ([]*models.Bet, error)
	ListPendingBets(ctx context.Context, marketID uuid.UUID) ([]*models.Bet, error)
	CountUnresolvedBets(ctx context.Context, marketID uuid.UUID) (int64, error)

	CreateWager(ctx context.Context, wager *models.Wager) error
	// ListWagers returns the bet's ledger in placement (seq) order.
	ListWagers(ctx context.Context, betID uuid.UUID) ([]*models.Wager, error)
	CountWagers(ctx context.Context, betID uuid.UUID) (int64, error)
}
