// Package repository is the gorm implementation of storage.Store.
package repository

import (
	"context"
	"strings"

	"hushbet/internal/models"
	"hushbet/internal/storage"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

var _ storage.Store = (*Repository)(nil)

// Atomic runs fn in a single database transaction.
func (r *Repository) Atomic(ctx context.Context, fn func(storage.Store) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repository{db: tx})
	})
}

// forUpdate adds a FOR UPDATE row lock on postgres. SQLite has no row locks
// and no FOR UPDATE syntax; there the test DSN's _txlock=immediate makes
// whole transactions mutually exclusive, which gives the same guarantee.
func (r *Repository) forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// ----- markets -----

func (r *Repository) CreateMarket(ctx context.Context, market *models.Market) error {
	return r.db.WithContext(ctx).Create(market).Error
}

func (r *Repository) GetMarket(ctx context.Context, id uuid.UUID) (*models.Market, error) {
	var market models.Market
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&market).Error; err != nil {
		return nil, err
	}
	return &market, nil
}

func (r *Repository) GetMarketByInviteCode(ctx context.Context, code string) (*models.Market, error) {
	var market models.Market
	err := r.db.WithContext(ctx).
		Where("invite_code = ?", strings.ToUpper(strings.TrimSpace(code))).
		First(&market).Error
	if err != nil {
		return nil, err
	}
	return &market, nil
}

func (r *Repository) UpdateMarket(ctx context.Context, market *models.Market) error {
	return r.db.WithContext(ctx).Save(market).Error
}

// DeleteMarket removes the market and everything it owns, leaf tables first.
func (r *Repository) DeleteMarket(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("bet_id IN (?)", tx.Model(&models.Bet{}).Select("id").Where("market_id = ?", id)).
			Delete(&models.Wager{}).Error; err != nil {
			return err
		}
		if err := tx.Where("market_id = ?", id).Delete(&models.Bet{}).Error; err != nil {
			return err
		}
		if err := tx.Where("market_id = ?", id).Delete(&models.Participant{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.Market{}).Error
	})
}

// ----- participants -----

func (r *Repository) CreateParticipant(ctx context.Context, p *models.Participant) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *Repository) GetParticipant(ctx context.Context, id uuid.UUID) (*models.Participant, error) {
	var p models.Participant
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) GetParticipantForUpdate(ctx context.Context, id uuid.UUID) (*models.Participant, error) {
	var p models.Participant
	if err := r.forUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) GetParticipantByDevice(ctx context.Context, marketID uuid.UUID, deviceID string) (*models.Participant, error) {
	var p models.Participant
	err := r.db.WithContext(ctx).
		Where("market_id = ? AND device_id = ?", marketID, deviceID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) DisplayNameTaken(ctx context.Context, marketID uuid.UUID, displayName string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Participant{}).
		Where("market_id = ? AND LOWER(display_name) = LOWER(?)", marketID, strings.TrimSpace(displayName)).
		Count(&count).Error
	return count > 0, err
}

func (r *Repository) ListParticipants(ctx context.Context, marketID uuid.UUID) ([]*models.Participant, error) {
	var participants []*models.Participant
	err := r.db.WithContext(ctx).
		Where("market_id = ?", marketID).
		Order("joined_at ASC").
		Find(&participants).Error
	if err != nil {
		return nil, err
	}
	return participants, nil
}

func (r *Repository) UpdateParticipant(ctx context.Context, p *models.Participant) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *Repository) ListMembershipsByDevice(ctx context.Context, deviceID string) ([]*models.Participant, error) {
	var participants []*models.Participant
	err := r.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("joined_at DESC").
		Find(&participants).Error
	if err != nil {
		return nil, err
	}
	return participants, nil
}

// ----- bets -----

func (r *Repository) CreateBet(ctx context.Context, bet *models.Bet) error {
	return r.db.WithContext(ctx).Create(bet).Error
}

func (r *Repository) GetBet(ctx context.Context, id uuid.UUID) (*models.Bet, error) {
	var bet models.Bet
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&bet).Error; err != nil {
		return nil, err
	}
	return &bet, nil
}

func (r *Repository) GetBetForUpdate(ctx context.Context, id uuid.UUID) (*models.Bet, error) {
	var bet models.Bet
	if err := r.forUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&bet).Error; err != nil {
		return nil, err
	}
	return &bet, nil
}

func (r *Repository) UpdateBet(ctx context.Context, bet *models.Bet) error {
	return r.db.WithContext(ctx).Save(bet).Error
}

func (r *Repository) ListBets(ctx context.Context, marketID uuid.UUID) ([]*models.Bet, error) {
	var bets []*models.Bet
	err := r.db.WithContext(ctx).
		Where("market_id = ?", marketID).
		Order("created_at ASC").
		Find(&bets).Error
	if err != nil {
		return nil, err
	}
	return bets, nil
}

func (r *Repository) ListBetsBySubject(ctx context.Context, subjectID uuid.UUID) ([]*models.Bet, error) {
	var bets []*models.Bet
	err := r.db.WithContext(ctx).
		Where("subject_id = ?", subjectID).
		Order("created_at ASC").
		Find(&bets).Error
	if err != nil {
		return nil, err
	}
	return bets, nil
}

func (r *Repository) ListPendingBets(ctx context.Context, marketID uuid.UUID) ([]*models.Bet, error) {
	var bets []*models.Bet
	err := r.db.WithContext(ctx).
		Where("market_id = ? AND status = ?", marketID, models.BetStatusPending).
		Order("created_at ASC").
		Find(&bets).Error
	if err != nil {
		return nil, err
	}
	return bets, nil
}

func (r *Repository) CountUnresolvedBets(ctx context.Context, marketID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Bet{}).
		Where("market_id = ? AND status IN ?", marketID, []models.BetStatus{models.BetStatusPending, models.BetStatusActive}).
		Count(&count).Error
	return count, err
}

// ----- wagers -----

func (r *Repository) CreateWager(ctx context.Context, wager *models.Wager) error {
	return r.db.WithContext(ctx).Create(wager).Error
}

func (r *Repository) ListWagers(ctx context.Context, betID uuid.UUID) ([]*models.Wager, error) {
	var wagers []*models.Wager
	err := r.db.WithContext(ctx).
		Where("bet_id = ?", betID).
		Order("seq ASC").
		Find(&wagers).Error
	if err != nil {
		return nil, err
	}
	return wagers, nil
}

func (r *Repository) CountWagers(ctx context.Context, betID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Wager{}).
		Where("bet_id = ?", betID).
		Count(&count).Error
	return count, err
}
