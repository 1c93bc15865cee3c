package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hushbet/internal/events"
	"hushbet/internal/models"
	"hushbet/internal/parimutuel"
	"hushbet/internal/rules"
	"hushbet/internal/storage"
	"hushbet/internal/visibility"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// EventSink receives one typed event per accepted command. The WebSocket hub
// implements it; tests plug in a recorder.
type EventSink interface {
	Publish(ev events.Event)
}

// MarketService orchestrates every state transition: load current state, run
// the rules engine, apply the pool engine / domain transition, persist the
// new snapshot in one transaction, then emit the event. It is the sole
// writer of entity state.
type MarketService struct {
	store storage.Store
	sink  EventSink
	log   *logrus.Logger
}

func NewMarketService(store storage.Store, sink EventSink, log *logrus.Logger) *MarketService {
	if log == nil {
		log = logrus.New()
	}
	return &MarketService{store: store, sink: sink, log: log}
}

// publish fans the event out after the transaction has committed, so
// subscribers never observe state that was rolled back.
func (s *MarketService) publish(ev events.Event) {
	if s.sink != nil {
		s.sink.Publish(ev)
	}
}

// CreateMarketParams carries everything needed to bootstrap a market with
// its admin participant.
type CreateMarketParams struct {
	Name             string
	DeviceID         string
	AdminName        string
	AdminAvatar      string
	StartingBalance  int64
	RequireApproval  bool
	ClosesAt         *time.Time
	CustomInviteCode string
}

// CreateMarket creates a draft market plus its admin. A custom invite code
// is honored when well-formed and free; otherwise one is generated.
func (s *MarketService) CreateMarket(ctx context.Context, params CreateMarketParams) (*models.Market, *models.Participant, error) {
	var (
		market *models.Market
		admin  *models.Participant
	)

	err := s.store.Atomic(ctx, func(tx storage.Store) error {
		code, err := s.pickInviteCode(ctx, tx, params.CustomInviteCode)
		if err != nil {
			return err
		}

		adminID := uuid.New()
		market, err = models.NewMarket(params.Name, code, adminID, params.StartingBalance, params.RequireApproval)
		if err != nil {
			return err
		}
		market.ClosesAt = params.ClosesAt

		admin, err = models.NewParticipant(market.ID, params.DeviceID, params.AdminName, params.AdminAvatar, params.StartingBalance, true)
		if err != nil {
			return err
		}
		admin.ID = adminID

		if err := tx.CreateMarket(ctx, market); err != nil {
			// The pickInviteCode lookup and this insert are not one atomic
			// step across transactions; the unique index is the arbiter when
			// two creates race for the same code.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return rules.ErrInviteCodeTaken
			}
			return fmt.Errorf("failed to create market: %w", err)
		}
		if err := tx.CreateParticipant(ctx, admin); err != nil {
			return fmt.Errorf("failed to create admin participant: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.log.WithFields(logrus.Fields{
		"market_id":   market.ID,
		"invite_code": market.InviteCode,
		"admin":       admin.DisplayName,
	}).Info("market created")

	s.publish(events.MarketCreated{MarketID: market.ID, Snapshot: market})
	return market, admin, nil
}

// JoinMarket adds a participant by invite code. Rejoining with a known
// device id is idempotent and returns the existing participant untouched.
func (s *MarketService) JoinMarket(ctx context.Context, inviteCode, deviceID, displayName, avatar string) (*models.Market, *models.Participant, error) {
	var (
		market      *models.Market
		participant *models.Participant
		rejoined    bool
	)

	err := s.store.Atomic(ctx, func(tx storage.Store) error {
		var err error
		market, err = tx.GetMarketByInviteCode(ctx, inviteCode)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return rules.ErrInvalidInviteCode
		}
		if err != nil {
			return fmt.Errorf("failed to look up market: %w", err)
		}

		existing, err := tx.GetParticipantByDevice(ctx, market.ID, deviceID)
		if err == nil {
			participant, rejoined = existing, true
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to look up participant: %w", err)
		}

		if err := rules.CanJoinMarket(market); err != nil {
			return err
		}

		taken, err := tx.DisplayNameTaken(ctx, market.ID, displayName)
		if err != nil {
			return fmt.Errorf("failed to check display name: %w", err)
		}
		if taken {
			return rules.ErrDuplicateDisplayName
		}

		participant, err = models.NewParticipant(market.ID, deviceID, displayName, avatar, market.StartingBalance, false)
		if err != nil {
			return err
		}
		return tx.CreateParticipant(ctx, participant)
	})
	if err != nil {
		return nil, nil, err
	}

	if rejoined {
		return market, participant, nil
	}

	s.log.WithFields(logrus.Fields{
		"market_id":   market.ID,
		"participant": participant.DisplayName,
	}).Info("participant joined")

	s.publish(events.ParticipantJoined{MarketID: market.ID, Participant: participant})
	return market, participant, nil
}

// OpenMarket moves a draft market into its betting period.
func (s *MarketService) OpenMarket(ctx context.Context, marketID, callerID uuid.UUID) (*models.Market, error) {
	market, err := s.transitionMarket(ctx, marketID, callerID, rules.CanOpenMarket, func(m *models.Market) {
		now := time.Now().UTC()
		m.Status = models.MarketStatusOpen
		m.OpenedAt = &now
	})
	if err != nil {
		return nil, err
	}
	s.publish(events.MarketOpened{MarketID: market.ID})
	return market, nil
}

// CloseMarket ends the betting period; bets can still be resolved.
func (s *MarketService) CloseMarket(ctx context.Context, marketID, callerID uuid.UUID) (*models.Market, error) {
	market, err := s.transitionMarket(ctx, marketID, callerID, rules.CanCloseMarket, func(m *models.Market) {
		now := time.Now().UTC()
		m.Status = models.MarketStatusClosed
		m.ClosedAt = &now
	})
	if err != nil {
		return nil, err
	}
	s.publish(events.MarketClosed{MarketID: market.ID})
	return market, nil
}

func (s *MarketService) transitionMarket(
	ctx context.Context,
	marketID, callerID uuid.UUID,
	rule func(*models.Market, *models.Participant) error,
	apply func(*models.Market),
) (*models.Market, error) {
	var market *models.Market
	err := s.store.Atomic(ctx, func(tx storage.Store) error {
		var err error
		market, err = tx.GetMarket(ctx, marketID)
		if err != nil {
			return fmt.Errorf("failed to get market: %w", err)
		}
		caller, err := tx.GetParticipant(ctx, callerID)
		if err != nil {
			return fmt.Errorf("failed to get caller: %w", err)
		}
		if caller.MarketID != market.ID {
			return rules.ErrNotAdmin
		}
		if err := rule(market, caller); err != nil {
			return err
		}
		apply(market)
		return tx.UpdateMarket(ctx, market)
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"market_id": market.ID, "status": market.Status}).Info("market transitioned")
	return market, nil
}

// ResolveMarket finalizes a market once every bet has been settled.
func (s *MarketService) ResolveMarket(ctx context.Context, marketID, callerID uuid.UUID) (*models.Market, error) {
	var market *models.Market
	err := s.store.Atomic(ctx, func(tx storage.Store) error {
		var err error
		market, err = tx.GetMarket(ctx, marketID)
		if err != nil {
			return fmt.Errorf("failed to get market: %w", err)
		}
		caller, err := tx.GetParticipant(ctx, callerID)
		if err != nil {
			return fmt.Errorf("failed to get caller: %w", err)
		}
		if caller.MarketID != market.ID {
			return rules.ErrNotAdmin
		}
		unresolved, err := tx.CountUnresolvedBets(ctx, marketID)
		if err != nil {
			return fmt.Errorf("failed to count unresolved bets: %w", err)
		}
		if err := rules.CanResolveMarket(market, caller, unresolved); err != nil {
			return err
		}
		now := time.Now().UTC()
		market.Status = models.MarketStatusResolved
		market.ResolvedAt = &now
		return tx.UpdateMarket(ctx, market)
	})
	if err != nil {
		return nil, err
	}
	s.publish(events.MarketResolved{MarketID: market.ID})
	return market, nil
}

// DeleteMarket removes the market and everything it owns.
func (s *MarketService) DeleteMarket(ctx context.Context, marketID, callerID uuid.UUID) error {
	err := s.store.Atomic(ctx, func(tx storage.Store) error {
		market, err := tx.GetMarket(ctx, marketID)
		if err != nil {
			return fmt.Errorf("failed to get market: %w", err)
		}
		caller, err := tx.GetParticipant(ctx, callerID)
		if err != nil {
			return fmt.Errorf("failed to get caller: %w", err)
		}
		if caller.MarketID != market.ID {
			return rules.ErrNotAdmin
		}
		if err := rules.CanDeleteMarket(caller); err != nil {
			return err
		}
		return tx.DeleteMarket(ctx, marketID)
	})
	if err != nil {
		return err
	}
	s.log.WithField("market_id", marketID).Info("market deleted")
	s.publish(events.MarketDeleted{MarketID: marketID})
	return nil
}

// CreateBetParams describes a new proposition. The opening wager always
// seeds the YES pool and is recorded as a normal ledger entry.
type CreateBetParams struct {
	MarketID           uuid.UUID
	CreatorID          uuid.UUID
	SubjectID          uuid.UUID
	Description        string
	ResolutionCriteria string
	OpeningWager       int64
	HideFromSubject    bool
}

// CreateBet creates a bet and, unless the subject is proposing about
// themself, debits the creator's opening wager into the YES pool. The bet
// starts pending when the market moderates new bets, active otherwise.
func (s *MarketService) CreateBet(ctx context.Context, params CreateBetParams) (*models.Bet, error) {
	var bet *models.Bet

	err := s.store.Atomic(ctx, func(tx storage.Store) error {
		market, err := tx.GetMarket(ctx, params.MarketID)
		if err != nil {
			return fmt.Errorf("failed to get market: %w", err)
		}
		creator, err := tx.GetParticipantForUpdate(ctx, params.CreatorID)
		if err != nil {
			return fmt.Errorf("failed to get creator: %w", err)
		}
		subject := creator
		if params.SubjectID != params.CreatorID {
			subject, err = tx.GetParticipant(ctx, params.SubjectID)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return rules.ErrSubjectNotInMarket
			}
			if err != nil {
				return fmt.Errorf("failed to get subject: %w", err)
			}
		}

		if err := rules.CanCreateBet(market, creator, subject, params.OpeningWager); err != nil {
			return err
		}

		status := models.BetStatusActive
		if market.RequireApproval {
			status = models.BetStatusPending
		}
		bet, err = models.NewBet(market.ID, subject.ID, creator.ID, params.Description, params.ResolutionCriteria, params.HideFromSubject, status)
		if err != nil {
			return err
		}

		if params.OpeningWager > 0 {
			yes, no, err := parimutuel.Apply(0, 0, models.SideYes, params.OpeningWager)
			if err != nil {
				return rules.ErrPoolOverflow
			}
			bet.YesPool, bet.NoPool = yes, no

			wager, err := models.NewWager(bet.ID, creator.ID, models.SideYes, params.OpeningWager, 1, yes, no, parimutuel.Probability(yes, no))
			if err != nil {
				return err
			}
			if err := tx.CreateBet(ctx, bet); err != nil {
				return fmt.Errorf("failed to create bet: %w", err)
			}
			if err := tx.CreateWager(ctx, wager); err != nil {
				return fmt.Errorf("failed to record opening wager: %w", err)
			}
			creator.Balance -= params.OpeningWager
			return tx.UpdateParticipant(ctx, creator)
		}

		return tx.CreateBet(ctx, bet)
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"market_id": bet.MarketID,
		"bet_id":    bet.ID,
		"status":    bet.Status,
		"hidden":    bet.HideFromSubject,
	}).Info("bet created")

	s.publish(events.BetCreated{
		MarketID:         bet.MarketID,
		BetID:            bet.ID,
		SubjectID:        bet.SubjectID,
		VisibleToSubject: !bet.HideFromSubject,
		Status:           bet.Status,
	})
	return bet, nil
}

// ApproveBet moves a pending bet to active (admin moderation step, only
// reachable on markets created with RequireApproval).
func (s *MarketService) ApproveBet(ctx context.Context, betID, callerID uuid.UUID) (*models.Bet, error) {
	var bet *models.Bet
	err := s.store.Atomic(ctx, func(tx storage.Store) error {
		var err error
		bet, err = tx.GetBetForUpdate(ctx, betID)
		if err != nil {
			return fmt.Errorf("failed to get bet: %w", err)
		}
		caller, err := tx.GetParticipant(ctx, callerID)
		if err != nil {
			return fmt.Errorf("failed to get caller: %w", err)
		}
		if caller.MarketID != bet.MarketID {
			return rules.ErrNotAdmin
		}
		if err := rules.CanApproveBet(bet, caller); err != nil {
			return err
		}
		bet.Status = models.BetStatusActive
		return tx.UpdateBet(ctx, bet)
	})
	if err != nil {
		return nil, err
	}
	s.publish(events.BetApproved{MarketID: bet.MarketID, BetID: bet.ID})
	return bet, nil
}

// PlaceWager debits the participant and grows the chosen pool, all inside
// one transaction with the participant and bet rows locked. Two wagers on
// the same bet or by the same participant serialize here; the re-read under
// lock is what makes the overdraw race impossible.
func (s *MarketService) PlaceWager(ctx context.Context, betID, participantID uuid.UUID, side models.Side, amount int64) (*models.Wager, error) {
	var (
		wager *models.Wager
		bet   *models.Bet
	)

	err := s.store.Atomic(ctx, func(tx storage.Store) error {
		var err error
		bet, err = tx.GetBetForUpdate(ctx, betID)
		if err != nil {
			return fmt.Errorf("failed to get bet: %w", err)
		}
		market, err := tx.GetMarket(ctx, bet.MarketID)
		if err != nil {
			return fmt.Errorf("failed to get market: %w", err)
		}
		wagerer, err := tx.GetParticipantForUpdate(ctx, participantID)
		if err != nil {
			return fmt.Errorf("failed to get participant: %w", err)
		}
		if wagerer.MarketID != bet.MarketID {
			return rules.ErrSubjectNotInMarket
		}

		if err := rules.CanPlaceWager(market, bet, wagerer, side, amount); err != nil {
			return err
		}

		yes, no, err := parimutuel.Apply(bet.YesPool, bet.NoPool, side, amount)
		if err != nil {
			return rules.ErrPoolOverflow
		}

		// Seq is assigned under the bet's row lock, so it is gap-free and
		// collision-free per bet even when timestamps coincide.
		placed, err := tx.CountWagers(ctx, bet.ID)
		if err != nil {
			return fmt.Errorf("failed to count wagers: %w", err)
		}

		wager, err = models.NewWager(bet.ID, wagerer.ID, side, amount, placed+1, yes, no, parimutuel.Probability(yes, no))
		if err != nil {
			return err
		}

		bet.YesPool, bet.NoPool = yes, no
		if err := tx.UpdateBet(ctx, bet); err != nil {
			return fmt.Errorf("failed to update pools: %w", err)
		}
		if err := tx.CreateWager(ctx, wager); err != nil {
			return fmt.Errorf("failed to record wager: %w", err)
		}
		wagerer.Balance -= amount
		return tx.UpdateParticipant(ctx, wagerer)
	})
	if err != nil {
		return nil, err
	}

	probability := parimutuel.Probability(bet.YesPool, bet.NoPool)
	s.log.WithFields(logrus.Fields{
		"bet_id":      bet.ID,
		"side":        side,
		"amount":      amount,
		"probability": probability,
	}).Info("wager placed")

	s.publish(events.WagerPlaced{
		MarketID:       bet.MarketID,
		BetID:          bet.ID,
		NewYesPool:     bet.YesPool,
		NewNoPool:      bet.NoPool,
		NewProbability: probability,
	})
	return wager, nil
}

// ResolveBet settles a bet: the status flip and every payout credit commit
// together or not at all. Resolution is also the disclosure event for
// hidden bets.
func (s *MarketService) ResolveBet(ctx context.Context, betID, callerID uuid.UUID, outcome models.Side) (*models.Bet, []parimutuel.Payout, error) {
	var (
		bet     *models.Bet
		payouts []parimutuel.Payout
	)

	err := s.store.Atomic(ctx, func(tx storage.Store) error {
		var err error
		bet, err = tx.GetBetForUpdate(ctx, betID)
		if err != nil {
			return fmt.Errorf("failed to get bet: %w", err)
		}
		caller, err := tx.GetParticipant(ctx, callerID)
		if err != nil {
			return fmt.Errorf("failed to get caller: %w", err)
		}
		if caller.MarketID != bet.MarketID {
			return rules.ErrNotAdmin
		}
		if err := rules.CanResolveBet(bet, caller, outcome); err != nil {
			return err
		}

		wagers, err := tx.ListWagers(ctx, betID)
		if err != nil {
			return fmt.Errorf("failed to load ledger: %w", err)
		}
		payouts = parimutuel.Settle(bet.YesPool, bet.NoPool, outcome, wagers)

		now := time.Now().UTC()
		bet.Status = models.BetStatusResolvedYes
		if outcome == models.SideNo {
			bet.Status = models.BetStatusResolvedNo
		}
		bet.ResolvedAt = &now
		if err := tx.UpdateBet(ctx, bet); err != nil {
			return fmt.Errorf("failed to update bet: %w", err)
		}

		for _, payout := range payouts {
			winner, err := tx.GetParticipantForUpdate(ctx, payout.ParticipantID)
			if err != nil {
				return fmt.Errorf("failed to get winner: %w", err)
			}
			winner.Balance += payout.Amount
			if err := tx.UpdateParticipant(ctx, winner); err != nil {
				return fmt.Errorf("failed to credit payout: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.log.WithFields(logrus.Fields{
		"bet_id":  bet.ID,
		"outcome": outcome,
		"pot":     bet.YesPool + bet.NoPool,
		"winners": len(payouts),
	}).Info("bet resolved")

	s.publish(events.BetResolved{
		MarketID: bet.MarketID,
		BetID:    bet.ID,
		Outcome:  outcome,
		Payouts:  payouts,
	})
	return bet, payouts, nil
}

// Reveal returns the full, never-redacted view of every bet about the given
// participant. This is the subject's own audit view; redaction only ever
// applies to the market-wide list.
func (s *MarketService) Reveal(ctx context.Context, subjectID uuid.UUID) ([]models.BetView, error) {
	bets, err := s.store.ListBetsBySubject(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bets: %w", err)
	}
	views := make([]models.BetView, 0, len(bets))
	for _, bet := range bets {
		views = append(views, visibility.ProjectRevealed(bet))
	}
	return views, nil
}
