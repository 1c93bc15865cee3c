package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"hushbet/internal/models"
	"hushbet/internal/rules"
	"hushbet/internal/visibility"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GetMarket returns the market snapshot.
func (s *MarketService) GetMarket(ctx context.Context, marketID uuid.UUID) (*models.Market, error) {
	return s.store.GetMarket(ctx, marketID)
}

// GetParticipant returns one participant snapshot.
func (s *MarketService) GetParticipant(ctx context.Context, participantID uuid.UUID) (*models.Participant, error) {
	return s.store.GetParticipant(ctx, participantID)
}

// MarketsByDevice lists every membership a device holds, most recent first,
// with each market attached. This backs the "my markets" screen.
type Membership struct {
	Market      *models.Market      `json:"market"`
	Participant *models.Participant `json:"participant"`
}

func (s *MarketService) MarketsByDevice(ctx context.Context, deviceID string) ([]Membership, error) {
	participants, err := s.store.ListMembershipsByDevice(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	memberships := make([]Membership, 0, len(participants))
	for _, p := range participants {
		market, err := s.store.GetMarket(ctx, p.MarketID)
		if err != nil {
			return nil, fmt.Errorf("failed to load market %s: %w", p.MarketID, err)
		}
		memberships = append(memberships, Membership{Market: market, Participant: p})
	}
	return memberships, nil
}

// ListBets returns every bet in the market as seen by one viewer. Redaction
// happens here, on the way out; stored rows are never redacted.
func (s *MarketService) ListBets(ctx context.Context, marketID, viewerID uuid.UUID) ([]models.BetView, error) {
	bets, err := s.store.ListBets(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bets: %w", err)
	}
	views := make([]models.BetView, 0, len(bets))
	for _, bet := range bets {
		views = append(views, visibility.Project(bet, viewerID))
	}
	return views, nil
}

// GetBet returns one bet as seen by the viewer, redacted the same way the
// market list is.
func (s *MarketService) GetBet(ctx context.Context, betID, viewerID uuid.UUID) (*models.BetView, error) {
	bet, err := s.store.GetBet(ctx, betID)
	if err != nil {
		return nil, err
	}
	view := visibility.Project(bet, viewerID)
	return &view, nil
}

// ListPendingBets returns the admin moderation queue.
func (s *MarketService) ListPendingBets(ctx context.Context, marketID, callerID uuid.UUID) ([]*models.Bet, error) {
	caller, err := s.store.GetParticipant(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get caller: %w", err)
	}
	if !caller.IsAdmin || caller.MarketID != marketID {
		return nil, rules.ErrNotAdmin
	}
	return s.store.ListPendingBets(ctx, marketID)
}

// LeaderboardEntry is one scored row. Profit is balance relative to the
// market's starting balance; score adds them so early gains compound in the
// ranking. Ties keep join order.
type LeaderboardEntry struct {
	Participant *models.Participant `json:"participant"`
	Profit      int64               `json:"profit"`
	ROI         decimal.Decimal     `json:"roi"`
	Rank        int                 `json:"rank"`
}

// Leaderboard recomputes standings from current balances. Nothing is cached;
// with party-sized markets a sort per query is fine.
func (s *MarketService) Leaderboard(ctx context.Context, marketID uuid.UUID) ([]LeaderboardEntry, error) {
	market, err := s.store.GetMarket(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("failed to get market: %w", err)
	}
	participants, err := s.store.ListParticipants(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}

	starting := decimal.NewFromInt(market.StartingBalance)
	entries := make([]LeaderboardEntry, 0, len(participants))
	for _, p := range participants {
		profit := p.Balance - market.StartingBalance
		entries = append(entries, LeaderboardEntry{
			Participant: p,
			Profit:      profit,
			ROI:         decimal.NewFromInt(profit).Div(starting).Round(4),
		})
	}
	// Input is in join order, so a stable sort preserves it on ties.
	sort.SliceStable(entries, func(i, j int) bool {
		si := entries[i].Participant.Balance + entries[i].Profit
		sj := entries[j].Participant.Balance + entries[j].Profit
		return si > sj
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

// ProbabilityPoint is one step of a bet's implied-probability time series.
type ProbabilityPoint struct {
	Timestamp      time.Time `json:"timestamp"`
	YesProbability float64   `json:"yes_probability"`
}

// ProbabilityHistory replays the wager ledger's pool snapshots into a chart
// series, one point per wager in placement order.
func (s *MarketService) ProbabilityHistory(ctx context.Context, betID uuid.UUID) ([]ProbabilityPoint, error) {
	if _, err := s.store.GetBet(ctx, betID); err != nil {
		return nil, err
	}
	wagers, err := s.store.ListWagers(ctx, betID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}
	points := make([]ProbabilityPoint, 0, len(wagers))
	for _, w := range wagers {
		points = append(points, ProbabilityPoint{
			Timestamp:      w.PlacedAt,
			YesProbability: w.ProbabilityAfter.InexactFloat64(),
		})
	}
	return points, nil
}
