package rules

import (
	"errors"
	"testing"
	"time"

	"hushbet/internal/models"

	"github.com/google/uuid"
)

func mockMarket(status models.MarketStatus) *models.Market {
	return &models.Market{
		ID:              uuid.New(),
		Name:            "Thanksgiving 2026",
		Status:          status,
		CreatedBy:       uuid.New(),
		InviteCode:      "TESTAA",
		StartingBalance: 1000,
		CreatedAt:       time.Now(),
	}
}

func mockParticipant(marketID uuid.UUID, balance int64, isAdmin bool) *models.Participant {
	return &models.Participant{
		ID:          uuid.New(),
		MarketID:    marketID,
		DeviceID:    uuid.NewString(),
		DisplayName: "tester",
		Balance:     balance,
		IsAdmin:     isAdmin,
		JoinedAt:    time.Now(),
	}
}

func mockBet(marketID, subjectID uuid.UUID, status models.BetStatus) *models.Bet {
	return &models.Bet{
		ID:          uuid.New(),
		MarketID:    marketID,
		SubjectID:   subjectID,
		CreatedBy:   uuid.New(),
		Description: "test bet",
		Status:      status,
	}
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	var re *RuleError
	if !errors.As(err, &re) {
		t.Fatalf("expected RuleError %s, got %v", code, err)
	}
	if re.Code != code {
		t.Fatalf("expected code %s, got %s (%s)", code, re.Code, re.Message)
	}
}

func TestCanPlaceWagerSuccess(t *testing.T) {
	market := mockMarket(models.MarketStatusOpen)
	wagerer := mockParticipant(market.ID, 1000, false)
	bet := mockBet(market.ID, uuid.New(), models.BetStatusActive)

	if err := CanPlaceWager(market, bet, wagerer, models.SideYes, 100); err != nil {
		t.Fatalf("expected wager to be allowed, got %v", err)
	}
}

func TestCanPlaceWagerSelfBet(t *testing.T) {
	market := mockMarket(models.MarketStatusOpen)
	wagerer := mockParticipant(market.ID, 1000, false)
	bet := mockBet(market.ID, wagerer.ID, models.BetStatusActive)

	// Regardless of side or amount, even amounts that would otherwise be
	// rejected for different reasons.
	for _, side := range []models.Side{models.SideYes, models.SideNo} {
		for _, amount := range []int64{-5, 0, 100, 5000} {
			assertCode(t, CanPlaceWager(market, bet, wagerer, side, amount), CodeSelfBetNotAllowed)
		}
	}
}

func TestCanPlaceWagerInsufficientBalance(t *testing.T) {
	market := mockMarket(models.MarketStatusOpen)
	wagerer := mockParticipant(market.ID, 50, false)
	bet := mockBet(market.ID, uuid.New(), models.BetStatusActive)

	assertCode(t, CanPlaceWager(market, bet, wagerer, models.SideNo, 100), CodeInsufficientBalance)
}

func TestCanPlaceWagerInvalidAmount(t *testing.T) {
	market := mockMarket(models.MarketStatusOpen)
	wagerer := mockParticipant(market.ID, 1000, false)
	bet := mockBet(market.ID, uuid.New(), models.BetStatusActive)

	assertCode(t, CanPlaceWager(market, bet, wagerer, models.SideYes, 0), CodeInvalidAmount)
	assertCode(t, CanPlaceWager(market, bet, wagerer, models.SideYes, -10), CodeInvalidAmount)
}

func TestCanPlaceWagerMarketNotOpen(t *testing.T) {
	for _, status := range []models.MarketStatus{models.MarketStatusDraft, models.MarketStatusClosed, models.MarketStatusResolved} {
		market := mockMarket(status)
		wagerer := mockParticipant(market.ID, 1000, false)
		bet := mockBet(market.ID, uuid.New(), models.BetStatusActive)

		assertCode(t, CanPlaceWager(market, bet, wagerer, models.SideYes, 100), CodeMarketNotOpen)
	}
}

func TestCanPlaceWagerBetStatus(t *testing.T) {
	market := mockMarket(models.MarketStatusOpen)
	wagerer := mockParticipant(market.ID, 1000, false)

	pending := mockBet(market.ID, uuid.New(), models.BetStatusPending)
	assertCode(t, CanPlaceWager(market, pending, wagerer, models.SideYes, 100), CodeBetNotActive)

	resolved := mockBet(market.ID, uuid.New(), models.BetStatusResolvedNo)
	assertCode(t, CanPlaceWager(market, resolved, wagerer, models.SideYes, 100), CodeBetAlreadyResolved)
}

func TestCanPlaceWagerAfterScheduledClose(t *testing.T) {
	market := mockMarket(models.MarketStatusOpen)
	past := time.Now().Add(-time.Minute)
	market.ClosesAt = &past
	wagerer := mockParticipant(market.ID, 1000, false)
	bet := mockBet(market.ID, uuid.New(), models.BetStatusActive)

	assertCode(t, CanPlaceWager(market, bet, wagerer, models.SideYes, 100), CodeMarketNotOpen)

	future := time.Now().Add(time.Hour)
	market.ClosesAt = &future
	if err := CanPlaceWager(market, bet, wagerer, models.SideYes, 100); err != nil {
		t.Fatalf("wager before scheduled close should be allowed, got %v", err)
	}
}

func TestCanCreateBet(t *testing.T) {
	market := mockMarket(models.MarketStatusOpen)
	creator := mockParticipant(market.ID, 500, false)
	subject := mockParticipant(market.ID, 500, false)

	if err := CanCreateBet(market, creator, subject, 100); err != nil {
		t.Fatalf("expected bet creation to be allowed, got %v", err)
	}

	assertCode(t, CanCreateBet(market, creator, subject, 0), CodeInvalidAmount)
	assertCode(t, CanCreateBet(market, creator, subject, -10), CodeInvalidAmount)
	assertCode(t, CanCreateBet(market, creator, subject, 501), CodeInsufficientBalance)

	stranger := mockParticipant(uuid.New(), 500, false)
	assertCode(t, CanCreateBet(market, creator, stranger, 100), CodeSubjectNotInMarket)

	closed := mockMarket(models.MarketStatusClosed)
	assertCode(t, CanCreateBet(closed, creator, subject, 100), CodeMarketNotOpen)
}

func TestCanCreateBetAboutSelf(t *testing.T) {
	market := mockMarket(models.MarketStatusOpen)
	creator := mockParticipant(market.ID, 500, false)

	// Proposing a bet about yourself is fine, staking it is not. A negative
	// wager is malformed input rather than a self-stake attempt.
	if err := CanCreateBet(market, creator, creator, 0); err != nil {
		t.Fatalf("expected self-subject bet with zero opening wager, got %v", err)
	}
	assertCode(t, CanCreateBet(market, creator, creator, 100), CodeSelfBetNotAllowed)
	assertCode(t, CanCreateBet(market, creator, creator, -10), CodeInvalidAmount)
}

func TestMarketLifecycleRules(t *testing.T) {
	draft := mockMarket(models.MarketStatusDraft)
	admin := mockParticipant(draft.ID, 1000, true)
	member := mockParticipant(draft.ID, 1000, false)

	if err := CanOpenMarket(draft, admin); err != nil {
		t.Fatalf("admin should open draft market, got %v", err)
	}
	assertCode(t, CanOpenMarket(draft, member), CodeNotAdmin)

	open := mockMarket(models.MarketStatusOpen)
	assertCode(t, CanOpenMarket(open, admin), CodeMarketNotDraft)

	if err := CanCloseMarket(open, admin); err != nil {
		t.Fatalf("admin should close open market, got %v", err)
	}
	assertCode(t, CanCloseMarket(draft, admin), CodeMarketNotOpen)

	resolved := mockMarket(models.MarketStatusResolved)
	assertCode(t, CanJoinMarket(resolved), CodeMarketResolved)
	if err := CanJoinMarket(open); err != nil {
		t.Fatalf("open market should accept joins, got %v", err)
	}

	assertCode(t, CanDeleteMarket(member), CodeNotAdmin)
	if err := CanDeleteMarket(admin); err != nil {
		t.Fatalf("admin should delete market, got %v", err)
	}
}

func TestCanApproveBet(t *testing.T) {
	market := mockMarket(models.MarketStatusOpen)
	admin := mockParticipant(market.ID, 1000, true)
	member := mockParticipant(market.ID, 1000, false)

	pending := mockBet(market.ID, uuid.New(), models.BetStatusPending)
	if err := CanApproveBet(pending, admin); err != nil {
		t.Fatalf("admin should approve pending bet, got %v", err)
	}
	assertCode(t, CanApproveBet(pending, member), CodeNotAdmin)

	active := mockBet(market.ID, uuid.New(), models.BetStatusActive)
	assertCode(t, CanApproveBet(active, admin), CodeBetNotPending)

	resolved := mockBet(market.ID, uuid.New(), models.BetStatusResolvedYes)
	assertCode(t, CanApproveBet(resolved, admin), CodeBetAlreadyResolved)
}

func TestCanResolveBet(t *testing.T) {
	market := mockMarket(models.MarketStatusOpen)
	admin := mockParticipant(market.ID, 1000, true)
	member := mockParticipant(market.ID, 1000, false)

	active := mockBet(market.ID, uuid.New(), models.BetStatusActive)
	if err := CanResolveBet(active, admin, models.SideYes); err != nil {
		t.Fatalf("admin should resolve active bet, got %v", err)
	}
	assertCode(t, CanResolveBet(active, member, models.SideYes), CodeNotAdmin)
	assertCode(t, CanResolveBet(active, admin, models.Side("MAYBE")), CodeInvalidSide)

	pending := mockBet(market.ID, uuid.New(), models.BetStatusPending)
	assertCode(t, CanResolveBet(pending, admin, models.SideNo), CodeBetNotActive)

	done := mockBet(market.ID, uuid.New(), models.BetStatusResolvedYes)
	assertCode(t, CanResolveBet(done, admin, models.SideNo), CodeBetAlreadyResolved)
}

func TestCanResolveMarket(t *testing.T) {
	closed := mockMarket(models.MarketStatusClosed)
	admin := mockParticipant(closed.ID, 1000, true)

	if err := CanResolveMarket(closed, admin, 0); err != nil {
		t.Fatalf("admin should resolve settled market, got %v", err)
	}
	assertCode(t, CanResolveMarket(closed, admin, 2), CodeBetsUnresolved)

	resolved := mockMarket(models.MarketStatusResolved)
	assertCode(t, CanResolveMarket(resolved, admin, 0), CodeMarketResolved)
}
