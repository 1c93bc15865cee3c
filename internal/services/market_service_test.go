package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"hushbet/internal/events"
	"hushbet/internal/models"
	"hushbet/internal/repository"
	"hushbet/internal/rules"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// setupTestDB opens a shared in-memory sqlite database named after the test.
// _txlock=immediate serializes transactions, which stands in for the row
// locks the postgres backend uses.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_txlock=immediate&_busy_timeout=5000", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.Market{}, &models.Participant{}, &models.Bet{}, &models.Wager{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

// recorder collects published events for assertions.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type())
	}
	return out
}

func newTestService(t *testing.T) (*MarketService, *recorder) {
	t.Helper()
	sink := &recorder{}
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return NewMarketService(repository.New(setupTestDB(t)), sink, log), sink
}

func createOpenMarket(t *testing.T, svc *MarketService, requireApproval bool) (*models.Market, *models.Participant) {
	t.Helper()
	ctx := context.Background()
	market, admin, err := svc.CreateMarket(ctx, CreateMarketParams{
		Name:            "Thanksgiving 2026",
		DeviceID:        "admin-device",
		AdminName:       "Alice",
		AdminAvatar:     "🦃",
		StartingBalance: 1000,
		RequireApproval: requireApproval,
	})
	if err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}
	market, err = svc.OpenMarket(ctx, market.ID, admin.ID)
	if err != nil {
		t.Fatalf("OpenMarket: %v", err)
	}
	return market, admin
}

func join(t *testing.T, svc *MarketService, code, device, name string) *models.Participant {
	t.Helper()
	_, p, err := svc.JoinMarket(context.Background(), code, device, name, "")
	if err != nil {
		t.Fatalf("JoinMarket(%s): %v", name, err)
	}
	return p
}

func assertRuleCode(t *testing.T, err error, code string) {
	t.Helper()
	var re *rules.RuleError
	if !errors.As(err, &re) {
		t.Fatalf("expected RuleError %s, got %v", code, err)
	}
	if re.Code != code {
		t.Fatalf("expected code %s, got %s", code, re.Code)
	}
}

func TestCreateMarketBootstrapsAdmin(t *testing.T) {
	svc, sink := newTestService(t)
	ctx := context.Background()

	market, admin, err := svc.CreateMarket(ctx, CreateMarketParams{
		Name:            "Office Pool",
		DeviceID:        "dev-1",
		AdminName:       "Alice",
		StartingBalance: 500,
	})
	if err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}
	if market.Status != models.MarketStatusDraft {
		t.Errorf("expected draft market, got %s", market.Status)
	}
	if len(market.InviteCode) != 6 {
		t.Errorf("expected 6-char invite code, got %q", market.InviteCode)
	}
	if !admin.IsAdmin || admin.Balance != 500 {
		t.Errorf("admin not bootstrapped correctly: %+v", admin)
	}
	if market.CreatedBy != admin.ID {
		t.Errorf("market.CreatedBy should reference the admin")
	}
	if got := sink.types(); len(got) != 1 || got[0] != "market_created" {
		t.Errorf("expected one market_created event, got %v", got)
	}
}

func TestCreateMarketCustomInviteCode(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	market, _, err := svc.CreateMarket(ctx, CreateMarketParams{
		Name:             "Custom",
		DeviceID:         "dev-1",
		AdminName:        "Alice",
		StartingBalance:  500,
		CustomInviteCode: "party9",
	})
	if err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}
	if market.InviteCode != "PARTY9" {
		t.Errorf("expected uppercased custom code, got %q", market.InviteCode)
	}

	_, _, err = svc.CreateMarket(ctx, CreateMarketParams{
		Name:             "Clash",
		DeviceID:         "dev-2",
		AdminName:        "Bob",
		StartingBalance:  500,
		CustomInviteCode: "PARTY9",
	})
	assertRuleCode(t, err, rules.CodeInviteCodeTaken)

	_, _, err = svc.CreateMarket(ctx, CreateMarketParams{
		Name:             "Bad",
		DeviceID:         "dev-3",
		AdminName:        "Cara",
		StartingBalance:  500,
		CustomInviteCode: "no",
	})
	assertRuleCode(t, err, rules.CodeInvalidInviteCode)

	// Right length but outside the unambiguous alphabet (no 0/O/1/I).
	for _, code := range []string{"ZERO00", "O0I1II", "PARTY1"} {
		_, _, err = svc.CreateMarket(ctx, CreateMarketParams{
			Name:             "Bad",
			DeviceID:         "dev-4",
			AdminName:        "Dave",
			StartingBalance:  500,
			CustomInviteCode: code,
		})
		assertRuleCode(t, err, rules.CodeInvalidInviteCode)
	}
}

func TestConcurrentCreateMarketSameCode(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		device := fmt.Sprintf("dev-%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.CreateMarket(ctx, CreateMarketParams{
				Name:             "Clash",
				DeviceID:         device,
				AdminName:        "Admin " + device,
				StartingBalance:  500,
				CustomInviteCode: "PARTYX",
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var successes, rejections int
	for err := range errs {
		if err == nil {
			successes++
			continue
		}
		assertRuleCode(t, err, rules.CodeInviteCodeTaken)
		rejections++
	}
	if successes != 1 || rejections != 1 {
		t.Fatalf("expected exactly one success and one rejection, got %d/%d", successes, rejections)
	}
}

func TestJoinMarketIdempotentByDevice(t *testing.T) {
	svc, _ := newTestService(t)
	market, _ := createOpenMarket(t, svc, false)

	first := join(t, svc, market.InviteCode, "bob-phone", "Bob")
	second := join(t, svc, market.InviteCode, "bob-phone", "Bobby")

	if first.ID != second.ID {
		t.Fatalf("rejoin created a new participant: %s vs %s", first.ID, second.ID)
	}
	if second.DisplayName != "Bob" {
		t.Errorf("rejoin must not rename, got %q", second.DisplayName)
	}
}

func TestJoinMarketRejections(t *testing.T) {
	svc, _ := newTestService(t)
	market, _ := createOpenMarket(t, svc, false)
	ctx := context.Background()

	join(t, svc, market.InviteCode, "bob-phone", "Bob")

	_, _, err := svc.JoinMarket(ctx, market.InviteCode, "other-phone", "bob", "")
	assertRuleCode(t, err, rules.CodeDuplicateDisplayName)

	_, _, err = svc.JoinMarket(ctx, "ZZZZZZ", "other-phone", "Cara", "")
	assertRuleCode(t, err, rules.CodeInvalidInviteCode)
}

func TestBetLifecycleAndConservation(t *testing.T) {
	svc, sink := newTestService(t)
	market, admin := createOpenMarket(t, svc, false)
	ctx := context.Background()

	bob := join(t, svc, market.InviteCode, "bob", "Bob")
	cara := join(t, svc, market.InviteCode, "cara", "Cara")
	dave := join(t, svc, market.InviteCode, "dave", "Dave")

	bet, err := svc.CreateBet(ctx, CreateBetParams{
		MarketID:        market.ID,
		CreatorID:       admin.ID,
		SubjectID:       bob.ID,
		Description:     "Bob falls asleep before midnight",
		OpeningWager:    100,
		HideFromSubject: true,
	})
	if err != nil {
		t.Fatalf("CreateBet: %v", err)
	}
	if bet.Status != models.BetStatusActive {
		t.Fatalf("expected active bet without approval flow, got %s", bet.Status)
	}
	if bet.YesPool != 100 || bet.NoPool != 0 {
		t.Fatalf("opening wager should seed YES pool, got %d/%d", bet.YesPool, bet.NoPool)
	}

	if _, err := svc.PlaceWager(ctx, bet.ID, cara.ID, models.SideYes, 200); err != nil {
		t.Fatalf("PlaceWager cara: %v", err)
	}
	if _, err := svc.PlaceWager(ctx, bet.ID, dave.ID, models.SideNo, 150); err != nil {
		t.Fatalf("PlaceWager dave: %v", err)
	}

	_, err = svc.PlaceWager(ctx, bet.ID, bob.ID, models.SideNo, 50)
	assertRuleCode(t, err, rules.CodeSelfBetNotAllowed)

	resolved, payouts, err := svc.ResolveBet(ctx, bet.ID, admin.ID, models.SideYes)
	if err != nil {
		t.Fatalf("ResolveBet: %v", err)
	}
	if resolved.Status != models.BetStatusResolvedYes || resolved.ResolvedAt == nil {
		t.Fatalf("bet not marked resolved: %+v", resolved)
	}

	// Pot is 450; every winning coin must come back out.
	var paid int64
	for _, p := range payouts {
		paid += p.Amount
	}
	if paid != 450 {
		t.Fatalf("payouts %d, want full pot 450", paid)
	}

	// admin: 1000 - 100 + floor(100*450/300) = 1050
	// cara:  1000 - 200 + floor(200*450/300) = 1100
	// dave:  1000 - 150 = 850, bob untouched.
	for _, want := range []struct {
		id      uuid.UUID
		balance int64
	}{{admin.ID, 1050}, {cara.ID, 1100}, {dave.ID, 850}, {bob.ID, 1000}} {
		p, err := svc.GetParticipant(ctx, want.id)
		if err != nil {
			t.Fatalf("GetParticipant: %v", err)
		}
		if p.Balance != want.balance {
			t.Errorf("%s balance = %d, want %d", p.DisplayName, p.Balance, want.balance)
		}
	}

	// Total coins in the market must equal 4 * starting balance.
	var total int64
	for _, id := range []uuid.UUID{admin.ID, bob.ID, cara.ID, dave.ID} {
		p, _ := svc.GetParticipant(ctx, id)
		total += p.Balance
	}
	if total != 4000 {
		t.Errorf("coins not conserved: %d", total)
	}

	types := sink.types()
	last := types[len(types)-1]
	if last != "bet_resolved" {
		t.Errorf("expected bet_resolved as last event, got %v", types)
	}

	_, _, err = svc.ResolveBet(ctx, bet.ID, admin.ID, models.SideNo)
	assertRuleCode(t, err, rules.CodeBetAlreadyResolved)
}

func TestApprovalFlow(t *testing.T) {
	svc, _ := newTestService(t)
	market, admin := createOpenMarket(t, svc, true)
	ctx := context.Background()

	bob := join(t, svc, market.InviteCode, "bob", "Bob")
	cara := join(t, svc, market.InviteCode, "cara", "Cara")

	bet, err := svc.CreateBet(ctx, CreateBetParams{
		MarketID:     market.ID,
		CreatorID:    cara.ID,
		SubjectID:    bob.ID,
		Description:  "Bob burns the turkey",
		OpeningWager: 50,
	})
	if err != nil {
		t.Fatalf("CreateBet: %v", err)
	}
	if bet.Status != models.BetStatusPending {
		t.Fatalf("moderated market should create pending bets, got %s", bet.Status)
	}

	_, err = svc.PlaceWager(ctx, bet.ID, admin.ID, models.SideNo, 25)
	assertRuleCode(t, err, rules.CodeBetNotActive)

	_, err = svc.ApproveBet(ctx, bet.ID, cara.ID)
	assertRuleCode(t, err, rules.CodeNotAdmin)

	queue, err := svc.ListPendingBets(ctx, market.ID, admin.ID)
	if err != nil {
		t.Fatalf("ListPendingBets: %v", err)
	}
	if len(queue) != 1 || queue[0].ID != bet.ID {
		t.Fatalf("expected the pending bet in the queue, got %d entries", len(queue))
	}

	approved, err := svc.ApproveBet(ctx, bet.ID, admin.ID)
	if err != nil {
		t.Fatalf("ApproveBet: %v", err)
	}
	if approved.Status != models.BetStatusActive {
		t.Fatalf("expected active after approval, got %s", approved.Status)
	}
	if _, err := svc.PlaceWager(ctx, bet.ID, admin.ID, models.SideNo, 25); err != nil {
		t.Fatalf("PlaceWager after approval: %v", err)
	}
}

func TestHiddenBetRedactionAndReveal(t *testing.T) {
	svc, _ := newTestService(t)
	market, admin := createOpenMarket(t, svc, false)
	ctx := context.Background()

	bob := join(t, svc, market.InviteCode, "bob", "Bob")

	bet, err := svc.CreateBet(ctx, CreateBetParams{
		MarketID:        market.ID,
		CreatorID:       admin.ID,
		SubjectID:       bob.ID,
		Description:     "Bob mentions crypto at dinner",
		OpeningWager:    100,
		HideFromSubject: true,
	})
	if err != nil {
		t.Fatalf("CreateBet: %v", err)
	}

	bobViews, err := svc.ListBets(ctx, market.ID, bob.ID)
	if err != nil {
		t.Fatalf("ListBets(bob): %v", err)
	}
	if len(bobViews) != 1 || !bobViews[0].IsHidden {
		t.Fatalf("subject should see a redacted bet, got %+v", bobViews)
	}
	if bobViews[0].Description != nil || bobViews[0].SubjectID != nil {
		t.Errorf("redacted view leaked content: %+v", bobViews[0])
	}

	adminViews, err := svc.ListBets(ctx, market.ID, admin.ID)
	if err != nil {
		t.Fatalf("ListBets(admin): %v", err)
	}
	if adminViews[0].IsHidden || adminViews[0].Description == nil {
		t.Fatalf("non-subject should see the full bet, got %+v", adminViews[0])
	}

	revealed, err := svc.Reveal(ctx, bob.ID)
	if err != nil {
		t.Fatalf("Reveal: %v", err)
	}
	if len(revealed) != 1 || revealed[0].IsHidden || revealed[0].Description == nil {
		t.Fatalf("reveal must bypass redaction, got %+v", revealed)
	}

	if _, _, err := svc.ResolveBet(ctx, bet.ID, admin.ID, models.SideNo); err != nil {
		t.Fatalf("ResolveBet: %v", err)
	}
	bobViews, err = svc.ListBets(ctx, market.ID, bob.ID)
	if err != nil {
		t.Fatalf("ListBets after resolution: %v", err)
	}
	if bobViews[0].IsHidden || bobViews[0].Description == nil {
		t.Fatalf("resolution should disclose the bet to the subject, got %+v", bobViews[0])
	}
}

func TestSelfSubjectBetRequiresZeroOpeningWager(t *testing.T) {
	svc, _ := newTestService(t)
	market, _ := createOpenMarket(t, svc, false)
	ctx := context.Background()

	bob := join(t, svc, market.InviteCode, "bob", "Bob")

	_, err := svc.CreateBet(ctx, CreateBetParams{
		MarketID:     market.ID,
		CreatorID:    bob.ID,
		SubjectID:    bob.ID,
		Description:  "I will win the cook-off",
		OpeningWager: 50,
	})
	assertRuleCode(t, err, rules.CodeSelfBetNotAllowed)

	bet, err := svc.CreateBet(ctx, CreateBetParams{
		MarketID:    market.ID,
		CreatorID:   bob.ID,
		SubjectID:   bob.ID,
		Description: "I will win the cook-off",
	})
	if err != nil {
		t.Fatalf("zero-stake self bet should be allowed: %v", err)
	}
	if bet.YesPool != 0 || bet.NoPool != 0 {
		t.Fatalf("self bet must start with empty pools, got %d/%d", bet.YesPool, bet.NoPool)
	}

	p, _ := svc.GetParticipant(ctx, bob.ID)
	if p.Balance != 1000 {
		t.Errorf("zero-stake bet must not debit, balance %d", p.Balance)
	}
}

func TestLeaderboardOrdering(t *testing.T) {
	svc, _ := newTestService(t)
	market, admin := createOpenMarket(t, svc, false)
	ctx := context.Background()

	bob := join(t, svc, market.InviteCode, "bob", "Bob")
	cara := join(t, svc, market.InviteCode, "cara", "Cara")

	bet, err := svc.CreateBet(ctx, CreateBetParams{
		MarketID:     market.ID,
		CreatorID:    admin.ID,
		SubjectID:    bob.ID,
		Description:  "Bob arrives late",
		OpeningWager: 100,
	})
	if err != nil {
		t.Fatalf("CreateBet: %v", err)
	}
	if _, err := svc.PlaceWager(ctx, bet.ID, cara.ID, models.SideNo, 100); err != nil {
		t.Fatalf("PlaceWager: %v", err)
	}
	if _, _, err := svc.ResolveBet(ctx, bet.ID, admin.ID, models.SideNo); err != nil {
		t.Fatalf("ResolveBet: %v", err)
	}

	// cara: 1100, admin: 900, bob: 1000 untouched.
	entries, err := svc.Leaderboard(ctx, market.ID)
	if err != nil {
		t.Fatalf("Leaderboard: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	wantOrder := []string{"Cara", "Bob", "Alice"}
	for i, want := range wantOrder {
		if entries[i].Participant.DisplayName != want {
			t.Errorf("rank %d = %s, want %s", i+1, entries[i].Participant.DisplayName, want)
		}
		if entries[i].Rank != i+1 {
			t.Errorf("entry %d has rank %d", i, entries[i].Rank)
		}
	}
	if entries[0].Profit != 100 || entries[2].Profit != -100 {
		t.Errorf("profits wrong: %+v", entries)
	}
	if !entries[0].ROI.Equal(decimal.NewFromFloat(0.1)) {
		t.Errorf("ROI = %s, want 0.1", entries[0].ROI)
	}
}

func TestLeaderboardTieKeepsJoinOrder(t *testing.T) {
	svc, _ := newTestService(t)
	market, _ := createOpenMarket(t, svc, false)

	join(t, svc, market.InviteCode, "bob", "Bob")
	join(t, svc, market.InviteCode, "cara", "Cara")

	entries, err := svc.Leaderboard(context.Background(), market.ID)
	if err != nil {
		t.Fatalf("Leaderboard: %v", err)
	}
	wantOrder := []string{"Alice", "Bob", "Cara"}
	for i, want := range wantOrder {
		if entries[i].Participant.DisplayName != want {
			t.Errorf("rank %d = %s, want %s", i+1, entries[i].Participant.DisplayName, want)
		}
	}
}

func TestProbabilityHistory(t *testing.T) {
	svc, _ := newTestService(t)
	market, admin := createOpenMarket(t, svc, false)
	ctx := context.Background()

	bob := join(t, svc, market.InviteCode, "bob", "Bob")
	cara := join(t, svc, market.InviteCode, "cara", "Cara")

	bet, err := svc.CreateBet(ctx, CreateBetParams{
		MarketID:     market.ID,
		CreatorID:    admin.ID,
		SubjectID:    bob.ID,
		Description:  "Bob tells the airport story again",
		OpeningWager: 100,
	})
	if err != nil {
		t.Fatalf("CreateBet: %v", err)
	}
	if _, err := svc.PlaceWager(ctx, bet.ID, cara.ID, models.SideNo, 100); err != nil {
		t.Fatalf("PlaceWager: %v", err)
	}
	if _, err := svc.PlaceWager(ctx, cara.ID, cara.ID, models.SideNo, 100); err == nil {
		t.Fatal("wager on a non-bet id should fail")
	}

	points, err := svc.ProbabilityHistory(ctx, bet.ID)
	if err != nil {
		t.Fatalf("ProbabilityHistory: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	if points[0].YesProbability != 1.0 {
		t.Errorf("after opening wager probability = %v, want 1.0", points[0].YesProbability)
	}
	if points[1].YesProbability != 0.5 {
		t.Errorf("after counter wager probability = %v, want 0.5", points[1].YesProbability)
	}
}

func TestResolveMarketRequiresSettledBets(t *testing.T) {
	svc, _ := newTestService(t)
	market, admin := createOpenMarket(t, svc, false)
	ctx := context.Background()

	bob := join(t, svc, market.InviteCode, "bob", "Bob")

	bet, err := svc.CreateBet(ctx, CreateBetParams{
		MarketID:     market.ID,
		CreatorID:    admin.ID,
		SubjectID:    bob.ID,
		Description:  "Bob wins charades",
		OpeningWager: 100,
	})
	if err != nil {
		t.Fatalf("CreateBet: %v", err)
	}

	if _, err := svc.CloseMarket(ctx, market.ID, admin.ID); err != nil {
		t.Fatalf("CloseMarket: %v", err)
	}
	_, err = svc.ResolveMarket(ctx, market.ID, admin.ID)
	assertRuleCode(t, err, rules.CodeBetsUnresolved)

	if _, _, err := svc.ResolveBet(ctx, bet.ID, admin.ID, models.SideYes); err != nil {
		t.Fatalf("ResolveBet: %v", err)
	}
	resolved, err := svc.ResolveMarket(ctx, market.ID, admin.ID)
	if err != nil {
		t.Fatalf("ResolveMarket: %v", err)
	}
	if resolved.Status != models.MarketStatusResolved || resolved.ResolvedAt == nil {
		t.Fatalf("market not resolved: %+v", resolved)
	}

	_, _, err = svc.JoinMarket(ctx, market.InviteCode, "late", "Eve", "")
	assertRuleCode(t, err, rules.CodeMarketResolved)
}

func TestDeleteMarketCascades(t *testing.T) {
	svc, _ := newTestService(t)
	market, admin := createOpenMarket(t, svc, false)
	ctx := context.Background()

	bob := join(t, svc, market.InviteCode, "bob", "Bob")
	bet, err := svc.CreateBet(ctx, CreateBetParams{
		MarketID:     market.ID,
		CreatorID:    admin.ID,
		SubjectID:    bob.ID,
		Description:  "Bob naps on the couch",
		OpeningWager: 100,
	})
	if err != nil {
		t.Fatalf("CreateBet: %v", err)
	}

	if err := svc.DeleteMarket(ctx, market.ID, bob.ID); err == nil {
		t.Fatal("non-admin delete should fail")
	}
	if err := svc.DeleteMarket(ctx, market.ID, admin.ID); err != nil {
		t.Fatalf("DeleteMarket: %v", err)
	}

	if _, err := svc.GetMarket(ctx, market.ID); err == nil {
		t.Error("market should be gone")
	}
	if _, err := svc.GetParticipant(ctx, bob.ID); err == nil {
		t.Error("participants should be gone")
	}
	if _, err := svc.ProbabilityHistory(ctx, bet.ID); err == nil {
		t.Error("bet and wagers should be gone")
	}
}

func TestMarketsByDevice(t *testing.T) {
	svc, _ := newTestService(t)
	first, _ := createOpenMarket(t, svc, false)
	ctx := context.Background()

	second, _, err := svc.CreateMarket(ctx, CreateMarketParams{
		Name:            "Office Pool",
		DeviceID:        "bob",
		AdminName:       "Bob",
		StartingBalance: 500,
	})
	if err != nil {
		t.Fatalf("CreateMarket: %v", err)
	}
	join(t, svc, first.InviteCode, "bob", "Bob")

	memberships, err := svc.MarketsByDevice(ctx, "bob")
	if err != nil {
		t.Fatalf("MarketsByDevice: %v", err)
	}
	if len(memberships) != 2 {
		t.Fatalf("expected 2 memberships, got %d", len(memberships))
	}
	ids := map[uuid.UUID]bool{}
	for _, m := range memberships {
		ids[m.Market.ID] = true
	}
	if !ids[first.ID] || !ids[second.ID] {
		t.Errorf("memberships missing a market: %+v", ids)
	}
}

// Two simultaneous wagers that together exceed the balance must not both
// commit. The transaction serialization is what prevents the overdraw.
func TestConcurrentWagersCannotOverdraw(t *testing.T) {
	svc, _ := newTestService(t)
	market, admin := createOpenMarket(t, svc, false)
	ctx := context.Background()

	bob := join(t, svc, market.InviteCode, "bob", "Bob")
	cara := join(t, svc, market.InviteCode, "cara", "Cara")

	bet, err := svc.CreateBet(ctx, CreateBetParams{
		MarketID:     market.ID,
		CreatorID:    admin.ID,
		SubjectID:    bob.ID,
		Description:  "Bob checks his phone during dinner",
		OpeningWager: 10,
	})
	if err != nil {
		t.Fatalf("CreateBet: %v", err)
	}

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.PlaceWager(ctx, bet.ID, cara.ID, models.SideYes, 700)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var successes, rejections int
	for err := range errs {
		if err == nil {
			successes++
			continue
		}
		assertRuleCode(t, err, rules.CodeInsufficientBalance)
		rejections++
	}
	if successes != 1 || rejections != 1 {
		t.Fatalf("expected exactly one success and one rejection, got %d/%d", successes, rejections)
	}

	p, err := svc.GetParticipant(ctx, cara.ID)
	if err != nil {
		t.Fatalf("GetParticipant: %v", err)
	}
	if p.Balance != 300 {
		t.Errorf("balance = %d, want 300", p.Balance)
	}
}
