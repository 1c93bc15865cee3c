// Package rules holds the stateless admission predicates for every state
// transition. A predicate either returns nil (the transition may be applied)
// or a *RuleError carrying a stable reason code; it never mutates anything.
package rules

import (
	"fmt"
	"time"

	"hushbet/internal/models"
)

// Reason codes. These are the wire-stable identifiers the transport maps to
// HTTP statuses; messages may change, codes may not.
const (
	CodeNotAdmin             = "NOT_ADMIN"
	CodeMarketNotOpen        = "MARKET_NOT_OPEN"
	CodeMarketNotDraft       = "MARKET_NOT_DRAFT"
	CodeMarketResolved       = "MARKET_RESOLVED"
	CodeInvalidInviteCode    = "INVALID_INVITE_CODE"
	CodeInviteCodeTaken      = "INVITE_CODE_TAKEN"
	CodeDuplicateDisplayName = "DUPLICATE_DISPLAY_NAME"
	CodeSelfBetNotAllowed    = "SELF_BET_NOT_ALLOWED"
	CodeInsufficientBalance  = "INSUFFICIENT_BALANCE"
	CodeInvalidAmount        = "INVALID_AMOUNT"
	CodeInvalidSide          = "INVALID_SIDE"
	CodeBetNotActive         = "BET_NOT_ACTIVE"
	CodeBetNotPending        = "BET_NOT_PENDING"
	CodeBetAlreadyResolved   = "BET_ALREADY_RESOLVED"
	CodeSubjectNotInMarket   = "SUBJECT_NOT_IN_MARKET"
	CodeBetsUnresolved       = "BETS_UNRESOLVED"
	CodePoolOverflow         = "POOL_OVERFLOW"
)

// RuleError is a typed domain rejection. The command simply did not apply;
// nothing was persisted.
type RuleError struct {
	Code    string
	Message string
}

func (e *RuleError) Error() string {
	return e.Message
}

var (
	ErrNotAdmin             = &RuleError{Code: CodeNotAdmin, Message: "only the market admin can perform this action"}
	ErrMarketNotOpen        = &RuleError{Code: CodeMarketNotOpen, Message: "market is not open for betting"}
	ErrMarketNotDraft       = &RuleError{Code: CodeMarketNotDraft, Message: "market has already been opened"}
	ErrMarketResolved       = &RuleError{Code: CodeMarketResolved, Message: "market has been resolved"}
	ErrInvalidInviteCode    = &RuleError{Code: CodeInvalidInviteCode, Message: "invite code not recognized"}
	ErrInviteCodeTaken      = &RuleError{Code: CodeInviteCodeTaken, Message: "invite code is already in use"}
	ErrDuplicateDisplayName = &RuleError{Code: CodeDuplicateDisplayName, Message: "display name already taken in this market"}
	ErrSelfBetNotAllowed    = &RuleError{Code: CodeSelfBetNotAllowed, Message: "cannot wager on a bet about yourself"}
	ErrInvalidAmount        = &RuleError{Code: CodeInvalidAmount, Message: "amount must be a positive integer"}
	ErrInvalidSide          = &RuleError{Code: CodeInvalidSide, Message: "side must be YES or NO"}
	ErrBetNotActive         = &RuleError{Code: CodeBetNotActive, Message: "bet is not open for wagering"}
	ErrBetNotPending        = &RuleError{Code: CodeBetNotPending, Message: "bet is not awaiting approval"}
	ErrBetAlreadyResolved   = &RuleError{Code: CodeBetAlreadyResolved, Message: "bet has already been resolved"}
	ErrSubjectNotInMarket   = &RuleError{Code: CodeSubjectNotInMarket, Message: "subject is not a participant of this market"}
	ErrBetsUnresolved       = &RuleError{Code: CodeBetsUnresolved, Message: "market still has unresolved bets"}
	ErrPoolOverflow         = &RuleError{Code: CodePoolOverflow, Message: "pool arithmetic would exceed representable range"}
)

// InsufficientBalance builds the balance rejection with the amounts that
// made it fail, for the caller's error message.
func InsufficientBalance(needed, available int64) *RuleError {
	return &RuleError{
		Code:    CodeInsufficientBalance,
		Message: fmt.Sprintf("insufficient balance: need %d, have %d", needed, available),
	}
}

// CanOpenMarket: admin only, and only from draft.
func CanOpenMarket(market *models.Market, caller *models.Participant) error {
	if !caller.IsAdmin {
		return ErrNotAdmin
	}
	if market.Status != models.MarketStatusDraft {
		return ErrMarketNotDraft
	}
	return nil
}

// CanCloseMarket: admin only, and only from open.
func CanCloseMarket(market *models.Market, caller *models.Participant) error {
	if !caller.IsAdmin {
		return ErrNotAdmin
	}
	if market.Status != models.MarketStatusOpen {
		return ErrMarketNotOpen
	}
	return nil
}

// CanJoinMarket: anyone with the invite code may join until the market is
// resolved. Device-id rejoin is handled before this rule (idempotent join).
func CanJoinMarket(market *models.Market) error {
	if market.Status == models.MarketStatusResolved {
		return ErrMarketResolved
	}
	return nil
}

// bettingOpen: the market must be in its open status and, when a scheduled
// close was set, before it. A market past closes_at behaves as closed even
// if the admin has not issued the close command yet.
func bettingOpen(market *models.Market) bool {
	if market.Status != models.MarketStatusOpen {
		return false
	}
	if market.ClosesAt != nil && !time.Now().Before(*market.ClosesAt) {
		return false
	}
	return true
}

// CanCreateBet: the market must be open and the subject a member of it. A
// negative opening wager is malformed whoever the subject is. A participant
// may propose a bet about themself, but since the self-bet ban covers the
// opening stake, such a bet must open with a zero wager; any other bet opens
// with a positive wager within the creator's balance.
func CanCreateBet(market *models.Market, creator, subject *models.Participant, openingWager int64) error {
	if !bettingOpen(market) {
		return ErrMarketNotOpen
	}
	if subject.MarketID != market.ID || creator.MarketID != market.ID {
		return ErrSubjectNotInMarket
	}
	if openingWager < 0 {
		return ErrInvalidAmount
	}
	if creator.ID == subject.ID {
		if openingWager != 0 {
			return ErrSelfBetNotAllowed
		}
		return nil
	}
	if openingWager == 0 {
		return ErrInvalidAmount
	}
	if openingWager > creator.Balance {
		return InsufficientBalance(openingWager, creator.Balance)
	}
	return nil
}

// CanApproveBet: admin moderation of a pending bet.
func CanApproveBet(bet *models.Bet, caller *models.Participant) error {
	if !caller.IsAdmin {
		return ErrNotAdmin
	}
	if bet.Status.Resolved() {
		return ErrBetAlreadyResolved
	}
	if bet.Status != models.BetStatusPending {
		return ErrBetNotPending
	}
	return nil
}

// CanPlaceWager: the self-bet ban is checked before amount legality so a
// subject is told SELF_BET_NOT_ALLOWED whatever side or amount they try.
func CanPlaceWager(market *models.Market, bet *models.Bet, wagerer *models.Participant, side models.Side, amount int64) error {
	if !bettingOpen(market) {
		return ErrMarketNotOpen
	}
	if bet.Status.Resolved() {
		return ErrBetAlreadyResolved
	}
	if bet.Status != models.BetStatusActive {
		return ErrBetNotActive
	}
	if bet.SubjectID == wagerer.ID {
		return ErrSelfBetNotAllowed
	}
	if !side.Valid() {
		return ErrInvalidSide
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if amount > wagerer.Balance {
		return InsufficientBalance(amount, wagerer.Balance)
	}
	return nil
}

// CanResolveBet: admin only; only an active bet can resolve.
func CanResolveBet(bet *models.Bet, caller *models.Participant, outcome models.Side) error {
	if !caller.IsAdmin {
		return ErrNotAdmin
	}
	if bet.Status.Resolved() {
		return ErrBetAlreadyResolved
	}
	if bet.Status != models.BetStatusActive {
		return ErrBetNotActive
	}
	if !outcome.Valid() {
		return ErrInvalidSide
	}
	return nil
}

// CanResolveMarket: admin only, every bet settled, not already resolved.
func CanResolveMarket(market *models.Market, caller *models.Participant, unresolvedBets int64) error {
	if !caller.IsAdmin {
		return ErrNotAdmin
	}
	if market.Status == models.MarketStatusResolved {
		return ErrMarketResolved
	}
	if unresolvedBets > 0 {
		return ErrBetsUnresolved
	}
	return nil
}

// CanDeleteMarket: admin only, any status.
func CanDeleteMarket(caller *models.Participant) error {
	if !caller.IsAdmin {
		return ErrNotAdmin
	}
	return nil
}
