// Package parimutuel is the pure pool engine: implied probability, pool
// updates and settlement. All wagers go into two pools; when a bet resolves,
// the whole pot is split among winning-side wagers proportionally to stake.
// Every function here is deterministic and free of I/O.
package parimutuel

import (
	"errors"

	"hushbet/internal/models"

	"github.com/google/uuid"
)

// MaxPoolTotal caps the combined size of both pools. Settlement multiplies a
// stake by the total pool before dividing, and stake <= total, so keeping
// total*total inside int64 requires total <= ~3.0e9. Realistic markets sit
// many orders of magnitude below this.
const MaxPoolTotal int64 = 3_000_000_000

// ErrPoolOverflow is returned instead of letting pool arithmetic wrap.
var ErrPoolOverflow = errors.New("pool total would exceed representable range")

// Probability returns the implied YES probability, yes/(yes+no).
// With no information (both pools empty) it is exactly 0.5.
func Probability(yesPool, noPool int64) float64 {
	total := yesPool + noPool
	if total == 0 {
		return 0.5
	}
	return float64(yesPool) / float64(total)
}

// Apply returns the pools after adding amount to the chosen side. Amount
// legality (positive, within balance) is the rules engine's job; Apply only
// guards the numeric range.
func Apply(yesPool, noPool int64, side models.Side, amount int64) (int64, int64, error) {
	if amount > MaxPoolTotal-yesPool-noPool {
		return 0, 0, ErrPoolOverflow
	}
	switch side {
	case models.SideYes:
		return yesPool + amount, noPool, nil
	case models.SideNo:
		return yesPool, noPool + amount, nil
	default:
		return 0, 0, errors.New("unknown side")
	}
}

// PotentialPayout quotes what a wager of amount on side would return if that
// side won, given the pools as they would stand after the wager.
func PotentialPayout(yesPool, noPool int64, side models.Side, amount int64) int64 {
	yes, no, err := Apply(yesPool, noPool, side, amount)
	if err != nil {
		return 0
	}
	total := yes + no
	winning := yes
	if side == models.SideNo {
		winning = no
	}
	if winning == 0 {
		return 0
	}
	return amount * total / winning
}

// Payout is one participant's settlement credit.
type Payout struct {
	ParticipantID uuid.UUID `json:"participant_id"`
	Amount        int64     `json:"amount"`
}

// Settle distributes the whole pot among winning-side wagers. Each winning
// wager earns floor(stake * total / winningPool); the rounding remainder is
// credited to the largest winning wager, earliest placement breaking ties,
// so that the credits sum to exactly yesPool+noPool.
//
// If nobody wagered on the winning side there is no winner to fund, so every
// wager is refunded at face value; conservation holds either way.
//
// Wagers must be in placement order, as the ledger stores them.
func Settle(yesPool, noPool int64, winning models.Side, wagers []*models.Wager) []Payout {
	total := yesPool + noPool
	if total == 0 {
		return nil
	}

	winningPool := yesPool
	if winning == models.SideNo {
		winningPool = noPool
	}

	if winningPool == 0 {
		return refund(wagers)
	}

	credits := make(map[uuid.UUID]int64)
	var order []uuid.UUID
	var distributed int64
	var remainderTo uuid.UUID
	var largestStake int64

	for _, w := range wagers {
		if w.Side != winning {
			continue
		}
		payout := w.Amount * total / winningPool
		if _, seen := credits[w.ParticipantID]; !seen {
			order = append(order, w.ParticipantID)
		}
		credits[w.ParticipantID] += payout
		distributed += payout
		if w.Amount > largestStake {
			largestStake = w.Amount
			remainderTo = w.ParticipantID
		}
	}

	if remainder := total - distributed; remainder > 0 {
		credits[remainderTo] += remainder
	}

	payouts := make([]Payout, 0, len(order))
	for _, id := range order {
		payouts = append(payouts, Payout{ParticipantID: id, Amount: credits[id]})
	}
	return payouts
}

func refund(wagers []*models.Wager) []Payout {
	credits := make(map[uuid.UUID]int64)
	var order []uuid.UUID
	for _, w := range wagers {
		if _, seen := credits[w.ParticipantID]; !seen {
			order = append(order, w.ParticipantID)
		}
		credits[w.ParticipantID] += w.Amount
	}
	payouts := make([]Payout, 0, len(order))
	for _, id := range order {
		payouts = append(payouts, Payout{ParticipantID: id, Amount: credits[id]})
	}
	return payouts
}
