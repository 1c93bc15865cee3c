// Package visibility maps a bet to what a given viewer is allowed to see.
// The one rule of the game: a bet about you, flagged hide_from_subject, is
// redacted from you until it resolves. Resolution is the irreversible
// disclosure event.
package visibility

import (
	"hushbet/internal/models"
	"hushbet/internal/parimutuel"

	"github.com/google/uuid"
)

// Project returns the bet as seen by viewerID. Hidden iff the viewer is the
// subject, the creator asked for hiding, and the bet has not resolved. A
// hidden view keeps existence, id and status; content and pools are nil.
func Project(bet *models.Bet, viewerID uuid.UUID) models.BetView {
	hidden := bet.HideFromSubject &&
		bet.SubjectID == viewerID &&
		!bet.Status.Resolved()

	view := models.BetView{
		ID:         bet.ID,
		MarketID:   bet.MarketID,
		IsHidden:   hidden,
		CreatedBy:  bet.CreatedBy,
		Status:     bet.Status,
		CreatedAt:  bet.CreatedAt,
		ResolvedAt: bet.ResolvedAt,
	}
	if hidden {
		return view
	}

	subject := bet.SubjectID
	description := bet.Description
	criteria := bet.ResolutionCriteria
	yes, no := bet.YesPool, bet.NoPool
	probability := parimutuel.Probability(yes, no)

	view.SubjectID = &subject
	view.Description = &description
	view.ResolutionCriteria = &criteria
	view.YesPool = &yes
	view.NoPool = &no
	view.Probability = &probability
	return view
}

// ProjectRevealed returns the full, never-redacted view. It backs the
// subject-only reveal query: redaction applies to the market-wide feed, not
// to a participant auditing bets about themself.
func ProjectRevealed(bet *models.Bet) models.BetView {
	return Project(bet, uuid.Nil)
}
