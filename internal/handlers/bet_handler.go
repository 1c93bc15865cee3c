package handlers

import (
	"net/http"

	"hushbet/internal/auth"
	"hushbet/internal/models"
	"hushbet/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// BetHandler exposes per-bet operations
type BetHandler struct {
	svc *services.MarketService
}

func NewBetHandler(svc *services.MarketService) *BetHandler {
	return &BetHandler{svc: svc}
}

func (h *BetHandler) betAndCaller(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	betID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bet id"})
		return uuid.Nil, uuid.Nil, false
	}
	callerID, ok := auth.GetParticipantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return uuid.Nil, uuid.Nil, false
	}
	return betID, callerID, true
}

// GetBet returns one bet as seen by the caller
func (h *BetHandler) GetBet(c *gin.Context) {
	betID, callerID, ok := h.betAndCaller(c)
	if !ok {
		return
	}
	view, err := h.svc.GetBet(c.Request.Context(), betID, callerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bet": view})
}

// ApproveBet moves a pending bet to active
func (h *BetHandler) ApproveBet(c *gin.Context) {
	betID, callerID, ok := h.betAndCaller(c)
	if !ok {
		return
	}
	bet, err := h.svc.ApproveBet(c.Request.Context(), betID, callerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bet": bet})
}

type placeWagerRequest struct {
	Side   models.Side `json:"side" binding:"required"`
	Amount int64       `json:"amount" binding:"required"`
}

// PlaceWager stakes coins on one side of a bet
func (h *BetHandler) PlaceWager(c *gin.Context) {
	betID, callerID, ok := h.betAndCaller(c)
	if !ok {
		return
	}

	var req placeWagerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	wager, err := h.svc.PlaceWager(c.Request.Context(), betID, callerID, req.Side, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"wager": wager})
}

type resolveBetRequest struct {
	Outcome models.Side `json:"outcome" binding:"required"`
}

// ResolveBet settles a bet and pays the winning side
func (h *BetHandler) ResolveBet(c *gin.Context) {
	betID, callerID, ok := h.betAndCaller(c)
	if !ok {
		return
	}

	var req resolveBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bet, payouts, err := h.svc.ResolveBet(c.Request.Context(), betID, callerID, req.Outcome)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bet": bet, "payouts": payouts})
}

// ProbabilityHistory returns the bet's implied-probability time series
func (h *BetHandler) ProbabilityHistory(c *gin.Context) {
	betID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bet id"})
		return
	}
	points, err := h.svc.ProbabilityHistory(c.Request.Context(), betID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": points})
}
