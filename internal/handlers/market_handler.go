package handlers

import (
	"context"
	"net/http"

	"hushbet/internal/auth"
	"hushbet/internal/models"
	"hushbet/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// MarketHandler exposes market lifecycle and membership endpoints
type MarketHandler struct {
	svc             *services.MarketService
	defaultStarting int64
}

func NewMarketHandler(svc *services.MarketService, defaultStarting int64) *MarketHandler {
	return &MarketHandler{svc: svc, defaultStarting: defaultStarting}
}

type createMarketRequest struct {
	Name            string `json:"name" binding:"required"`
	DeviceID        string `json:"device_id" binding:"required"`
	DisplayName     string `json:"display_name" binding:"required"`
	Avatar          string `json:"avatar"`
	StartingBalance int64  `json:"starting_balance"`
	RequireApproval bool   `json:"require_approval"`
	InviteCode      string `json:"invite_code"`
}

// CreateMarket creates a draft market and returns the admin's membership token
func (h *MarketHandler) CreateMarket(c *gin.Context) {
	var req createMarketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.StartingBalance == 0 {
		req.StartingBalance = h.defaultStarting
	}

	market, admin, err := h.svc.CreateMarket(c.Request.Context(), services.CreateMarketParams{
		Name:             req.Name,
		DeviceID:         req.DeviceID,
		AdminName:        req.DisplayName,
		AdminAvatar:      req.Avatar,
		StartingBalance:  req.StartingBalance,
		RequireApproval:  req.RequireApproval,
		CustomInviteCode: req.InviteCode,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := auth.GenerateToken(admin.ID, market.ID, req.DeviceID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"market":      market,
		"participant": admin,
		"token":       token,
	})
}

type joinMarketRequest struct {
	InviteCode  string `json:"invite_code" binding:"required"`
	DeviceID    string `json:"device_id" binding:"required"`
	DisplayName string `json:"display_name" binding:"required"`
	Avatar      string `json:"avatar"`
}

// JoinMarket joins by invite code; rejoining with a known device is a no-op
func (h *MarketHandler) JoinMarket(c *gin.Context) {
	var req joinMarketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	market, participant, err := h.svc.JoinMarket(c.Request.Context(), req.InviteCode, req.DeviceID, req.DisplayName, req.Avatar)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := auth.GenerateToken(participant.ID, market.ID, req.DeviceID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"market":      market,
		"participant": participant,
		"token":       token,
	})
}

// MyMarkets lists every market the authenticated device belongs to
func (h *MarketHandler) MyMarkets(c *gin.Context) {
	deviceID, ok := auth.GetDeviceID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	memberships, err := h.svc.MarketsByDevice(c.Request.Context(), deviceID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"markets": memberships})
}

// GetMarket returns one market snapshot
func (h *MarketHandler) GetMarket(c *gin.Context) {
	marketID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid market id"})
		return
	}
	market, err := h.svc.GetMarket(c.Request.Context(), marketID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"market": market})
}

// OpenMarket starts the betting period
func (h *MarketHandler) OpenMarket(c *gin.Context) {
	h.transition(c, h.svc.OpenMarket)
}

// CloseMarket ends the betting period
func (h *MarketHandler) CloseMarket(c *gin.Context) {
	h.transition(c, h.svc.CloseMarket)
}

// ResolveMarket finalizes a market once all bets are settled
func (h *MarketHandler) ResolveMarket(c *gin.Context) {
	h.transition(c, h.svc.ResolveMarket)
}

func (h *MarketHandler) transition(c *gin.Context, op func(ctx context.Context, marketID, callerID uuid.UUID) (*models.Market, error)) {
	marketID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid market id"})
		return
	}
	callerID, ok := auth.GetParticipantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	market, err := op(c.Request.Context(), marketID, callerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"market": market})
}

// DeleteMarket removes a market and everything under it
func (h *MarketHandler) DeleteMarket(c *gin.Context) {
	marketID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid market id"})
		return
	}
	callerID, ok := auth.GetParticipantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if err := h.svc.DeleteMarket(c.Request.Context(), marketID, callerID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// Leaderboard returns current standings
func (h *MarketHandler) Leaderboard(c *gin.Context) {
	marketID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid market id"})
		return
	}
	entries, err := h.svc.Leaderboard(c.Request.Context(), marketID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}

// ListBets returns the market's bets as seen by the caller
func (h *MarketHandler) ListBets(c *gin.Context) {
	marketID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid market id"})
		return
	}
	viewerID, ok := auth.GetParticipantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	views, err := h.svc.ListBets(c.Request.Context(), marketID, viewerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bets": views})
}

// ListPendingBets returns the admin moderation queue
func (h *MarketHandler) ListPendingBets(c *gin.Context) {
	marketID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid market id"})
		return
	}
	callerID, ok := auth.GetParticipantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	bets, err := h.svc.ListPendingBets(c.Request.Context(), marketID, callerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bets": bets})
}

type createBetRequest struct {
	SubjectID          uuid.UUID `json:"subject_id" binding:"required"`
	Description        string    `json:"description" binding:"required"`
	ResolutionCriteria string    `json:"resolution_criteria"`
	OpeningWager       int64     `json:"opening_wager"`
	HideFromSubject    bool      `json:"hide_from_subject"`
}

// CreateBet proposes a bet about another participant
func (h *MarketHandler) CreateBet(c *gin.Context) {
	marketID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid market id"})
		return
	}
	creatorID, ok := auth.GetParticipantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req createBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bet, err := h.svc.CreateBet(c.Request.Context(), services.CreateBetParams{
		MarketID:           marketID,
		CreatorID:          creatorID,
		SubjectID:          req.SubjectID,
		Description:        req.Description,
		ResolutionCriteria: req.ResolutionCriteria,
		OpeningWager:       req.OpeningWager,
		HideFromSubject:    req.HideFromSubject,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"bet": bet})
}

// Reveal returns the caller's own full bet record, redaction bypassed
func (h *MarketHandler) Reveal(c *gin.Context) {
	participantID, ok := auth.GetParticipantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	views, err := h.svc.Reveal(c.Request.Context(), participantID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bets": views})
}
