package handlers

import (
	"errors"
	"net/http"

	"hushbet/internal/models"
	"hushbet/internal/rules"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// respondError maps domain errors onto HTTP statuses. Rule rejections carry
// their stable code so clients can branch without parsing messages.
func respondError(c *gin.Context, err error) {
	var ve *models.ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error(), "field": ve.Field})
		return
	}

	var re *rules.RuleError
	if errors.As(err, &re) {
		c.JSON(ruleStatus(re.Code), gin.H{"error": re.Message, "code": re.Code})
		return
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

func ruleStatus(code string) int {
	switch code {
	case rules.CodeNotAdmin:
		return http.StatusForbidden
	case rules.CodeInvalidInviteCode:
		return http.StatusNotFound
	case rules.CodeDuplicateDisplayName,
		rules.CodeInviteCodeTaken,
		rules.CodeMarketNotOpen,
		rules.CodeMarketNotDraft,
		rules.CodeMarketResolved,
		rules.CodeBetNotActive,
		rules.CodeBetNotPending,
		rules.CodeBetAlreadyResolved,
		rules.CodeBetsUnresolved:
		return http.StatusConflict
	case rules.CodeSelfBetNotAllowed,
		rules.CodeInsufficientBalance,
		rules.CodeInvalidAmount,
		rules.CodeInvalidSide,
		rules.CodeSubjectNotInMarket,
		rules.CodePoolOverflow:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}
