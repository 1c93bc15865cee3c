package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuthMiddleware validates membership tokens and protects routes
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")

		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header required",
			})
			c.Abort()
			return
		}

		// Extract token from "Bearer <token>" format
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid authorization header format. Expected: Bearer <token>",
			})
			c.Abort()
			return
		}

		claims, err := ValidateToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			c.Abort()
			return
		}

		c.Set("participant_id", claims.ParticipantID)
		c.Set("market_id", claims.MarketID)
		c.Set("device_id", claims.DeviceID)

		c.Next()
	}
}

// GetParticipantID retrieves the participant id from the context
func GetParticipantID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get("participant_id")
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// GetMarketID retrieves the market id from the context
func GetMarketID(c *gin.Context) (uuid.UUID, bool) {
	v, exists := c.Get("market_id")
	if !exists {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// GetDeviceID retrieves the device id from the context
func GetDeviceID(c *gin.Context) (string, bool) {
	v, exists := c.Get("device_id")
	if !exists {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}
