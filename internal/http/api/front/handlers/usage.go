package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lucidchat/billing/internal/ledger"
)

// UsageHandler handles usage statistics endpoints.
type UsageHandler struct {
	svc *ledger.Service
}

// NewUsageHandler constructs a UsageHandler.
func NewUsageHandler(svc *ledger.Service) *UsageHandler {
	return &UsageHandler{svc: svc}
}

// Daily returns per-billing-day usage buckets for the authenticated user.
func (h *UsageHandler) Daily(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	days := 30
	if raw := strings.TrimSpace(c.Query("days")); raw != "" {
		if parsed, errParse := strconv.Atoi(raw); errParse == nil && parsed > 0 && parsed <= 365 {
			days = parsed
		}
	}

	rows, errDaily := h.svc.GetDailyTokenUsage(c.Request.Context(), userID, days)
	if errDaily != nil {
		respondLedgerError(c, errDaily)
		return
	}
	c.JSON(http.StatusOK, gin.H{"daily": rows})
}

// Sessions returns per-chat usage aggregates for the authenticated user.
func (h *UsageHandler) Sessions(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	rows, errSessions := h.svc.GetSessionTokenUsage(c.Request.Context(), userID)
	if errSessions != nil {
		respondLedgerError(c, errSessions)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": rows})
}
