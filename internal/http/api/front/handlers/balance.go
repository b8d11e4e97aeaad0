package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lucidchat/billing/internal/ledger"
)

// BalanceHandler handles balance summary endpoints.
type BalanceHandler struct {
	svc *ledger.Service
}

// NewBalanceHandler constructs a BalanceHandler.
func NewBalanceHandler(svc *ledger.Service) *BalanceHandler {
	return &BalanceHandler{svc: svc}
}

// Summary returns the display-ready balance for the authenticated user.
func (h *BalanceHandler) Summary(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	summary, errSummary := h.svc.GetBalanceSummary(c.Request.Context(), userID)
	if errSummary != nil {
		respondLedgerError(c, errSummary)
		return
	}
	c.JSON(http.StatusOK, summary)
}
