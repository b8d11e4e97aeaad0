package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lucidchat/billing/internal/ledger"
)

// GrantHandler handles manual credit grant endpoints.
type GrantHandler struct {
	svc *ledger.Service
}

// NewGrantHandler constructs a GrantHandler.
func NewGrantHandler(svc *ledger.Service) *GrantHandler {
	return &GrantHandler{svc: svc}
}

// grantRequest defines the request body for a manual credit grant.
type grantRequest struct {
	UserID        uint64 `json:"user_id"`
	Tokens        int64  `json:"tokens"`
	ExpiresInDays int    `json:"expires_in_days"`
}

// Create injects tokens into a user's entitlement outside the purchase flow.
func (h *GrantHandler) Create(c *gin.Context) {
	var body grantRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	sub, errGrant := h.svc.GrantCredits(c.Request.Context(), body.UserID, body.Tokens, body.ExpiresInDays)
	if errGrant != nil {
		respondLedgerError(c, errGrant)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"subscription_id": sub.ID,
		"token_balance":   sub.TokenBalance,
		"token_allowance": sub.TokenAllowance,
		"expires_at":      sub.ExpiresAt,
	})
}
