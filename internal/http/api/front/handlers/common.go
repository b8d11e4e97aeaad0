package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lucidchat/billing/internal/ledger"
)

// getUserID extracts the user ID from gin context.
func getUserID(c *gin.Context) uint64 {
	val, exists := c.Get("userID")
	if !exists {
		return 0
	}
	switch v := val.(type) {
	case uint64:
		return v
	case int64:
		return uint64(v)
	case uint:
		return uint64(v)
	case int:
		return uint64(v)
	default:
		return 0
	}
}

// getUserRole extracts the user role from gin context.
func getUserRole(c *gin.Context) string {
	val, exists := c.Get("userRole")
	if !exists {
		return ""
	}
	role, ok := val.(string)
	if !ok {
		return ""
	}
	return role
}

// respondLedgerError maps ledger errors to HTTP responses.
func respondLedgerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ledger.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrPaymentRequired):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "payment required", "code": "payment_required:credits"})
	case errors.Is(err, ledger.ErrInsufficientCredits):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "insufficient credits", "code": "payment_required:credits"})
	case errors.Is(err, ledger.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "daily message limit reached", "code": "rate_limit:chat"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
