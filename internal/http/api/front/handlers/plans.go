package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lucidchat/billing/internal/ledger"
	"github.com/lucidchat/billing/internal/models"
	"gorm.io/gorm"
)

// PlanFrontHandler handles plan listing and checkout for end users.
type PlanFrontHandler struct {
	db  *gorm.DB
	svc *ledger.Service
}

// NewPlanFrontHandler constructs a PlanFrontHandler.
func NewPlanFrontHandler(db *gorm.DB, svc *ledger.Service) *PlanFrontHandler {
	return &PlanFrontHandler{db: db, svc: svc}
}

// planView is the user-facing plan representation.
type planView struct {
	ID             uint64 `json:"id"`
	Name           string `json:"name"`
	PriceMinor     int64  `json:"price_minor"`
	TokenAllowance int64  `json:"token_allowance"`
	Credits        int64  `json:"credits"`
	CycleDays      int    `json:"cycle_days"`
}

// List returns purchasable plans. The manual top-up sentinel is hidden.
func (h *PlanFrontHandler) List(c *gin.Context) {
	var plans []models.PricingPlan
	if errFind := h.db.WithContext(c.Request.Context()).
		Where("is_active = ? AND name <> ?", true, models.ManualTopUpPlanName).
		Order("price_minor ASC").
		Find(&plans).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query plans failed"})
		return
	}

	out := make([]planView, 0, len(plans))
	for _, plan := range plans {
		out = append(out, planView{
			ID:             plan.ID,
			Name:           plan.Name,
			PriceMinor:     plan.PriceMinor,
			TokenAllowance: plan.TokenAllowance,
			Credits:        ledger.CreditsFromTokens(plan.TokenAllowance),
			CycleDays:      plan.CycleDays,
		})
	}
	c.JSON(http.StatusOK, gin.H{"plans": out})
}

// checkoutRequest defines the checkout request body.
type checkoutRequest struct {
	PlanID uint64 `json:"plan_id"`
}

// Checkout opens a pending payment transaction for a plan purchase. The
// returned order id is forwarded to the payment provider by the client; the
// provider's webhook completes the purchase.
func (h *PlanFrontHandler) Checkout(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body checkoutRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	payment, errCreate := h.svc.CreatePaymentTransaction(c.Request.Context(), userID, body.PlanID)
	if errCreate != nil {
		respondLedgerError(c, errCreate)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order_id":     payment.OrderID,
		"amount_minor": payment.AmountMinor,
		"currency":     payment.Currency,
	})
}
