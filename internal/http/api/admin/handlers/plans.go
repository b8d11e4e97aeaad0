package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lucidchat/billing/internal/models"
	"gorm.io/gorm"
)

// PlanHandler handles pricing plan administration endpoints.
type PlanHandler struct {
	db *gorm.DB
}

// NewPlanHandler constructs a PlanHandler.
func NewPlanHandler(db *gorm.DB) *PlanHandler {
	return &PlanHandler{db: db}
}

// List returns all plans including disabled ones.
func (h *PlanHandler) List(c *gin.Context) {
	var plans []models.PricingPlan
	if errFind := h.db.WithContext(c.Request.Context()).
		Order("id ASC").
		Find(&plans).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query plans failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

// planRequest defines the request body for plan creation and updates.
type planRequest struct {
	Name           string `json:"name"`
	PriceMinor     int64  `json:"price_minor"`
	TokenAllowance int64  `json:"token_allowance"`
	CycleDays      int    `json:"cycle_days"`
	IsActive       *bool  `json:"is_active"`
}

// Create adds a new pricing plan.
func (h *PlanHandler) Create(c *gin.Context) {
	var body planRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing plan name"})
		return
	}
	if body.TokenAllowance <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token allowance must be positive"})
		return
	}
	cycleDays := body.CycleDays
	if cycleDays < 1 {
		cycleDays = 30
	}

	plan := models.PricingPlan{
		Name:           name,
		PriceMinor:     body.PriceMinor,
		TokenAllowance: body.TokenAllowance,
		CycleDays:      cycleDays,
		IsActive:       true,
	}
	if body.IsActive != nil {
		plan.IsActive = *body.IsActive
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&plan).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create plan failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan": plan})
}

// Update edits an existing plan in place. Subscriptions already sold keep
// their granted allowance; edits only affect future purchases.
func (h *PlanHandler) Update(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plan id"})
		return
	}

	var body planRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var plan models.PricingPlan
	if errFind := h.db.WithContext(c.Request.Context()).First(&plan, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "plan not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query plan failed"})
		return
	}

	updates := map[string]any{}
	if name := strings.TrimSpace(body.Name); name != "" {
		updates["name"] = name
	}
	if body.PriceMinor > 0 {
		updates["price_minor"] = body.PriceMinor
	}
	if body.TokenAllowance > 0 {
		updates["token_allowance"] = body.TokenAllowance
	}
	if body.CycleDays > 0 {
		updates["cycle_days"] = body.CycleDays
	}
	if body.IsActive != nil {
		updates["is_active"] = *body.IsActive
	}
	if len(updates) == 0 {
		c.JSON(http.StatusOK, gin.H{"plan": plan})
		return
	}

	if errUpdate := h.db.WithContext(c.Request.Context()).
		Model(&models.PricingPlan{}).
		Where("id = ?", plan.ID).
		Updates(updates).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update plan failed"})
		return
	}
	if errReload := h.db.WithContext(c.Request.Context()).First(&plan, plan.ID).Error; errReload != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reload plan failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan": plan})
}

// Delete soft-deletes a plan. Subscriptions referencing it keep working;
// the row is never hard-deleted while referenced.
func (h *PlanHandler) Delete(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plan id"})
		return
	}

	res := h.db.WithContext(c.Request.Context()).Delete(&models.PricingPlan{}, id)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete plan failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "plan not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
