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

// ModelConfigHandler handles model billing configuration endpoints.
type ModelConfigHandler struct {
	db *gorm.DB
}

// NewModelConfigHandler constructs a ModelConfigHandler.
func NewModelConfigHandler(db *gorm.DB) *ModelConfigHandler {
	return &ModelConfigHandler{db: db}
}

// List returns all model configurations.
func (h *ModelConfigHandler) List(c *gin.Context) {
	var configs []models.ModelConfig
	if errFind := h.db.WithContext(c.Request.Context()).
		Order("id ASC").
		Find(&configs).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query model configs failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"model_configs": configs})
}

// modelConfigRequest defines the request body for config creation and updates.
type modelConfigRequest struct {
	Name                 string   `json:"name"`
	Provider             string   `json:"provider"`
	InputCostPerMillion  *float64 `json:"input_cost_per_million"`
	OutputCostPerMillion *float64 `json:"output_cost_per_million"`
	FreeDailyLimit       *int     `json:"free_daily_limit"`
	IsEnabled            *bool    `json:"is_enabled"`
}

// Create adds a new model configuration.
func (h *ModelConfigHandler) Create(c *gin.Context) {
	var body modelConfigRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing model name"})
		return
	}

	cfg := models.ModelConfig{
		Name:                 name,
		Provider:             strings.TrimSpace(body.Provider),
		InputCostPerMillion:  1,
		OutputCostPerMillion: 1,
		IsEnabled:            true,
	}
	if body.InputCostPerMillion != nil {
		cfg.InputCostPerMillion = *body.InputCostPerMillion
	}
	if body.OutputCostPerMillion != nil {
		cfg.OutputCostPerMillion = *body.OutputCostPerMillion
	}
	if body.FreeDailyLimit != nil {
		cfg.FreeDailyLimit = *body.FreeDailyLimit
	}
	if body.IsEnabled != nil {
		cfg.IsEnabled = *body.IsEnabled
	}

	if errCreate := h.db.WithContext(c.Request.Context()).Create(&cfg).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create model config failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"model_config": cfg})
}

// Update edits an existing model configuration. Rate changes apply to usage
// reported after the change; past deductions are never rewritten.
func (h *ModelConfigHandler) Update(c *gin.Context) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid model config id"})
		return
	}

	var body modelConfigRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var cfg models.ModelConfig
	if errFind := h.db.WithContext(c.Request.Context()).First(&cfg, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "model config not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query model config failed"})
		return
	}

	updates := map[string]any{}
	if name := strings.TrimSpace(body.Name); name != "" {
		updates["name"] = name
	}
	if provider := strings.TrimSpace(body.Provider); provider != "" {
		updates["provider"] = provider
	}
	if body.InputCostPerMillion != nil {
		updates["input_cost_per_million"] = *body.InputCostPerMillion
	}
	if body.OutputCostPerMillion != nil {
		updates["output_cost_per_million"] = *body.OutputCostPerMillion
	}
	if body.FreeDailyLimit != nil {
		updates["free_daily_limit"] = *body.FreeDailyLimit
	}
	if body.IsEnabled != nil {
		updates["is_enabled"] = *body.IsEnabled
	}
	if len(updates) == 0 {
		c.JSON(http.StatusOK, gin.H{"model_config": cfg})
		return
	}

	if errUpdate := h.db.WithContext(c.Request.Context()).
		Model(&models.ModelConfig{}).
		Where("id = ?", cfg.ID).
		Updates(updates).Error; errUpdate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update model config failed"})
		return
	}
	if errReload := h.db.WithContext(c.Request.Context()).First(&cfg, cfg.ID).Error; errReload != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reload model config failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"model_config": cfg})
}
