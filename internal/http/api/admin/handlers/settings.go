package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lucidchat/billing/internal/models"
	"github.com/lucidchat/billing/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingHandler handles database-backed configuration endpoints.
type SettingHandler struct {
	db *gorm.DB
}

// NewSettingHandler constructs a SettingHandler.
func NewSettingHandler(db *gorm.DB) *SettingHandler {
	return &SettingHandler{db: db}
}

// List returns all setting rows as a key to JSON value map.
func (h *SettingHandler) List(c *gin.Context) {
	var rows []models.Setting
	if errFind := h.db.WithContext(c.Request.Context()).
		Order("key ASC").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query settings failed"})
		return
	}

	values := make(map[string]json.RawMessage, len(rows))
	for _, row := range rows {
		values[row.Key] = json.RawMessage(row.Value)
	}
	c.JSON(http.StatusOK, gin.H{"settings": values})
}

// Update upserts the provided setting keys and refreshes the in-memory
// snapshot so new values take effect without a restart.
func (h *SettingHandler) Update(c *gin.Context) {
	var body map[string]json.RawMessage
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty settings payload"})
		return
	}

	rows := make([]models.Setting, 0, len(body))
	for key, value := range body {
		key = strings.TrimSpace(key)
		if key == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "empty setting key"})
			return
		}
		if len(value) == 0 || !json.Valid(value) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "setting value must be valid json"})
			return
		}
		rows = append(rows, models.Setting{Key: key, Value: datatypes.JSON(value)})
	}

	if errSave := h.db.WithContext(c.Request.Context()).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&rows).Error; errSave != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save settings failed"})
		return
	}

	if errRefresh := settings.RefreshDBConfigSnapshot(c.Request.Context(), h.db); errRefresh != nil {
		log.Warnf("settings snapshot refresh failed: %v", errRefresh)
	}
	c.JSON(http.StatusOK, gin.H{"updated": len(rows)})
}
