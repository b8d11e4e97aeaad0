package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lucidchat/billing/internal/ledger"
	"github.com/lucidchat/billing/internal/models"
	"github.com/lucidchat/billing/internal/ratelimit"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ChatHandler exposes the ledger surface the chat request flow consumes:
// the pre-call admission check and the post-call usage report.
type ChatHandler struct {
	db      *gorm.DB
	svc     *ledger.Service
	counter *ratelimit.Counter
}

// NewChatHandler constructs a ChatHandler. The counter may be nil when Redis
// is not configured; admission then runs with zero counts.
func NewChatHandler(db *gorm.DB, svc *ledger.Service, counter *ratelimit.Counter) *ChatHandler {
	return &ChatHandler{db: db, svc: svc, counter: counter}
}

// checkRequest defines the admission check request body.
type checkRequest struct {
	ModelConfigID uint64 `json:"model_config_id"`
}

// Check decides whether the user may start another AI call and, when
// admitted, bumps the daily message counters.
func (h *ChatHandler) Check(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body checkRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var modelConfig *models.ModelConfig
	if body.ModelConfigID != 0 {
		var mc models.ModelConfig
		errFind := h.db.WithContext(c.Request.Context()).First(&mc, body.ModelConfigID).Error
		if errFind != nil && !errors.Is(errFind, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query model failed"})
			return
		}
		if errFind == nil {
			modelConfig = &mc
		}
	}

	user := models.User{ID: userID, Role: getUserRole(c)}
	admission, errAdmit := h.svc.CanSendMessage(c.Request.Context(), &user, modelConfig)
	if errAdmit != nil {
		respondLedgerError(c, errAdmit)
		return
	}

	if h.counter != nil {
		dayStart := ledger.StartOfBillingDay(time.Now().UTC())
		if errBump := h.counter.Bump(c.Request.Context(), userID, body.ModelConfigID, dayStart); errBump != nil {
			log.WithError(errBump).Warn("chat: bump message counter failed")
		}
	}

	c.JSON(http.StatusOK, gin.H{"allowed": true, "free_tier": admission.FreeTier})
}

// usageRequest defines the usage report request body.
type usageRequest struct {
	ChatID        uint64  `json:"chat_id"`
	ModelConfigID *uint64 `json:"model_config_id"`
	InputTokens   int64   `json:"input_tokens"`
	OutputTokens  int64   `json:"output_tokens"`
	FreeTier      bool    `json:"free_tier"`
}

// ReportUsage records a completed usage event against the ledger. Free-tier
// messages are acknowledged without a deduction. Callers report whatever
// partial usage they observed even when the stream was aborted.
func (h *ChatHandler) ReportUsage(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var body usageRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	if body.FreeTier {
		c.JSON(http.StatusOK, gin.H{"billed": false})
		return
	}

	entry, errRecord := h.svc.RecordUsage(c.Request.Context(), ledger.RecordUsageParams{
		UserID:        userID,
		ChatID:        body.ChatID,
		ModelConfigID: body.ModelConfigID,
		InputTokens:   body.InputTokens,
		OutputTokens:  body.OutputTokens,
	})
	if errRecord != nil {
		respondLedgerError(c, errRecord)
		return
	}

	c.JSON(http.StatusOK, gin.H{"billed": true, "usage_id": entry.ID, "total_tokens": entry.TotalTokens})
}
