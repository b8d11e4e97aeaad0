package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lucidchat/billing/internal/config"
	"github.com/lucidchat/billing/internal/ledger"
	log "github.com/sirupsen/logrus"
)

// signatureHeader carries the hex-encoded HMAC-SHA256 of the raw body.
const signatureHeader = "X-Payment-Signature"

// PaymentHandler handles asynchronous payment provider notifications.
type PaymentHandler struct {
	svc    *ledger.Service
	secret string
}

// NewPaymentHandler constructs a PaymentHandler.
func NewPaymentHandler(svc *ledger.Service, cfg config.WebhookConfig) *PaymentHandler {
	return &PaymentHandler{svc: svc, secret: cfg.Secret}
}

// RegisterWebhookRoutes registers the payment notification endpoint.
func RegisterWebhookRoutes(r *gin.Engine, svc *ledger.Service, cfg config.WebhookConfig) {
	if r == nil || svc == nil {
		return
	}
	handler := NewPaymentHandler(svc, cfg)
	r.POST("/v0/webhook/payment", handler.Notify)
}

// notifyRequest defines the provider notification body.
type notifyRequest struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// Notify processes a payment status notification. Replayed notifications for
// an already-settled order are acknowledged so the provider stops retrying.
func (h *PaymentHandler) Notify(c *gin.Context) {
	raw, errRead := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if errRead != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body failed"})
		return
	}

	if !h.verifySignature(raw, c.GetHeader(signatureHeader)) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	var body notifyRequest
	if errUnmarshal := json.Unmarshal(raw, &body); errUnmarshal != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	orderID := strings.TrimSpace(body.OrderID)
	if orderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing order_id"})
		return
	}

	switch strings.ToLower(strings.TrimSpace(body.Status)) {
	case "paid", "success":
		sub, errPaid := h.svc.MarkPaymentPaid(c.Request.Context(), orderID, raw)
		if errPaid != nil {
			h.respondError(c, orderID, errPaid)
			return
		}
		if sub == nil {
			c.JSON(http.StatusOK, gin.H{"acknowledged": true, "replayed": true})
			return
		}
		c.JSON(http.StatusOK, gin.H{"acknowledged": true, "subscription_id": sub.ID})
	case "failed", "cancelled":
		if errFailed := h.svc.MarkPaymentFailed(c.Request.Context(), orderID, raw); errFailed != nil {
			h.respondError(c, orderID, errFailed)
			return
		}
		c.JSON(http.StatusOK, gin.H{"acknowledged": true})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
	}
}

// verifySignature checks the provider HMAC. An empty configured secret
// disables verification for local development.
func (h *PaymentHandler) verifySignature(body []byte, got string) bool {
	if h.secret == "" {
		return true
	}
	got = strings.TrimSpace(got)
	if got == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(strings.ToLower(got)))
}

// respondError maps ledger errors for the provider callback.
func (h *PaymentHandler) respondError(c *gin.Context, orderID string, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
	case errors.Is(err, ledger.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.WithField("order_id", orderID).Warnf("payment webhook failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
