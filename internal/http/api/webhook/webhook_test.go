package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/lucidchat/billing/internal/config"
	"github.com/lucidchat/billing/internal/ledger"
	"github.com/lucidchat/billing/internal/models"
	"gorm.io/gorm"
)

const testSecret = "whsec_test"

func setupWebhook(t *testing.T) (*gorm.DB, *gin.Engine, *ledger.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dsn := fmt.Sprintf("file:webhook_%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	sqlDB, errDB := db.DB()
	if errDB != nil {
		t.Fatalf("unwrap db: %v", errDB)
	}
	sqlDB.SetMaxOpenConns(1)
	if errMigrate := db.AutoMigrate(
		&models.PricingPlan{},
		&models.UserSubscription{},
		&models.PaymentTransaction{},
		&models.TokenUsage{},
	); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}

	svc := ledger.NewService(db, nil)
	router := gin.New()
	RegisterWebhookRoutes(router, svc, config.WebhookConfig{Secret: testSecret})
	return db, router, svc
}

func createPendingOrder(t *testing.T, db *gorm.DB, svc *ledger.Service) *models.PaymentTransaction {
	t.Helper()
	plan := models.PricingPlan{Name: "monthly", PriceMinor: 999, TokenAllowance: 3000, CycleDays: 30, IsActive: true}
	if errCreate := db.Create(&plan).Error; errCreate != nil {
		t.Fatalf("create plan: %v", errCreate)
	}
	payment, errPayment := svc.CreatePaymentTransaction(context.Background(), 7, plan.ID)
	if errPayment != nil {
		t.Fatalf("create payment: %v", errPayment)
	}
	return payment
}

func sign(body string) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func postNotification(router *gin.Engine, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v0/webhook/payment", strings.NewReader(body))
	if signature != "" {
		req.Header.Set(signatureHeader, signature)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestWebhookPaidNotification(t *testing.T) {
	db, router, svc := setupWebhook(t)
	payment := createPendingOrder(t, db, svc)

	body := fmt.Sprintf(`{"order_id":%q,"status":"paid"}`, payment.OrderID)
	rec := postNotification(router, body, sign(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var sub models.UserSubscription
	if errFind := db.Where("user_id = ?", 7).First(&sub).Error; errFind != nil {
		t.Fatalf("subscription not created: %v", errFind)
	}
	if sub.TokenBalance != 3000 {
		t.Fatalf("balance = %d, want 3000", sub.TokenBalance)
	}
}

func TestWebhookReplayAcknowledged(t *testing.T) {
	db, router, svc := setupWebhook(t)
	payment := createPendingOrder(t, db, svc)

	body := fmt.Sprintf(`{"order_id":%q,"status":"paid"}`, payment.OrderID)
	if rec := postNotification(router, body, sign(body)); rec.Code != http.StatusOK {
		t.Fatalf("first notification: %d", rec.Code)
	}
	rec := postNotification(router, body, sign(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("replay status = %d, want 200", rec.Code)
	}
	var resp struct {
		Replayed bool `json:"replayed"`
	}
	if errUnmarshal := json.Unmarshal(rec.Body.Bytes(), &resp); errUnmarshal != nil {
		t.Fatalf("parse response: %v", errUnmarshal)
	}
	if !resp.Replayed {
		t.Fatal("replay not flagged")
	}

	var sub models.UserSubscription
	if errFind := db.Where("user_id = ?", 7).First(&sub).Error; errFind != nil {
		t.Fatalf("load subscription: %v", errFind)
	}
	if sub.TokenBalance != 3000 {
		t.Fatalf("balance after replay = %d, want 3000", sub.TokenBalance)
	}
}

func TestWebhookFailedNotification(t *testing.T) {
	db, router, svc := setupWebhook(t)
	payment := createPendingOrder(t, db, svc)

	body := fmt.Sprintf(`{"order_id":%q,"status":"failed"}`, payment.OrderID)
	rec := postNotification(router, body, sign(body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var stored models.PaymentTransaction
	if errFind := db.Where("order_id = ?", payment.OrderID).First(&stored).Error; errFind != nil {
		t.Fatalf("reload payment: %v", errFind)
	}
	if stored.Status != models.PaymentStatusFailed {
		t.Fatalf("status = %s, want failed", stored.Status)
	}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	db, router, svc := setupWebhook(t)
	payment := createPendingOrder(t, db, svc)

	body := fmt.Sprintf(`{"order_id":%q,"status":"paid"}`, payment.OrderID)
	if rec := postNotification(router, body, "deadbeef"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad signature status = %d, want 401", rec.Code)
	}
	if rec := postNotification(router, body, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing signature status = %d, want 401", rec.Code)
	}

	var stored models.PaymentTransaction
	if errFind := db.Where("order_id = ?", payment.OrderID).First(&stored).Error; errFind != nil {
		t.Fatalf("reload payment: %v", errFind)
	}
	if stored.Status != models.PaymentStatusPending {
		t.Fatalf("status = %s, want untouched pending", stored.Status)
	}
}

func TestWebhookUnknownOrder(t *testing.T) {
	_, router, _ := setupWebhook(t)

	body := `{"order_id":"ord_missing","status":"paid"}`
	if rec := postNotification(router, body, sign(body)); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestWebhookUnknownStatus(t *testing.T) {
	db, router, svc := setupWebhook(t)
	payment := createPendingOrder(t, db, svc)

	body := fmt.Sprintf(`{"order_id":%q,"status":"sideways"}`, payment.OrderID)
	if rec := postNotification(router, body, sign(body)); rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
