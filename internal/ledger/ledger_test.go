package ledger

import (
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/lucidchat/billing/internal/models"
	"gorm.io/gorm"
)

func setupLedgerDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:ledger_%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	sqlDB, errDB := db.DB()
	if errDB != nil {
		t.Fatalf("unwrap db: %v", errDB)
	}
	// One connection keeps the shared in-memory database alive and
	// serializes transactions the way SQLite would under a file lock.
	sqlDB.SetMaxOpenConns(1)
	if errMigrate := db.AutoMigrate(
		&models.User{},
		&models.PricingPlan{},
		&models.UserSubscription{},
		&models.TokenUsage{},
		&models.ModelConfig{},
		&models.PaymentTransaction{},
		&models.Setting{},
	); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	return db
}

func createTestPlan(t *testing.T, db *gorm.DB, name string, tokens int64, cycleDays int) *models.PricingPlan {
	t.Helper()
	plan := models.PricingPlan{
		Name:           name,
		PriceMinor:     999,
		TokenAllowance: tokens,
		CycleDays:      cycleDays,
		IsActive:       true,
	}
	if errCreate := db.Create(&plan).Error; errCreate != nil {
		t.Fatalf("create plan: %v", errCreate)
	}
	return &plan
}

func createTestSubscription(t *testing.T, db *gorm.DB, userID, planID uint64, balance, allowance int64, status models.SubscriptionStatus, expiresAt time.Time) *models.UserSubscription {
	t.Helper()
	sub := models.UserSubscription{
		UserID:         userID,
		PlanID:         planID,
		TokenAllowance: allowance,
		TokenBalance:   balance,
		TokensUsed:     allowance - balance,
		Status:         status,
		StartedAt:      time.Now().UTC().Add(-time.Hour),
		ExpiresAt:      expiresAt,
	}
	if errCreate := db.Create(&sub).Error; errCreate != nil {
		t.Fatalf("create subscription: %v", errCreate)
	}
	return &sub
}

func reloadSubscription(t *testing.T, db *gorm.DB, id uint64) *models.UserSubscription {
	t.Helper()
	var sub models.UserSubscription
	if errFind := db.First(&sub, id).Error; errFind != nil {
		t.Fatalf("reload subscription %d: %v", id, errFind)
	}
	return &sub
}
