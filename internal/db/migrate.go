package db

import (
	"fmt"

	"github.com/lucidchat/billing/internal/models"
	"gorm.io/gorm"
)

// Migrate applies schema migrations for all persisted models.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	return conn.AutoMigrate(
		&models.User{},
		&models.Admin{},
		&models.Setting{},
		&models.ModelConfig{},
		&models.PricingPlan{},
		&models.UserSubscription{},
		&models.TokenUsage{},
		&models.PaymentTransaction{},
	)
}
