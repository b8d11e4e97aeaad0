package models

import (
	"time"

	"gorm.io/gorm"
)

// ManualTopUpPlanName identifies the sentinel plan used for administrative
// credit grants. The row is lazily created (or restored from soft delete)
// the first time a grant is issued.
const ManualTopUpPlanName = "manual-topup"

// PricingPlan represents a purchasable credit offering.
type PricingPlan struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name           string `gorm:"type:text;not null;uniqueIndex"` // Unique plan name.
	PriceMinor     int64  `gorm:"not null;default:0"`             // Price in minor currency units.
	TokenAllowance int64  `gorm:"not null;default:0"`             // Tokens granted per billing cycle.
	CycleDays      int    `gorm:"not null;default:30"`            // Billing cycle length in days.

	IsActive bool `gorm:"not null;default:true"` // Whether the plan can be purchased.

	CreatedAt time.Time      `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime"` // Last update timestamp.
	DeletedAt gorm.DeletedAt `gorm:"index"`                   // Soft delete marker.
}

// TableName overrides the default table name.
func (PricingPlan) TableName() string {
	return "pricing_plans"
}
