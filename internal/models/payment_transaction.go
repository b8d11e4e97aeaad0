package models

import (
	"time"

	"gorm.io/datatypes"
)

// PaymentStatus enumerates payment transaction states.
type PaymentStatus string

// Payment transaction states.
const (
	// PaymentStatusPending marks an order awaiting provider confirmation.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusPaid marks a confirmed order whose subscription was applied.
	PaymentStatusPaid PaymentStatus = "paid"
	// PaymentStatusFailed marks an order the provider rejected.
	PaymentStatusFailed PaymentStatus = "failed"
)

// PaymentTransaction tracks a plan purchase through the external payment
// provider. The webhook marks it paid exactly once; replayed notifications
// for a paid order are acknowledged without re-applying the subscription.
type PaymentTransaction struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"` // Purchasing user.
	PlanID uint64 `gorm:"not null;index"` // Purchased plan.

	OrderID     string `gorm:"type:text;not null;uniqueIndex"` // Provider order identifier.
	AmountMinor int64  `gorm:"not null;default:0"`             // Charged amount in minor currency units.
	Currency    string `gorm:"type:text;not null;default:USD"` // ISO currency code.

	Status PaymentStatus `gorm:"type:text;not null;default:pending;index"` // Order state.

	ProviderPayload datatypes.JSON `gorm:"type:jsonb"` // Raw provider notification snapshot.

	PaidAt    *time.Time // Confirmation time, if paid.
	CreatedAt time.Time  `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time  `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// TableName overrides the default table name.
func (PaymentTransaction) TableName() string {
	return "payment_transactions"
}
