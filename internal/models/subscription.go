package models

import "time"

// SubscriptionStatus enumerates the lifecycle states of a subscription.
type SubscriptionStatus string

// Subscription lifecycle states.
const (
	// SubscriptionStatusActive grants spendable balance until expiry.
	SubscriptionStatusActive SubscriptionStatus = "active"
	// SubscriptionStatusExpired is reached passively when the validity window closes.
	SubscriptionStatusExpired SubscriptionStatus = "expired"
	// SubscriptionStatusExhausted is reached when the token balance hits zero.
	SubscriptionStatusExhausted SubscriptionStatus = "exhausted"
	// SubscriptionStatusCancelled is terminal and set only by administrative action.
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// UserSubscription is the mutable entitlement record for a user.
//
// At most one row per user is ever in status=active; renewals merge the new
// allowance into the existing active row instead of inserting a sibling.
// Rows are never deleted, they transition to expired or exhausted and remain
// as history.
type UserSubscription struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;index"` // Owning user.
	PlanID uint64 `gorm:"not null;index"` // Purchased plan.

	TokenAllowance int64 `gorm:"not null;default:0"` // Total tokens granted for the current period.
	TokenBalance   int64 `gorm:"not null;default:0"` // Tokens remaining; 0 <= balance <= allowance.
	TokensUsed     int64 `gorm:"not null;default:0"` // Cumulative tokens consumed; allowance - balance.

	Status SubscriptionStatus `gorm:"type:text;not null;default:active;index"` // Lifecycle state.

	StartedAt time.Time `gorm:"not null"`       // Validity window start.
	ExpiresAt time.Time `gorm:"not null;index"` // Validity window end; strictly future while active.

	Plan PricingPlan `gorm:"foreignKey:PlanID"` // Plan relation for display.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last mutation; tiebreak for historical display.
}

// TableName overrides the default table name.
func (UserSubscription) TableName() string {
	return "user_subscriptions"
}
