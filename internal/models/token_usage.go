package models

import "time"

// TokenUsage records a single billed usage event. Rows are append-only and
// serve as the audit and analytics trail; they are never updated or deleted.
type TokenUsage struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID         uint64  `gorm:"not null;index"` // Billed user.
	ChatID         uint64  `gorm:"not null;index"` // Originating chat session.
	ModelConfigID  *uint64 `gorm:"index"`          // Model configuration, when known.
	SubscriptionID uint64  `gorm:"not null;index"` // Subscription the deduction was charged to.

	InputTokens  int64 `gorm:"not null;default:0"` // Raw input token count.
	OutputTokens int64 `gorm:"not null;default:0"` // Raw output token count.
	TotalTokens  int64 `gorm:"not null;default:0"` // Input + output token count.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Creation timestamp.
}

// TableName overrides the default table name.
func (TokenUsage) TableName() string {
	return "token_usage"
}
