package models

import "time"

// ModelConfig holds per-model billing attributes for an AI model offering.
type ModelConfig struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name     string `gorm:"type:text;not null;uniqueIndex"` // Model display name.
	Provider string `gorm:"type:text;not null;index"`       // Upstream provider name.

	// Cost rates are ledger tokens per million raw tokens. Values that are
	// not finite and positive fall back to the baseline rate at billing time.
	InputCostPerMillion  float64 `gorm:"type:decimal(20,10);not null;default:1"` // Input token rate.
	OutputCostPerMillion float64 `gorm:"type:decimal(20,10);not null;default:1"` // Output token rate.

	FreeDailyLimit int `gorm:"not null;default:0"` // Free-tier daily message limit in per-model mode.

	IsEnabled bool `gorm:"not null;default:true"` // Whether the model is selectable.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// TableName overrides the default table name.
func (ModelConfig) TableName() string {
	return "model_configs"
}
