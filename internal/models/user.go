package models

import "time"

// User roles drive the coarse daily message cap.
const (
	// RoleUser is the default role for registered users.
	RoleUser = "user"
	// RolePremium marks users with a raised daily message cap.
	RolePremium = "premium"
)

// User represents an end-user account.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username string `gorm:"type:text;not null;uniqueIndex"` // Unique login name.
	Email    string `gorm:"type:text;index"`                // Contact email.
	Password string `gorm:"type:text;not null"`             // Hashed password.

	Role string `gorm:"type:text;not null;default:user"` // Role key for rate caps.

	Active bool `gorm:"not null;default:true"` // Whether the user can sign in.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
