package settings

import (
	"encoding/json"
	"strings"

	"github.com/lucidchat/billing/internal/models"
)

// FreeTierMode selects how the free daily allowance is accounted.
type FreeTierMode string

// Free-tier accounting modes.
const (
	// FreeTierGlobal applies one daily message allowance across all models.
	FreeTierGlobal FreeTierMode = "global"
	// FreeTierPerModel applies each model's own daily allowance.
	FreeTierPerModel FreeTierMode = "per_model"
)

// FreeTierPolicy is the typed free-tier configuration. In per-model mode the
// limit lives on each ModelConfig row and GlobalDailyLimit is ignored.
type FreeTierPolicy struct {
	Mode             FreeTierMode
	GlobalDailyLimit int
}

// FreeTier returns the current free-tier policy from the settings snapshot,
// falling back to global mode with the default allowance.
func FreeTier() FreeTierPolicy {
	policy := FreeTierPolicy{
		Mode:             FreeTierGlobal,
		GlobalDailyLimit: DefaultFreeTierDailyLimit,
	}

	if raw, ok := DBConfigValue(FreeTierModeKey); ok && len(raw) > 0 {
		var mode string
		if errUnmarshal := json.Unmarshal(raw, &mode); errUnmarshal == nil {
			switch FreeTierMode(strings.TrimSpace(strings.ToLower(mode))) {
			case FreeTierPerModel:
				policy.Mode = FreeTierPerModel
			case FreeTierGlobal:
				policy.Mode = FreeTierGlobal
			}
		}
	}

	if raw, ok := DBConfigValue(FreeTierDailyLimitKey); ok && len(raw) > 0 {
		var limit int
		if errUnmarshal := json.Unmarshal(raw, &limit); errUnmarshal == nil && limit >= 0 {
			policy.GlobalDailyLimit = limit
		}
	}

	return policy
}

// ChatDailyCap returns the coarse daily message ceiling for a user role.
// Zero disables the cap.
func ChatDailyCap(role string) int {
	key := ChatDailyCapUserKey
	fallback := DefaultChatDailyCapUser
	if strings.TrimSpace(role) == models.RolePremium {
		key = ChatDailyCapPremiumKey
		fallback = DefaultChatDailyCapPremium
	}

	if raw, ok := DBConfigValue(key); ok && len(raw) > 0 {
		var cap int
		if errUnmarshal := json.Unmarshal(raw, &cap); errUnmarshal == nil && cap >= 0 {
			return cap
		}
	}
	return fallback
}
