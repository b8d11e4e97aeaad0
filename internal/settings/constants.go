package settings

// DB config keys and defaults for settings.
const (
	// FreeTierModeKey selects the free-tier accounting mode ("global" or "per_model").
	FreeTierModeKey = "FREE_TIER_MODE"
	// FreeTierDailyLimitKey is the global free-tier daily message allowance.
	FreeTierDailyLimitKey = "FREE_TIER_DAILY_LIMIT"
	// ChatDailyCapUserKey is the coarse daily message cap for the user role.
	ChatDailyCapUserKey = "CHAT_DAILY_CAP_USER"
	// ChatDailyCapPremiumKey is the coarse daily message cap for the premium role.
	ChatDailyCapPremiumKey = "CHAT_DAILY_CAP_PREMIUM"

	// DefaultFreeTierDailyLimit is the fallback global free allowance.
	DefaultFreeTierDailyLimit = 20
	// DefaultChatDailyCapUser is the fallback daily cap for the user role.
	DefaultChatDailyCapUser = 200
	// DefaultChatDailyCapPremium is the fallback daily cap for the premium role.
	DefaultChatDailyCapPremium = 1000
)
