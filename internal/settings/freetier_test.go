package settings

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/lucidchat/billing/internal/models"
)

func storeTestSnapshot(t *testing.T, values map[string]string) {
	t.Helper()
	raw := make(map[string]json.RawMessage, len(values))
	for k, v := range values {
		raw[k] = json.RawMessage(v)
	}
	StoreDBConfig(time.Now().UTC(), raw)
	t.Cleanup(func() {
		StoreDBConfig(time.Time{}, nil)
	})
}

func TestFreeTierDefaults(t *testing.T) {
	storeTestSnapshot(t, nil)

	policy := FreeTier()
	if policy.Mode != FreeTierGlobal {
		t.Fatalf("mode = %s, want global", policy.Mode)
	}
	if policy.GlobalDailyLimit != DefaultFreeTierDailyLimit {
		t.Fatalf("limit = %d, want %d", policy.GlobalDailyLimit, DefaultFreeTierDailyLimit)
	}
}

func TestFreeTierFromSnapshot(t *testing.T) {
	storeTestSnapshot(t, map[string]string{
		FreeTierModeKey:       `"per_model"`,
		FreeTierDailyLimitKey: `42`,
	})

	policy := FreeTier()
	if policy.Mode != FreeTierPerModel {
		t.Fatalf("mode = %s, want per_model", policy.Mode)
	}
	if policy.GlobalDailyLimit != 42 {
		t.Fatalf("limit = %d, want 42", policy.GlobalDailyLimit)
	}
}

func TestFreeTierIgnoresMalformedValues(t *testing.T) {
	storeTestSnapshot(t, map[string]string{
		FreeTierModeKey:       `"sideways"`,
		FreeTierDailyLimitKey: `-3`,
	})

	policy := FreeTier()
	if policy.Mode != FreeTierGlobal {
		t.Fatalf("mode = %s, want fallback global", policy.Mode)
	}
	if policy.GlobalDailyLimit != DefaultFreeTierDailyLimit {
		t.Fatalf("limit = %d, want default", policy.GlobalDailyLimit)
	}
}

func TestChatDailyCapPerRole(t *testing.T) {
	storeTestSnapshot(t, map[string]string{
		ChatDailyCapUserKey:    `10`,
		ChatDailyCapPremiumKey: `300`,
	})

	if got := ChatDailyCap(models.RoleUser); got != 10 {
		t.Fatalf("user cap = %d, want 10", got)
	}
	if got := ChatDailyCap(models.RolePremium); got != 300 {
		t.Fatalf("premium cap = %d, want 300", got)
	}
	if got := ChatDailyCap("unknown"); got != 10 {
		t.Fatalf("unknown role cap = %d, want user cap 10", got)
	}
}

func TestChatDailyCapDefaults(t *testing.T) {
	storeTestSnapshot(t, nil)

	if got := ChatDailyCap(models.RoleUser); got != DefaultChatDailyCapUser {
		t.Fatalf("user cap = %d, want %d", got, DefaultChatDailyCapUser)
	}
	if got := ChatDailyCap(models.RolePremium); got != DefaultChatDailyCapPremium {
		t.Fatalf("premium cap = %d, want %d", got, DefaultChatDailyCapPremium)
	}
}

func TestChatDailyCapZeroDisables(t *testing.T) {
	storeTestSnapshot(t, map[string]string{ChatDailyCapUserKey: `0`})

	if got := ChatDailyCap(models.RoleUser); got != 0 {
		t.Fatalf("cap = %d, want 0 (disabled)", got)
	}
}
