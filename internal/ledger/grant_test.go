package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lucidchat/billing/internal/models"
)

func TestGrantCreditsCreatesFreshSubscription(t *testing.T) {
	db := setupLedgerDB(t)
	svc := NewService(db, nil)

	sub, err := svc.GrantCredits(context.Background(), 7, 500, 0)
	if err != nil {
		t.Fatalf("grant credits: %v", err)
	}
	if sub.TokenBalance != 500 || sub.TokenAllowance != 500 {
		t.Fatalf("balance/allowance = %d/%d, want 500/500", sub.TokenBalance, sub.TokenAllowance)
	}
	if sub.Status != models.SubscriptionStatusActive {
		t.Fatalf("status = %s, want active", sub.Status)
	}

	// Default expiry window applies when the caller passed none.
	wantExpiry := time.Now().UTC().AddDate(0, 0, DefaultGrantExpiryDays)
	if diff := sub.ExpiresAt.Sub(wantExpiry); diff < -time.Minute || diff > time.Minute {
		t.Fatalf("expiry = %v, want about %v", sub.ExpiresAt, wantExpiry)
	}

	// The grant hangs off the reserved manual top-up plan.
	var plan models.PricingPlan
	if errFind := db.First(&plan, sub.PlanID).Error; errFind != nil {
		t.Fatalf("load grant plan: %v", errFind)
	}
	if plan.Name != models.ManualTopUpPlanName {
		t.Fatalf("plan name = %q, want %q", plan.Name, models.ManualTopUpPlanName)
	}
}

func TestGrantCreditsRejectsNonPositiveTokens(t *testing.T) {
	db := setupLedgerDB(t)
	svc := NewService(db, nil)

	for _, tokens := range []int64{0, -100} {
		if _, err := svc.GrantCredits(context.Background(), 7, tokens, 30); !errors.Is(err, ErrValidation) {
			t.Fatalf("tokens %d: err = %v, want ErrValidation", tokens, err)
		}
	}
	if _, err := svc.GrantCredits(context.Background(), 0, 100, 30); !errors.Is(err, ErrValidation) {
		t.Fatalf("missing user: err = %v, want ErrValidation", err)
	}
}

func TestGrantCreditsMergesIntoActiveSubscription(t *testing.T) {
	db := setupLedgerDB(t)
	svc := NewService(db, nil)
	plan := createTestPlan(t, db, "starter", 1000, 30)
	existing := createTestSubscription(t, db, 7, plan.ID, 300, 1000, models.SubscriptionStatusActive, time.Now().UTC().Add(24*time.Hour))

	sub, err := svc.GrantCredits(context.Background(), 7, 500, 90)
	if err != nil {
		t.Fatalf("grant credits: %v", err)
	}
	if sub.ID != existing.ID {
		t.Fatalf("grant created sibling row %d instead of merging into %d", sub.ID, existing.ID)
	}
	if sub.TokenBalance != 800 {
		t.Fatalf("balance = %d, want 800", sub.TokenBalance)
	}
	if sub.TokenAllowance != 1500 {
		t.Fatalf("allowance = %d, want 1500", sub.TokenAllowance)
	}
	if !sub.ExpiresAt.After(existing.ExpiresAt) {
		t.Fatalf("expiry %v not extended past %v", sub.ExpiresAt, existing.ExpiresAt)
	}

	var count int64
	if errCount := db.Model(&models.UserSubscription{}).Where("user_id = ?", 7).Count(&count).Error; errCount != nil {
		t.Fatalf("count subscriptions: %v", errCount)
	}
	if count != 1 {
		t.Fatalf("subscription rows = %d, want 1", count)
	}
}

func TestGrantCreditsRevivesExhaustedSubscription(t *testing.T) {
	db := setupLedgerDB(t)
	svc := NewService(db, nil)
	plan := createTestPlan(t, db, "starter", 1000, 30)
	existing := createTestSubscription(t, db, 7, plan.ID, 0, 1000, models.SubscriptionStatusExhausted, time.Now().UTC().Add(24*time.Hour))

	sub, err := svc.GrantCredits(context.Background(), 7, 200, 30)
	if err != nil {
		t.Fatalf("grant credits: %v", err)
	}
	if sub.ID != existing.ID {
		t.Fatalf("grant created sibling row %d instead of reviving %d", sub.ID, existing.ID)
	}
	if sub.Status != models.SubscriptionStatusActive {
		t.Fatalf("status = %s, want revived to active", sub.Status)
	}
	if sub.TokenBalance != 200 {
		t.Fatalf("balance = %d, want 200", sub.TokenBalance)
	}
}

func TestGrantCreditsKeepsLaterExpiry(t *testing.T) {
	db := setupLedgerDB(t)
	svc := NewService(db, nil)
	plan := createTestPlan(t, db, "starter", 1000, 30)
	farOut := time.Now().UTC().AddDate(0, 0, 365)
	existing := createTestSubscription(t, db, 7, plan.ID, 300, 1000, models.SubscriptionStatusActive, farOut)

	sub, err := svc.GrantCredits(context.Background(), 7, 100, 7)
	if err != nil {
		t.Fatalf("grant credits: %v", err)
	}
	if !sub.ExpiresAt.Equal(existing.ExpiresAt) {
		t.Fatalf("expiry shrank from %v to %v", existing.ExpiresAt, sub.ExpiresAt)
	}
}

func TestGrantCreditsRestoresSoftDeletedSentinelPlan(t *testing.T) {
	db := setupLedgerDB(t)
	svc := NewService(db, nil)

	first, err := svc.GrantCredits(context.Background(), 7, 100, 30)
	if err != nil {
		t.Fatalf("first grant: %v", err)
	}
	if errDelete := db.Delete(&models.PricingPlan{}, first.PlanID).Error; errDelete != nil {
		t.Fatalf("soft delete sentinel: %v", errDelete)
	}

	second, err := svc.GrantCredits(context.Background(), 8, 100, 30)
	if err != nil {
		t.Fatalf("second grant: %v", err)
	}
	if second.PlanID != first.PlanID {
		t.Fatalf("sentinel plan duplicated: %d vs %d", second.PlanID, first.PlanID)
	}

	var plan models.PricingPlan
	if errFind := db.First(&plan, first.PlanID).Error; errFind != nil {
		t.Fatalf("sentinel plan not restored: %v", errFind)
	}
	if !plan.IsActive {
		t.Fatal("sentinel plan not re-enabled")
	}
}

func TestCreateSubscriptionHonorsPlanCycle(t *testing.T) {
	db := setupLedgerDB(t)
	svc := NewService(db, nil)
	plan := createTestPlan(t, db, "monthly", 3000, 30)

	sub, err := svc.CreateSubscription(context.Background(), 7, plan.ID)
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	if sub.TokenBalance != 3000 || sub.TokenAllowance != 3000 {
		t.Fatalf("balance/allowance = %d/%d, want 3000/3000", sub.TokenBalance, sub.TokenAllowance)
	}
	wantExpiry := time.Now().UTC().AddDate(0, 0, 30)
	if diff := sub.ExpiresAt.Sub(wantExpiry); diff < -time.Minute || diff > time.Minute {
		t.Fatalf("expiry = %v, want about %v", sub.ExpiresAt, wantExpiry)
	}
}

func TestCreateSubscriptionUnknownPlan(t *testing.T) {
	db := setupLedgerDB(t)
	svc := NewService(db, nil)

	if _, err := svc.CreateSubscription(context.Background(), 7, 9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateSubscriptionInactivePlan(t *testing.T) {
	db := setupLedgerDB(t)
	svc := NewService(db, nil)
	plan := createTestPlan(t, db, "retired", 3000, 30)
	if errUpdate := db.Model(plan).Update("is_active", false).Error; errUpdate != nil {
		t.Fatalf("disable plan: %v", errUpdate)
	}

	if _, err := svc.CreateSubscription(context.Background(), 7, plan.ID); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}
