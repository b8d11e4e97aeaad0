package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lucidchat/billing/internal/models"
)

func TestRecordUsageRejectsInvalidInput(t *testing.T) {
	db := setupLedgerDB(t)
	svc := NewService(db, nil)
	ctx := context.Background()

	cases := []RecordUsageParams{
		{UserID: 0, ChatID: 1, InputTokens: 10, OutputTokens: 10},
		{UserID: 1, ChatID: 1, InputTokens: -1, OutputTokens: 10},
		{UserID: 1, ChatID: 1, InputTokens: 10, OutputTokens: -1},
		{UserID: 1, ChatID: 1, InputTokens: 0, OutputTokens: 0},
	}
	for _, params := range cases {
		if _, err := svc.RecordUsage(ctx, params); !errors.Is(err, ErrValidation) {
			t.Fatalf("params %+v: err = %v, want ErrValidation", params, err)
		}
	}

	var count int64
	if errCount := db.Model(&models.TokenUsage{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count usage: %v", errCount)
	}
	if count != 0 {
		t.Fatalf("rejected input wrote %d usage rows", count)
	}
}

func TestRecordUsageWithoutSubscription(t *testing.T) {
	db := setupLedgerDB(t)
	svc := NewService(db, nil)

	_, err := svc.RecordUsage(context.Background(), RecordUsageParams{
		UserID: 7, ChatID: 1, InputTokens: 50, OutputTokens: 50,
	})
	if !errors.Is(err, ErrPaymentRequired) {
		t.Fatalf("err = %v, want ErrPaymentRequired", err)
	}
}

func TestRecordUsageDeductsAndRecords(t *testing.T) {
	db := setupLedgerDB(t)
	svc := NewService(db, nil)
	plan := createTestPlan(t, db, "starter", 1000, 30)
	sub := createTestSubscription(t, db, 7, plan.ID, 1000, 1000, models.SubscriptionStatusActive, time.Now().UTC().Add(24*time.Hour))

	entry, err := svc.RecordUsage(context.Background(), RecordUsageParams{
		UserID: 7, ChatID: 42, InputTokens: 120, OutputTokens: 80,
	})
	if err != nil {
		t.Fatalf("record usage: %v", err)
	}
	if entry == nil {
		t.Fatal("nil usage entry")
	}
	if entry.TotalTokens != 200 {
		t.Fatalf("entry total = %d, want 200", entry.TotalTokens)
	}
	if entry.SubscriptionID != sub.ID {
		t.Fatalf("entry subscription = %d, want %d", entry.SubscriptionID, sub.ID)
	}

	after := reloadSubscription(t, db, sub.ID)
	// 200 weighted tokens at baseline is 2 credits, 200 ledger tokens.
	if after.TokenBalance != 800 {
		t.Fatalf("balance = %d, want 800", after.TokenBalance)
	}
	if after.TokensUsed != 200 {
		t.Fatalf("tokens used = %d, want 200", after.TokensUsed)
	}
	if after.Status != models.SubscriptionStatusActive {
		t.Fatalf("status = %s, want active", after.Status)
	}
}

func TestRecordUsageExactDepletionMarksExhausted(t *testing.T) {
	db := setupLedgerDB(t)
	svc := NewService(db, nil)
	plan := createTestPlan(t, db, "starter", 200, 30)
	sub := createTestSubscription(t, db, 7, plan.ID, 200, 200, models.SubscriptionStatusActive, time.Now().UTC().Add(24*time.Hour))

	if _, err := svc.RecordUsage(context.Background(), RecordUsageParams{
		UserID: 7, ChatID: 1, InputTokens: 100, OutputTokens: 100,
	}); err != nil {
		t.Fatalf("record usage: %v", err)
	}

	after := reloadSubscription(t, db, sub.ID)
	if after.TokenBalance != 0 {
		t.Fatalf("balance = %d, want 0", after.TokenBalance)
	}
	if after.Status != models.SubscriptionStatusExhausted {
		t.Fatalf("status = %s, want exhausted", after.Status)
	}
}

func TestRecordUsageInsufficientBalanceDrains(t *testing.T) {
	db := setupLedgerDB(t)
	svc := NewService(db, nil)
	plan := createTestPlan(t, db, "starter", 1000, 30)
	sub := createTestSubscription(t, db, 7, plan.ID, 150, 1000, models.SubscriptionStatusActive, time.Now().UTC().Add(24*time.Hour))

	// 300 weighted tokens needs 3 credits but only 150 tokens remain.
	_, err := svc.RecordUsage(context.Background(), RecordUsageParams{
		UserID: 7, ChatID: 1, InputTokens: 150, OutputTokens: 150,
	})
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("err = %v, want ErrInsufficientCredits", err)
	}

	// The drain commits even though the call failed.
	after := reloadSubscription(t, db, sub.ID)
	if after.TokenBalance != 0 {
		t.Fatalf("balance = %d, want drained to 0", after.TokenBalance)
	}
	if after.Status != models.SubscriptionStatusExhausted {
		t.Fatalf("status = %s, want exhausted", after.Status)
	}
	if after.TokensUsed != 1000 {
		t.Fatalf("tokens used = %d, want 1000", after.TokensUsed)
	}

	// No usage entry bills a partially covered event.
	var count int64
	if errCount := db.Model(&models.TokenUsage{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count usage: %v", errCount)
	}
	if count != 0 {
		t.Fatalf("insufficient balance wrote %d usage rows", count)
	}
}

func TestRecordUsageExpiredSubscription(t *testing.T) {
	db := setupLedgerDB(t)
	svc := NewService(db, nil)
	plan := createTestPlan(t, db, "starter", 1000, 30)
	sub := createTestSubscription(t, db, 7, plan.ID, 1000, 1000, models.SubscriptionStatusActive, time.Now().UTC().Add(-time.Minute))

	_, err := svc.RecordUsage(context.Background(), RecordUsageParams{
		UserID: 7, ChatID: 1, InputTokens: 50, OutputTokens: 50,
	})
	if !errors.Is(err, ErrPaymentRequired) {
		t.Fatalf("err = %v, want ErrPaymentRequired", err)
	}

	// The passive demotion commits as a side effect of resolution.
	after := reloadSubscription(t, db, sub.ID)
	if after.Status != models.SubscriptionStatusExpired {
		t.Fatalf("status = %s, want expired", after.Status)
	}
	if after.TokenBalance != 1000 {
		t.Fatalf("expired balance = %d, want preserved 1000", after.TokenBalance)
	}
}

func TestRecordUsagePicksLatestExpiringActive(t *testing.T) {
	db := setupLedgerDB(t)
	svc := NewService(db, nil)
	plan := createTestPlan(t, db, "starter", 1000, 30)
	now := time.Now().UTC()
	early := createTestSubscription(t, db, 7, plan.ID, 1000, 1000, models.SubscriptionStatusActive, now.Add(24*time.Hour))
	late := createTestSubscription(t, db, 7, plan.ID, 1000, 1000, models.SubscriptionStatusActive, now.Add(48*time.Hour))

	entry, err := svc.RecordUsage(context.Background(), RecordUsageParams{
		UserID: 7, ChatID: 1, InputTokens: 100, OutputTokens: 0,
	})
	if err != nil {
		t.Fatalf("record usage: %v", err)
	}
	if entry.SubscriptionID != late.ID {
		t.Fatalf("charged subscription %d, want latest-expiring %d", entry.SubscriptionID, late.ID)
	}
	if got := reloadSubscription(t, db, early.ID); got.TokenBalance != 1000 {
		t.Fatalf("earlier subscription balance changed: %d", got.TokenBalance)
	}
}

func TestRecordUsageUsesModelRates(t *testing.T) {
	db := setupLedgerDB(t)
	svc := NewService(db, nil)
	plan := createTestPlan(t, db, "starter", 10000, 30)
	sub := createTestSubscription(t, db, 7, plan.ID, 10000, 10000, models.SubscriptionStatusActive, time.Now().UTC().Add(24*time.Hour))

	mc := models.ModelConfig{Name: "gpt-omega", Provider: "openai", InputCostPerMillion: 2, OutputCostPerMillion: 4, IsEnabled: true}
	if errCreate := db.Create(&mc).Error; errCreate != nil {
		t.Fatalf("create model config: %v", errCreate)
	}

	// 100*2 + 100*4 = 600 weighted tokens, 6 credits.
	if _, err := svc.RecordUsage(context.Background(), RecordUsageParams{
		UserID: 7, ChatID: 1, ModelConfigID: &mc.ID, InputTokens: 100, OutputTokens: 100,
	}); err != nil {
		t.Fatalf("record usage: %v", err)
	}
	after := reloadSubscription(t, db, sub.ID)
	if after.TokenBalance != 10000-600 {
		t.Fatalf("balance = %d, want %d", after.TokenBalance, 10000-600)
	}
}

func TestRecordUsageMissingModelConfigFallsBack(t *testing.T) {
	db := setupLedgerDB(t)
	svc := NewService(db, nil)
	plan := createTestPlan(t, db, "starter", 1000, 30)
	sub := createTestSubscription(t, db, 7, plan.ID, 1000, 1000, models.SubscriptionStatusActive, time.Now().UTC().Add(24*time.Hour))

	missing := uint64(9999)
	if _, err := svc.RecordUsage(context.Background(), RecordUsageParams{
		UserID: 7, ChatID: 1, ModelConfigID: &missing, InputTokens: 100, OutputTokens: 100,
	}); err != nil {
		t.Fatalf("record usage: %v", err)
	}
	after := reloadSubscription(t, db, sub.ID)
	if after.TokenBalance != 800 {
		t.Fatalf("balance = %d, want baseline pricing 800", after.TokenBalance)
	}
}

func TestRecordUsageConcurrentNeverOverspends(t *testing.T) {
	db := setupLedgerDB(t)
	svc := NewService(db, nil)
	plan := createTestPlan(t, db, "starter", 1000, 30)
	// Nine credits of balance against ten concurrent one-credit events.
	sub := createTestSubscription(t, db, 7, plan.ID, 9*TokensPerCredit, 1000, models.SubscriptionStatusActive, time.Now().UTC().Add(24*time.Hour))

	const workers = 10
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.RecordUsage(context.Background(), RecordUsageParams{
				UserID: 7, ChatID: uint64(i + 1), InputTokens: 50, OutputTokens: 50,
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	insufficient := 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrInsufficientCredits), errors.Is(err, ErrPaymentRequired):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 9 {
		t.Fatalf("succeeded = %d, want 9", succeeded)
	}
	if insufficient != 1 {
		t.Fatalf("rejected = %d, want 1", insufficient)
	}

	after := reloadSubscription(t, db, sub.ID)
	if after.TokenBalance != 0 {
		t.Fatalf("final balance = %d, want 0", after.TokenBalance)
	}
	if after.TokenBalance < 0 {
		t.Fatalf("balance went negative: %d", after.TokenBalance)
	}

	var count int64
	if errCount := db.Model(&models.TokenUsage{}).Count(&count).Error; errCount != nil {
		t.Fatalf("count usage: %v", errCount)
	}
	if count != 9 {
		t.Fatalf("usage rows = %d, want 9", count)
	}
}
