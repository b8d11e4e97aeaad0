package ledger

import (
	"context"
	"errors"
	"time"

	dbutil "github.com/lucidchat/billing/internal/db"
	"github.com/lucidchat/billing/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// BalanceSummary is the display-ready projection of a user's entitlement.
type BalanceSummary struct {
	TokensRemaining  int64      `json:"tokens_remaining"`
	TokensTotal      int64      `json:"tokens_total"`
	CreditsRemaining int64      `json:"credits_remaining"`
	CreditsTotal     int64      `json:"credits_total"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	PlanName         string     `json:"plan_name,omitempty"`
}

// GetBalanceSummary aggregates the user's subscription into a display
// balance. The active subscription wins; with none, the most recently
// updated historical row is surfaced for context only — expired balances
// always display as zero while the plan name and expiry remain visible.
// A user with no subscription at all gets the zero summary, not an error,
// and storage failures on this read path degrade to the zero summary too.
func (s *Service) GetBalanceSummary(ctx context.Context, userID uint64) (*BalanceSummary, error) {
	now := time.Now().UTC()
	conn := s.db.WithContext(ctx)

	var sub models.UserSubscription
	errFind := conn.
		Preload("Plan", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Where("user_id = ? AND status = ? AND expires_at > ?", userID, models.SubscriptionStatusActive, now).
		Order("expires_at DESC").
		First(&sub).Error
	if errors.Is(errFind, gorm.ErrRecordNotFound) {
		errFind = conn.
			Preload("Plan", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
			Where("user_id = ?", userID).
			Order("updated_at DESC").
			First(&sub).Error
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return &BalanceSummary{}, nil
		}
	}
	if errFind != nil {
		log.WithError(errFind).Warn("ledger: balance summary query failed, returning empty")
		return &BalanceSummary{}, nil
	}

	expiresAt := sub.ExpiresAt
	out := &BalanceSummary{
		ExpiresAt: &expiresAt,
		PlanName:  sub.Plan.Name,
	}
	if sub.ExpiresAt.After(now) {
		out.TokensRemaining = sub.TokenBalance
		out.TokensTotal = sub.TokenAllowance
		out.CreditsRemaining = CreditsFromTokens(sub.TokenBalance)
		out.CreditsTotal = CreditsFromTokens(sub.TokenAllowance)
	}
	return out, nil
}

// DailyUsage is one billing-day bucket of token usage.
type DailyUsage struct {
	Day          string `json:"day"`
	Requests     int64  `json:"requests"`
	InputTokens  int64  `json:"input_tokens"`
	OutputTokens int64  `json:"output_tokens"`
	TotalTokens  int64  `json:"total_tokens"`
}

// GetDailyTokenUsage returns per-billing-day usage buckets for the last
// `days` days, oldest first. Storage failures degrade to an empty slice.
func (s *Service) GetDailyTokenUsage(ctx context.Context, userID uint64, days int) ([]DailyUsage, error) {
	if days < 1 {
		days = 1
	}
	now := time.Now().UTC()
	since := StartOfBillingDay(now).AddDate(0, 0, -(days - 1))

	bucket := dbutil.DayBucketExpr(s.db, "created_at", billingDayOffsetMinutes)
	var rows []DailyUsage
	errScan := s.db.WithContext(ctx).
		Model(&models.TokenUsage{}).
		Select(bucket + " AS day, COUNT(*) AS requests, COALESCE(SUM(input_tokens), 0) AS input_tokens, COALESCE(SUM(output_tokens), 0) AS output_tokens, COALESCE(SUM(total_tokens), 0) AS total_tokens").
		Where("user_id = ? AND created_at >= ?", userID, since).
		Group("day").
		Order("day ASC").
		Scan(&rows).Error
	if errScan != nil {
		log.WithError(errScan).Warn("ledger: daily usage query failed, returning empty")
		return []DailyUsage{}, nil
	}
	return rows, nil
}

// SessionUsage is the token usage aggregated over one chat session.
type SessionUsage struct {
	ChatID      uint64    `json:"chat_id"`
	Requests    int64     `json:"requests"`
	TotalTokens int64     `json:"total_tokens"`
	LastUsedAt  time.Time `json:"last_used_at"`
}

// GetSessionTokenUsage returns per-chat usage aggregates for a user, most
// recently used first. Storage failures degrade to an empty slice.
func (s *Service) GetSessionTokenUsage(ctx context.Context, userID uint64) ([]SessionUsage, error) {
	var rows []SessionUsage
	errScan := s.db.WithContext(ctx).
		Model(&models.TokenUsage{}).
		Select("chat_id, COUNT(*) AS requests, COALESCE(SUM(total_tokens), 0) AS total_tokens, MAX(created_at) AS last_used_at").
		Where("user_id = ?", userID).
		Group("chat_id").
		Order("last_used_at DESC").
		Scan(&rows).Error
	if errScan != nil {
		log.WithError(errScan).Warn("ledger: session usage query failed, returning empty")
		return []SessionUsage{}, nil
	}
	return rows, nil
}
