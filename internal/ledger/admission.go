package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/lucidchat/billing/internal/models"
	"github.com/lucidchat/billing/internal/settings"
	log "github.com/sirupsen/logrus"
)

// The billing day rolls over at a fixed UTC+5:30 midnight regardless of the
// caller's locale.
const billingDayOffsetMinutes = 330

// billingDayLocation is the fixed zone the daily free-tier and rate caps
// reset in.
var billingDayLocation = time.FixedZone("UTC+05:30", billingDayOffsetMinutes*60)

// StartOfBillingDay returns the most recent billing-day boundary at or
// before now.
func StartOfBillingDay(now time.Time) time.Time {
	local := now.In(billingDayLocation)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, billingDayLocation)
}

// MessageCounter reports how many chat messages a user has sent since a
// point in time. Implementations live outside the ledger core; the Redis
// counter in internal/ratelimit is the production one.
type MessageCounter interface {
	// CountSince returns the user's message count since the given time.
	CountSince(ctx context.Context, userID uint64, since time.Time) (int64, error)
	// CountModelSince returns the user's message count for one model since
	// the given time.
	CountModelSince(ctx context.Context, userID, modelConfigID uint64, since time.Time) (int64, error)
}

// Admission is the result of a successful admission check.
type Admission struct {
	// FreeTier is true when the message is admitted on the free daily
	// allowance; no ledger deduction will follow for it.
	FreeTier bool
}

// CanSendMessage decides whether the user may start another AI call. The
// coarse per-role daily cap is checked first, then a positive paid balance
// admits directly (the deduction happens later via RecordUsage — admission
// never reserves tokens), and finally the free daily allowance is consulted.
//
// Admission and recording are separated by the AI call's streaming duration,
// so concurrent requests can all pass admission against the same balance;
// that bounded overspend is accepted rather than closed with a hold step.
func (s *Service) CanSendMessage(ctx context.Context, user *models.User, modelConfig *models.ModelConfig) (Admission, error) {
	if user == nil || user.ID == 0 {
		return Admission{}, fmt.Errorf("%w: missing user", ErrValidation)
	}

	now := time.Now().UTC()
	dayStart := StartOfBillingDay(now)

	sentToday, errCount := s.countSince(ctx, user.ID, dayStart)
	if errCount != nil {
		// Counter outages degrade to zero rather than blocking chat.
		log.WithError(errCount).Warn("ledger: daily message count unavailable")
		sentToday = 0
	}

	if cap := settings.ChatDailyCap(user.Role); cap > 0 && sentToday >= int64(cap) {
		return Admission{}, ErrRateLimited
	}

	sub, errRead := readActiveSubscription(s.db.WithContext(ctx), user.ID, now)
	if errRead != nil {
		return Admission{}, fmt.Errorf("ledger: read subscription: %w", errRead)
	}
	if sub != nil && sub.TokenBalance > 0 {
		return Admission{FreeTier: false}, nil
	}

	policy := settings.FreeTier()
	var (
		limit int64
		used  int64
	)
	switch policy.Mode {
	case settings.FreeTierPerModel:
		if modelConfig == nil || modelConfig.ID == 0 {
			return Admission{}, ErrPaymentRequired
		}
		limit = int64(modelConfig.FreeDailyLimit)
		modelUsed, errModelCount := s.countModelSince(ctx, user.ID, modelConfig.ID, dayStart)
		if errModelCount != nil {
			log.WithError(errModelCount).Warn("ledger: per-model message count unavailable")
			modelUsed = 0
		}
		used = modelUsed
	default:
		limit = int64(policy.GlobalDailyLimit)
		used = sentToday
	}

	if limit > 0 && used < limit {
		return Admission{FreeTier: true}, nil
	}
	return Admission{}, ErrPaymentRequired
}

func (s *Service) countSince(ctx context.Context, userID uint64, since time.Time) (int64, error) {
	if s.counter == nil {
		return 0, nil
	}
	return s.counter.CountSince(ctx, userID, since)
}

func (s *Service) countModelSince(ctx context.Context, userID, modelConfigID uint64, since time.Time) (int64, error) {
	if s.counter == nil {
		return 0, nil
	}
	return s.counter.CountModelSince(ctx, userID, modelConfigID, since)
}
