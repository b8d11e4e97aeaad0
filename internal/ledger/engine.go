package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lucidchat/billing/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RecordUsageParams carries a single metered usage event to be billed.
type RecordUsageParams struct {
	UserID        uint64  // Billed user.
	ChatID        uint64  // Originating chat session.
	ModelConfigID *uint64 // Model configuration, when known.
	InputTokens   int64   // Raw input token count.
	OutputTokens  int64   // Raw output token count.
}

// RecordUsage admits a usage event, resolves the active subscription,
// computes the deduction and applies it atomically, recording an immutable
// token usage entry on success.
//
// The event is billed in full or not at all. When the balance cannot cover
// the deduction the row is drained to zero and marked exhausted — that
// mutation commits even though the call returns ErrInsufficientCredits, and
// no usage entry is recorded. Two concurrent calls against the same
// subscription serialize on the row lock taken by resolveActive, so the sum
// of their deductions is always reflected and the balance can never go
// negative through an overlapping read-modify-write.
func (s *Service) RecordUsage(ctx context.Context, params RecordUsageParams) (*models.TokenUsage, error) {
	if params.UserID == 0 {
		return nil, fmt.Errorf("%w: missing user id", ErrValidation)
	}
	if params.InputTokens < 0 || params.OutputTokens < 0 {
		return nil, fmt.Errorf("%w: usage must be positive", ErrValidation)
	}
	totalTokens := params.InputTokens + params.OutputTokens
	if totalTokens <= 0 {
		return nil, fmt.Errorf("%w: usage must be positive", ErrValidation)
	}

	var (
		entry  *models.TokenUsage
		bizErr error
	)
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()

		inRate, outRate, errRates := resolveRates(tx, params.ModelConfigID)
		if errRates != nil {
			return errRates
		}

		sub, errResolve := resolveActive(tx, params.UserID, now)
		if errResolve != nil {
			return errResolve
		}
		if sub == nil {
			// Admission should have rejected this earlier; treat as a race
			// fallback rather than the normal path.
			bizErr = ErrPaymentRequired
			return nil
		}

		tokensToDeduct := ComputeDeduction(params.InputTokens, params.OutputTokens, inRate, outRate)

		if sub.TokenBalance < tokensToDeduct {
			// Exhaustion path: the drain commits, the usage does not bill.
			consumed := sub.TokenBalance
			if consumed < 0 {
				consumed = 0
			}
			tokensUsed := sub.TokensUsed + consumed
			if tokensUsed > sub.TokenAllowance {
				tokensUsed = sub.TokenAllowance
			}
			if errUpdate := tx.Model(&models.UserSubscription{}).
				Where("id = ?", sub.ID).
				Updates(map[string]any{
					"token_balance": 0,
					"tokens_used":   tokensUsed,
					"status":        models.SubscriptionStatusExhausted,
					"updated_at":    now,
				}).Error; errUpdate != nil {
				return errUpdate
			}
			bizErr = ErrInsufficientCredits
			return nil
		}

		row := models.TokenUsage{
			UserID:         params.UserID,
			ChatID:         params.ChatID,
			ModelConfigID:  params.ModelConfigID,
			SubscriptionID: sub.ID,
			InputTokens:    params.InputTokens,
			OutputTokens:   params.OutputTokens,
			TotalTokens:    totalTokens,
			CreatedAt:      now,
		}
		if errCreate := tx.Create(&row).Error; errCreate != nil {
			return errCreate
		}

		newBalance := sub.TokenBalance - tokensToDeduct
		status := models.SubscriptionStatusActive
		if newBalance <= 0 {
			status = models.SubscriptionStatusExhausted
		}
		if errUpdate := tx.Model(&models.UserSubscription{}).
			Where("id = ?", sub.ID).
			Updates(map[string]any{
				"token_balance": newBalance,
				"tokens_used":   sub.TokensUsed + tokensToDeduct,
				"status":        status,
				"updated_at":    now,
			}).Error; errUpdate != nil {
			return errUpdate
		}

		entry = &row
		return nil
	})
	if errTx != nil {
		return nil, fmt.Errorf("ledger: record usage: %w", errTx)
	}
	if bizErr != nil {
		if errors.Is(bizErr, ErrInsufficientCredits) {
			log.WithField("user_id", params.UserID).Info("ledger: subscription exhausted by usage event")
		}
		return nil, bizErr
	}
	return entry, nil
}

// resolveRates loads the cost rates for a model config. A missing config or
// malformed fields fall back to the baseline rate per field.
func resolveRates(tx *gorm.DB, modelConfigID *uint64) (float64, float64, error) {
	if modelConfigID == nil {
		return BaselineRate, BaselineRate, nil
	}
	var mc models.ModelConfig
	errFind := tx.
		Select("input_cost_per_million", "output_cost_per_million").
		First(&mc, *modelConfigID).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return BaselineRate, BaselineRate, nil
		}
		return 0, 0, errFind
	}
	return NormalizeRate(mc.InputCostPerMillion), NormalizeRate(mc.OutputCostPerMillion), nil
}
