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

// DefaultGrantExpiryDays is the validity window for manual credit grants
// when the caller does not specify one.
const DefaultGrantExpiryDays = 90

// CreateSubscription applies a confirmed plan purchase to the user's
// entitlement. When a non-expired subscription exists the new allowance is
// merged into it in place; otherwise a fresh row is inserted. Invoked by the
// payment webhook after the provider confirms an order.
func (s *Service) CreateSubscription(ctx context.Context, userID, planID uint64) (*models.UserSubscription, error) {
	if userID == 0 {
		return nil, fmt.Errorf("%w: missing user id", ErrValidation)
	}

	var out *models.UserSubscription
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()

		var plan models.PricingPlan
		errFind := tx.First(&plan, planID).Error
		if errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: plan %d", ErrNotFound, planID)
			}
			return errFind
		}
		if !plan.IsActive {
			return fmt.Errorf("%w: plan %q is not purchasable", ErrValidation, plan.Name)
		}

		cycleDays := plan.CycleDays
		if cycleDays < 1 {
			cycleDays = 1
		}

		sub, errApply := applyGrant(tx, userID, plan.ID, plan.TokenAllowance, now, now.AddDate(0, 0, cycleDays))
		if errApply != nil {
			return errApply
		}
		out = sub
		return nil
	})
	if errTx != nil {
		if errors.Is(errTx, ErrNotFound) || errors.Is(errTx, ErrValidation) {
			return nil, errTx
		}
		return nil, fmt.Errorf("ledger: create subscription: %w", errTx)
	}
	return out, nil
}

// GrantCredits injects tokens outside the normal purchase flow. It reuses
// the merge-on-renew logic against the sentinel manual top-up plan and must
// only be reachable by administrative callers.
func (s *Service) GrantCredits(ctx context.Context, userID uint64, tokens int64, expiresInDays int) (*models.UserSubscription, error) {
	if userID == 0 {
		return nil, fmt.Errorf("%w: missing user id", ErrValidation)
	}
	if tokens <= 0 {
		return nil, fmt.Errorf("%w: grant tokens must be positive", ErrValidation)
	}
	if expiresInDays <= 0 {
		expiresInDays = DefaultGrantExpiryDays
	}

	var out *models.UserSubscription
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()

		plan, errEnsure := ensureSentinelPlan(tx, now)
		if errEnsure != nil {
			return errEnsure
		}

		sub, errApply := applyGrant(tx, userID, plan.ID, tokens, now, now.AddDate(0, 0, expiresInDays))
		if errApply != nil {
			return errApply
		}
		out = sub
		return nil
	})
	if errTx != nil {
		return nil, fmt.Errorf("ledger: grant credits: %w", errTx)
	}
	log.WithFields(log.Fields{"user_id": userID, "tokens": tokens}).Info("ledger: manual credit grant applied")
	return out, nil
}

// applyGrant merges a new allowance into the user's mergeable subscription,
// or inserts a fresh row when none exists. Merging accumulates allowance and
// balance, extends expiry to the later of the two windows and forces the
// status back to active.
func applyGrant(tx *gorm.DB, userID, planID uint64, tokens int64, now, expiresAt time.Time) (*models.UserSubscription, error) {
	sub, errResolve := resolveMergeable(tx, userID, now)
	if errResolve != nil {
		return nil, errResolve
	}

	if sub != nil {
		newExpiry := sub.ExpiresAt
		if expiresAt.After(newExpiry) {
			newExpiry = expiresAt
		}
		if errUpdate := tx.Model(&models.UserSubscription{}).
			Where("id = ?", sub.ID).
			Updates(map[string]any{
				"token_allowance": sub.TokenAllowance + tokens,
				"token_balance":   sub.TokenBalance + tokens,
				"expires_at":      newExpiry,
				"status":          models.SubscriptionStatusActive,
				"updated_at":      now,
			}).Error; errUpdate != nil {
			return nil, errUpdate
		}
		sub.TokenAllowance += tokens
		sub.TokenBalance += tokens
		sub.ExpiresAt = newExpiry
		sub.Status = models.SubscriptionStatusActive
		sub.UpdatedAt = now
		return sub, nil
	}

	row := models.UserSubscription{
		UserID:         userID,
		PlanID:         planID,
		TokenAllowance: tokens,
		TokenBalance:   tokens,
		TokensUsed:     0,
		Status:         models.SubscriptionStatusActive,
		StartedAt:      now,
		ExpiresAt:      expiresAt,
	}
	if errCreate := tx.Create(&row).Error; errCreate != nil {
		return nil, errCreate
	}
	return &row, nil
}

// ensureSentinelPlan upserts the reserved manual top-up plan: created when
// missing, restored when soft-deleted or disabled. Idempotent.
func ensureSentinelPlan(tx *gorm.DB, now time.Time) (*models.PricingPlan, error) {
	var plan models.PricingPlan
	errFind := tx.Unscoped().
		Where("name = ?", models.ManualTopUpPlanName).
		First(&plan).Error
	if errFind == nil {
		if plan.DeletedAt.Valid || !plan.IsActive {
			if errRestore := tx.Unscoped().Model(&models.PricingPlan{}).
				Where("id = ?", plan.ID).
				Updates(map[string]any{
					"deleted_at": nil,
					"is_active":  true,
					"updated_at": now,
				}).Error; errRestore != nil {
				return nil, errRestore
			}
			plan.DeletedAt = gorm.DeletedAt{}
			plan.IsActive = true
		}
		return &plan, nil
	}
	if !errors.Is(errFind, gorm.ErrRecordNotFound) {
		return nil, errFind
	}

	plan = models.PricingPlan{
		Name:           models.ManualTopUpPlanName,
		PriceMinor:     0,
		TokenAllowance: 0,
		CycleDays:      DefaultGrantExpiryDays,
		IsActive:       true,
	}
	if errCreate := tx.Create(&plan).Error; errCreate != nil {
		return nil, errCreate
	}
	return &plan, nil
}
