package ledger

import (
	"errors"
	"time"

	"github.com/lucidchat/billing/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// resolveActive returns the spendable subscription for a user, applying the
// passive state transitions first:
//
//  1. active rows whose validity window closed are demoted to expired,
//  2. the most-recently-expiring remaining active row is selected and locked,
//  3. a selected row with no balance left is demoted to exhausted and treated
//     as absent.
//
// It must run inside the same transaction as any mutation that follows and
// its result must never be cached across calls. Returns (nil, nil) when the
// user has no spendable subscription.
func resolveActive(tx *gorm.DB, userID uint64, now time.Time) (*models.UserSubscription, error) {
	if errDemote := demoteExpired(tx, userID, now); errDemote != nil {
		return nil, errDemote
	}

	var sub models.UserSubscription
	errFind := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND status = ? AND expires_at > ?", userID, models.SubscriptionStatusActive, now).
		Order("expires_at DESC").
		First(&sub).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errFind
	}

	if sub.TokenBalance <= 0 {
		if errUpdate := tx.Model(&models.UserSubscription{}).
			Where("id = ?", sub.ID).
			Updates(map[string]any{
				"status":     models.SubscriptionStatusExhausted,
				"updated_at": now,
			}).Error; errUpdate != nil {
			return nil, errUpdate
		}
		return nil, nil
	}

	return &sub, nil
}

// resolveMergeable returns the locked subscription a new allowance should
// merge into: the most-recently-expiring non-expired row in status active or
// exhausted. Merging forces the row back to active, which is how an
// exhausted subscription is revived by a renewal or grant.
func resolveMergeable(tx *gorm.DB, userID uint64, now time.Time) (*models.UserSubscription, error) {
	if errDemote := demoteExpired(tx, userID, now); errDemote != nil {
		return nil, errDemote
	}

	var sub models.UserSubscription
	errFind := tx.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND status IN ? AND expires_at > ?",
			userID,
			[]models.SubscriptionStatus{models.SubscriptionStatusActive, models.SubscriptionStatusExhausted},
			now).
		Order("expires_at DESC").
		First(&sub).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errFind
	}
	return &sub, nil
}

// demoteExpired transitions active rows whose window closed to expired. The
// balance is preserved; expired tokens are simply no longer spendable.
func demoteExpired(tx *gorm.DB, userID uint64, now time.Time) error {
	return tx.Model(&models.UserSubscription{}).
		Where("user_id = ? AND status = ? AND expires_at <= ?", userID, models.SubscriptionStatusActive, now).
		Updates(map[string]any{
			"status":     models.SubscriptionStatusExpired,
			"updated_at": now,
		}).Error
}

// readActiveSubscription is the lock-free variant used by read-only paths
// (admission, balance display). It applies the same selection rules as
// resolveActive but performs no state transitions.
func readActiveSubscription(conn *gorm.DB, userID uint64, now time.Time) (*models.UserSubscription, error) {
	var sub models.UserSubscription
	errFind := conn.
		Where("user_id = ? AND status = ? AND expires_at > ?", userID, models.SubscriptionStatusActive, now).
		Order("expires_at DESC").
		First(&sub).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errFind
	}
	if sub.TokenBalance <= 0 {
		return nil, nil
	}
	return &sub, nil
}
