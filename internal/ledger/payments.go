package ledger

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/lucidchat/billing/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreatePaymentTransaction opens a pending order for a plan purchase. The
// returned order id is handed to the payment provider and later echoed back
// by its webhook.
func (s *Service) CreatePaymentTransaction(ctx context.Context, userID, planID uint64) (*models.PaymentTransaction, error) {
	if userID == 0 {
		return nil, fmt.Errorf("%w: missing user id", ErrValidation)
	}

	var plan models.PricingPlan
	errFind := s.db.WithContext(ctx).First(&plan, planID).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: plan %d", ErrNotFound, planID)
		}
		return nil, fmt.Errorf("ledger: load plan: %w", errFind)
	}
	if !plan.IsActive {
		return nil, fmt.Errorf("%w: plan %q is not purchasable", ErrValidation, plan.Name)
	}

	row := models.PaymentTransaction{
		UserID:      userID,
		PlanID:      plan.ID,
		OrderID:     newOrderID(),
		AmountMinor: plan.PriceMinor,
		Status:      models.PaymentStatusPending,
	}
	if errCreate := s.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		return nil, fmt.Errorf("ledger: create payment: %w", errCreate)
	}
	return &row, nil
}

// MarkPaymentPaid confirms an order and applies its subscription in one
// atomic transaction. Replayed notifications for an already-paid order are
// acknowledged without re-applying the grant; the returned subscription is
// nil in that case.
func (s *Service) MarkPaymentPaid(ctx context.Context, orderID string, payload []byte) (*models.UserSubscription, error) {
	if orderID == "" {
		return nil, fmt.Errorf("%w: missing order id", ErrValidation)
	}

	var (
		out      *models.UserSubscription
		replayed bool
	)
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()

		var payment models.PaymentTransaction
		errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("order_id = ?", orderID).
			First(&payment).Error
		if errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: order %s", ErrNotFound, orderID)
			}
			return errFind
		}

		switch payment.Status {
		case models.PaymentStatusPaid:
			replayed = true
			return nil
		case models.PaymentStatusFailed:
			return fmt.Errorf("%w: order %s already failed", ErrValidation, orderID)
		}

		updates := map[string]any{
			"status":     models.PaymentStatusPaid,
			"paid_at":    now,
			"updated_at": now,
		}
		if len(payload) > 0 {
			updates["provider_payload"] = datatypes.JSON(payload)
		}
		if errUpdate := tx.Model(&models.PaymentTransaction{}).
			Where("id = ?", payment.ID).
			Updates(updates).Error; errUpdate != nil {
			return errUpdate
		}

		// Honor a paid order even if the plan was disabled or soft-deleted
		// after checkout; plans are never hard-deleted while referenced.
		var plan models.PricingPlan
		if errPlan := tx.Unscoped().First(&plan, payment.PlanID).Error; errPlan != nil {
			return errPlan
		}
		cycleDays := plan.CycleDays
		if cycleDays < 1 {
			cycleDays = 1
		}

		sub, errApply := applyGrant(tx, payment.UserID, plan.ID, plan.TokenAllowance, now, now.AddDate(0, 0, cycleDays))
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
		return nil, fmt.Errorf("ledger: mark payment paid: %w", errTx)
	}
	if replayed {
		log.WithField("order_id", orderID).Info("ledger: replayed payment notification acknowledged")
		return nil, nil
	}
	return out, nil
}

// MarkPaymentFailed records a provider rejection for a pending order.
func (s *Service) MarkPaymentFailed(ctx context.Context, orderID string, payload []byte) error {
	if orderID == "" {
		return fmt.Errorf("%w: missing order id", ErrValidation)
	}

	updates := map[string]any{
		"status":     models.PaymentStatusFailed,
		"updated_at": time.Now().UTC(),
	}
	if len(payload) > 0 {
		updates["provider_payload"] = datatypes.JSON(payload)
	}
	res := s.db.WithContext(ctx).Model(&models.PaymentTransaction{}).
		Where("order_id = ? AND status = ?", orderID, models.PaymentStatusPending).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("ledger: mark payment failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: pending order %s", ErrNotFound, orderID)
	}
	return nil
}

// newOrderID returns a random provider-facing order identifier.
func newOrderID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("ord_%d", time.Now().UnixNano())
	}
	return "ord_" + hex.EncodeToString(buf)
}
