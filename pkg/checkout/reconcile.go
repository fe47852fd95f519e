package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/payment"
	"github.com/example/storefront/pkg/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Outcome is what a payment callback did to its order.
type Outcome int

const (
	// OutcomeRetry means nothing changed; the callback may be delivered again.
	OutcomeRetry Outcome = iota
	// OutcomePaid means stock was deducted, the cart cleared and the order marked PAID.
	OutcomePaid
	// OutcomeAlreadyPaid means an earlier callback already applied the payment.
	OutcomeAlreadyPaid
	// OutcomeRejected means the order was deleted and the cart kept.
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomePaid:
		return "paid"
	case OutcomeAlreadyPaid:
		return "already_paid"
	case OutcomeRejected:
		return "rejected"
	default:
		return "retry"
	}
}

// Reconcile handles one payment callback for reference (the order number).
// The provider is asked for the transaction first, with no lock held; a
// verified payment is then applied in a single transaction, anything else
// deletes the pending order. A PAID order is never applied twice.
func (s *Service) Reconcile(ctx context.Context, reference string) (Outcome, error) {
	if reference == "" {
		return OutcomeRejected, ErrOrderNotFound
	}
	logger := s.logger.With(zap.String("order_number", reference))

	if s.locker != nil {
		key := "callback:" + reference
		token, err := s.locker.AcquireLock(ctx, key, s.opts.CallbackLockTTL)
		switch {
		case err != nil:
			// the order row guard below still prevents double application
			logger.Warn("Callback lock unavailable", zap.Error(err))
		case token == "":
			return OutcomeRetry, ErrReconciliationInProgress
		default:
			defer func() {
				if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), key, token); err != nil {
					logger.Warn("Failed to release callback lock", zap.Error(err))
				}
			}()
		}
	}

	var order models.Order
	if err := s.db.WithContext(ctx).Where("order_number = ?", reference).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return OutcomeRejected, ErrOrderNotFound
		}
		return OutcomeRetry, fmt.Errorf("failed to load order: %w", err)
	}
	if order.IsPaid() {
		logger.Info("Duplicate callback for paid order")
		return OutcomeAlreadyPaid, nil
	}

	verifyCtx, cancel := context.WithTimeout(ctx, s.opts.PaymentTimeout)
	verification, err := s.gateway.Verify(verifyCtx, reference)
	cancel()
	if err != nil {
		return s.reject(ctx, &order, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err))
	}
	if err := s.match(&order, verification); err != nil {
		return s.reject(ctx, &order, err)
	}

	err = s.apply(ctx, &order)
	switch {
	case err == nil:
	case errors.Is(err, ErrAlreadyApplied):
		logger.Error("Payment already applied to order", zap.Error(err))
		return OutcomeAlreadyPaid, nil
	case errors.Is(err, ErrStockConflict), errors.Is(err, ErrOrderNotFound):
		return s.reject(ctx, &order, err)
	default:
		return OutcomeRetry, err
	}

	order.PaymentStatus = models.PaymentPaid
	logger.Info("Payment reconciled",
		zap.String("user_id", order.UserID),
		zap.Int64("total_amount", order.TotalAmount))
	s.afterPaid(ctx, &order)

	return OutcomePaid, nil
}

// match compares the provider's verification with the stored order. The
// provider reports minor units on both sides of the comparison.
func (s *Service) match(order *models.Order, v *payment.Verification) error {
	if !v.Success {
		return fmt.Errorf("%w: transaction not successful", ErrVerificationMismatch)
	}
	if expected := payment.MinorUnits(order.TotalAmount); v.Amount != expected {
		return fmt.Errorf("%w: amount %d, expected %d", ErrVerificationMismatch, v.Amount, expected)
	}
	if v.Currency != "" && s.opts.Currency != "" && !strings.EqualFold(v.Currency, s.opts.Currency) {
		return fmt.Errorf("%w: currency %s, expected %s", ErrVerificationMismatch, v.Currency, s.opts.Currency)
	}
	if v.Reference != "" && v.Reference != order.OrderNumber {
		return fmt.Errorf("%w: reference %s", ErrVerificationMismatch, v.Reference)
	}
	return nil
}

// apply marks the order PAID, deducts the stock its items captured and
// removes them from the cart. Either all of it commits or none.
func (s *Service) apply(ctx context.Context, order *models.Order) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked models.Order
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Items").
			Where("id = ?", order.ID).
			First(&locked).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to lock order: %w", err)
		}

		res := tx.Model(&models.Order{}).
			Where("id = ? AND payment_status = ?", locked.ID, models.PaymentUnpaid).
			Update("payment_status", models.PaymentPaid)
		if res.Error != nil {
			return fmt.Errorf("failed to mark order paid: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyApplied
		}

		items := append([]models.OrderItem(nil), locked.Items...)
		sort.Slice(items, func(i, j int) bool {
			if items[i].ProductID != items[j].ProductID {
				return items[i].ProductID < items[j].ProductID
			}
			return items[i].Size < items[j].Size
		})

		for _, item := range items {
			if err := deductStock(tx, item); err != nil {
				return err
			}
		}

		if s.opts.ClearEntireCart {
			if err := tx.Where("user_id = ?", locked.UserID).Delete(&models.CartItem{}).Error; err != nil {
				return fmt.Errorf("failed to clear cart: %w", err)
			}
			return nil
		}
		for _, item := range items {
			if err := removeFromCart(tx, locked.UserID, item); err != nil {
				return err
			}
		}
		return nil
	})
}

// deductStock decrements the size and product stock of one order item only
// if neither would go negative. A size left at zero is deleted.
func deductStock(tx *gorm.DB, item models.OrderItem) error {
	if item.Size != "" {
		res := tx.Model(&models.Size{}).
			Where("product_id = ? AND size = ? AND quantity >= ?", item.ProductID, item.Size, item.Quantity).
			Update("quantity", gorm.Expr("quantity - ?", item.Quantity))
		if res.Error != nil {
			return fmt.Errorf("failed to deduct size stock: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: size %s of product %s", ErrStockConflict, item.Size, item.ProductID)
		}

		if err := tx.Where("product_id = ? AND size = ? AND quantity = 0", item.ProductID, item.Size).
			Delete(&models.Size{}).Error; err != nil {
			return fmt.Errorf("failed to delete empty size: %w", err)
		}
	}

	res := tx.Model(&models.Product{}).
		Where("id = ? AND inventory >= ?", item.ProductID, item.Quantity).
		Update("inventory", gorm.Expr("inventory - ?", item.Quantity))
	if res.Error != nil {
		return fmt.Errorf("failed to deduct inventory: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: product %s", ErrStockConflict, item.ProductID)
	}
	return nil
}

// removeFromCart takes the ordered quantity of (product, size) out of the
// user's cart. Lines added after the order was built survive.
func removeFromCart(tx *gorm.DB, userID string, item models.OrderItem) error {
	var lines []models.CartItem
	if err := tx.Where("user_id = ? AND product_id = ? AND size = ?", userID, item.ProductID, item.Size).
		Order("created_at").Find(&lines).Error; err != nil {
		return fmt.Errorf("failed to load cart lines: %w", err)
	}

	remaining := item.Quantity
	for _, line := range lines {
		if remaining <= 0 {
			break
		}
		if line.Quantity <= remaining {
			if err := tx.Where("id = ?", line.ID).Delete(&models.CartItem{}).Error; err != nil {
				return fmt.Errorf("failed to delete cart line: %w", err)
			}
			remaining -= line.Quantity
			continue
		}
		if err := tx.Model(&models.CartItem{}).Where("id = ?", line.ID).
			Update("quantity", line.Quantity-remaining).Error; err != nil {
			return fmt.Errorf("failed to shrink cart line: %w", err)
		}
		remaining = 0
	}
	return nil
}

// reject deletes the pending order; the cart and stock were never touched.
func (s *Service) reject(ctx context.Context, order *models.Order, cause error) (Outcome, error) {
	s.logger.Warn("Payment rejected, deleting order",
		zap.String("order_number", order.OrderNumber),
		zap.Error(cause))

	if err := s.discardOrder(context.WithoutCancel(ctx), order); err != nil {
		s.logger.Error("Failed to delete rejected order",
			zap.String("order_number", order.OrderNumber),
			zap.Error(err))
		return OutcomeRetry, errors.Join(cause, err)
	}

	s.auditLog("payment_rejected", order, map[string]interface{}{
		"reason": cause.Error(),
	})
	return OutcomeRejected, cause
}

func (s *Service) afterPaid(ctx context.Context, order *models.Order) {
	if s.cache != nil {
		err := s.cache.CacheOrder(ctx, &repository.OrderCache{
			OrderNumber:   order.OrderNumber,
			UserID:        order.UserID,
			TotalAmount:   order.TotalAmount,
			PaymentStatus: string(order.PaymentStatus),
		})
		if err != nil {
			s.logger.Warn("Failed to cache paid order",
				zap.String("order_number", order.OrderNumber),
				zap.Error(err))
		}
	}

	s.auditLog("payment_verified", order, map[string]interface{}{
		"payment_status": string(order.PaymentStatus),
	})

	if s.notifier != nil {
		var user models.User
		if err := s.db.WithContext(ctx).Select("id", "email").Where("id = ?", order.UserID).First(&user).Error; err != nil {
			s.logger.Warn("Failed to load user for notification",
				zap.String("order_number", order.OrderNumber),
				zap.Error(err))
			return
		}
		s.notifier.PaymentReceived(order.OrderNumber, user.Email, order.TotalAmount)
	}
}
