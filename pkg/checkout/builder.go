package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/payment"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Result is a built order together with the page the customer pays on.
type Result struct {
	Order            *models.Order
	AuthorizationURL string
}

// Checkout builds an order from the user's cart and starts a payment for it.
// If the provider does not accept the payment the order is deleted again.
func (s *Service) Checkout(ctx context.Context, userID, shippingAddress string) (*Result, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	order, err := s.BuildOrder(ctx, userID, shippingAddress)
	if err != nil {
		return nil, err
	}

	initCtx, cancel := context.WithTimeout(ctx, s.opts.PaymentTimeout)
	defer cancel()

	res, err := s.gateway.Initialize(initCtx, payment.InitializeRequest{
		Email:       user.Email,
		Amount:      payment.MinorUnits(order.TotalAmount),
		Currency:    s.opts.Currency,
		CallbackURL: s.opts.CallbackURL,
		Reference:   order.OrderNumber,
	})
	if err != nil {
		s.logger.Warn("Payment initialization failed, discarding order",
			zap.String("order_number", order.OrderNumber),
			zap.Error(err))
		if derr := s.discardOrder(context.WithoutCancel(ctx), order); derr != nil {
			s.logger.Error("Failed to discard abandoned order",
				zap.String("order_number", order.OrderNumber),
				zap.Error(derr))
		}
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	s.logger.Info("Checkout initiated",
		zap.String("order_number", order.OrderNumber),
		zap.String("user_id", userID),
		zap.Int64("total_amount", order.TotalAmount))
	s.auditLog("checkout_initiated", order, map[string]interface{}{
		"items": len(order.Items),
	})

	return &Result{Order: order, AuthorizationURL: res.AuthorizationURL}, nil
}

// BuildOrder snapshots the user's in-stock cart lines into an UNPAID order.
// The cart and stock are left untouched. A colliding order number is
// regenerated up to the configured number of attempts.
func (s *Service) BuildOrder(ctx context.Context, userID, shippingAddress string) (*models.Order, error) {
	for attempt := 1; attempt <= s.opts.OrderNumberRetries; attempt++ {
		number := s.newOrderNumber()
		order, err := s.buildOnce(ctx, userID, shippingAddress, number)
		if errors.Is(err, ErrOrderNumberCollision) {
			s.logger.Warn("Order number collision, regenerating",
				zap.String("order_number", number),
				zap.Int("attempt", attempt))
			continue
		}
		return order, err
	}
	return nil, fmt.Errorf("%w: gave up after %d attempts", ErrOrderNumberCollision, s.opts.OrderNumberRetries)
}

func (s *Service) buildOnce(ctx context.Context, userID, shippingAddress, number string) (*models.Order, error) {
	var order *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cartItems []models.CartItem
		if err := tx.Preload("Product").Where("user_id = ?", userID).Order("created_at").Find(&cartItems).Error; err != nil {
			return fmt.Errorf("failed to load cart: %w", err)
		}

		eligible := cartItems[:0]
		for _, item := range cartItems {
			if item.Product.Purchasable() {
				eligible = append(eligible, item)
			}
		}
		if len(eligible) == 0 {
			return ErrEmptyCart
		}

		address, err := resolveAddress(tx, userID, shippingAddress)
		if err != nil {
			return err
		}

		var taken int64
		if err := tx.Model(&models.Order{}).Where("order_number = ?", number).Count(&taken).Error; err != nil {
			return fmt.Errorf("failed to check order number: %w", err)
		}
		if taken > 0 {
			return ErrOrderNumberCollision
		}

		order = &models.Order{
			ID:              models.NewID(),
			OrderNumber:     number,
			UserID:          userID,
			TotalAmount:     models.CartTotal(eligible),
			ShippingAddress: address,
			PaymentStatus:   models.PaymentUnpaid,
		}
		for _, item := range eligible {
			order.Items = append(order.Items, models.OrderItem{
				ID:          models.NewID(),
				OrderID:     order.ID,
				ProductID:   item.ProductID,
				ProductName: item.Product.Name,
				Quantity:    item.Quantity,
				UnitPrice:   item.Product.UnitPrice,
				TotalPrice:  item.TotalPrice(),
				Size:        item.Size,
				Status:      models.ItemPending,
			})
		}

		if err := tx.Create(order).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrOrderNumberCollision
			}
			return fmt.Errorf("failed to create order: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// resolveAddress falls back to the user's saved address when none is given.
func resolveAddress(tx *gorm.DB, userID, shippingAddress string) (*string, error) {
	if addr := strings.TrimSpace(shippingAddress); addr != "" {
		return &addr, nil
	}

	var saved []models.Address
	if err := tx.Where("user_id = ?", userID).Limit(1).Find(&saved).Error; err != nil {
		return nil, fmt.Errorf("failed to load saved address: %w", err)
	}
	if len(saved) == 0 {
		return nil, nil
	}
	addr := saved[0].String()
	return &addr, nil
}

// discardOrder deletes an order that was never paid, items first.
func (s *Service) discardOrder(ctx context.Context, order *models.Order) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND payment_status = ?", order.ID, models.PaymentUnpaid).Delete(&models.Order{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete order: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := tx.Where("order_id = ?", order.ID).Delete(&models.OrderItem{}).Error; err != nil {
			return fmt.Errorf("failed to delete order items: %w", err)
		}
		return nil
	})
}
