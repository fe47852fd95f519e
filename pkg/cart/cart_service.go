// Package cart guards cart quantities against live size stock.
package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/storefront/pkg/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// View is a user's cart after stale lines have been swept.
type View struct {
	Items      []models.CartItem `json:"items"`
	TotalPrice int64             `json:"total_price"`
}

type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger}
}

// Add puts one unit of (product, size) in the user's cart, creating the line
// or incrementing the existing one.
func (s *Service) Add(ctx context.Context, userID, productID, size string) (*models.CartItem, error) {
	size = models.NormalizeSize(size)

	var item models.CartItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.Scopes(models.Undeleted).Where("id = ?", productID).First(&product).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProductNotFound
			}
			return fmt.Errorf("failed to load product: %w", err)
		}

		var existing []models.CartItem
		if err := tx.Where("user_id = ? AND product_id = ? AND size = ?", userID, productID, size).
			Limit(1).Find(&existing).Error; err != nil {
			return fmt.Errorf("failed to load cart item: %w", err)
		}

		quantity := 1
		if len(existing) > 0 {
			item = existing[0]
			quantity = item.Quantity + 1
		}

		available, err := availableStock(tx, &product, size)
		if err != nil {
			return err
		}
		if quantity > available {
			return ErrInsufficientInventory
		}

		if len(existing) > 0 {
			item.Quantity = quantity
			return tx.Model(&models.CartItem{}).Where("id = ?", item.ID).Update("quantity", quantity).Error
		}

		item = models.CartItem{
			ID:        models.NewID(),
			UserID:    userID,
			ProductID: productID,
			Size:      size,
			Quantity:  1,
		}
		return tx.Omit(clause.Associations).Create(&item).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Added to cart",
		zap.String("user_id", userID),
		zap.String("product_id", productID),
		zap.String("size", size),
		zap.Int("quantity", item.Quantity))
	return &item, nil
}

// Increase adds one unit to a cart line, re-checking the live size stock.
func (s *Service) Increase(ctx context.Context, userID, itemID string) (*models.CartItem, error) {
	var item models.CartItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadItem(tx, userID, itemID, &item); err != nil {
			return err
		}

		available, err := availableStock(tx, &item.Product, item.Size)
		if err != nil {
			return err
		}
		if item.Quantity+1 > available {
			return ErrInsufficientInventory
		}

		item.Quantity++
		return tx.Model(&models.CartItem{}).Where("id = ?", item.ID).Update("quantity", item.Quantity).Error
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Decrease removes one unit from a cart line. A line never drops below one
// unit; Delete removes it.
func (s *Service) Decrease(ctx context.Context, userID, itemID string) (*models.CartItem, error) {
	var item models.CartItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadItem(tx, userID, itemID, &item); err != nil {
			return err
		}
		if item.Quantity-1 < 1 {
			return ErrMinimumQuantity
		}

		item.Quantity--
		return tx.Model(&models.CartItem{}).Where("id = ?", item.ID).Update("quantity", item.Quantity).Error
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Service) Delete(ctx context.Context, userID, itemID string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", itemID, userID).Delete(&models.CartItem{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete cart item: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrCartItemNotFound
	}
	return nil
}

// View lists the user's cart. Lines whose size no longer exists on the
// product are deleted first.
func (s *Service) View(ctx context.Context, userID string) (*View, error) {
	var items []models.CartItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Product").Where("user_id = ?", userID).Order("created_at").Find(&items).Error; err != nil {
			return fmt.Errorf("failed to load cart: %w", err)
		}

		kept := items[:0]
		var stale []string
		for _, item := range items {
			ok, err := sizeExists(tx, item.ProductID, item.Size)
			if err != nil {
				return err
			}
			if !ok {
				stale = append(stale, item.ID)
				continue
			}
			kept = append(kept, item)
		}
		items = kept

		if len(stale) == 0 {
			return nil
		}
		if err := tx.Where("id IN ?", stale).Delete(&models.CartItem{}).Error; err != nil {
			return fmt.Errorf("failed to sweep stale cart items: %w", err)
		}
		s.logger.Info("Removed stale cart items",
			zap.String("user_id", userID),
			zap.Int("count", len(stale)))
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &View{Items: items, TotalPrice: models.CartTotal(items)}, nil
}

func loadItem(tx *gorm.DB, userID, itemID string, item *models.CartItem) error {
	err := tx.Preload("Product").Where("id = ? AND user_id = ?", itemID, userID).First(item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrCartItemNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load cart item: %w", err)
	}
	return nil
}

// availableStock is the live quantity a cart line for (product, size) may
// reach. Products without size variants are capped by aggregate inventory.
func availableStock(tx *gorm.DB, product *models.Product, size string) (int, error) {
	var sizes []models.Size
	if err := tx.Where("product_id = ?", product.ID).Find(&sizes).Error; err != nil {
		return 0, fmt.Errorf("failed to load sizes: %w", err)
	}

	if len(sizes) == 0 {
		if size != "" {
			return 0, ErrSizeNotFound
		}
		return product.Inventory, nil
	}

	for _, s := range sizes {
		if s.Label == size {
			return s.Quantity, nil
		}
	}
	return 0, ErrSizeNotFound
}

func sizeExists(tx *gorm.DB, productID, size string) (bool, error) {
	if size == "" {
		return true, nil
	}
	var count int64
	if err := tx.Model(&models.Size{}).Where("product_id = ? AND size = ?", productID, size).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check size: %w", err)
	}
	return count > 0, nil
}
