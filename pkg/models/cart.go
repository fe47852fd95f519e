package models

import "time"

// CartItem is one line of a user's cart. A user holds at most one item per
// (product, size) pair; the cart service enforces it.
type CartItem struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID    string    `gorm:"type:varchar(36);not null;index" json:"user_id"`
	ProductID string    `gorm:"type:varchar(36);not null;index" json:"product_id"`
	Product   Product   `gorm:"foreignKey:ProductID" json:"product"`
	Size      string    `gorm:"type:varchar(4)" json:"size"`
	Quantity  int       `gorm:"not null" json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (CartItem) TableName() string {
	return "cart_items"
}

// TotalPrice needs Product to be loaded.
func (c *CartItem) TotalPrice() int64 {
	return c.Product.UnitPrice * int64(c.Quantity)
}

// CartTotal sums TotalPrice over items.
func CartTotal(items []CartItem) int64 {
	var total int64
	for i := range items {
		total += items[i].TotalPrice()
	}
	return total
}
