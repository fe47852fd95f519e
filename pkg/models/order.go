package models

import (
	"time"
)

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "UNPAID"
	PaymentPaid   PaymentStatus = "PAID"
)

type Order struct {
	ID              string        `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OrderNumber     string        `gorm:"type:varchar(25);uniqueIndex;not null" json:"order_number"`
	UserID          string        `gorm:"type:varchar(36);not null;index" json:"user_id"`
	TotalAmount     int64         `gorm:"not null" json:"total_amount"`
	ShippingAddress *string       `gorm:"type:text" json:"shipping_address"`
	PaymentStatus   PaymentStatus `gorm:"type:varchar(20);not null;index" json:"payment_status"`
	Items           []OrderItem   `gorm:"foreignKey:OrderID" json:"items"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

func (o *Order) IsPaid() bool {
	return o.PaymentStatus == PaymentPaid
}

// ItemsTotal sums the snapshot prices of the order's items.
func (o *Order) ItemsTotal() int64 {
	var total int64
	for _, item := range o.Items {
		total += item.TotalPrice
	}
	return total
}

type ItemStatus string

const (
	ItemPending    ItemStatus = "PENDING"
	ItemProcessing ItemStatus = "PROCESSING"
	ItemShipped    ItemStatus = "SHIPPED"
	ItemDelivered  ItemStatus = "DELIVERED"
	ItemCancelled  ItemStatus = "CANCELLED"
)

var itemTransitions = map[ItemStatus][]ItemStatus{
	ItemPending:    {ItemProcessing, ItemCancelled},
	ItemProcessing: {ItemShipped, ItemCancelled},
	ItemShipped:    {ItemDelivered, ItemCancelled},
}

// CanTransitionTo reports whether a fulfilment status change is allowed.
// DELIVERED and CANCELLED are terminal.
func (s ItemStatus) CanTransitionTo(next ItemStatus) bool {
	for _, allowed := range itemTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// OrderItem freezes product name, price, quantity and size at checkout.
type OrderItem struct {
	ID          string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OrderID     string     `gorm:"type:varchar(36);not null;index" json:"order_id"`
	ProductID   string     `gorm:"type:varchar(36);not null;index" json:"product_id"`
	ProductName string     `gorm:"type:varchar(255);not null" json:"product_name"`
	Quantity    int        `gorm:"not null" json:"quantity"`
	UnitPrice   int64      `gorm:"not null" json:"unit_price"`
	TotalPrice  int64      `gorm:"not null" json:"total_price"`
	Size        string     `gorm:"type:varchar(4)" json:"size"`
	Status      ItemStatus `gorm:"type:varchar(10);not null" json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (OrderItem) TableName() string {
	return "order_items"
}
