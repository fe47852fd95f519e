package models

import "time"

type Review struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID    string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_review_user_product" json:"user_id"`
	ProductID string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_review_user_product;index" json:"product_id"`
	Body      string    `gorm:"column:review;type:text;not null" json:"review"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Review) TableName() string {
	return "reviews"
}

// Like records a user's vote on a product. At most one of Like and Dislike
// is true; a flipped-off vote is stored as false.
type Like struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID    string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_like_user_product" json:"user_id"`
	ProductID string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_like_user_product;index" json:"product_id"`
	Like      *bool     `gorm:"column:is_like" json:"like"`
	Dislike   *bool     `gorm:"column:is_dislike" json:"dislike"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Like) TableName() string {
	return "likes"
}

// All lists every model for migrations.
func All() []interface{} {
	return []interface{}{
		&User{}, &Address{}, &Category{}, &Gender{}, &Product{}, &Size{},
		&CartItem{}, &Order{}, &OrderItem{}, &Review{}, &Like{},
	}
}
