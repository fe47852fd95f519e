package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Product struct {
	ID            string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name          string     `gorm:"type:varchar(255);not null;index" json:"name"`
	Description   string     `gorm:"type:text" json:"description"`
	Brand         string     `gorm:"type:varchar(100);not null" json:"brand"`
	UnitPrice     int64      `gorm:"not null" json:"unit_price"`
	Inventory     int        `gorm:"not null" json:"inventory"`
	TotalLikes    int        `gorm:"not null" json:"total_likes"`
	TotalDislikes int        `gorm:"not null" json:"total_dislikes"`
	TotalReviews  int        `gorm:"not null" json:"total_reviews"`
	IsDeleted     bool       `gorm:"not null;index" json:"-"`
	Sizes         []Size     `gorm:"foreignKey:ProductID" json:"sizes,omitempty"`
	Categories    []Category `gorm:"many2many:product_categories" json:"categories,omitempty"`
	Genders       []Gender   `gorm:"many2many:product_genders" json:"genders,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}

func (p *Product) InStock() bool {
	return p.Inventory > 0
}

// Purchasable reports whether the product can still be ordered: listed and
// in stock.
func (p *Product) Purchasable() bool {
	return !p.IsDeleted && p.InStock()
}

// Undeleted restricts a products query to rows that are not soft-deleted.
// Every query that reads products applies it explicitly.
func Undeleted(db *gorm.DB) *gorm.DB {
	return db.Where("products.is_deleted = ?", false)
}

// Stocked restricts a products query to rows with aggregate stock left.
func Stocked(db *gorm.DB) *gorm.DB {
	return db.Where("products.inventory > ?", 0)
}

// Size is the stock of one size label of a product.
type Size struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ProductID string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_size_product_label" json:"product_id"`
	Label     string    `gorm:"column:size;type:varchar(4);not null;uniqueIndex:idx_size_product_label" json:"size"`
	Quantity  int       `gorm:"not null" json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Size) TableName() string {
	return "sizes"
}

// NormalizeSize returns the stored form of a size label.
func NormalizeSize(label string) string {
	return strings.ToUpper(strings.TrimSpace(label))
}

type Category struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name      string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Category) TableName() string {
	return "categories"
}

type Gender struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Sex       string    `gorm:"type:varchar(20);uniqueIndex;not null" json:"sex"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Gender) TableName() string {
	return "genders"
}

// NewID returns a fresh primary key.
func NewID() string {
	return uuid.NewString()
}
