// Package testutil provides fixtures shared by package tests.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// NewDB opens a migrated in-memory sqlite database private to t. The pool
// holds a single connection, so concurrent transactions serialize.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := repository.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

var phoneSeq atomic.Int64

// Fixture seeds rows with sensible defaults.
type Fixture struct {
	t  *testing.T
	db *gorm.DB
}

func NewFixture(t *testing.T, db *gorm.DB) *Fixture {
	return &Fixture{t: t, db: db}
}

func (f *Fixture) create(value interface{}) {
	f.t.Helper()
	if err := f.db.Omit(clause.Associations).Create(value).Error; err != nil {
		f.t.Fatalf("seed %T: %v", value, err)
	}
}

func (f *Fixture) User(email string) *models.User {
	f.t.Helper()
	u := &models.User{
		ID:        models.NewID(),
		Email:     email,
		FirstName: "Ada",
		LastName:  "Obi",
		Phone:     fmt.Sprintf("080%08d", phoneSeq.Add(1)),
		IsActive:  true,
	}
	f.create(u)
	return u
}

func (f *Fixture) Address(userID string) *models.Address {
	f.t.Helper()
	a := &models.Address{
		ID:         models.NewID(),
		UserID:     userID,
		Line:       "12 Marina Road",
		City:       "Lagos",
		State:      "Lagos",
		PostalCode: "101001",
	}
	f.create(a)
	return a
}

// Product seeds a product whose inventory is the sum of the given size
// quantities, or inventory when no sizes are given.
func (f *Fixture) Product(name string, unitPrice int64, inventory int, sizes map[string]int) *models.Product {
	f.t.Helper()
	p := &models.Product{
		ID:        models.NewID(),
		Name:      name,
		Brand:     "Generic",
		UnitPrice: unitPrice,
		Inventory: inventory,
	}
	if len(sizes) > 0 {
		p.Inventory = 0
		for _, q := range sizes {
			p.Inventory += q
		}
	}
	f.create(p)
	for label, q := range sizes {
		f.create(&models.Size{ID: models.NewID(), ProductID: p.ID, Label: models.NormalizeSize(label), Quantity: q})
	}
	return p
}

func (f *Fixture) CartItem(userID, productID, size string, quantity int) *models.CartItem {
	f.t.Helper()
	item := &models.CartItem{
		ID:        models.NewID(),
		UserID:    userID,
		ProductID: productID,
		Size:      models.NormalizeSize(size),
		Quantity:  quantity,
	}
	f.create(item)
	return item
}

// Size reads the live size row; ok is false once it has been deleted.
func (f *Fixture) Size(productID, label string) (models.Size, bool) {
	f.t.Helper()
	var sizes []models.Size
	if err := f.db.Where("product_id = ? AND size = ?", productID, models.NormalizeSize(label)).Find(&sizes).Error; err != nil {
		f.t.Fatalf("load size: %v", err)
	}
	if len(sizes) == 0 {
		return models.Size{}, false
	}
	return sizes[0], true
}

func (f *Fixture) ReloadProduct(id string) models.Product {
	f.t.Helper()
	var p models.Product
	if err := f.db.First(&p, "id = ?", id).Error; err != nil {
		f.t.Fatalf("load product: %v", err)
	}
	return p
}

func (f *Fixture) CartItems(userID string) []models.CartItem {
	f.t.Helper()
	var items []models.CartItem
	if err := f.db.Where("user_id = ?", userID).Order("created_at").Find(&items).Error; err != nil {
		f.t.Fatalf("load cart: %v", err)
	}
	return items
}
