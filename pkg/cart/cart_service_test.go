package cart

import (
	"context"
	"testing"

	"github.com/example/storefront/internal/testutil"
	"github.com/example/storefront/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setup(t *testing.T) (*Service, *testutil.Fixture) {
	db := testutil.NewDB(t)
	return NewService(db, zap.NewNop()), testutil.NewFixture(t, db)
}

func TestAdd_CreatesLineWithQuantityOne(t *testing.T) {
	svc, fx := setup(t)
	user := fx.User("ada@example.com")
	product := fx.Product("Hoodie", 1000, 0, map[string]int{"M": 5})

	item, err := svc.Add(context.Background(), user.ID, product.ID, "m")
	require.NoError(t, err)

	assert.Equal(t, 1, item.Quantity)
	assert.Equal(t, "M", item.Size)
	items := fx.CartItems(user.ID)
	require.Len(t, items, 1)
	assert.Equal(t, item.ID, items[0].ID)
}

func TestAdd_IncrementsExistingLine(t *testing.T) {
	svc, fx := setup(t)
	user := fx.User("ada@example.com")
	product := fx.Product("Hoodie", 1000, 0, map[string]int{"M": 5})
	ctx := context.Background()

	_, err := svc.Add(ctx, user.ID, product.ID, "M")
	require.NoError(t, err)
	item, err := svc.Add(ctx, user.ID, product.ID, "M")
	require.NoError(t, err)

	assert.Equal(t, 2, item.Quantity)
	assert.Len(t, fx.CartItems(user.ID), 1)
}

func TestAdd_SeparateLinePerSize(t *testing.T) {
	svc, fx := setup(t)
	user := fx.User("ada@example.com")
	product := fx.Product("Hoodie", 1000, 0, map[string]int{"M": 5, "L": 2})
	ctx := context.Background()

	_, err := svc.Add(ctx, user.ID, product.ID, "M")
	require.NoError(t, err)
	_, err = svc.Add(ctx, user.ID, product.ID, "L")
	require.NoError(t, err)

	assert.Len(t, fx.CartItems(user.ID), 2)
}

// Add with Size.quantity=1 and the line already at 1 must fail and leave the line at 1.
func TestAdd_RejectsBeyondSizeStock(t *testing.T) {
	svc, fx := setup(t)
	user := fx.User("ada@example.com")
	product := fx.Product("Hoodie", 1000, 0, map[string]int{"M": 1})
	fx.CartItem(user.ID, product.ID, "M", 1)

	_, err := svc.Add(context.Background(), user.ID, product.ID, "M")
	assert.ErrorIs(t, err, ErrInsufficientInventory)

	items := fx.CartItems(user.ID)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Quantity)
}

func TestAdd_UnknownSize(t *testing.T) {
	svc, fx := setup(t)
	user := fx.User("ada@example.com")
	product := fx.Product("Hoodie", 1000, 0, map[string]int{"M": 1})

	_, err := svc.Add(context.Background(), user.ID, product.ID, "XL")
	assert.ErrorIs(t, err, ErrSizeNotFound)
	assert.Empty(t, fx.CartItems(user.ID))
}

func TestAdd_DeletedProduct(t *testing.T) {
	db := testutil.NewDB(t)
	svc, fx := NewService(db, zap.NewNop()), testutil.NewFixture(t, db)
	user := fx.User("ada@example.com")
	product := fx.Product("Hoodie", 1000, 0, map[string]int{"M": 1})
	require.NoError(t, db.Model(&models.Product{}).Where("id = ?", product.ID).Update("is_deleted", true).Error)

	_, err := svc.Add(context.Background(), user.ID, product.ID, "M")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestAdd_ProductWithoutSizesUsesInventory(t *testing.T) {
	svc, fx := setup(t)
	user := fx.User("ada@example.com")
	product := fx.Product("Mug", 500, 2, nil)
	ctx := context.Background()

	_, err := svc.Add(ctx, user.ID, product.ID, "")
	require.NoError(t, err)
	_, err = svc.Add(ctx, user.ID, product.ID, "")
	require.NoError(t, err)
	_, err = svc.Add(ctx, user.ID, product.ID, "")
	assert.ErrorIs(t, err, ErrInsufficientInventory)
}

func TestIncrease_RechecksLiveStock(t *testing.T) {
	db := testutil.NewDB(t)
	svc, fx := NewService(db, zap.NewNop()), testutil.NewFixture(t, db)
	user := fx.User("ada@example.com")
	product := fx.Product("Hoodie", 1000, 0, map[string]int{"M": 5})
	item := fx.CartItem(user.ID, product.ID, "M", 2)
	ctx := context.Background()

	got, err := svc.Increase(ctx, user.ID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Quantity)

	// stock shrinks after the line was created
	require.NoError(t, db.Model(&models.Size{}).Where("product_id = ?", product.ID).Update("quantity", 3).Error)

	_, err = svc.Increase(ctx, user.ID, item.ID)
	assert.ErrorIs(t, err, ErrInsufficientInventory)

	size, ok := fx.Size(product.ID, "M")
	require.True(t, ok)
	items := fx.CartItems(user.ID)
	require.Len(t, items, 1)
	assert.LessOrEqual(t, items[0].Quantity, size.Quantity)
}

func TestIncrease_OtherUsersItem(t *testing.T) {
	svc, fx := setup(t)
	owner := fx.User("ada@example.com")
	other := fx.User("bola@example.com")
	product := fx.Product("Hoodie", 1000, 0, map[string]int{"M": 5})
	item := fx.CartItem(owner.ID, product.ID, "M", 1)

	_, err := svc.Increase(context.Background(), other.ID, item.ID)
	assert.ErrorIs(t, err, ErrCartItemNotFound)
}

func TestDecrease(t *testing.T) {
	svc, fx := setup(t)
	user := fx.User("ada@example.com")
	product := fx.Product("Hoodie", 1000, 0, map[string]int{"M": 5})
	item := fx.CartItem(user.ID, product.ID, "M", 2)
	ctx := context.Background()

	got, err := svc.Decrease(ctx, user.ID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Quantity)

	_, err = svc.Decrease(ctx, user.ID, item.ID)
	assert.ErrorIs(t, err, ErrMinimumQuantity)

	items := fx.CartItems(user.ID)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Quantity)
}

func TestDelete(t *testing.T) {
	svc, fx := setup(t)
	user := fx.User("ada@example.com")
	product := fx.Product("Hoodie", 1000, 0, map[string]int{"M": 5})
	item := fx.CartItem(user.ID, product.ID, "M", 2)
	ctx := context.Background()

	require.NoError(t, svc.Delete(ctx, user.ID, item.ID))
	assert.Empty(t, fx.CartItems(user.ID))

	assert.ErrorIs(t, svc.Delete(ctx, user.ID, item.ID), ErrCartItemNotFound)
}

func TestView_SweepsStaleSizes(t *testing.T) {
	db := testutil.NewDB(t)
	svc, fx := NewService(db, zap.NewNop()), testutil.NewFixture(t, db)
	user := fx.User("ada@example.com")
	hoodie := fx.Product("Hoodie", 1000, 0, map[string]int{"M": 5, "L": 1})
	mug := fx.Product("Mug", 500, 3, nil)
	fx.CartItem(user.ID, hoodie.ID, "M", 2)
	fx.CartItem(user.ID, hoodie.ID, "L", 1)
	fx.CartItem(user.ID, mug.ID, "", 1)

	require.NoError(t, db.Where("product_id = ? AND size = ?", hoodie.ID, "L").Delete(&models.Size{}).Error)

	view, err := svc.View(context.Background(), user.ID)
	require.NoError(t, err)

	require.Len(t, view.Items, 2)
	assert.Equal(t, int64(2*1000+500), view.TotalPrice)
	assert.Len(t, fx.CartItems(user.ID), 2)
	for _, item := range view.Items {
		assert.NotEqual(t, "L", item.Size)
	}
}
