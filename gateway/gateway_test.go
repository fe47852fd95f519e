package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/example/storefront/internal/testutil"
	"github.com/example/storefront/pkg/account"
	"github.com/example/storefront/pkg/cart"
	"github.com/example/storefront/pkg/catalog"
	"github.com/example/storefront/pkg/checkout"
	"github.com/example/storefront/pkg/config"
	storegrpc "github.com/example/storefront/pkg/grpc"
	"github.com/example/storefront/pkg/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakePayments struct {
	mu         sync.Mutex
	references []string
	paid       map[string]int64
}

func (f *fakePayments) Initialize(_ context.Context, req payment.InitializeRequest) (*payment.InitializeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.references = append(f.references, req.Reference)
	return &payment.InitializeResult{
		StatusCode:       http.StatusOK,
		AuthorizationURL: "https://checkout.paystack.com/" + req.Reference,
		Reference:        req.Reference,
	}, nil
}

func (f *fakePayments) Verify(_ context.Context, reference string) (*payment.Verification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	amount, ok := f.paid[reference]
	return &payment.Verification{
		StatusCode: http.StatusOK,
		Success:    ok,
		Amount:     amount,
		Currency:   "NGN",
		Reference:  reference,
	}, nil
}

func (f *fakePayments) pay(reference string, amount int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paid[reference] = amount
}

func (f *fakePayments) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.references[len(f.references)-1]
}

type fakeOrders struct {
	orders  map[string]*storegrpc.Order
	updates []*storegrpc.UpdateItemStatusRequest
}

func (f *fakeOrders) GetOrder(_ context.Context, in *storegrpc.GetOrderRequest, _ ...grpc.CallOption) (*storegrpc.GetOrderResponse, error) {
	o, ok := f.orders[in.OrderNumber]
	if !ok {
		return nil, status.Error(codes.NotFound, "order not found")
	}
	return &storegrpc.GetOrderResponse{Order: o}, nil
}

func (f *fakeOrders) ListOrders(_ context.Context, in *storegrpc.ListOrdersRequest, _ ...grpc.CallOption) (*storegrpc.ListOrdersResponse, error) {
	var out []*storegrpc.Order
	for _, o := range f.orders {
		if o.UserID == in.UserID {
			out = append(out, o)
		}
	}
	return &storegrpc.ListOrdersResponse{Orders: out, Total: int32(len(out))}, nil
}

func (f *fakeOrders) UpdateItemStatus(_ context.Context, in *storegrpc.UpdateItemStatusRequest, _ ...grpc.CallOption) (*storegrpc.UpdateItemStatusResponse, error) {
	f.updates = append(f.updates, in)
	if in.Status == "SHIPPED" {
		return nil, status.Error(codes.FailedPrecondition, "cannot move item from PENDING to SHIPPED")
	}
	return &storegrpc.UpdateItemStatusResponse{Item: &storegrpc.OrderItem{ID: in.ItemID, Status: in.Status}}, nil
}

type harness struct {
	fx       *testutil.Fixture
	payments *fakePayments
	handler  http.Handler
}

func newHarness(t *testing.T, orders storegrpc.OrderServiceClient) *harness {
	db := testutil.NewDB(t)
	logger := zap.NewNop()
	payments := &fakePayments{paid: make(map[string]int64)}

	cfg := &config.Config{Gateway: config.GatewayConfig{Host: "127.0.0.1", Port: 0}}
	g := NewGateway(cfg, logger, Services{
		Catalog: catalog.NewService(db, logger),
		Cart:    cart.NewService(db, logger),
		Checkout: checkout.NewService(db, payments, logger, checkout.Options{
			Currency:           "NGN",
			CallbackURL:        "https://shop.example.com/store/callback_url",
			PaymentTimeout:     time.Second,
			OrderNumberRetries: 3,
			CallbackLockTTL:    time.Minute,
		}),
		Account: account.NewService(db, logger),
		Orders:  orders,
	})
	g.SetupRoutes()

	return &harness{fx: testutil.NewFixture(t, db), payments: payments, handler: g.Handler()}
}

func (h *harness) do(t *testing.T, method, path, user string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	h := newHarness(t, nil)
	w := h.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestRequiresUser(t *testing.T) {
	h := newHarness(t, nil)
	for _, path := range []string{"/api/v1/cart", "/api/v1/checkout", "/api/v1/orders", "/api/v1/address"} {
		w := h.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestCheckoutFlow_PaidCallback(t *testing.T) {
	h := newHarness(t, nil)
	user := h.fx.User("ada@example.com")
	product := h.fx.Product("Hoodie", 1000, 0, map[string]int{"M": 5})

	for i := 0; i < 2; i++ {
		w := h.do(t, http.MethodPost, "/api/v1/products/"+product.ID+"/cart", user.ID, map[string]string{"size": "m"})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w := h.do(t, http.MethodGet, "/api/v1/checkout", user.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), shippingAddressPath)

	w = h.do(t, http.MethodPost, shippingAddressPath, user.ID, map[string]string{"address": "5 Allen Avenue, Ikeja"})
	require.Equal(t, http.StatusSeeOther, w.Code, w.Body.String())
	reference := h.payments.last()
	assert.Equal(t, "https://checkout.paystack.com/"+reference, w.Header().Get("Location"))

	h.payments.pay(reference, 200000)
	w = h.do(t, http.MethodGet, "/store/callback_url?reference="+reference, "", nil)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, productsPath+"?payment=success", w.Header().Get("Location"))

	size, ok := h.fx.Size(product.ID, "M")
	require.True(t, ok)
	assert.Equal(t, 3, size.Quantity)
	assert.Empty(t, h.fx.CartItems(user.ID))

	// provider retries the redirect
	w = h.do(t, http.MethodGet, "/store/callback_url?reference="+reference, "", nil)
	assert.Equal(t, productsPath+"?payment=success", w.Header().Get("Location"))
	size, _ = h.fx.Size(product.ID, "M")
	assert.Equal(t, 3, size.Quantity)
}

func TestCheckoutFlow_MismatchReturnsToShipping(t *testing.T) {
	h := newHarness(t, nil)
	user := h.fx.User("ada@example.com")
	product := h.fx.Product("Hoodie", 1000, 0, map[string]int{"M": 5})
	h.fx.CartItem(user.ID, product.ID, "M", 2)

	w := h.do(t, http.MethodPost, shippingAddressPath, user.ID, map[string]string{"address": "addr"})
	require.Equal(t, http.StatusSeeOther, w.Code)
	reference := h.payments.last()

	h.payments.pay(reference, 150000)
	w = h.do(t, http.MethodGet, "/store/callback_url?reference="+reference, "", nil)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, shippingAddressPath+"?payment=failed", w.Header().Get("Location"))
	assert.NotContains(t, w.Body.String(), "150000", "provider details stay out of the response")

	cartItems := h.fx.CartItems(user.ID)
	require.Len(t, cartItems, 1)
	assert.Equal(t, 2, cartItems[0].Quantity)
}

func TestCheckoutEntry_Rejections(t *testing.T) {
	h := newHarness(t, nil)
	user := h.fx.User("ada@example.com")

	w := h.do(t, http.MethodGet, "/api/v1/checkout", user.ID, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Nothing to check out")

	soldOut := h.fx.Product("Cap", 700, 0, nil)
	h.fx.CartItem(user.ID, soldOut.ID, "", 1)
	w = h.do(t, http.MethodGet, "/api/v1/checkout", user.ID, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "out of stock")
}

func TestAddToCart_InsufficientInventory(t *testing.T) {
	h := newHarness(t, nil)
	user := h.fx.User("ada@example.com")
	product := h.fx.Product("Hoodie", 1000, 0, map[string]int{"M": 1})
	path := "/api/v1/products/" + product.ID + "/cart"

	w := h.do(t, http.MethodPost, path, user.ID, map[string]string{"size": "M"})
	require.Equal(t, http.StatusOK, w.Code)
	w = h.do(t, http.MethodPost, path, user.ID, map[string]string{"size": "M"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "Not enough inventory")

	items := h.fx.CartItems(user.ID)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Quantity)

	w = h.do(t, http.MethodPost, "/api/v1/cart/items/"+items[0].ID+"/decrease", user.ID, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = h.do(t, http.MethodDelete, "/api/v1/cart/items/"+items[0].ID, user.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestProducts(t *testing.T) {
	h := newHarness(t, nil)
	user := h.fx.User("ada@example.com")
	product := h.fx.Product("Hoodie", 1000, 3, nil)
	h.fx.Product("Mug", 500, 3, nil)

	w := h.do(t, http.MethodGet, "/api/v1/products?q=hood", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page catalog.Page
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Products, 1)
	assert.Equal(t, "Hoodie", page.Products[0].Name)

	w = h.do(t, http.MethodPost, "/api/v1/products/"+product.ID+"/like", user.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"total_likes":1,"total_dislikes":0,"has_liked":true,"has_disliked":false}`, w.Body.String())

	w = h.do(t, http.MethodPost, "/api/v1/products/"+product.ID+"/reviews", user.ID, map[string]string{"review": "Warm"})
	require.Equal(t, http.StatusCreated, w.Code)
	w = h.do(t, http.MethodPost, "/api/v1/products/"+product.ID+"/reviews", user.ID, map[string]string{"review": "Again"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = h.do(t, http.MethodGet, "/api/v1/products/"+product.ID, user.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var detail catalog.Detail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	assert.True(t, detail.Flags.Liked)
	assert.True(t, detail.Flags.Reviewed)
	assert.Equal(t, 1, detail.Product.TotalReviews)

	w = h.do(t, http.MethodGet, "/api/v1/products/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAddress(t *testing.T) {
	h := newHarness(t, nil)
	user := h.fx.User("ada@example.com")

	w := h.do(t, http.MethodGet, shippingAddressPath, user.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"address":""}`, w.Body.String())

	w = h.do(t, http.MethodPut, "/api/v1/address", user.ID, map[string]string{
		"address": "12 Marina Road", "city": "Lagos", "state": "Lagos",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = h.do(t, http.MethodGet, shippingAddressPath, user.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"address":"12 Marina Road, Lagos, Lagos"`)

	w = h.do(t, http.MethodPut, "/api/v1/address", user.ID, map[string]string{"address": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func testOrders() *fakeOrders {
	return &fakeOrders{orders: map[string]*storegrpc.Order{
		"20240101120000_aaaaaaaaaa": {
			OrderNumber:   "20240101120000_aaaaaaaaaa",
			UserID:        "ada",
			PaymentStatus: "PAID",
			Items:         []*storegrpc.OrderItem{{ID: "item-1", Status: "PENDING"}},
		},
		"20240101120000_bbbbbbbbbb": {
			OrderNumber:   "20240101120000_bbbbbbbbbb",
			UserID:        "bola",
			PaymentStatus: "PAID",
			Items:         []*storegrpc.OrderItem{{ID: "item-2", Status: "PENDING"}},
		},
	}}
}

func TestOrders(t *testing.T) {
	orders := testOrders()
	h := newHarness(t, orders)

	w := h.do(t, http.MethodGet, "/api/v1/orders", "ada", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list storegrpc.ListOrdersResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, int32(1), list.Total)

	w = h.do(t, http.MethodGet, "/api/v1/orders/20240101120000_aaaaaaaaaa", "ada", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = h.do(t, http.MethodGet, "/api/v1/orders/20240101120000_bbbbbbbbbb", "ada", nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "other users' orders are hidden")
	w = h.do(t, http.MethodGet, "/api/v1/orders/20240101120000_cccccccccc", "ada", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	path := "/api/v1/orders/20240101120000_aaaaaaaaaa/items/item-1/status"
	w = h.do(t, http.MethodPut, path, "ada", map[string]string{"status": "PROCESSING"})
	assert.Equal(t, http.StatusOK, w.Code)
	w = h.do(t, http.MethodPut, path, "ada", map[string]string{"status": "SHIPPED"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "cannot move item"))

	require.Len(t, orders.updates, 2)
	assert.Equal(t, "20240101120000_aaaaaaaaaa", orders.updates[0].OrderNumber)
	assert.Equal(t, "item-1", orders.updates[0].ItemID)
}

func TestUpdateItemStatus_OnlyOwnOrders(t *testing.T) {
	orders := testOrders()
	h := newHarness(t, orders)

	cases := []struct {
		name string
		path string
	}{
		{"another user's order", "/api/v1/orders/20240101120000_bbbbbbbbbb/items/item-2/status"},
		{"unknown order", "/api/v1/orders/does-not-exist/items/item-2/status"},
		{"item of another order", "/api/v1/orders/20240101120000_aaaaaaaaaa/items/item-2/status"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := h.do(t, http.MethodPut, tc.path, "ada", map[string]string{"status": "CANCELLED"})
			assert.Equal(t, http.StatusNotFound, w.Code)
		})
	}
	assert.Empty(t, orders.updates, "no update may reach the order service")
}

func TestOrders_ServiceUnavailable(t *testing.T) {
	h := newHarness(t, nil)
	w := h.do(t, http.MethodGet, "/api/v1/orders", "ada", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
