package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestItemStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to ItemStatus
		want     bool
	}{
		{ItemPending, ItemProcessing, true},
		{ItemProcessing, ItemShipped, true},
		{ItemShipped, ItemDelivered, true},
		{ItemPending, ItemCancelled, true},
		{ItemShipped, ItemCancelled, true},
		{ItemPending, ItemShipped, false},
		{ItemDelivered, ItemCancelled, false},
		{ItemCancelled, ItemPending, false},
		{ItemProcessing, ItemPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestCartTotal(t *testing.T) {
	items := []CartItem{
		{Quantity: 2, Product: Product{UnitPrice: 1000}},
		{Quantity: 1, Product: Product{UnitPrice: 2500}},
	}
	assert.Equal(t, int64(4500), CartTotal(items))
	assert.Equal(t, int64(0), CartTotal(nil))
}

func TestOrder_ItemsTotal(t *testing.T) {
	order := Order{Items: []OrderItem{{TotalPrice: 2000}, {TotalPrice: 1500}}}
	assert.Equal(t, int64(3500), order.ItemsTotal())
}

func TestAddress_String(t *testing.T) {
	a := &Address{Line: "12 Marina Road", City: "Lagos", State: "Lagos", PostalCode: "101001"}
	assert.Equal(t, "12 Marina Road, Lagos, Lagos 101001", a.String())

	a.PostalCode = ""
	assert.Equal(t, "12 Marina Road, Lagos, Lagos", a.String())
}

func TestNormalizeSize(t *testing.T) {
	assert.Equal(t, "XL", NormalizeSize(" xl "))
	assert.Equal(t, "M", NormalizeSize("M"))
}
