package cart

import "errors"

var (
	ErrInsufficientInventory = errors.New("not enough inventory")
	ErrMinimumQuantity       = errors.New("minimum quantity is 1")
	ErrCartItemNotFound      = errors.New("cart item not found")
	ErrProductNotFound       = errors.New("product not found")
	ErrSizeNotFound          = errors.New("size not available for product")
)
