package checkout

import "errors"

var (
	ErrEmptyCart                = errors.New("cart is empty, nothing to checkout")
	ErrOutOfStock               = errors.New("some products are out of stock")
	ErrUserNotFound             = errors.New("user not found")
	ErrOrderNotFound            = errors.New("order not found")
	ErrOrderNumberCollision     = errors.New("order number already exists")
	ErrGatewayUnavailable       = errors.New("payment provider unavailable")
	ErrVerificationMismatch     = errors.New("payment verification mismatch")
	ErrStockConflict            = errors.New("stock changed before payment could be applied")
	ErrReconciliationInProgress = errors.New("payment callback already being processed")
	// ErrAlreadyApplied means a PAID order reached the inventory step. The
	// status guard should make it unreachable.
	ErrAlreadyApplied = errors.New("order payment already applied")
)
