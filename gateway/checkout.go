package gateway

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/example/storefront/pkg/account"
	"github.com/example/storefront/pkg/checkout"
	storegrpc "github.com/example/storefront/pkg/grpc"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// checkoutEntry sends the customer on to the shipping step when every
// product in the cart is still in stock.
func (g *Gateway) checkoutEntry(c *gin.Context) {
	if err := g.checkout.Ready(c.Request.Context(), userID(c)); err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"next": shippingAddressPath})
}

// shippingStep returns the saved address to prefill the shipping form.
func (g *Gateway) shippingStep(c *gin.Context) {
	addr, err := g.account.Address(c.Request.Context(), userID(c))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"address": addr.String(), "saved": addr})
	case errors.Is(err, account.ErrAddressNotFound):
		c.JSON(http.StatusOK, gin.H{"address": ""})
	default:
		g.fail(c, err)
	}
}

type shippingRequest struct {
	Address string `json:"address" form:"address"`
}

// placeOrder builds the order and redirects the customer to the payment page.
func (g *Gateway) placeOrder(c *gin.Context) {
	var req shippingRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := g.checkout.Checkout(c.Request.Context(), userID(c), req.Address)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, res.AuthorizationURL)
}

// paymentCallback is where the provider sends the customer after paying.
func (g *Gateway) paymentCallback(c *gin.Context) {
	reference := c.Query("reference")
	outcome, err := g.checkout.Reconcile(c.Request.Context(), reference)

	logger := g.logger.With(
		zap.String("reference", reference),
		zap.Stringer("outcome", outcome))

	switch outcome {
	case checkout.OutcomePaid, checkout.OutcomeAlreadyPaid:
		logger.Info("Payment callback handled")
		c.Redirect(http.StatusSeeOther, productsPath+"?payment=success")
	case checkout.OutcomeRejected:
		logger.Warn("Payment callback rejected", zap.Error(err))
		c.Redirect(http.StatusSeeOther, shippingAddressPath+"?payment=failed")
	default:
		logger.Error("Payment callback not applied", zap.Error(err))
		c.Header("Retry-After", "5")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Your payment is being processed, please retry shortly"})
	}
}

func (g *Gateway) listOrders(c *gin.Context) {
	if g.orders == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "order service unavailable"})
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))

	resp, err := g.orders.ListOrders(c.Request.Context(), &storegrpc.ListOrdersRequest{
		UserID:   userID(c),
		Page:     int32(page),
		PageSize: int32(size),
	})
	if err != nil {
		g.failRPC(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (g *Gateway) getOrder(c *gin.Context) {
	if g.orders == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "order service unavailable"})
		return
	}
	order, ok := g.ownOrder(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, order)
}

// ownOrder loads the order named in the path. Orders of other users are
// reported as missing.
func (g *Gateway) ownOrder(c *gin.Context) (*storegrpc.Order, bool) {
	resp, err := g.orders.GetOrder(c.Request.Context(), &storegrpc.GetOrderRequest{OrderNumber: c.Param("number")})
	if err != nil {
		g.failRPC(c, err)
		return nil, false
	}
	if resp.Order == nil || resp.Order.UserID != userID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return nil, false
	}
	return resp.Order, true
}

type itemStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (g *Gateway) updateItemStatus(c *gin.Context) {
	if g.orders == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "order service unavailable"})
		return
	}
	var req itemStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, ok := g.ownOrder(c)
	if !ok {
		return
	}
	itemID := c.Param("id")
	if !hasItem(order, itemID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order item not found"})
		return
	}

	resp, err := g.orders.UpdateItemStatus(c.Request.Context(), &storegrpc.UpdateItemStatusRequest{
		OrderNumber: order.OrderNumber,
		ItemID:      itemID,
		Status:      req.Status,
	})
	if err != nil {
		g.failRPC(c, err)
		return
	}
	c.JSON(http.StatusOK, resp.Item)
}

func hasItem(order *storegrpc.Order, itemID string) bool {
	for _, item := range order.Items {
		if item.ID == itemID {
			return true
		}
	}
	return false
}

func (g *Gateway) failRPC(c *gin.Context, err error) {
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.NotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": st.Message()})
	case codes.InvalidArgument:
		c.JSON(http.StatusBadRequest, gin.H{"error": st.Message()})
	case codes.FailedPrecondition:
		c.JSON(http.StatusConflict, gin.H{"error": st.Message()})
	default:
		g.logger.Error("Order service call failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "order service unavailable"})
	}
}
