package gateway

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/example/storefront/pkg/account"
	"github.com/example/storefront/pkg/cart"
	"github.com/example/storefront/pkg/catalog"
	"github.com/example/storefront/pkg/checkout"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// errorStatus maps service errors to the status and message shown to users.
var errorStatus = []struct {
	err     error
	status  int
	message string
}{
	{cart.ErrInsufficientInventory, http.StatusConflict, "Not enough inventory"},
	{cart.ErrMinimumQuantity, http.StatusBadRequest, "Quantity cannot go below 1"},
	{cart.ErrCartItemNotFound, http.StatusNotFound, "Cart item not found"},
	{cart.ErrProductNotFound, http.StatusNotFound, "Product not found"},
	{cart.ErrSizeNotFound, http.StatusBadRequest, "Size not available"},
	{catalog.ErrProductNotFound, http.StatusNotFound, "Product not found"},
	{catalog.ErrAlreadyReviewed, http.StatusConflict, "You have already reviewed this product"},
	{catalog.ErrReviewNotFound, http.StatusNotFound, "Review not found"},
	{catalog.ErrEmptyReview, http.StatusBadRequest, "Review cannot be empty"},
	{checkout.ErrEmptyCart, http.StatusBadRequest, "Nothing to check out"},
	{checkout.ErrOutOfStock, http.StatusConflict, "Some products in your cart are out of stock"},
	{checkout.ErrUserNotFound, http.StatusNotFound, "User not found"},
	{checkout.ErrOrderNotFound, http.StatusNotFound, "Order not found"},
	{checkout.ErrGatewayUnavailable, http.StatusBadGateway, "Payment could not be started, please try again"},
	{account.ErrUserNotFound, http.StatusNotFound, "User not found"},
	{account.ErrAddressNotFound, http.StatusNotFound, "No saved address"},
	{account.ErrInvalidAddress, http.StatusBadRequest, "Address, city and state are required"},
}

func (g *Gateway) fail(c *gin.Context, err error) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			c.JSON(e.status, gin.H{"error": e.message})
			return
		}
	}
	g.logger.Error("Request failed",
		zap.String("path", c.Request.URL.Path),
		zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong, try again later"})
}

func (g *Gateway) listProducts(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	result, err := g.catalog.List(c.Request.Context(), catalog.ListFilter{
		Category: c.Query("category"),
		Gender:   c.Query("gender"),
		Query:    c.Query("q"),
		Page:     page,
	})
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (g *Gateway) getProduct(c *gin.Context) {
	detail, err := g.catalog.Product(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

type addToCartRequest struct {
	Size string `json:"size" form:"size"`
}

func (g *Gateway) addToCart(c *gin.Context) {
	var req addToCartRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	item, err := g.cart.Add(c.Request.Context(), userID(c), c.Param("id"), req.Size)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Added to cart", "item": item})
}

type reviewRequest struct {
	Review string `json:"review" form:"review" binding:"required"`
}

func (g *Gateway) createReview(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	review, err := g.catalog.CreateReview(c.Request.Context(), userID(c), c.Param("id"), req.Review)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, review)
}

func (g *Gateway) deleteReview(c *gin.Context) {
	if err := g.catalog.DeleteReview(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		g.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (g *Gateway) toggleLike(c *gin.Context) {
	votes, err := g.catalog.ToggleLike(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, votes)
}

func (g *Gateway) toggleDislike(c *gin.Context) {
	votes, err := g.catalog.ToggleDislike(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, votes)
}

func (g *Gateway) viewCart(c *gin.Context) {
	view, err := g.cart.View(c.Request.Context(), userID(c))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (g *Gateway) increaseItem(c *gin.Context) {
	item, err := g.cart.Increase(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (g *Gateway) decreaseItem(c *gin.Context) {
	item, err := g.cart.Decrease(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (g *Gateway) deleteItem(c *gin.Context) {
	if err := g.cart.Delete(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		g.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (g *Gateway) getAddress(c *gin.Context) {
	addr, err := g.account.Address(c.Request.Context(), userID(c))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, addr)
}

func (g *Gateway) saveAddress(c *gin.Context) {
	var req account.AddressInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	addr, err := g.account.SaveAddress(c.Request.Context(), userID(c), req)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, addr)
}
