package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/example/storefront/pkg/account"
	"github.com/example/storefront/pkg/cart"
	"github.com/example/storefront/pkg/catalog"
	"github.com/example/storefront/pkg/checkout"
	"github.com/example/storefront/pkg/config"
	storegrpc "github.com/example/storefront/pkg/grpc"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// UserHeader carries the authenticated user id, set by the upstream auth proxy.
const UserHeader = "X-User-ID"

const (
	productsPath        = "/api/v1/products"
	shippingAddressPath = "/api/v1/checkout/shipping-address"
)

// Services are the storefront operations the gateway exposes. Orders may be
// nil when the order service is unreachable.
type Services struct {
	Catalog  *catalog.Service
	Cart     *cart.Service
	Checkout *checkout.Service
	Account  *account.Service
	Orders   storegrpc.OrderServiceClient
}

type Gateway struct {
	config *config.Config
	logger *zap.Logger
	router *gin.Engine
	server *http.Server

	catalog  *catalog.Service
	cart     *cart.Service
	checkout *checkout.Service
	account  *account.Service
	orders   storegrpc.OrderServiceClient
}

func NewGateway(cfg *config.Config, logger *zap.Logger, svc Services) *Gateway {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware(logger))

	return &Gateway{
		config: cfg,
		logger: logger,
		router: router,
		server: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Gateway.Host, cfg.Gateway.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		catalog:  svc.Catalog,
		cart:     svc.Cart,
		checkout: svc.Checkout,
		account:  svc.Account,
		orders:   svc.Orders,
	}
}

func (g *Gateway) SetupRoutes() {
	g.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Payment provider redirect
	g.router.GET("/store/callback_url", g.paymentCallback)

	v1 := g.router.Group("/api/v1")
	{
		products := v1.Group("/products")
		{
			products.GET("", g.listProducts)
			products.GET("/:id", g.getProduct)
			products.POST("/:id/cart", requireUser, g.addToCart)
			products.POST("/:id/reviews", requireUser, g.createReview)
			products.POST("/:id/like", requireUser, g.toggleLike)
			products.POST("/:id/dislike", requireUser, g.toggleDislike)
		}

		v1.DELETE("/reviews/:id", requireUser, g.deleteReview)

		carts := v1.Group("/cart", requireUser)
		{
			carts.GET("", g.viewCart)
			carts.POST("/items/:id/increase", g.increaseItem)
			carts.POST("/items/:id/decrease", g.decreaseItem)
			carts.DELETE("/items/:id", g.deleteItem)
		}

		checkouts := v1.Group("/checkout", requireUser)
		{
			checkouts.GET("", g.checkoutEntry)
			checkouts.GET("/shipping-address", g.shippingStep)
			checkouts.POST("/shipping-address", g.placeOrder)
		}

		addresses := v1.Group("/address", requireUser)
		{
			addresses.GET("", g.getAddress)
			addresses.PUT("", g.saveAddress)
		}

		orders := v1.Group("/orders", requireUser)
		{
			orders.GET("", g.listOrders)
			orders.GET("/:number", g.getOrder)
			orders.PUT("/:number/items/:id/status", g.updateItemStatus)
		}
	}

	g.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// Handler exposes the router, mainly for tests.
func (g *Gateway) Handler() http.Handler {
	return g.router
}

func (g *Gateway) Start() error {
	g.logger.Info("Gateway starting", zap.String("address", g.server.Addr))
	if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (g *Gateway) Shutdown(ctx context.Context) error {
	return g.server.Shutdown(ctx)
}

func requireUser(c *gin.Context) {
	userID := c.GetHeader(UserHeader)
	if userID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "login required"})
		return
	}
	c.Set("user_id", userID)
	c.Next()
}

func userID(c *gin.Context) string {
	if id := c.GetString("user_id"); id != "" {
		return id
	}
	return c.GetHeader(UserHeader)
}

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
