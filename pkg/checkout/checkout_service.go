// Package checkout turns carts into orders and reconciles provider payments
// against them.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/payment"
	"github.com/example/storefront/pkg/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const serviceName = "checkout"

// PaymentGateway is the remote payment provider.
type PaymentGateway interface {
	Initialize(ctx context.Context, req payment.InitializeRequest) (*payment.InitializeResult, error)
	Verify(ctx context.Context, reference string) (*payment.Verification, error)
}

// Locker guards a payment reference against concurrent callbacks.
// AcquireLock returns an empty token when the key is held elsewhere.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

type OrderCache interface {
	CacheOrder(ctx context.Context, order *repository.OrderCache) error
}

type AuditLogger interface {
	CreateAuditLog(ctx context.Context, log *repository.AuditLog) error
}

// Notifier is told about every order that becomes PAID.
type Notifier interface {
	PaymentReceived(orderNumber, email string, amount int64)
}

type Options struct {
	Currency           string
	CallbackURL        string
	PaymentTimeout     time.Duration
	OrderNumberRetries int
	CallbackLockTTL    time.Duration
	ClearEntireCart    bool
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Currency:           cfg.Paystack.Currency,
		CallbackURL:        cfg.Paystack.CallbackURL,
		PaymentTimeout:     cfg.Paystack.Timeout,
		OrderNumberRetries: cfg.Checkout.OrderNumberRetries,
		CallbackLockTTL:    cfg.Checkout.CallbackLockTTL,
		ClearEntireCart:    cfg.Checkout.ClearEntireCart,
	}
}

type Option func(*Service)

func WithLocker(l Locker) Option { return func(s *Service) { s.locker = l } }

func WithOrderCache(c OrderCache) Option { return func(s *Service) { s.cache = c } }

func WithAuditLogger(a AuditLogger) Option { return func(s *Service) { s.audit = a } }

func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

// WithOrderNumbers replaces the order number generator.
func WithOrderNumbers(next func() string) Option { return func(s *Service) { s.newOrderNumber = next } }

type Service struct {
	db      *gorm.DB
	gateway PaymentGateway
	logger  *zap.Logger
	opts    Options

	locker         Locker
	cache          OrderCache
	audit          AuditLogger
	notifier       Notifier
	newOrderNumber func() string
}

func NewService(db *gorm.DB, gateway PaymentGateway, logger *zap.Logger, opts Options, extra ...Option) *Service {
	if opts.OrderNumberRetries < 1 {
		opts.OrderNumberRetries = 1
	}
	if opts.PaymentTimeout <= 0 {
		opts.PaymentTimeout = 120 * time.Second
	}
	s := &Service{
		db:             db,
		gateway:        gateway,
		logger:         logger,
		opts:           opts,
		newOrderNumber: NewOrderNumber,
	}
	for _, o := range extra {
		o(s)
	}
	return s
}

// NewOrderNumber returns YYYYMMDDHHMMSS_ followed by ten random characters.
func NewOrderNumber() string {
	return time.Now().Format("20060102150405") + "_" + uuid.NewString()[:10]
}

// Ready is the checkout entry check: the cart must hold something and every
// product in it must still be purchasable.
func (s *Service) Ready(ctx context.Context, userID string) error {
	var items []models.CartItem
	if err := s.db.WithContext(ctx).Preload("Product").Where("user_id = ?", userID).Find(&items).Error; err != nil {
		return fmt.Errorf("failed to load cart: %w", err)
	}
	if len(items) == 0 {
		return ErrEmptyCart
	}
	for _, item := range items {
		if !item.Product.Purchasable() {
			return ErrOutOfStock
		}
	}
	return nil
}

// Order returns an order with its items.
func (s *Service) Order(ctx context.Context, orderNumber string) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).Preload("Items").Where("order_number = ?", orderNumber).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return &order, nil
}

func (s *Service) auditLog(action string, order *models.Order, data map[string]interface{}) {
	if s.audit == nil {
		return
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	data["user_id"] = order.UserID
	data["total_amount"] = order.TotalAmount
	orderNumber := order.OrderNumber
	entry := &repository.AuditLog{
		Service:  serviceName,
		Action:   action,
		EntityID: orderNumber,
		Data:     data,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
			s.logger.Warn("Failed to write audit log",
				zap.String("action", action),
				zap.String("order_number", orderNumber),
				zap.Error(err))
		}
	}()
}
