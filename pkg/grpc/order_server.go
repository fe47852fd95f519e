package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/repository"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const serviceName = "order-service"

// trailLimit caps the audit events returned with an order.
const trailLimit = 50

type OrderCache interface {
	CacheOrder(ctx context.Context, order *repository.OrderCache) error
	InvalidateOrder(ctx context.Context, orderNumber string) error
}

// AuditLogger records fulfilment changes and reads back an order's trail.
type AuditLogger interface {
	CreateAuditLog(ctx context.Context, log *repository.AuditLog) error
	AuditTrail(ctx context.Context, orderNumber string, limit int64) ([]*repository.AuditLog, error)
}

// OrderServer exposes orders and item fulfilment over gRPC. cache and audit
// may be nil.
type OrderServer struct {
	db     *gorm.DB
	cache  OrderCache
	audit  AuditLogger
	logger *zap.Logger
	srv    *grpc.Server
}

func NewOrderServer(db *gorm.DB, cache OrderCache, audit AuditLogger, logger *zap.Logger) *OrderServer {
	s := &OrderServer{
		db:     db,
		cache:  cache,
		audit:  audit,
		logger: logger,
		srv:    grpc.NewServer(),
	}
	RegisterOrderServiceServer(s.srv, s)
	return s
}

// Serve blocks until the listener fails or Stop is called.
func (s *OrderServer) Serve(lis net.Listener) error {
	s.logger.Info("Order service started", zap.String("address", lis.Addr().String()))
	return s.srv.Serve(lis)
}

func (s *OrderServer) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(lis)
}

func (s *OrderServer) Stop() {
	s.srv.GracefulStop()
}

func (s *OrderServer) GetOrder(ctx context.Context, req *GetOrderRequest) (*GetOrderResponse, error) {
	if req.OrderNumber == "" {
		return nil, status.Error(codes.InvalidArgument, "order_number is required")
	}

	var order models.Order
	err := s.db.WithContext(ctx).Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at")
	}).Where("order_number = ?", req.OrderNumber).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, status.Error(codes.NotFound, "order not found")
	}
	if err != nil {
		s.logger.Error("Failed to get order", zap.String("order_number", req.OrderNumber), zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to get order")
	}

	if s.cache != nil && order.IsPaid() {
		if err := s.cache.CacheOrder(ctx, &repository.OrderCache{
			OrderNumber:   order.OrderNumber,
			UserID:        order.UserID,
			TotalAmount:   order.TotalAmount,
			PaymentStatus: string(order.PaymentStatus),
		}); err != nil {
			s.logger.Warn("Failed to cache order", zap.String("order_number", order.OrderNumber), zap.Error(err))
		}
	}

	out := toOrder(&order)
	if s.audit != nil {
		logs, err := s.audit.AuditTrail(ctx, order.OrderNumber, trailLimit)
		if err != nil {
			s.logger.Warn("Failed to load audit trail", zap.String("order_number", order.OrderNumber), zap.Error(err))
		} else {
			out.Events = toEvents(logs)
		}
	}

	return &GetOrderResponse{Order: out}, nil
}

func (s *OrderServer) ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error) {
	if req.UserID == "" {
		return nil, status.Error(codes.InvalidArgument, "user_id is required")
	}
	page, pageSize := int(req.Page), int(req.PageSize)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}

	var total int64
	query := s.db.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", req.UserID)
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, status.Error(codes.Internal, "failed to count orders")
	}

	var orders []models.Order
	err := query.Session(&gorm.Session{}).Preload("Items").
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&orders).Error
	if err != nil {
		s.logger.Error("Failed to list orders", zap.String("user_id", req.UserID), zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to list orders")
	}

	out := make([]*Order, len(orders))
	for i := range orders {
		out[i] = toOrder(&orders[i])
	}
	return &ListOrdersResponse{Orders: out, Total: int32(total)}, nil
}

// UpdateItemStatus moves one item of a paid order along its fulfilment
// states. The item must belong to the named order; unpaid orders are not
// fulfilled.
func (s *OrderServer) UpdateItemStatus(ctx context.Context, req *UpdateItemStatusRequest) (*UpdateItemStatusResponse, error) {
	if req.OrderNumber == "" || req.ItemID == "" {
		return nil, status.Error(codes.InvalidArgument, "order_number and item_id are required")
	}
	next := models.ItemStatus(req.Status)

	var item models.OrderItem
	var order models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_number = ?", req.OrderNumber).First(&order).Error; err != nil {
			return err
		}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND order_id = ?", req.ItemID, order.ID).
			First(&item).Error; err != nil {
			return err
		}
		if !order.IsPaid() {
			return status.Error(codes.FailedPrecondition, "order is not paid")
		}
		if !item.Status.CanTransitionTo(next) {
			return status.Errorf(codes.FailedPrecondition, "cannot move item from %s to %s", item.Status, next)
		}

		item.Status = next
		return tx.Model(&models.OrderItem{}).Where("id = ?", item.ID).Updates(map[string]interface{}{
			"status":     next,
			"updated_at": time.Now(),
		}).Error
	})
	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, status.Error(codes.NotFound, "order item not found")
	default:
		if _, ok := status.FromError(err); ok {
			return nil, err
		}
		s.logger.Error("Failed to update item status", zap.String("item_id", req.ItemID), zap.Error(err))
		return nil, status.Error(codes.Internal, "failed to update item status")
	}

	if s.cache != nil {
		if err := s.cache.InvalidateOrder(ctx, order.OrderNumber); err != nil {
			s.logger.Warn("Failed to invalidate order cache", zap.String("order_number", order.OrderNumber), zap.Error(err))
		}
	}
	if s.audit != nil {
		entry := &repository.AuditLog{
			Service:  serviceName,
			Action:   "update_item_status",
			EntityID: order.OrderNumber,
			Data:     map[string]interface{}{"item_id": item.ID, "status": string(next)},
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
				s.logger.Warn("Failed to write audit log", zap.Error(err))
			}
		}()
	}

	s.logger.Info("Item status updated",
		zap.String("order_number", order.OrderNumber),
		zap.String("item_id", item.ID),
		zap.String("status", string(next)))
	return &UpdateItemStatusResponse{Item: toOrderItem(&item)}, nil
}
