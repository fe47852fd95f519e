package grpc

import (
	"context"
	"fmt"
	"time"

	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/discovery"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ClientManager owns the gateway's connection to the order service.
type ClientManager struct {
	config    *config.Config
	discovery *discovery.ServiceDiscovery
	logger    *zap.Logger
	dialOpts  []grpc.DialOption

	orderClient OrderServiceClient
	orderConn   *grpc.ClientConn
}

// NewClientManager creates a client manager. disc may be nil, in which case
// gateway.order_service is dialled directly.
func NewClientManager(cfg *config.Config, logger *zap.Logger, disc *discovery.ServiceDiscovery, opts ...grpc.DialOption) *ClientManager {
	return &ClientManager{
		config:    cfg,
		discovery: disc,
		logger:    logger,
		dialOpts:  opts,
	}
}

func (m *ClientManager) Connect() error {
	if err := m.connectOrderService(); err != nil {
		return fmt.Errorf("failed to connect to order service: %w", err)
	}
	return nil
}

func (m *ClientManager) orderTarget() string {
	target := m.config.Gateway.OrderService
	if m.discovery == nil {
		return target
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	instances, err := m.discovery.Discover(ctx, serviceName)
	if err == nil && len(instances) > 0 {
		target = instances[0].Addr()
		m.logger.Info("Discovered order service", zap.String("address", target))
	} else {
		m.logger.Info("Using default address for order service", zap.String("address", target), zap.Error(err))
	}
	return target
}

func (m *ClientManager) connectOrderService() error {
	target := m.orderTarget()
	m.logger.Info("Connecting to order service", zap.String("target", target))

	opts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, m.dialOpts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return err
	}

	m.orderConn = conn
	m.orderClient = NewOrderServiceClient(conn)
	return nil
}

func (m *ClientManager) OrderClient() OrderServiceClient {
	return m.orderClient
}

func (m *ClientManager) Close() error {
	if m.orderConn == nil {
		return nil
	}
	if err := m.orderConn.Close(); err != nil {
		return fmt.Errorf("order connection close error: %w", err)
	}
	return nil
}
