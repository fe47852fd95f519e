package grpc

import (
	"context"

	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/repository"
	"google.golang.org/grpc"
)

const orderServiceName = "storefront.order.v1.OrderService"

type OrderItem struct {
	ID          string `json:"id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
	TotalPrice  int64  `json:"total_price"`
	Size        string `json:"size,omitempty"`
	Status      string `json:"status"`
}

type Order struct {
	OrderNumber     string       `json:"order_number"`
	UserID          string       `json:"user_id"`
	TotalAmount     int64        `json:"total_amount"`
	PaymentStatus   string       `json:"payment_status"`
	ShippingAddress string       `json:"shipping_address,omitempty"`
	Items           []*OrderItem `json:"items"`
	Events          []*Event     `json:"events,omitempty"`
	CreatedAt       int64        `json:"created_at"`
	UpdatedAt       int64        `json:"updated_at"`
}

// Event is one entry of an order's audit trail.
type Event struct {
	Service string                 `json:"service"`
	Action  string                 `json:"action"`
	Data    map[string]interface{} `json:"data,omitempty"`
	At      int64                  `json:"at"`
}

type GetOrderRequest struct {
	OrderNumber string `json:"order_number"`
}

type GetOrderResponse struct {
	Order *Order `json:"order"`
}

type ListOrdersRequest struct {
	UserID   string `json:"user_id"`
	Page     int32  `json:"page"`
	PageSize int32  `json:"page_size"`
}

type ListOrdersResponse struct {
	Orders []*Order `json:"orders"`
	Total  int32    `json:"total"`
}

type UpdateItemStatusRequest struct {
	OrderNumber string `json:"order_number"`
	ItemID      string `json:"item_id"`
	Status      string `json:"status"`
}

type UpdateItemStatusResponse struct {
	Item *OrderItem `json:"item"`
}

// OrderServiceServer is implemented by OrderServer.
type OrderServiceServer interface {
	GetOrder(context.Context, *GetOrderRequest) (*GetOrderResponse, error)
	ListOrders(context.Context, *ListOrdersRequest) (*ListOrdersResponse, error)
	UpdateItemStatus(context.Context, *UpdateItemStatusRequest) (*UpdateItemStatusResponse, error)
}

func RegisterOrderServiceServer(s grpc.ServiceRegistrar, srv OrderServiceServer) {
	s.RegisterService(&orderServiceDesc, srv)
}

var orderServiceDesc = grpc.ServiceDesc{
	ServiceName: orderServiceName,
	HandlerType: (*OrderServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetOrder", Handler: getOrderHandler},
		{MethodName: "ListOrders", Handler: listOrdersHandler},
		{MethodName: "UpdateItemStatus", Handler: updateItemStatusHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "order_service",
}

func fullMethod(name string) string {
	return "/" + orderServiceName + "/" + name
}

func getOrderHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetOrderRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderServiceServer).GetOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("GetOrder")}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(OrderServiceServer).GetOrder(ctx, req.(*GetOrderRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listOrdersHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ListOrdersRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderServiceServer).ListOrders(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("ListOrders")}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(OrderServiceServer).ListOrders(ctx, req.(*ListOrdersRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func updateItemStatusHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(UpdateItemStatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrderServiceServer).UpdateItemStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod("UpdateItemStatus")}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(OrderServiceServer).UpdateItemStatus(ctx, req.(*UpdateItemStatusRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// OrderServiceClient calls the order service over the JSON codec.
type OrderServiceClient interface {
	GetOrder(ctx context.Context, in *GetOrderRequest, opts ...grpc.CallOption) (*GetOrderResponse, error)
	ListOrders(ctx context.Context, in *ListOrdersRequest, opts ...grpc.CallOption) (*ListOrdersResponse, error)
	UpdateItemStatus(ctx context.Context, in *UpdateItemStatusRequest, opts ...grpc.CallOption) (*UpdateItemStatusResponse, error)
}

type orderServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewOrderServiceClient(cc grpc.ClientConnInterface) OrderServiceClient {
	return &orderServiceClient{cc: cc}
}

func (c *orderServiceClient) invoke(ctx context.Context, method string, in, out interface{}, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
	return c.cc.Invoke(ctx, fullMethod(method), in, out, opts...)
}

func (c *orderServiceClient) GetOrder(ctx context.Context, in *GetOrderRequest, opts ...grpc.CallOption) (*GetOrderResponse, error) {
	out := new(GetOrderResponse)
	if err := c.invoke(ctx, "GetOrder", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *orderServiceClient) ListOrders(ctx context.Context, in *ListOrdersRequest, opts ...grpc.CallOption) (*ListOrdersResponse, error) {
	out := new(ListOrdersResponse)
	if err := c.invoke(ctx, "ListOrders", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *orderServiceClient) UpdateItemStatus(ctx context.Context, in *UpdateItemStatusRequest, opts ...grpc.CallOption) (*UpdateItemStatusResponse, error) {
	out := new(UpdateItemStatusResponse)
	if err := c.invoke(ctx, "UpdateItemStatus", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func toOrder(o *models.Order) *Order {
	out := &Order{
		OrderNumber:   o.OrderNumber,
		UserID:        o.UserID,
		TotalAmount:   o.TotalAmount,
		PaymentStatus: string(o.PaymentStatus),
		Items:         make([]*OrderItem, len(o.Items)),
		CreatedAt:     o.CreatedAt.Unix(),
		UpdatedAt:     o.UpdatedAt.Unix(),
	}
	if o.ShippingAddress != nil {
		out.ShippingAddress = *o.ShippingAddress
	}
	for i := range o.Items {
		out.Items[i] = toOrderItem(&o.Items[i])
	}
	return out
}

func toEvents(logs []*repository.AuditLog) []*Event {
	events := make([]*Event, 0, len(logs))
	for _, l := range logs {
		events = append(events, &Event{
			Service: l.Service,
			Action:  l.Action,
			Data:    l.Data,
			At:      l.CreatedAt.Unix(),
		})
	}
	return events
}

func toOrderItem(item *models.OrderItem) *OrderItem {
	return &OrderItem{
		ID:          item.ID,
		ProductID:   item.ProductID,
		ProductName: item.ProductName,
		Quantity:    item.Quantity,
		UnitPrice:   item.UnitPrice,
		TotalPrice:  item.TotalPrice,
		Size:        item.Size,
		Status:      string(item.Status),
	}
}
