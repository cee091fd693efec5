package ordersv1

import (
	"context"

	"google.golang.org/grpc"

	"github.com/vladislavdragonenkov/orders/internal/api/grpcjson"
)

const ServiceName = "orders.v1.OrderService"

const (
	CreateOrderFullMethod       = "/" + ServiceName + "/CreateOrder"
	FindAllOrdersFullMethod     = "/" + ServiceName + "/FindAllOrders"
	FindOneOrderFullMethod      = "/" + ServiceName + "/FindOneOrder"
	ChangeOrderStatusFullMethod = "/" + ServiceName + "/ChangeOrderStatus"
	PaymentSucceededFullMethod  = "/" + ServiceName + "/PaymentSucceeded"
)

// OrderServiceServer: серверная часть контракта.
type OrderServiceServer interface {
	CreateOrder(context.Context, *CreateOrderRequest) (*CreateOrderResponse, error)
	FindAllOrders(context.Context, *FindAllOrdersRequest) (*FindAllOrdersResponse, error)
	FindOneOrder(context.Context, *FindOneOrderRequest) (*Order, error)
	ChangeOrderStatus(context.Context, *ChangeOrderStatusRequest) (*Order, error)
	PaymentSucceeded(context.Context, *PaymentSucceededRequest) (*Empty, error)
}

// OrderService_ServiceDesc описывает сервис для grpc.Server.
var OrderService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrderServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateOrder", Handler: grpcjson.UnaryHandler(CreateOrderFullMethod, OrderServiceServer.CreateOrder)},
		{MethodName: "FindAllOrders", Handler: grpcjson.UnaryHandler(FindAllOrdersFullMethod, OrderServiceServer.FindAllOrders)},
		{MethodName: "FindOneOrder", Handler: grpcjson.UnaryHandler(FindOneOrderFullMethod, OrderServiceServer.FindOneOrder)},
		{MethodName: "ChangeOrderStatus", Handler: grpcjson.UnaryHandler(ChangeOrderStatusFullMethod, OrderServiceServer.ChangeOrderStatus)},
		{MethodName: "PaymentSucceeded", Handler: grpcjson.UnaryHandler(PaymentSucceededFullMethod, OrderServiceServer.PaymentSucceeded)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "orders/v1/orders.json",
}

// RegisterOrderServiceServer регистрирует реализацию на сервере.
func RegisterOrderServiceServer(s grpc.ServiceRegistrar, srv OrderServiceServer) {
	s.RegisterService(&OrderService_ServiceDesc, srv)
}

// OrderServiceClient: клиентская часть контракта.
type OrderServiceClient interface {
	CreateOrder(ctx context.Context, in *CreateOrderRequest, opts ...grpc.CallOption) (*CreateOrderResponse, error)
	FindAllOrders(ctx context.Context, in *FindAllOrdersRequest, opts ...grpc.CallOption) (*FindAllOrdersResponse, error)
	FindOneOrder(ctx context.Context, in *FindOneOrderRequest, opts ...grpc.CallOption) (*Order, error)
	ChangeOrderStatus(ctx context.Context, in *ChangeOrderStatusRequest, opts ...grpc.CallOption) (*Order, error)
	PaymentSucceeded(ctx context.Context, in *PaymentSucceededRequest, opts ...grpc.CallOption) (*Empty, error)
}

type orderServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewOrderServiceClient создаёт клиента поверх соединения.
func NewOrderServiceClient(cc grpc.ClientConnInterface) OrderServiceClient {
	return &orderServiceClient{cc: cc}
}

func (c *orderServiceClient) CreateOrder(ctx context.Context, in *CreateOrderRequest, opts ...grpc.CallOption) (*CreateOrderResponse, error) {
	return grpcjson.Invoke[CreateOrderRequest, CreateOrderResponse](ctx, c.cc, CreateOrderFullMethod, in, opts...)
}

func (c *orderServiceClient) FindAllOrders(ctx context.Context, in *FindAllOrdersRequest, opts ...grpc.CallOption) (*FindAllOrdersResponse, error) {
	return grpcjson.Invoke[FindAllOrdersRequest, FindAllOrdersResponse](ctx, c.cc, FindAllOrdersFullMethod, in, opts...)
}

func (c *orderServiceClient) FindOneOrder(ctx context.Context, in *FindOneOrderRequest, opts ...grpc.CallOption) (*Order, error) {
	return grpcjson.Invoke[FindOneOrderRequest, Order](ctx, c.cc, FindOneOrderFullMethod, in, opts...)
}

func (c *orderServiceClient) ChangeOrderStatus(ctx context.Context, in *ChangeOrderStatusRequest, opts ...grpc.CallOption) (*Order, error) {
	return grpcjson.Invoke[ChangeOrderStatusRequest, Order](ctx, c.cc, ChangeOrderStatusFullMethod, in, opts...)
}

func (c *orderServiceClient) PaymentSucceeded(ctx context.Context, in *PaymentSucceededRequest, opts ...grpc.CallOption) (*Empty, error) {
	return grpcjson.Invoke[PaymentSucceededRequest, Empty](ctx, c.cc, PaymentSucceededFullMethod, in, opts...)
}
