// Package paymentsv1: контракт внешнего платёжного сервиса.
package paymentsv1

import (
	"context"

	"google.golang.org/grpc"

	"github.com/vladislavdragonenkov/orders/internal/api/grpcjson"
)

const (
	ServiceName                    = "payments.v1.PaymentService"
	CreatePaymentSessionFullMethod = "/" + ServiceName + "/CreatePaymentSession"
)

type LineItem struct {
	Name     string `json:"name"`
	Price    string `json:"price"`
	Quantity int    `json:"quantity"`
}

type CreatePaymentSessionRequest struct {
	OrderID  string     `json:"orderId"`
	Currency string     `json:"currency"`
	Items    []LineItem `json:"items"`
}

type PaymentSession struct {
	URL        string `json:"url"`
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
}

type PaymentServiceServer interface {
	CreatePaymentSession(context.Context, *CreatePaymentSessionRequest) (*PaymentSession, error)
}

var PaymentService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PaymentServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreatePaymentSession", Handler: grpcjson.UnaryHandler(CreatePaymentSessionFullMethod, PaymentServiceServer.CreatePaymentSession)},
	},
	Metadata: "payments/v1/payments.json",
}

func RegisterPaymentServiceServer(s grpc.ServiceRegistrar, srv PaymentServiceServer) {
	s.RegisterService(&PaymentService_ServiceDesc, srv)
}

type PaymentServiceClient interface {
	CreatePaymentSession(ctx context.Context, in *CreatePaymentSessionRequest, opts ...grpc.CallOption) (*PaymentSession, error)
}

type paymentServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewPaymentServiceClient(cc grpc.ClientConnInterface) PaymentServiceClient {
	return &paymentServiceClient{cc: cc}
}

func (c *paymentServiceClient) CreatePaymentSession(ctx context.Context, in *CreatePaymentSessionRequest, opts ...grpc.CallOption) (*PaymentSession, error) {
	return grpcjson.Invoke[CreatePaymentSessionRequest, PaymentSession](ctx, c.cc, CreatePaymentSessionFullMethod, in, opts...)
}
