// Package productsv1: контракт внешнего каталога товаров.
package productsv1

import (
	"context"

	"google.golang.org/grpc"

	"github.com/vladislavdragonenkov/orders/internal/api/grpcjson"
)

const (
	ServiceName                = "products.v1.ProductService"
	ValidateProductsFullMethod = "/" + ServiceName + "/ValidateProducts"
)

type ValidateProductsRequest struct {
	IDs []int64 `json:"ids"`
}

type Product struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Price string `json:"price"`
}

type ValidateProductsResponse struct {
	Products []Product `json:"products"`
}

type ProductServiceServer interface {
	ValidateProducts(context.Context, *ValidateProductsRequest) (*ValidateProductsResponse, error)
}

var ProductService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ProductServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ValidateProducts", Handler: grpcjson.UnaryHandler(ValidateProductsFullMethod, ProductServiceServer.ValidateProducts)},
	},
	Metadata: "products/v1/products.json",
}

func RegisterProductServiceServer(s grpc.ServiceRegistrar, srv ProductServiceServer) {
	s.RegisterService(&ProductService_ServiceDesc, srv)
}

type ProductServiceClient interface {
	ValidateProducts(ctx context.Context, in *ValidateProductsRequest, opts ...grpc.CallOption) (*ValidateProductsResponse, error)
}

type productServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewProductServiceClient(cc grpc.ClientConnInterface) ProductServiceClient {
	return &productServiceClient{cc: cc}
}

func (c *productServiceClient) ValidateProducts(ctx context.Context, in *ValidateProductsRequest, opts ...grpc.CallOption) (*ValidateProductsResponse, error) {
	return grpcjson.Invoke[ValidateProductsRequest, ValidateProductsResponse](ctx, c.cc, ValidateProductsFullMethod, in, opts...)
}
