// Package grpcjson регистрирует JSON-кодек для gRPC и общие помощники
// для сервисов, описанных без protoc.
package grpcjson

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// Name: content-subtype кодека: application/grpc+json.
const Name = "json"

type codec struct{}

func (codec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (codec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (codec) Name() string { return Name }

func init() {
	encoding.RegisterCodec(codec{})
}

// CallOption включает JSON-кодек для клиентского вызова.
func CallOption() grpc.CallOption {
	return grpc.CallContentSubtype(Name)
}

// Invoke выполняет unary-вызов с JSON-кодеком.
func Invoke[Req, Resp any](ctx context.Context, conn grpc.ClientConnInterface, method string, req *Req, opts ...grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{CallOption()}, opts...)
	if err := conn.Invoke(ctx, method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// UnaryHandler строит grpc.MethodHandler так же, как это делает protoc-gen-go-grpc.
func UnaryHandler[S, Req, Resp any](fullMethod string, call func(S, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(S), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(S), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}
