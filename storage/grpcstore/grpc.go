package grpcstore

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Frames use protobuf well-known wrapper types so no codegen is needed:
//
//	Allocate   BytesValue(addr || account)  -> BoolValue
//	Read       BytesValue(addr)             -> BytesValue(account)
//	Write      BytesValue(addr || data)     -> BoolValue
//	Deallocate BytesValue(addr)             -> BytesValue(account)
//	Has        BytesValue(addr)             -> BoolValue
//
// account is the storage.EncodeAccount encoding.
const serviceName = "bf.ledger.v1.Store"

// StoreServer is the server API for the ledger Store service.
type StoreServer interface {
	Allocate(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BoolValue, error)
	Read(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	Write(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BoolValue, error)
	Deallocate(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	Has(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BoolValue, error)
}

// UnimplementedStoreServer can be embedded for forward compatibility.
type UnimplementedStoreServer struct{}

func (UnimplementedStoreServer) Allocate(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BoolValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Allocate not implemented")
}
func (UnimplementedStoreServer) Read(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Read not implemented")
}
func (UnimplementedStoreServer) Write(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BoolValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Write not implemented")
}
func (UnimplementedStoreServer) Deallocate(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Deallocate not implemented")
}
func (UnimplementedStoreServer) Has(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BoolValue, error) {
	return nil, status.Error(codes.Unimplemented, "method Has not implemented")
}

func RegisterStoreServer(s grpc.ServiceRegistrar, srv StoreServer) {
	s.RegisterService(&Store_ServiceDesc, srv)
}

// StoreClient is the client API for the ledger Store service.
type StoreClient interface {
	Allocate(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error)
	Read(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
	Write(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error)
	Deallocate(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
	Has(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error)
}

type storeClient struct{ cc grpc.ClientConnInterface }

func NewStoreClient(cc grpc.ClientConnInterface) StoreClient { return &storeClient{cc: cc} }

func (c *storeClient) Allocate(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Allocate", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *storeClient) Read(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Read", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *storeClient) Write(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Write", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *storeClient) Deallocate(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Deallocate", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *storeClient) Has(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Has", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// unaryHandler adapts a typed server method to grpc.MethodDesc.
func unaryHandler[Req, Resp any](method string, call func(StoreServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(StoreServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + method}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(StoreServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// Store_ServiceDesc is the grpc.ServiceDesc for the ledger Store service.
var Store_ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*StoreServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Allocate", Handler: unaryHandler("Allocate", StoreServer.Allocate)},
		{MethodName: "Read", Handler: unaryHandler("Read", StoreServer.Read)},
		{MethodName: "Write", Handler: unaryHandler("Write", StoreServer.Write)},
		{MethodName: "Deallocate", Handler: unaryHandler("Deallocate", StoreServer.Deallocate)},
		{MethodName: "Has", Handler: unaryHandler("Has", StoreServer.Has)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ledger.proto",
}
